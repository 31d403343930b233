// Package doc typesets model documentation into PDF via pandoc.
//
// Model READMEs are written for the web: they reference shared assets
// under /_static/ and rendered thumbnails under images/readme. For
// typesetting the markdown is rewritten so those references point at the
// absolute on-disk locations, with thumbnails swapped for their
// full-resolution publish counterparts, and the result is fed to pandoc
// with the xelatex engine.
package doc

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/printforge/printforge/pkg/shell"
)

// Typesetter runs pandoc.
type Typesetter struct {
	// Bin is the pandoc binary.
	Bin string

	runner *shell.Runner
}

// NewTypesetter creates a typesetter that spawns pandoc through runner.
func NewTypesetter(bin string, runner *shell.Runner) *Typesetter {
	return &Typesetter{Bin: bin, runner: runner}
}

// Build typesets the markdown file src into the PDF out. staticDir is the
// shared asset directory and imagesDir the model's publish image
// directory; both must be absolute so pandoc resolves embeds regardless
// of its working directory.
func (t *Typesetter) Build(ctx context.Context, src, out, staticDir, imagesDir string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	tmp, err := os.MkdirTemp("", "printforge-doc-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	input := filepath.Join(tmp, "input.md")
	rewritten := RewriteMarkdown(data, staticDir, imagesDir)
	if err := os.WriteFile(input, rewritten, 0644); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return err
	}
	_, err = t.runner.Run(ctx, t.Bin, Args(input, out)...)
	return err
}

// Args builds the pandoc argv for typesetting input into out.
func Args(input, out string) []string {
	return []string{
		"--from=commonmark",
		"--table-of-contents",
		"--toc-depth=4",
		"--number-sections",
		"--pdf-engine=xelatex",
		"--variable=fontsize:12pt",
		"--variable=colorlinks:true",
		"--variable=linestretch:1.0",
		"--variable=geometry:top=1.5cm, bottom=2.5cm, left=1.5cm, right=1.5cm",
		"--variable=papersize:letter",
		input,
		"-o", out,
	}
}

// RewriteMarkdown retargets asset references for typesetting:
// shared assets under /_static/ resolve to staticDir, and readme
// thumbnails resolve to the full-resolution images in imagesDir.
func RewriteMarkdown(data []byte, staticDir, imagesDir string) []byte {
	s := string(data)
	s = strings.ReplaceAll(s, "/_static/", staticDir+"/")
	s = strings.ReplaceAll(s, "../images/readme", imagesDir)
	s = strings.ReplaceAll(s, "images/readme", imagesDir)
	return []byte(s)
}

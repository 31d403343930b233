package doc

import (
	"strings"
	"testing"
)

func TestArgs(t *testing.T) {
	args := Args("/tmp/input.md", "/build/widget/widget.pdf")

	for _, want := range []string{
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
	} {
		found := false
		for _, a := range args {
			if a == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("argv missing %q", want)
		}
	}

	n := len(args)
	if args[n-3] != "/tmp/input.md" || args[n-2] != "-o" || args[n-1] != "/build/widget/widget.pdf" {
		t.Errorf("argv tail = %v", args[n-3:])
	}
}

func TestRewriteMarkdown(t *testing.T) {
	in := strings.Join([]string{
		"![logo](/_static/logo.png)",
		"![thumb](../images/readme/widget.png)",
		"![thumb](images/readme/widget.png)",
		"![other](images/photo.jpg)",
	}, "\n")

	out := string(RewriteMarkdown([]byte(in), "/repo/_static", "/repo/build/widget/images/publish"))

	for _, want := range []string{
		"![logo](/repo/_static/logo.png)",
		"![thumb](/repo/build/widget/images/publish/widget.png)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "images/readme") {
		t.Errorf("readme references survived rewrite:\n%s", out)
	}
	// Unrelated image paths are untouched.
	if !strings.Contains(out, "![other](images/photo.jpg)") {
		t.Errorf("unrelated path was rewritten:\n%s", out)
	}
}

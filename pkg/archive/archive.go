// Package archive packages model outputs into distributable zip files.
//
// Each model directory produces one "printables" archive collecting its
// compiled STLs, typeset PDFs, published images, declared assets and
// sources. Files are remapped into a flat, consumer-friendly layout:
// geometry under stl/, documents under doc/, images under images/.
// Library directories (symlinked into the model dir) are bundled as a
// nested libraries.zip so the archive stays self-contained without
// scattering third-party files through it.
package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/printforge/printforge/pkg/errors"
)

// LibrariesZip is the fixed name of the nested library archive.
const LibrariesZip = "libraries.zip"

// Prefix is the leading part of every archive filename.
const Prefix = "printables-"

// Name returns the archive filename for a model directory,
// sanitized so the name is safe on any filesystem.
func Name(modelDir string) string {
	var b strings.Builder
	for _, r := range modelDir {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return Prefix + b.String() + ".zip"
}

// Packager computes archive destination paths for one model directory.
type Packager struct {
	// overrides maps a relative path prefix to an explicit destination
	// category, declared by asset blocks in the manifest.
	overrides map[string]string
}

// NewPackager creates a packager with the given category overrides.
func NewPackager(overrides map[string]string) *Packager {
	return &Packager{overrides: overrides}
}

// DestPath maps a file's model-relative path to its archive destination.
// The second return value is false when the file is excluded entirely.
//
// Rules, applied in order:
//  1. An explicit category override relocates the file under the category.
//  2. Files under images/ flatten to images/<basename>, except names
//     containing "readme" which are excluded.
//  3. *.stl flattens to stl/<basename>.
//  4. *.pdf flattens to doc/<basename>.
//  5. Anything else keeps its relative path.
func (p *Packager) DestPath(rel string) (string, bool) {
	rel = filepath.ToSlash(rel)

	for prefix, category := range p.overrides {
		if rel == prefix || strings.HasPrefix(rel, prefix+"/") {
			rest := strings.TrimPrefix(rel, prefix)
			rest = strings.TrimPrefix(rest, "/")
			if rest == "" {
				rest = path.Base(rel)
			}
			return category + "/" + rest, true
		}
	}

	if strings.HasPrefix(rel, "images") {
		if strings.Contains(rel, "readme") {
			return "", false
		}
		return "images/" + path.Base(rel), true
	}
	if strings.HasSuffix(rel, ".stl") {
		return "stl/" + path.Base(rel), true
	}
	if strings.HasSuffix(rel, ".pdf") {
		return "doc/" + path.Base(rel), true
	}
	return rel, true
}

// File is one archive input: where it lives on disk and its path
// relative to the model directory.
type File struct {
	Path string // On-disk location
	Rel  string // Model-relative path fed to DestPath
}

// Write produces the archive from the given files. Library files are
// bundled into a nested libraries.zip and never appear as loose entries,
// even if also listed in files.
func (p *Packager) Write(w io.Writer, files, libraries []File) error {
	zw := zip.NewWriter(w)

	if len(libraries) > 0 {
		nested, err := buildNested(libraries)
		if err != nil {
			return err
		}
		entry, err := zw.Create(LibrariesZip)
		if err != nil {
			return errors.Wrap(errors.ErrCodeArchive, err, "creating %s entry", LibrariesZip)
		}
		if _, err := entry.Write(nested); err != nil {
			return errors.Wrap(errors.ErrCodeArchive, err, "writing %s", LibrariesZip)
		}
	}

	libSet := make(map[string]bool, len(libraries))
	for _, lf := range libraries {
		libSet[lf.Rel] = true
	}

	// Deterministic entry order regardless of how the planner collected
	// the files.
	sorted := append([]File(nil), files...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rel < sorted[j].Rel })

	for _, f := range sorted {
		if libSet[f.Rel] {
			continue
		}
		dest, ok := p.DestPath(f.Rel)
		if !ok {
			continue
		}
		if err := addFile(zw, f.Path, dest); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeArchive, err, "finalizing archive")
	}
	return nil
}

// buildNested creates the libraries.zip bytes in memory. Library sets are
// small (a handful of .scad files), so buffering is fine.
func buildNested(libraries []File) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	sorted := append([]File(nil), libraries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rel < sorted[j].Rel })

	for _, lf := range sorted {
		if err := addFile(zw, lf.Path, filepath.ToSlash(lf.Rel)); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeArchive, err, "finalizing %s", LibrariesZip)
	}
	return buf.Bytes(), nil
}

func addFile(zw *zip.Writer, src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(errors.ErrCodeArchive, err, "opening %s", src)
	}
	defer in.Close()

	entry, err := zw.Create(dest)
	if err != nil {
		return errors.Wrap(errors.ErrCodeArchive, err, "creating entry %s", dest)
	}
	if _, err := io.Copy(entry, in); err != nil {
		return errors.Wrap(errors.ErrCodeArchive, err, "writing entry %s", dest)
	}
	return nil
}

// LibraryFiles finds .scad files provided by symlinked library
// directories inside the model dir. Returned paths are relative to
// modelDir (e.g. "mylib/gears.scad").
func LibraryFiles(modelDir string) ([]File, error) {
	entries, err := os.ReadDir(modelDir)
	if err != nil {
		return nil, err
	}

	var libs []File
	for _, e := range entries {
		full := filepath.Join(modelDir, e.Name())
		info, err := os.Lstat(full)
		if err != nil || info.Mode()&os.ModeSymlink == 0 {
			continue
		}
		resolved, err := os.Stat(full)
		if err != nil || !resolved.IsDir() {
			continue
		}
		matches, err := filepath.Glob(filepath.Join(full, "*.scad"))
		if err != nil {
			continue
		}
		for _, m := range matches {
			libs = append(libs, File{
				Path: m,
				Rel:  filepath.ToSlash(filepath.Join(e.Name(), filepath.Base(m))),
			})
		}
	}
	sort.Slice(libs, func(i, j int) bool { return libs[i].Rel < libs[j].Rel })
	return libs, nil
}

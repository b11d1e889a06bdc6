// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/gogpu/isp/gpucore"
)

//go:embed wgsl/*.wgsl
var embedded embed.FS

// Source is an immutable set of named WGSL files.
//
// A host builds a Source once (from a directory or the embedded defaults)
// and passes it to the pipeline. Hot reload is constructing a new Source
// and rebuilding the pipeline with it.
type Source struct {
	origin string
	files  map[string]string
	hash   string
}

// New returns a source set holding the given files, keyed by file name
// (e.g. "debayer.wgsl").
func New(origin string, files map[string]string) *Source {
	s := &Source{origin: origin, files: maps.Clone(files)}
	s.hash = s.computeHash()
	return s
}

// Default returns the built-in shader set.
func Default() *Source {
	src, err := LoadFS(embedded, "wgsl")
	if err != nil {
		panic(fmt.Sprintf("shader: embedded sources: %v", err))
	}
	src.origin = "embedded"
	return src
}

// Load reads every .wgsl file in dir.
func Load(dir string) (*Source, error) {
	src, err := LoadFS(os.DirFS(dir), ".")
	if err != nil {
		return nil, fmt.Errorf("shader: load %s: %w", dir, err)
	}
	src.origin = dir
	return src, nil
}

// LoadFS reads every .wgsl file in dir of fsys.
func LoadFS(fsys fs.FS, dir string) (*Source, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	files := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".wgsl" {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		files[e.Name()] = string(data)
	}
	if len(files) == 0 {
		return nil, ErrNoSources
	}
	logger().Debug("shader: loaded sources", "dir", dir, "files", len(files))
	return New(dir, files), nil
}

// Origin describes where the files came from.
func (s *Source) Origin() string { return s.origin }

// Files returns the file names in sorted order.
func (s *Source) Files() []string {
	return slices.Sorted(maps.Keys(s.files))
}

// File returns the raw contents of a file.
func (s *Source) File(name string) (string, bool) {
	src, ok := s.files[name]
	return src, ok
}

// Hash returns a digest of every file name and content. Two sources with
// equal hashes produce identical modules.
func (s *Source) Hash() string { return s.hash }

func (s *Source) computeHash() string {
	h := sha256.New()
	for _, name := range slices.Sorted(maps.Keys(s.files)) {
		fmt.Fprintf(h, "%s\x00%d\x00", name, len(s.files[name]))
		h.Write([]byte(s.files[name]))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Module is a shader file specialized with its definitions.
type Module struct {
	File      string
	Entry     string
	WGSL      string
	Constants map[string]float64
}

// Descriptor returns the device descriptor for the module.
func (m *Module) Descriptor(label string) *gpucore.ShaderModuleDescriptor {
	return &gpucore.ShaderModuleDescriptor{
		Label:     label,
		WGSL:      m.WGSL,
		Constants: m.Constants,
	}
}

// Process specializes file for entry: the definitions are prepended as
// const declarations and the file must declare fn entry. Failures are
// returned as *ShaderBuildError.
func (s *Source) Process(file, entry string, defs Defs) (*Module, error) {
	body, ok := s.files[file]
	if !ok {
		return nil, &ShaderBuildError{File: file, Entry: entry, Err: ErrMissingFile}
	}
	if !declaresEntry(body, entry) {
		return nil, &ShaderBuildError{File: file, Entry: entry, Err: ErrMissingEntry}
	}
	header, err := defs.Header()
	if err != nil {
		return nil, &ShaderBuildError{File: file, Entry: entry, Err: err}
	}

	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString("\n")
	sb.WriteString(body)
	return &Module{
		File:      file,
		Entry:     entry,
		WGSL:      sb.String(),
		Constants: defs.Constants(),
	}, nil
}

// HasEntry reports whether file declares fn entry.
func (s *Source) HasEntry(file, entry string) bool {
	body, ok := s.files[file]
	return ok && declaresEntry(body, entry)
}

func declaresEntry(body, entry string) bool {
	re, err := regexp.Compile(`\bfn\s+` + regexp.QuoteMeta(entry) + `\s*\(`)
	if err != nil {
		return false
	}
	return re.MatchString(body)
}

// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package staging materializes archive members on local disk, one at a time.
package staging

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
)

// DirPrefix prefixes every scratch directory a Stager creates.
const DirPrefix = "tarbatch-"

// Stager owns one scratch directory for the lifetime of a run.
type Stager struct {
	dir string
}

// New creates a fresh scratch directory under root.
func New(root string) (*Stager, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create staging root: %w", err)
	}
	dir, err := os.MkdirTemp(root, DirPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &Stager{dir: dir}, nil
}

// Dir returns the scratch directory.
func (s *Stager) Dir() string {
	return s.dir
}

// File is one staged member.
type File struct {
	Path  string
	Entry string
}

// Remove deletes the staged file. It is safe to call more than once.
func (f *File) Remove() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Stage copies r into a new file named after the member's base name. The
// file always lands directly in the scratch directory, whatever directories
// or ".." elements the member name carries.
func (s *Stager) Stage(entry string, r io.Reader) (*File, error) {
	f, err := os.CreateTemp(s.dir, "*-"+safeBase(entry))
	if err != nil {
		return nil, fmt.Errorf("create staged file: %w", err)
	}
	staged := &File{Path: f.Name(), Entry: entry}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = staged.Remove()
		return nil, fmt.Errorf("extract %s: %w", entry, err)
	}
	if err := f.Close(); err != nil {
		_ = staged.Remove()
		return nil, fmt.Errorf("extract %s: %w", entry, err)
	}
	return staged, nil
}

// Close removes the scratch directory and anything left in it.
func (s *Stager) Close() error {
	return os.RemoveAll(s.dir)
}

func safeBase(entry string) string {
	base := path.Base(strings.ReplaceAll(entry, "\\", "/"))
	switch base {
	case ".", "..", "/":
		return "entry"
	}
	// CreateTemp treats '*' as the random-string marker.
	return strings.ReplaceAll(base, "*", "_")
}

// Mgmt
// Copyright (C) 2013-2023+ James Shubin and the project contributors
// Written by James Shubin <james@shubin.ca> and the project contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/spf13/afero"
)

// File is a Store backed by an afero.Fs, one JSON file per slice. Vertex
// names come from the graph's Alter/config layer, not from request input,
// but SecureJoin is used anyway so a vertex name containing path
// separators (however that happened) can never escape Root, the same
// defensive join the teacher uses for its HTTP file resource.
type File struct {
	fs   afero.Fs
	root string
}

// NewFile creates a File store rooted at root on fs. Passing
// afero.NewOsFs() gives real disk persistence; tests typically pass
// afero.NewMemMapFs().
func NewFile(fs afero.Fs, root string) (*File, error) {
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("store: create root: %w", err)
	}
	return &File{fs: fs, root: root}, nil
}

func (f *File) path(vertex string, index []int) (string, error) {
	name := fileSafeName(vertex, index) + ".json"
	p, err := securejoin.SecureJoin(f.root, name)
	if err != nil {
		return "", fmt.Errorf("store: secure join: %w", err)
	}
	return p, nil
}

func fileSafeName(vertex string, index []int) string {
	var b strings.Builder
	b.WriteString(strings.Map(func(r rune) rune {
		if r == '/' || r == filepath.Separator {
			return '_'
		}
		return r
	}, vertex))
	for _, i := range index {
		fmt.Fprintf(&b, ".%d", i)
	}
	return b.String()
}

// Save implements Store.
func (f *File) Save(_ context.Context, r Record) error {
	p, err := f.path(r.Vertex, r.Index)
	if err != nil {
		return err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("store: marshal record: %w", err)
	}
	return afero.WriteFile(f.fs, p, data, 0o644)
}

// Load implements Store.
func (f *File) Load(_ context.Context, vertex string, index []int) (Record, bool, error) {
	p, err := f.path(vertex, index)
	if err != nil {
		return Record{}, false, err
	}
	data, err := afero.ReadFile(f.fs, p)
	if os.IsNotExist(err) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("store: read %s: %w", p, err)
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, false, fmt.Errorf("store: unmarshal %s: %w", p, err)
	}
	return r, true, nil
}

// LoadAll implements Store, sorted by file name for deterministic restore
// ordering.
func (f *File) LoadAll(ctx context.Context) ([]Record, error) {
	entries, err := afero.ReadDir(f.fs, f.root)
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", f.root, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]Record, 0, len(names))
	for _, name := range names {
		data, err := afero.ReadFile(f.fs, filepath.Join(f.root, name))
		if err != nil {
			return nil, fmt.Errorf("store: read %s: %w", name, err)
		}
		var r Record
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("store: unmarshal %s: %w", name, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// Delete implements Store.
func (f *File) Delete(_ context.Context, vertex string, index []int) error {
	p, err := f.path(vertex, index)
	if err != nil {
		return err
	}
	if err := f.fs.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: remove %s: %w", p, err)
	}
	return nil
}

// Althread
// Copyright (C) 2024+ The Althread Authors
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

package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/althread-lang/althread/lang/linker"
)

// sourceExt lists the file extensions treated as Althread source when a
// directory is scanned for import targets.
var sourceExt = map[string]bool{".alt": true, ".al": true, ".althread": true}

// loadEntry reads path off disk plus every sibling source file in its
// directory (so `import "./helpers.alt"`-style sibling imports resolve),
// keyed the way linker.normalize expects: an absolute-style logical path
// rooted at "/". It returns the entry's own logical path alongside the VFS.
func loadEntry(path string) (string, linker.VFS, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	dir := filepath.Dir(abs)

	vfs := linker.VFS{}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !sourceExt[filepath.Ext(e.Name())] {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return "", nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		vfs["/"+e.Name()] = string(data)
	}

	entryLogical := "/" + filepath.Base(abs)
	if _, ok := vfs[entryLogical]; !ok {
		data, err := os.ReadFile(abs)
		if err != nil {
			return "", nil, fmt.Errorf("reading %s: %w", path, err)
		}
		vfs[entryLogical] = string(data)
	}
	return entryLogical, vfs, nil
}

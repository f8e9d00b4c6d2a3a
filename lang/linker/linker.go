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

// Package linker resolves import statements against a virtual file system
// and merges the resulting forest of files into one translation unit. It
// plays the role the teacher's Downloader/Input system plays for mgmt
// deploys, but entirely in memory: there is no network fetch, only VFS
// lookups, since Althread programs are self-contained teaching exercises.
package linker

import (
	"path"
	"strings"

	"github.com/althread-lang/althread/diag"
	"github.com/althread-lang/althread/lang/ast"
	"github.com/althread-lang/althread/lang/parser"
)

// VFS maps a normalized file path to its source text. Callers build one
// from disk, from an editor buffer, or from a test fixture.
type VFS map[string]string

// Alias groups every declaration (private ones included) contributed by one
// file imported as `import ... as A`. Those declarations are also merged
// into the unit's flat namespace, exactly like an unaliased import's.
type Alias struct {
	Path      string
	Programs  map[string]*ast.ProgramDecl
	Functions map[string]*ast.FunctionDecl
	Shared    map[string]*ast.SharedDecl
}

// Unit is the linker's output: every file reached from the entry point,
// their declarations merged into one flat namespace (plus any aliased
// namespaces), and the entry file's main block.
type Unit struct {
	EntryPath string
	Main      *ast.MainDecl
	Assertions []*ast.AssertionBlock

	// Programs/Functions/Shared hold every declaration, keyed by name,
	// collected across the whole import forest, aliased imports included.
	Programs  map[string]*ast.ProgramDecl
	Functions map[string]*ast.FunctionDecl
	Shared    map[string]*ast.SharedDecl

	// Aliases holds the declarations of every `import "p" as A`, keyed by
	// A, in addition to their entries in the flat namespace above.
	Aliases map[string]*Alias

	// Files holds every parsed file, keyed by its normalized path, so
	// later stages can still walk the whole forest if needed.
	Files map[string]*ast.File
}

// linker threads the mutable state of one Link call: the VFS, the set of
// files already parsed (to short-circuit cycles), and the files currently
// on the descent stack (to distinguish a permitted cycle from infinite
// recursion).
type linker struct {
	vfs       VFS
	unit      *Unit
	onStack   map[string]bool
	errs      diag.List
}

// Link resolves entry's imports against vfs and returns the merged Unit.
// A non-nil diag.List means linking failed and Unit should be discarded.
func Link(entry string, vfs VFS) (*Unit, diag.List) {
	l := &linker{
		vfs:     vfs,
		onStack: map[string]bool{},
		unit: &Unit{
			EntryPath: entry,
			Programs:  map[string]*ast.ProgramDecl{},
			Functions: map[string]*ast.FunctionDecl{},
			Shared:    map[string]*ast.SharedDecl{},
			Aliases:   map[string]*Alias{},
			Files:     map[string]*ast.File{},
		},
	}

	f := l.load(entry, diag.Pos{File: entry})
	if len(l.errs) > 0 {
		return nil, l.errs
	}
	if f.Main == nil {
		l.errs = l.errs.Add(diag.New(diag.Import, diag.Pos{File: entry}, "entry file %q declares no main block", entry))
		return nil, l.errs
	}
	l.unit.Main = f.Main
	return l.unit, nil
}

// normalize resolves importPath relative to the file that imports it,
// mirroring path.Join/path.Clean semantics the teacher uses for module
// paths in lang/download.go.
func normalize(fromFile, importPath string) string {
	if strings.HasPrefix(importPath, "/") {
		return path.Clean(importPath)
	}
	return path.Clean(path.Join(path.Dir(fromFile), importPath))
}

// load parses file (if not already parsed), registers its declarations, and
// recursively loads its imports. Import cycles are accepted whatever the
// files in them declare; none is reported as an error. load records a file
// in Files and registers its declarations *before* descending into its
// imports, so a cycle that loops back finds the file already present and
// stops.
func (l *linker) load(file string, referencedFrom diag.Pos) *ast.File {
	if existing, ok := l.unit.Files[file]; ok {
		return existing
	}
	if l.onStack[file] {
		// Not reached by an import cycle: a file is stored in Files
		// before its imports are loaded, so a cycle returns through the
		// branch above.
		return nil
	}

	src, ok := l.vfs[file]
	if !ok {
		l.errs = l.errs.Add(diag.New(diag.Import, referencedFrom, "import not found: %q", file))
		return nil
	}

	l.onStack[file] = true
	defer delete(l.onStack, file)

	f, perrs := parser.Parse(file, src)
	if len(perrs) > 0 {
		l.errs = append(l.errs, perrs...)
		return nil
	}
	l.unit.Files[file] = f

	// Register this file's own declarations before descending into its
	// imports, so a cycle that loops back here sees them already present.
	l.register(f, "")

	for _, imp := range f.Imports {
		target := normalize(file, imp.Path)
		pos := imp.Position()
		imported := l.load(target, pos)
		if imported == nil {
			continue // error already recorded
		}
		if imp.Alias != "" {
			l.registerAlias(target, imp.Alias, imported)
		}
	}

	return f
}

// register merges f's top-level declarations into the unit's flat
// namespace. Redeclaration across files is accepted last-writer-wins,
// matching the rest of the pipeline's "semantic analyzer owns rejection"
// split: the linker merges, the analyzer validates.
func (l *linker) register(f *ast.File, _ string) {
	for _, p := range f.Programs {
		l.unit.Programs[p.Name] = p
	}
	for _, fn := range f.Functions {
		l.unit.Functions[fn.Name] = fn
	}
	if f.Shared != nil {
		for _, d := range f.Shared.Decls {
			l.unit.Shared[d.Name] = d
		}
	}
	l.unit.Assertions = append(l.unit.Assertions, f.Assertions...)
}

// registerAlias snapshots target's own (not transitively imported)
// declarations under the given alias namespace.
func (l *linker) registerAlias(target, alias string, f *ast.File) {
	a := &Alias{
		Path:      target,
		Programs:  map[string]*ast.ProgramDecl{},
		Functions: map[string]*ast.FunctionDecl{},
		Shared:    map[string]*ast.SharedDecl{},
	}
	for _, p := range f.Programs {
		a.Programs[p.Name] = p
	}
	for _, fn := range f.Functions {
		a.Functions[fn.Name] = fn
	}
	if f.Shared != nil {
		for _, d := range f.Shared.Decls {
			a.Shared[d.Name] = d
		}
	}
	l.unit.Aliases[alias] = a
}

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

package linker

import "testing"

func TestLinkSimpleImport(t *testing.T) {
	vfs := VFS{
		"/lib.al": `
function double(x: int): int {
	return x * 2;
}
`,
		"/main.al": `
import "lib.al" as Lib;

main {
	print(1);
}
`,
	}

	u, errs := Link("/main.al", vfs)
	if len(errs) != 0 {
		t.Fatalf("unexpected link error: %s", errs.Error())
	}
	if u.Main == nil {
		t.Fatalf("expected a main block")
	}
	alias, ok := u.Aliases["Lib"]
	if !ok {
		t.Fatalf("expected alias Lib to be registered")
	}
	if _, ok := alias.Functions["double"]; !ok {
		t.Fatalf("expected Lib.double to be registered")
	}
}

func TestLinkImportNotFound(t *testing.T) {
	vfs := VFS{
		"/main.al": `
import "missing.al";

main {
	print(1);
}
`,
	}
	_, errs := Link("/main.al", vfs)
	if len(errs) == 0 {
		t.Fatalf("expected an ImportNotFound diagnostic")
	}
}

func TestLinkPermittedCycle(t *testing.T) {
	vfs := VFS{
		"/a.al": `
import "b.al";

function fromA(): int {
	return 1;
}
`,
		"/b.al": `
import "a.al";

function fromB(): int {
	return 2;
}
`,
		"/main.al": `
import "a.al";
import "b.al";

main {
	print(1);
}
`,
	}
	u, errs := Link("/main.al", vfs)
	if len(errs) != 0 {
		t.Fatalf("unexpected link error on a permitted cycle: %s", errs.Error())
	}
	if _, ok := u.Functions["fromA"]; !ok {
		t.Errorf("expected fromA to be registered despite the cycle")
	}
	if _, ok := u.Functions["fromB"]; !ok {
		t.Errorf("expected fromB to be registered despite the cycle")
	}
}

func TestLinkMissingMain(t *testing.T) {
	vfs := VFS{
		"/main.al": `
function onlyThis(): int {
	return 1;
}
`,
	}
	_, errs := Link("/main.al", vfs)
	if len(errs) == 0 {
		t.Fatalf("expected an error for a file with no main block")
	}
}

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

package semantic

import (
	"testing"

	"github.com/althread-lang/althread/lang/linker"
)

func link(t *testing.T, src string) *linker.Unit {
	t.Helper()
	u, errs := linker.Link("/main.al", linker.VFS{"/main.al": src})
	if len(errs) != 0 {
		t.Fatalf("unexpected link error: %s", errs.Error())
	}
	return u
}

func TestAnalyzeValidProgram(t *testing.T) {
	u := link(t, `
shared {
	let Total: int = 0;
}

program Producer(n: int) {
	send out(n);
}

program Consumer() {
	await receive in(x) => {
		Total = Total + x;
	}
}

main {
	channel Producer.out (int) > Consumer.in;
	run Producer(1);
	run Consumer();
}
`)
	res, errs := Analyze(u)
	if len(errs) != 0 {
		t.Fatalf("unexpected semantic error: %s", errs.Error())
	}
	if len(res.SendPorts) != 1 || len(res.RecvPorts) != 1 {
		t.Fatalf("expected one send port and one recv port to be indexed")
	}
}

func TestAnalyzeTypeMismatch(t *testing.T) {
	u := link(t, `
shared {
	let Flag: bool = 0;
}

main {
	print(1);
}
`)
	_, errs := Analyze(u)
	if len(errs) == 0 {
		t.Fatalf("expected a type error assigning int to bool")
	}
}

func TestAnalyzeUndefinedName(t *testing.T) {
	u := link(t, `
main {
	print(Unknown);
}
`)
	_, errs := Analyze(u)
	if len(errs) == 0 {
		t.Fatalf("expected an undefined-name error")
	}
}

func TestAnalyzeBreakOutsideLoop(t *testing.T) {
	u := link(t, `
program P() {
	break;
}

main {
	run P();
}
`)
	_, errs := Analyze(u)
	if len(errs) == 0 {
		t.Fatalf("expected a break-outside-loop error")
	}
}

func TestAnalyzePortMismatch(t *testing.T) {
	u := link(t, `
program P() {
	send out(1, 2);
}

main {
	channel P.out (int) > P.in;
	run P();
}
`)
	_, errs := Analyze(u)
	if len(errs) == 0 {
		t.Fatalf("expected a port arity mismatch error")
	}
}

func TestAnalyzePrivacyViolation(t *testing.T) {
	vfs := linker.VFS{
		"/lib.al": `
private function secret(): int {
	return 42;
}
`,
		"/main.al": `
import "lib.al";

function useSecret(): int {
	return secret();
}

main {
	print(1);
}
`,
	}
	u, errs := linker.Link("/main.al", vfs)
	if len(errs) != 0 {
		t.Fatalf("unexpected link error: %s", errs.Error())
	}
	_, serrs := Analyze(u)
	if len(serrs) == 0 {
		t.Fatalf("expected a privacy violation calling a private function across files")
	}
}

func TestAnalyzeReturnTypeMismatch(t *testing.T) {
	u := link(t, `
function f(): int {
	return true;
}

main {
	print(1);
}
`)
	_, errs := Analyze(u)
	if len(errs) == 0 {
		t.Fatalf("expected a return type mismatch error")
	}
}

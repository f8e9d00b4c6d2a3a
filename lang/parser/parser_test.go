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

package parser

import (
	"testing"

	"github.com/davecgh/go-spew/spew"

	"github.com/althread-lang/althread/lang/ast"
)

func TestParseShapes(t *testing.T) {
	type test struct {
		name string
		code string
		fail bool
		// check receives the parsed *ast.File when fail is false; it
		// returns a non-empty reason string on mismatch.
		check func(f *ast.File) string
	}

	values := []test{}

	values = append(values, test{
		name: "empty file",
		code: ``,
		check: func(f *ast.File) string {
			if f.Main != nil || len(f.Programs) != 0 {
				return "expected an empty file"
			}
			return ""
		},
	})

	values = append(values, test{
		name: "shared block",
		code: `
shared {
	let Count: int = 0;
	let Flag: bool;
}
`,
		check: func(f *ast.File) string {
			if f.Shared == nil || len(f.Shared.Decls) != 2 {
				return "expected a shared block with two decls"
			}
			if f.Shared.Decls[0].Name != "Count" || f.Shared.Decls[1].Name != "Flag" {
				return "unexpected shared decl names"
			}
			return ""
		},
	})

	values = append(values, test{
		name: "program and main with run",
		code: `
program Worker(n: int) {
	print(n);
}

main {
	channel Worker.done (int) > Worker.ack;
	run Worker(1);
}
`,
		check: func(f *ast.File) string {
			if len(f.Programs) != 1 || f.Programs[0].Name != "Worker" {
				return "expected one program named Worker"
			}
			if f.Main == nil || len(f.Main.Body.Stmts) != 2 {
				return "expected main with two statements"
			}
			if _, ok := f.Main.Body.Stmts[0].(*ast.ChannelDecl); !ok {
				return "expected first main statement to be a channel decl"
			}
			return ""
		},
	})

	values = append(values, test{
		name: "relational expression uses the shared '>' glyph",
		code: `
function check(x: int): bool {
	return x > 0;
}
`,
		check: func(f *ast.File) string {
			if len(f.Functions) != 1 {
				return "expected one function"
			}
			body := f.Functions[0].Body.Stmts
			if len(body) != 1 {
				return "expected one statement in function body"
			}
			ret, ok := body[0].(*ast.ReturnStmt)
			if !ok {
				return "expected a return statement"
			}
			bin, ok := ret.Value.(*ast.BinaryExpr)
			if !ok || bin.Op != ast.OpGt {
				return "expected a '>' binary expression"
			}
			return ""
		},
	})

	values = append(values, test{
		name: "await receive with fat arrow",
		code: `
program Recv() {
	await receive msg(x) => {
		print(x);
	}
}
`,
		check: func(f *ast.File) string {
			if len(f.Programs) != 1 {
				return "expected one program"
			}
			stmts := f.Programs[0].Body.Stmts
			if len(stmts) != 1 {
				return "expected one statement"
			}
			aw, ok := stmts[0].(*ast.AwaitStmt)
			if !ok {
				return "expected an await statement"
			}
			if aw.Port != "msg" || len(aw.Binds) != 1 || aw.Binds[0] != "x" {
				return "unexpected await statement shape"
			}
			return ""
		},
	})

	values = append(values, test{
		name: "for loop over a range",
		code: `
program Counter() {
	for i in 0..10 {
		print(i);
	}
}
`,
		check: func(f *ast.File) string {
			stmts := f.Programs[0].Body.Stmts
			fs, ok := stmts[0].(*ast.ForStmt)
			if !ok || fs.Var != "i" {
				return "expected a for statement over 'i'"
			}
			return ""
		},
	})

	values = append(values, test{
		name: "missing semicolon is a parse error",
		code: `
main {
	let x = 1
}
`,
		fail: true,
	})

	values = append(values, test{
		name: "unterminated block is a parse error",
		code: `main { `,
		fail: true,
	})

	for index, tc := range values {
		f, errs := Parse(tc.name, tc.code)
		if tc.fail {
			if len(errs) == 0 {
				t.Errorf("test #%d (%s): expected a parse error, got none", index, tc.name)
			}
			continue
		}
		if len(errs) != 0 {
			t.Errorf("test #%d (%s): unexpected parse error: %s", index, tc.name, errs.Error())
			continue
		}
		if tc.check != nil {
			if reason := tc.check(f); reason != "" {
				t.Errorf("test #%d (%s): %s\nparsed: %s", index, tc.name, reason, spew.Sdump(f))
			}
		}
	}
}

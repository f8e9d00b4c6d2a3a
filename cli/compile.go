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

	"github.com/althread-lang/althread"
	cliUtil "github.com/althread-lang/althread/cli/util"
)

// CompileArgs is the `compile` subcommand: parse, link, type-check and lower
// a source file, printing every diagnostic found.
type CompileArgs struct {
	Path string `arg:"positional,required" help:"path to the entry source file"`
}

// Run executes the compile subcommand.
func (obj *CompileArgs) Run(data *cliUtil.Data) error {
	entry, vfs, err := loadEntry(obj.Path)
	if err != nil {
		return err
	}
	prog, errs := althread.Compile(entry, vfs)
	if len(errs) != 0 {
		for _, d := range errs {
			fmt.Println(d.Error())
		}
		return cliUtil.Error(fmt.Sprintf("%d diagnostic(s)", len(errs)))
	}
	fmt.Printf("ok: %d process(es), %d assertion(s)\n", len(prog.Processes), len(prog.Assertions))
	return nil
}

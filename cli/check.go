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

// CheckArgs is the `check` subcommand: exhaustively model-check a source
// file's reachable state space.
type CheckArgs struct {
	Path      string `arg:"positional,required" help:"path to the entry source file"`
	MaxStates int    `arg:"--max-states" default:"100000" help:"visited-set cap (0 means unbounded)"`
}

// Run executes the check subcommand.
func (obj *CheckArgs) Run(data *cliUtil.Data) error {
	entry, vfs, err := loadEntry(obj.Path)
	if err != nil {
		return err
	}
	res, d := althread.Check(entry, vfs, althread.CheckOptions{MaxStates: obj.MaxStates})
	if d != nil {
		fmt.Println(d.Error())
		return cliUtil.Error(string(d.Kind))
	}

	fmt.Printf("check %s: %d state(s) explored\n", res.RunID, len(res.Graph.Nodes))
	if res.BudgetExceeded {
		fmt.Printf("state budget of %d exceeded; results are partial\n", obj.MaxStates)
	}
	for i, path := range res.Violations {
		fmt.Printf("violation %d: %d transition(s)\n", i, len(path))
		for _, step := range path {
			fmt.Printf("  pid %d (%s): -> %+v\n", step.Pid, step.Name, step.To.Globals)
		}
	}
	if len(res.Violations) == 0 {
		fmt.Println("no violations found")
	}
	return nil
}

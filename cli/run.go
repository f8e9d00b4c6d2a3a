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

// RunArgs is the `run` subcommand: simulate one nondeterministic path
// through a source file.
type RunArgs struct {
	Path     string `arg:"positional,required" help:"path to the entry source file"`
	Seed     int64  `arg:"--seed" default:"1" help:"random seed for the selection policy"`
	MaxSteps int    `arg:"--max-steps" default:"100000" help:"abort after this many macro-steps (0 means unbounded)"`
}

// Run executes the run subcommand.
func (obj *RunArgs) Run(data *cliUtil.Data) error {
	entry, vfs, err := loadEntry(obj.Path)
	if err != nil {
		return err
	}
	res, d := althread.Run(entry, vfs, althread.RunOptions{Seed: obj.Seed, MaxSteps: obj.MaxSteps})
	if res == nil {
		fmt.Println(d.Error())
		return cliUtil.Error(string(d.Kind))
	}
	for _, line := range res.Stdout {
		fmt.Println(line)
	}
	if d != nil {
		fmt.Println(d.Error())
		return cliUtil.Error(string(d.Kind))
	}
	fmt.Printf("run %s: %d message event(s), %d recorded state(s)\n", res.RunID, len(res.MessageFlow), len(res.VMStates))
	return nil
}

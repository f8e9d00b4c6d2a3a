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

// Package cli handles all of the command line parsing. It's the first entry
// point after main, and it imports and drives the core althread package.
package cli

import (
	"fmt"
	"os"

	cliUtil "github.com/althread-lang/althread/cli/util"
	"github.com/althread-lang/althread/util/errwrap"

	"github.com/alexflint/go-arg"
)

// CLI is the entry point for using althread from the command line.
func CLI(data *cliUtil.Data) error {
	if data == nil {
		return fmt.Errorf("this CLI was not run correctly")
	}
	if data.Program == "" || data.Version == "" {
		return fmt.Errorf("program was not compiled correctly")
	}

	args := Args{}
	args.version = data.Version
	args.description = data.Tagline

	config := arg.Config{Program: data.Program}
	parser, err := arg.NewParser(config, &args)
	if err != nil {
		return errwrap.Wrapf(err, "cli config error")
	}
	err = parser.Parse(data.Args[1:])
	if err == arg.ErrHelp {
		parser.WriteHelp(os.Stdout)
		return nil
	}
	if err == arg.ErrVersion {
		fmt.Printf("%s\n", data.Version)
		return nil
	}
	if err != nil {
		return cliUtil.CliParseError(err)
	}

	if args.License {
		fmt.Printf("%s", data.Copying)
		return nil
	}

	if ok, err := args.Run(data); err != nil {
		return err
	} else if ok {
		return nil
	}

	parser.WriteHelp(os.Stdout)
	return nil
}

// Args is the top-level CLI parsing structure and type of the parsed result.
type Args struct {
	License bool `arg:"--license" help:"display the license and exit"`

	CompileCmd *CompileArgs `arg:"subcommand:compile" help:"compile a source file and report diagnostics"`
	RunCmd     *RunArgs     `arg:"subcommand:run" help:"simulate a source file"`
	CheckCmd   *CheckArgs   `arg:"subcommand:check" help:"exhaustively model-check a source file"`

	version     string `arg:"-"` // ignored from parsing
	description string `arg:"-"` // ignored from parsing
}

// Version returns the version string, part of go-arg's API for a top struct.
func (obj *Args) Version() string { return obj.version }

// Description returns a description string, part of go-arg's API.
func (obj *Args) Description() string { return obj.description }

// Run executes whichever subcommand was requested. It returns true if a
// subcommand activated, matching the teacher's Args.Run contract so the
// caller can fall back to printing help when none did.
func (obj *Args) Run(data *cliUtil.Data) (bool, error) {
	if cmd := obj.CompileCmd; cmd != nil {
		return true, cmd.Run(data)
	}
	if cmd := obj.RunCmd; cmd != nil {
		return true, cmd.Run(data)
	}
	if cmd := obj.CheckCmd; cmd != nil {
		return true, cmd.Run(data)
	}
	return false, nil
}

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

package main

import (
	"fmt"
	"os"

	"github.com/althread-lang/althread/cli"
	cliUtil "github.com/althread-lang/althread/cli/util"
)

// version and program are the only identity info this binary needs; unlike
// the teacher there is no cluster/deploy version negotiation to do.
var (
	version = "0.1.0"
	program = "althread"
)

const copying = `Althread is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.
`

func main() {
	data := &cliUtil.Data{
		Program: program,
		Version: version,
		Copying: copying,
		Tagline: "a small concurrent teaching language: compile, run, check",
		Args:    os.Args,
	}
	if err := cli.CLI(data); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

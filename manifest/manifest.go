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

// Package manifest loads the optional per-directory althread.yaml manifest:
// default budgets, an entry file and extra import search roots. Nothing else
// in this repository loads a manifest; the CLI takes its entry file and
// budgets from the command line only.
package manifest

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	yaml "gopkg.in/yaml.v2"
)

// FileName is the manifest file a directory is searched for.
const FileName = "althread.yaml"

// Manifest is the Go-native shape of an althread.yaml file.
type Manifest struct {
	// Entry names a default entry file.
	Entry string `yaml:"entry,omitempty"`
	// Roots lists extra import search directories. The linker does not
	// read it; it resolves imports relative to the importing file only.
	Roots []string `yaml:"roots,omitempty"`
	// MaxSteps is the default simulator step budget (run's -max-steps).
	MaxSteps int `yaml:"maxSteps,omitempty"`
	// MaxStates is the default checker state budget (check's -max-states).
	MaxStates int `yaml:"maxStates,omitempty"`
	// Seed is the default simulator random seed.
	Seed int64 `yaml:"seed,omitempty"`
}

// Load reads and strictly parses path, rejecting unknown fields the same way
// the teacher's funcgen config loader does, so a typo in the manifest is
// reported instead of silently ignored.
func Load(path string) (*Manifest, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: reading %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.UnmarshalStrict(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: parsing %s: %w", path, err)
	}
	return &m, nil
}

// Find looks for FileName inside dir and loads it if present. It returns a
// zero-value Manifest and no error if the file does not exist, since the
// manifest is always optional.
func Find(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err != nil {
		return &Manifest{}, nil
	}
	return Load(path)
}

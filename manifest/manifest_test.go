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

package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadParsesKnownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	content := "entry: main.alt\nmaxStates: 5000\nseed: 7\nroots:\n  - vendor\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Entry != "main.alt" || m.MaxStates != 5000 || m.Seed != 7 {
		t.Fatalf("unexpected manifest: %+v", m)
	}
	if len(m.Roots) != 1 || m.Roots[0] != "vendor" {
		t.Fatalf("unexpected roots: %v", m.Roots)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte("bogusField: true\n"), 0o644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for an unknown manifest field")
	}
}

func TestFindReturnsEmptyManifestWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	m, err := Find(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Entry != "" || m.MaxStates != 0 {
		t.Fatalf("expected a zero-value manifest, got %+v", m)
	}
}

func TestFindLoadsManifestWhenPresent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte("maxSteps: 42\n"), 0o644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}
	m, err := Find(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.MaxSteps != 42 {
		t.Fatalf("expected MaxSteps == 42, got %d", m.MaxSteps)
	}
}

// ABOUTME: Tests for sigil-gateway config generation helpers
// ABOUTME: Generated YAML is loaded back through the config package

package main

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/2389/sigil/internal/config"
	"github.com/2389/sigil/internal/lattice"
)

func TestFormatToyMatrix_LoadsWithSQLite(t *testing.T) {
	matrix, err := lattice.NewToyMatrix(config.DefaultToyDimension, config.DefaultToyModulus, rand.Reader)
	if err != nil {
		t.Fatalf("NewToyMatrix() error = %v", err)
	}

	dir := t.TempDir()
	yaml := "database:\n" +
		"  driver: \"sqlite\"\n" +
		"  path: \"" + filepath.Join(dir, "gateway.db") + "\"\n" +
		"scheme:\n" +
		"  name: \"toy\"\n" +
		"  toy:\n" +
		"    q: 7681\n" +
		"    n: 4\n" +
		formatToyMatrix(matrix)

	path := filepath.Join(dir, "gateway.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v\n%s", err, yaml)
	}
	if !reflect.DeepEqual([][]int64(matrix), cfg.Scheme.Toy.Matrix) {
		t.Errorf("Scheme.Toy.Matrix = %v, want %v", cfg.Scheme.Toy.Matrix, matrix)
	}
}

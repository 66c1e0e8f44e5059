// Package heasoft locates the HEASoft toolset installation and checks the
// preconditions a run needs before any directory is created.
package heasoft

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrNotInitialized = errors.New("HEASoft environment not set, run heainit and retry")

// Env carries the two installation roots every external invocation needs.
type Env struct {
	FTools string // $FTOOLS, binaries live in $FTOOLS/bin
	Headas string // $HEADAS, system parameter files live in $HEADAS/syspfiles
}

// Discover reads $FTOOLS and $HEADAS. Absence of either is a fatal
// precondition, checked once per run and never re-checked per job.
func Discover() (Env, error) {
	ftools, ok := os.LookupEnv("FTOOLS")
	if !ok || ftools == "" {
		return Env{}, fmt.Errorf("%w: $FTOOLS unset", ErrNotInitialized)
	}
	headas, ok := os.LookupEnv("HEADAS")
	if !ok || headas == "" {
		return Env{}, fmt.Errorf("%w: $HEADAS unset", ErrNotInitialized)
	}
	return Env{FTools: ftools, Headas: headas}, nil
}

// BinDir is the directory holding the external tools (xstar, xstinitable,
// xstar2table).
func (e Env) BinDir() string {
	return filepath.Join(e.FTools, "bin")
}

// Bin returns the full path of one external tool.
func (e Env) Bin(tool string) string {
	return filepath.Join(e.BinDir(), tool)
}

// SysPfile is the shared system parameter file each job receives a private
// copy of.
func (e Env) SysPfile() string {
	return filepath.Join(e.Headas, "syspfiles", "xstar.par")
}

// CheckWritable verifies dir exists and is writable by creating and
// removing a probe file.
func CheckWritable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("work directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("work directory %s is not a directory", dir)
	}
	probe := filepath.Join(dir, ".mxstar-write-check")
	f, err := os.Create(probe)
	if err != nil {
		return fmt.Errorf("work directory %s is not writable: %w", dir, err)
	}
	_ = f.Close()
	return os.Remove(probe)
}

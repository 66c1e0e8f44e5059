// Package joblist makes the list of xstar commands available inside the
// run directory, either by copying a pre-existing joblist (with its FITS
// sibling) or by generating one with xstinitable.
package joblist

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hea-tools/mxstar/internal/executor"
	"github.com/hea-tools/mxstar/internal/heasoft"
	"github.com/hea-tools/mxstar/internal/rundir"
)

const (
	// GeneratedList and GeneratedFits are what xstinitable writes as a side
	// effect when no joblist is supplied.
	GeneratedList = "xstinitable.lis"
	GeneratedFits = "xstinitable.fits"
)

type Source struct {
	exec *executor.Executor
	env  heasoft.Env
}

func NewSource(exec *executor.Executor, env heasoft.Env) Source {
	return Source{exec: exec, env: env}
}

// Acquire resolves the job source into runDir and returns the command
// lines plus the local path of the base FITS file the aggregator later
// seeds its tables from.
//
// When args names an existing joblist file (as given, or one directory
// above the run), the list and its FITS sibling are copied into runDir.
// Otherwise args is passed through to xstinitable, which writes
// xstinitable.lis/.fits into runDir.
func (s Source) Acquire(ctx context.Context, runDir string, args []string) ([]string, string, error) {
	listPath, fitsPath, err := s.resolve(ctx, runDir, args)
	if err != nil {
		return nil, "", err
	}

	data, err := os.ReadFile(listPath)
	if err != nil {
		return nil, "", fmt.Errorf("reading joblist: %w", err)
	}
	var commands []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			commands = append(commands, line)
		}
	}
	return commands, fitsPath, nil
}

func (s Source) resolve(ctx context.Context, runDir string, args []string) (string, string, error) {
	if len(args) > 0 {
		if src, ok := findJoblist(runDir, args[0]); ok {
			return copyJoblist(src, runDir)
		}
	}
	return s.generate(ctx, runDir, args)
}

// findJoblist looks for the named file as given and then relative to the
// parent of the run directory, the place the tool was started from.
func findJoblist(runDir, name string) (string, bool) {
	for _, candidate := range []string{name, filepath.Join(runDir, "..", name)} {
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, true
		}
	}
	return "", false
}

func copyJoblist(src, runDir string) (string, string, error) {
	localList := filepath.Join(runDir, filepath.Base(src))
	if err := rundir.CopyFile(src, localList); err != nil {
		return "", "", fmt.Errorf("copying joblist: %w", err)
	}
	srcFits := fitsSibling(src)
	localFits := filepath.Join(runDir, filepath.Base(srcFits))
	if err := rundir.CopyFile(srcFits, localFits); err != nil {
		return "", "", fmt.Errorf("copying joblist FITS sibling: %w", err)
	}
	return localList, localFits, nil
}

func (s Source) generate(ctx context.Context, runDir string, args []string) (string, string, error) {
	line := s.env.Bin("xstinitable")
	if len(args) > 0 {
		line += " " + strings.Join(args, " ")
	}
	slog.InfoContext(ctx, "generating joblist", "command", line)
	out, err := s.exec.Run(ctx, line, runDir, os.Environ())
	if err != nil {
		return "", "", fmt.Errorf("generating joblist: %w", err)
	}
	slog.DebugContext(ctx, "xstinitable finished", "output", out)
	return filepath.Join(runDir, GeneratedList), filepath.Join(runDir, GeneratedFits), nil
}

// fitsSibling maps a joblist path to its data file, which shares the base
// name with a .fits suffix.
func fitsSibling(list string) string {
	ext := filepath.Ext(list)
	return strings.TrimSuffix(list, ext) + ".fits"
}

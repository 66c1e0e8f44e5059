// Package rundir manages the on-disk layout of one run: the unique run
// directory, the model directory below it, and one isolated working
// directory per job.
package rundir

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Allocate claims the first non-existing parent/prefix.{qualifier_}N for
// ascending N starting at 0, creating it as a directory. The Mkdir itself is
// the claim, so a candidate that appears between the scan and the create is
// simply skipped. Called once per run; per-job directories use deterministic
// key names under an already-unique model directory instead.
func Allocate(parent, prefix, qualifier string) (string, error) {
	for i := 0; ; i++ {
		name := fmt.Sprintf("%s.%d", prefix, i)
		if qualifier != "" {
			name = fmt.Sprintf("%s.%s_%d", prefix, qualifier, i)
		}
		candidate := filepath.Join(parent, name)
		err := os.Mkdir(candidate, 0o755)
		if err == nil {
			return candidate, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("allocating run directory: %w", err)
		}
	}
}

// ModelDir creates (or reuses) the model-named child of the run directory.
func ModelDir(runDir, modelName string) (string, error) {
	dir := filepath.Join(runDir, modelName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating model directory: %w", err)
	}
	return dir, nil
}

// ListJobKeys scans an existing model directory for per-job directories,
// returned in ascending key order. Used by the collate re-entry point, which
// has no JobSet to consult.
func ListJobKeys(modelDir string) ([]string, error) {
	entries, err := os.ReadDir(modelDir)
	if err != nil {
		return nil, fmt.Errorf("reading model directory %s: %w", modelDir, err)
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() && isDecimal(e.Name()) {
			keys = append(keys, e.Name())
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

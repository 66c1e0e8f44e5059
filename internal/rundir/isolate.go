package rundir

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hea-tools/mxstar/internal/model"
)

// IsolationContext ties one job to its private working directory and its
// private parameter-file copy. The copy is the central correctness
// mechanism: concurrent xstar processes sharing one mutable parameter file
// produce nondeterministic results. Nothing here is cleaned up afterwards,
// the tree stays for post-mortem inspection.
type IsolationContext struct {
	Job       model.Job
	Dir       string
	PfilesDir string
	// Env is the full subprocess environment, with PFILES pointing at the
	// private copy. Passed explicitly to the executor, the ambient process
	// environment is never mutated.
	Env []string
}

// Materialize creates modelDir/<key> with a pfiles subdirectory holding a
// fresh copy of pfilesSrc. An already existing job directory means two jobs
// claimed the same key, which violates the JobSet invariant and fails the
// job up front.
func Materialize(job model.Job, modelDir, pfilesSrc string) (IsolationContext, error) {
	dir := filepath.Join(modelDir, job.Key)
	if err := os.Mkdir(dir, 0o755); err != nil {
		if os.IsExist(err) {
			return IsolationContext{}, fmt.Errorf("%w: %s", model.ErrDuplicateJobDir, dir)
		}
		return IsolationContext{}, fmt.Errorf("creating job directory: %w", err)
	}

	pfiles := filepath.Join(dir, "pfiles")
	if err := os.Mkdir(pfiles, 0o755); err != nil {
		return IsolationContext{}, fmt.Errorf("creating pfiles directory: %w", err)
	}
	dst := filepath.Join(pfiles, filepath.Base(pfilesSrc))
	if err := CopyFile(pfilesSrc, dst); err != nil {
		return IsolationContext{}, fmt.Errorf("copying parameter file: %w", err)
	}

	return IsolationContext{
		Job:       job,
		Dir:       dir,
		PfilesDir: pfiles,
		Env:       overrideEnv(os.Environ(), "PFILES", pfiles),
	}, nil
}

// overrideEnv returns env with any existing name entries dropped and a
// single name=value appended.
func overrideEnv(env []string, name, value string) []string {
	out := make([]string, 0, len(env)+1)
	for _, kv := range env {
		if strings.HasPrefix(kv, name+"=") {
			continue
		}
		out = append(out, kv)
	}
	return append(out, name+"="+value)
}

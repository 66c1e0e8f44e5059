// Package executor runs external HEASoft commands through the user's shell,
// capturing process id and output text.
package executor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/hea-tools/mxstar/internal/model"
	"github.com/hea-tools/mxstar/internal/rundir"
)

// OutputMarker prefixes every captured stdout line so downstream log
// filtering can separate tool output from run bookkeeping. ErrorMarker does
// the same for stderr lines, which follow the stdout lines in a result.
const (
	OutputMarker = "XSTAR OUTPUT: "
	ErrorMarker  = "XSTAR ERROR: "
)

// Result is what one job execution produced. Err carries the subprocess
// failure for the log only: xstar can exit zero and still not write its
// spectrum under transient licensing or resource failures, so success is
// decided later by the verifier inspecting the filesystem.
type Result struct {
	Job     model.Job
	Pid     int
	Lines   []string
	Started time.Time
	Stopped time.Time
	Err     error
}

// Executor launches command lines via shell -c. When binDir is set, job
// commands are resolved relative to it, the way the source toolset is laid
// out under $FTOOLS/bin.
type Executor struct {
	shell  string
	binDir string
}

func New(shell, binDir string) *Executor {
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		shell = "/bin/sh"
	}
	return &Executor{shell: shell, binDir: binDir}
}

// Execute runs one job inside its isolation context and always returns a
// Result, never an error: a failing external command must not throw the
// rest of the batch off course. The working directory and environment are
// set on the subprocess itself, ambient process state is untouched.
func (e *Executor) Execute(ctx context.Context, iso rundir.IsolationContext) Result {
	res := Result{Job: iso.Job, Started: time.Now().UTC()}

	line := iso.Job.Command
	if e.binDir != "" {
		line = e.binDir + "/" + line
	}
	cmd := exec.CommandContext(ctx, e.shell, "-c", line)
	cmd.Dir = iso.Dir
	cmd.Env = iso.Env

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		res.Err = fmt.Errorf("stdout pipe: %w", err)
		res.Stopped = time.Now().UTC()
		return res
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		res.Err = fmt.Errorf("stderr pipe: %w", err)
		res.Stopped = time.Now().UTC()
		return res
	}
	if err := cmd.Start(); err != nil {
		res.Err = fmt.Errorf("starting %q: %w", line, err)
		res.Stopped = time.Now().UTC()
		return res
	}
	res.Pid = cmd.Process.Pid

	errLines := make(chan []string, 1)
	go func() {
		errLines <- readLines(stderr, ErrorMarker)
	}()
	res.Lines = readLines(stdout, OutputMarker)
	res.Lines = append(res.Lines, <-errLines...)

	res.Err = cmd.Wait()
	res.Stopped = time.Now().UTC()
	return res
}

// readLines consumes r to EOF, one marked line per entry. A line over the
// scanner cap stops the scan, the rest is drained and discarded so the
// child never blocks on a full pipe.
func readLines(r io.Reader, marker string) []string {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, marker+scanner.Text())
	}
	if serr := scanner.Err(); serr != nil {
		lines = append(lines, marker+"(output truncated: "+serr.Error()+")")
		_, _ = io.Copy(io.Discard, r)
	}
	return lines
}

// Run executes a fully resolved command line (joblist generation, table
// building) in dir and returns its combined stdout. Unlike Execute, a
// failure here is the caller's problem and is returned as an error.
func (e *Executor) Run(ctx context.Context, line, dir string, env []string) (string, error) {
	cmd := exec.CommandContext(ctx, e.shell, "-c", line)
	cmd.Dir = dir
	cmd.Env = env
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("running %q: %w", line, err)
	}
	return string(out), nil
}

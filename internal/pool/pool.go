// Package pool fans a JobSet out across a fixed number of concurrent
// execution slots.
package pool

import (
	"context"
	"runtime"
	"sort"

	"github.com/shirou/gopsutil/v4/cpu"
	"golang.org/x/sync/errgroup"

	"github.com/hea-tools/mxstar/internal/executor"
	"github.com/hea-tools/mxstar/internal/model"
)

// RunFunc executes one job to completion. Per-job failures live inside the
// Result, never in an error: one failing job must not cancel its siblings.
type RunFunc func(ctx context.Context, job model.Job) executor.Result

// DefaultWorkers is the host logical CPU count.
func DefaultWorkers() int {
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// RunAll submits every job to a pool of the given width and blocks until
// all of them finish. Results come back in ascending key order regardless
// of wall-clock completion order, so the run log is reproducible. workers
// below 1 means DefaultWorkers.
func RunAll(ctx context.Context, jobs *model.JobSet, workers int, run RunFunc) []executor.Result {
	if workers < 1 {
		workers = DefaultWorkers()
	}

	all := jobs.Jobs()
	results := make([]executor.Result, len(all))

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, job := range all {
		g.Go(func() error {
			results[i] = run(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Job.Key < results[j].Job.Key
	})
	return results
}

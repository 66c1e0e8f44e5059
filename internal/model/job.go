package model

import (
	"fmt"
	"regexp"
	"strconv"
)

// Job is one xstar invocation. Key is a zero-padded decimal string whose
// width equals the digit count of the job total, so lexicographic order of
// keys equals numeric order. Command is an opaque shell-invocable line and
// is never parsed beyond the modelname field.
type Job struct {
	Key     string
	Command string
}

// JobSet is an ordered, uniquely-keyed collection of jobs. Iteration order
// is ascending numeric key, which is also input order.
type JobSet struct {
	jobs []Job
}

// BuildJobSet assigns keys 1..len(commands), zero-padded to the width of
// len(commands). Returns ErrNoJobs for an empty input.
func BuildJobSet(commands []string) (*JobSet, error) {
	if len(commands) == 0 {
		return nil, ErrNoJobs
	}
	width := len(strconv.Itoa(len(commands)))
	jobs := make([]Job, 0, len(commands))
	for i, command := range commands {
		jobs = append(jobs, Job{
			Key:     fmt.Sprintf("%0*d", width, i+1),
			Command: command,
		})
	}
	return &JobSet{jobs: jobs}, nil
}

func (s *JobSet) Len() int {
	return len(s.jobs)
}

// Jobs returns the jobs in ascending key order. The returned slice is a
// copy, the set itself is immutable.
func (s *JobSet) Jobs() []Job {
	return append([]Job(nil), s.jobs...)
}

// Keys returns all job keys in ascending order.
func (s *JobSet) Keys() []string {
	keys := make([]string, 0, len(s.jobs))
	for _, job := range s.jobs {
		keys = append(keys, job.Key)
	}
	return keys
}

var modelNameRx = regexp.MustCompile(`modelname=(?:"([^"]*)"|'([^']*)')`)

// ModelName extracts the modelname="..." (or single-quoted) assignment from
// the first job's command. All jobs of a set describe the same model, so
// only the first command is inspected. Returns ErrNoModelName when the
// field is missing or empty, which is fatal for a run - the model
// directory is named after it.
func (s *JobSet) ModelName() (string, error) {
	first := s.jobs[0].Command
	m := modelNameRx.FindStringSubmatch(first)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrNoModelName, first)
	}
	name := m[1]
	if name == "" {
		name = m[2]
	}
	if name == "" {
		return "", fmt.Errorf("%w: empty modelname in %q", ErrNoModelName, first)
	}
	return name, nil
}

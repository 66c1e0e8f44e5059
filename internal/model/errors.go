package model

import (
	"errors"
)

var (
	ErrNoJobs          = errors.New("joblist is empty")
	ErrNoModelName     = errors.New("no modelname field in command")
	ErrDuplicateJobDir = errors.New("job directory already exists")
)

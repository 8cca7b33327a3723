// SPDX-License-Identifier: GPL-3.0-or-later

//go:generate mockgen -destination=mocks/automation.go -package=mocks . Executor
package domain

import (
	"context"
	"time"
)

// RawResult is the unparsed outcome of one automation process run.
type RawResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Elapsed  time.Duration
}

// Executor runs one automation script in a fresh process. Implementations must
// not retry: a failed call may still have changed the application's state.
type Executor interface {
	Execute(ctx context.Context, script string, timeout time.Duration) (*RawResult, error)
}

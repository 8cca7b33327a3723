// SPDX-License-Identifier: GPL-3.0-or-later
package automation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/CrawX/go-mxctl/domain"
	"github.com/CrawX/go-mxctl/log"

	"github.com/sirupsen/logrus"
)

// How long a killed process may keep its output pipes open.
const waitDelay = 2 * time.Second

var DefaultCommand = []string{"osascript", "-"}

// Osascript runs every script in a fresh process, feeding it through stdin.
// It never retries.
type Osascript struct {
	command []string

	l *logrus.Logger
}

func NewOsascript(command ...string) *Osascript {
	if len(command) == 0 {
		command = DefaultCommand
	}
	return &Osascript{
		command: command,
		l:       log.Logger(log.LOG_AUTOMATION),
	}
}

func (o *Osascript) Execute(ctx context.Context, script string, timeout time.Duration) (*domain.RawResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(callCtx, o.command[0], o.command[1:]...)
	cmd.WaitDelay = waitDelay
	cmd.Stdin = strings.NewReader(script)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger := o.l.WithFields(logrus.Fields{"script": scriptName(script)})
	logger.Debug("Running script")

	start := time.Now()
	err := cmd.Run()
	result := &domain.RawResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: -1,
		Elapsed:  time.Since(start),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	logger = logger.WithFields(logrus.Fields{"exit": result.ExitCode, "elapsed": result.Elapsed.Round(time.Millisecond)})

	if err != nil {
		if ctx.Err() != nil {
			logger.Debug("Script interrupted")
			return result, ctx.Err()
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			logger.Warn("Script timed out")
			return result, &domain.TimeoutError{Timeout: timeout, Partial: result.Stdout}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logger.WithField("stderr", strings.TrimSpace(result.Stderr)).Debug("Script failed")
			return result, &domain.AutomationError{ExitCode: result.ExitCode, Stderr: result.Stderr}
		}
		return nil, fmt.Errorf("could not run %s: %w", o.command[0], err)
	}

	// Some failures only show up as diagnostics on an otherwise clean exit.
	if domain.IsFailureText(result.Stderr) {
		logger.WithField("stderr", strings.TrimSpace(result.Stderr)).Debug("Script reported an error")
		return result, &domain.AutomationError{ExitCode: result.ExitCode, Stderr: result.Stderr}
	}

	logger.Debug("Script finished")
	return result, nil
}

func scriptName(script string) string {
	first, _, _ := strings.Cut(script, "\n")
	return strings.TrimSpace(strings.TrimPrefix(first, "--"))
}

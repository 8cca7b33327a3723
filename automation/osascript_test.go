// SPDX-License-Identifier: GPL-3.0-or-later
package automation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/CrawX/go-mxctl/domain"
	"github.com/CrawX/go-mxctl/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.InitLogging("error")
}

// The gateway tests let a POSIX shell stand in for osascript.
func shell() *Osascript {
	return NewOsascript("/bin/sh", "-s")
}

func TestExecute_Success(t *testing.T) {
	result, err := shell().Execute(context.Background(), "-- echo\nprintf 'a\\037b\\036'\n", time.Second*5)
	require.NoError(t, err)
	assert.Equal(t, "a\x1fb\x1e", result.Stdout)
	assert.Equal(t, 0, result.ExitCode)
	assert.True(t, result.Elapsed > 0)
}

func TestExecute_NonZeroExit(t *testing.T) {
	result, err := shell().Execute(context.Background(), "echo 'execution error: boom' >&2\nexit 3\n", time.Second*5)
	require.Error(t, err)

	var automationErr *domain.AutomationError
	require.True(t, errors.As(err, &automationErr))
	assert.Equal(t, 3, automationErr.ExitCode)
	assert.Contains(t, automationErr.Stderr, "boom")
	assert.Equal(t, 3, result.ExitCode)
	assert.False(t, errors.Is(err, domain.ErrMessageNotFound))
}

func TestExecute_NotFound(t *testing.T) {
	script := "echo \"execution error: Mail got an error: Can’t get message 101. (-1728)\" >&2\nexit 1\n"
	_, err := shell().Execute(context.Background(), script, time.Second*5)
	assert.True(t, errors.Is(err, domain.ErrMessageNotFound))
}

func TestExecute_FailureTextOnCleanExit(t *testing.T) {
	_, err := shell().Execute(context.Background(), "echo 'Can’t get mailbox \"Nope\". (-1728)' >&2\n", time.Second*5)

	var automationErr *domain.AutomationError
	require.True(t, errors.As(err, &automationErr))
	assert.Equal(t, 0, automationErr.ExitCode)
	assert.True(t, errors.Is(err, domain.ErrMessageNotFound))
}

func TestExecute_Timeout(t *testing.T) {
	start := time.Now()
	_, err := shell().Execute(context.Background(), "echo partial\nexec sleep 5\n", time.Millisecond*300)
	assert.Less(t, time.Since(start), time.Second*4)

	var timeoutErr *domain.TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, "partial\n", timeoutErr.Partial)
	assert.Equal(t, time.Millisecond*300, timeoutErr.Timeout)
	assert.Contains(t, err.Error(), "--limit")
}

func TestExecute_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(time.Millisecond * 200)
		cancel()
	}()

	_, err := shell().Execute(ctx, "exec sleep 5\n", time.Second*10)
	assert.True(t, errors.Is(err, context.Canceled))

	_, err = shell().Execute(ctx, "echo never\n", time.Second)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestExecute_MissingBinary(t *testing.T) {
	_, err := NewOsascript("/nonexistent/osascript").Execute(context.Background(), "", time.Second)
	require.Error(t, err)

	var automationErr *domain.AutomationError
	assert.False(t, errors.As(err, &automationErr))
}

func TestScriptName(t *testing.T) {
	assert.Equal(t, "set-property", scriptName("-- set-property\nset pID to 1\n"))
	assert.Equal(t, "", scriptName(""))
}

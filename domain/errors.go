// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMessageNotFound matches automation failures caused by a message that no
// longer exists where it was expected.
var ErrMessageNotFound = errors.New("message not found")

type TemplateError struct {
	Template    string
	Placeholder string
	Reason      string
}

func (e *TemplateError) Error() string {
	if e.Placeholder == "" {
		return fmt.Sprintf("template %s: %s", e.Template, e.Reason)
	}
	return fmt.Sprintf("template %s: placeholder %s: %s", e.Template, e.Placeholder, e.Reason)
}

type TimeoutError struct {
	Timeout time.Duration
	Partial string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("automation call timed out after %s, narrow the scope (e.g. --limit) or raise the timeout in the config", e.Timeout)
}

type AutomationError struct {
	ExitCode int
	Stderr   string
}

func (e *AutomationError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = "no diagnostic output"
	}
	return fmt.Sprintf("automation failed (exit %d): %s", e.ExitCode, msg)
}

func (e *AutomationError) Is(target error) bool {
	return target == ErrMessageNotFound && IsNotFoundText(e.Stderr)
}

// Known phrases the mail application uses when a referenced object is gone.
var notFoundPhrases = []string{
	"can’t get message",
	"can't get message",
	"can’t get mailbox",
	"can't get mailbox",
	"(-1728)",
	"(-1719)",
	"invalid index",
}

// Phrases that signal an application level failure even with exit code 0.
var failurePhrases = append([]string{
	"execution error",
	"got an error",
}, notFoundPhrases...)

func IsNotFoundText(text string) bool {
	return containsAny(strings.ToLower(text), notFoundPhrases)
}

func IsFailureText(text string) bool {
	return containsAny(strings.ToLower(text), failurePhrases)
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

type DecodeError struct {
	Record int
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("decode record %d: %s", e.Record, e.Reason)
	}
	return fmt.Sprintf("decode record %d field %s: %s", e.Record, e.Field, e.Reason)
}

type BatchTooLargeError struct {
	Requested int
	Max       int
}

func (e *BatchTooLargeError) Error() string {
	return fmt.Sprintf("batch of %d targets exceeds the maximum of %d, split the request into smaller batches", e.Requested, e.Max)
}

type NonInvertibleError struct {
	Seq    int
	Kind   OperationKind
	Reason string
}

func (e *NonInvertibleError) Error() string {
	return fmt.Sprintf("entry %d (%s) cannot be reversed: %s", e.Seq, e.Kind, e.Reason)
}

type BatchNotFoundError struct {
	ID string
}

func (e *BatchNotFoundError) Error() string {
	if e.ID == "" {
		return "no batch to undo"
	}
	return fmt.Sprintf("batch %s not found, it may have been pruned", e.ID)
}

// SPDX-License-Identifier: GPL-3.0-or-later
package bridge

import (
	"fmt"
	"time"
)

const (
	DefaultMaxBatchSize     = 100
	DefaultScanCap          = 100
	DefaultRetainBatches    = 10
	DefaultQueryConcurrency = 4
	DefaultQueryRetries     = 1
	DefaultSingleTimeout    = 30 * time.Second
	DefaultScanTimeout      = 120 * time.Second
	DefaultTrash            = "Deleted Messages"
)

type ConfigFunc func(c *configuration) error

func MaxBatchSize(n int) ConfigFunc {
	return func(c *configuration) error {
		if n < 1 {
			return fmt.Errorf("MaxBatchSize must be at least 1")
		}
		c.MaxBatchSize = n
		return nil
	}
}

func ScanCap(n int) ConfigFunc {
	return func(c *configuration) error {
		if n < 1 {
			return fmt.Errorf("ScanCap must be at least 1")
		}
		c.ScanCap = n
		return nil
	}
}

func RetainBatches(n int) ConfigFunc {
	return func(c *configuration) error {
		if n < 1 {
			return fmt.Errorf("RetainBatches must be at least 1")
		}
		c.RetainBatches = n
		return nil
	}
}

func QueryConcurrency(n int) ConfigFunc {
	return func(c *configuration) error {
		if n < 1 {
			return fmt.Errorf("QueryConcurrency must be at least 1")
		}
		c.QueryConcurrency = n
		return nil
	}
}

func QueryRetries(n int) ConfigFunc {
	return func(c *configuration) error {
		if n < 0 {
			return fmt.Errorf("QueryRetries cannot be negative")
		}
		c.QueryRetries = n
		return nil
	}
}

func Timeouts(single, scan time.Duration) ConfigFunc {
	return func(c *configuration) error {
		if single <= 0 || scan <= 0 {
			return fmt.Errorf("timeouts must be positive")
		}
		c.SingleTimeout = single
		c.ScanTimeout = scan
		return nil
	}
}

func DefaultTrashMailbox(mailbox string) ConfigFunc {
	return func(c *configuration) error {
		if len(mailbox) == 0 {
			return fmt.Errorf("DefaultTrash cannot be null")
		}
		c.DefaultTrash = mailbox
		return nil
	}
}

// Trash sets the mailbox deleted messages of account end up in.
func Trash(account, mailbox string) ConfigFunc {
	return func(c *configuration) error {
		if len(mailbox) == 0 {
			return fmt.Errorf("Trash of account %s cannot be null", account)
		}
		if c.PermanentDelete[account] {
			return fmt.Errorf("Trash and PermanentDelete cannot be used at the same time for account %s", account)
		}
		c.Trash[account] = mailbox
		return nil
	}
}

// PermanentDelete marks an account whose deletes bypass the trash and
// therefore cannot be undone.
func PermanentDelete(account string) ConfigFunc {
	return func(c *configuration) error {
		if _, ok := c.Trash[account]; ok {
			return fmt.Errorf("Trash and PermanentDelete cannot be used at the same time for account %s", account)
		}
		c.PermanentDelete[account] = true
		return nil
	}
}

type configuration struct {
	MaxBatchSize     int
	ScanCap          int
	RetainBatches    int
	QueryConcurrency int
	QueryRetries     int

	SingleTimeout time.Duration
	ScanTimeout   time.Duration

	DefaultTrash    string
	Trash           map[string]string
	PermanentDelete map[string]bool
}

func defaultConfiguration() *configuration {
	return &configuration{
		MaxBatchSize:     DefaultMaxBatchSize,
		ScanCap:          DefaultScanCap,
		RetainBatches:    DefaultRetainBatches,
		QueryConcurrency: DefaultQueryConcurrency,
		QueryRetries:     DefaultQueryRetries,
		SingleTimeout:    DefaultSingleTimeout,
		ScanTimeout:      DefaultScanTimeout,
		DefaultTrash:     DefaultTrash,
		Trash:            map[string]string{},
		PermanentDelete:  map[string]bool{},
	}
}

// trashFor returns the trash mailbox of account, or "" when deletes are permanent.
func (c *configuration) trashFor(account string) string {
	if c.PermanentDelete[account] {
		return ""
	}
	if trash, ok := c.Trash[account]; ok {
		return trash
	}
	return c.DefaultTrash
}

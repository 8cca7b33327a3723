// SPDX-License-Identifier: GPL-3.0-or-later
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Account struct {
	// Trash overrides DefaultTrash for this account.
	Trash string
	// PermanentDelete is for accounts without a trash; their deletes cannot be undone.
	PermanentDelete bool
}

type Config struct {
	Database  string
	Osascript []string

	DefaultAccount string
	DefaultMailbox string
	// Mailboxes are accepted in addition to the standard ones without asking Mail first.
	Mailboxes []string

	MaxBatchSize     int
	ScanCap          int
	RetainBatches    int
	QueryConcurrency int
	QueryRetries     int

	SingleTimeoutSeconds int
	ScanTimeoutSeconds   int

	DefaultTrash string
	Accounts     map[string]Account

	Loglevel *string
}

// Dir is the directory config and journal live in by default.
func Dir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "mxctl")
}

func DefaultPath() string {
	return filepath.Join(Dir(), "config.toml")
}

func defaults() *Config {
	return &Config{
		Database:             filepath.Join(Dir(), "journal.db"),
		Osascript:            []string{"osascript", "-"},
		DefaultMailbox:       "INBOX",
		MaxBatchSize:         100,
		ScanCap:              100,
		RetainBatches:        10,
		QueryConcurrency:     4,
		QueryRetries:         1,
		SingleTimeoutSeconds: 30,
		ScanTimeoutSeconds:   120,
		DefaultTrash:         "Deleted Messages",
		Accounts:             map[string]Account{},
	}
}

// ReadConfig reads filename over the defaults. A missing file is not an error.
func ReadConfig(filename string) (*Config, error) {
	config := defaults()

	meta, err := toml.DecodeFile(filename, config)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config key %s", undecoded[0])
	}

	config.Database = expandHome(config.Database)

	err = config.validate()
	if err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	if err := validateNonEmptyStringField(c.Database, "Database must not be empty, set to a filename for the sqlite journal"); err != nil {
		return err
	}

	if len(c.Osascript) == 0 {
		return fmt.Errorf("Osascript must not be empty, set to the command running a script from stdin")
	}

	if err := validateNonEmptyStringField(c.DefaultMailbox, "DefaultMailbox must not be empty"); err != nil {
		return err
	}

	if err := validateNonEmptyStringField(c.DefaultTrash, "DefaultTrash must not be empty, set PermanentDelete on accounts without a trash instead"); err != nil {
		return err
	}

	positive := []struct {
		name  string
		value int
	}{
		{"MaxBatchSize", c.MaxBatchSize},
		{"ScanCap", c.ScanCap},
		{"RetainBatches", c.RetainBatches},
		{"QueryConcurrency", c.QueryConcurrency},
		{"SingleTimeoutSeconds", c.SingleTimeoutSeconds},
		{"ScanTimeoutSeconds", c.ScanTimeoutSeconds},
	}
	for _, p := range positive {
		if p.value < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", p.name, p.value)
		}
	}

	if c.QueryRetries < 0 {
		return fmt.Errorf("QueryRetries must not be negative, got %d", c.QueryRetries)
	}

	for name, account := range c.Accounts {
		if account.PermanentDelete && len(strings.TrimSpace(account.Trash)) > 0 {
			return fmt.Errorf("Trash and PermanentDelete cannot be set at the same time for account %s", name)
		}
	}

	return nil
}

func validateNonEmptyStringField(field string, err string) error {
	if len(strings.TrimSpace(field)) == 0 {
		return errors.New(err)
	}

	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// SPDX-License-Identifier: GPL-3.0-or-later
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadConfig_Missing(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")

	config, err := ReadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, "/xdg/mxctl/journal.db", config.Database)
	assert.Equal(t, []string{"osascript", "-"}, config.Osascript)
	assert.Equal(t, "INBOX", config.DefaultMailbox)
	assert.Equal(t, 100, config.MaxBatchSize)
	assert.Equal(t, 100, config.ScanCap)
	assert.Equal(t, 10, config.RetainBatches)
	assert.Equal(t, 4, config.QueryConcurrency)
	assert.Equal(t, 1, config.QueryRetries)
	assert.Equal(t, 30, config.SingleTimeoutSeconds)
	assert.Equal(t, 120, config.ScanTimeoutSeconds)
	assert.Equal(t, "Deleted Messages", config.DefaultTrash)
	assert.Nil(t, config.Loglevel)
}

func TestReadConfig(t *testing.T) {
	path := writeConfig(t, `
Database = "/tmp/journal.db"
DefaultAccount = "Work"
Mailboxes = ["Projects", "Receipts/2026"]
MaxBatchSize = 25
QueryRetries = 0
Loglevel = "debug"

[Accounts.Gmail]
Trash = "[Gmail]/Trash"

[Accounts.Exchange]
PermanentDelete = true
`)

	config, err := ReadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/journal.db", config.Database)
	assert.Equal(t, "Work", config.DefaultAccount)
	assert.Equal(t, []string{"Projects", "Receipts/2026"}, config.Mailboxes)
	assert.Equal(t, 25, config.MaxBatchSize)
	assert.Equal(t, 0, config.QueryRetries)
	assert.Equal(t, 100, config.ScanCap)
	require.NotNil(t, config.Loglevel)
	assert.Equal(t, "debug", *config.Loglevel)
	assert.Equal(t, map[string]Account{
		"Gmail":    {Trash: "[Gmail]/Trash"},
		"Exchange": {PermanentDelete: true},
	}, config.Accounts)
}

func TestReadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		err     string
	}{
		{"syntax", `MaxBatchSize = `, ""},
		{"unknown key", `ImapHost = "imap.example.com"`, "unknown config key ImapHost"},
		{"batch size", `MaxBatchSize = 0`, "MaxBatchSize must be at least 1, got 0"},
		{"retries", `QueryRetries = -1`, "QueryRetries must not be negative, got -1"},
		{"trash", `DefaultTrash = " "`, "DefaultTrash must not be empty, set PermanentDelete on accounts without a trash instead"},
		{"osascript", `Osascript = []`, "Osascript must not be empty, set to the command running a script from stdin"},
		{"account conflict", "[Accounts.Work]\nTrash = \"Bin\"\nPermanentDelete = true", "Trash and PermanentDelete cannot be set at the same time for account Work"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			config, err := ReadConfig(writeConfig(t, tc.content))
			assert.Nil(t, config)
			if tc.err == "" {
				assert.Error(t, err)
			} else {
				assert.EqualError(t, err, tc.err)
			}
		})
	}
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/mx")

	assert.Equal(t, "/home/mx/mail/journal.db", expandHome("~/mail/journal.db"))
	assert.Equal(t, "/abs/journal.db", expandHome("/abs/journal.db"))
}

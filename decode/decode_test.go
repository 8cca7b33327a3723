// SPDX-License-Identifier: GPL-3.0-or-later
package decode

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/CrawX/go-mxctl/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var messageSchema = Schema{
	{"id", Int},
	{"subject", String},
	{"read", Bool},
	{"date", Time},
}

func rec(fields ...string) string {
	return strings.Join(fields, FieldSeparator)
}

func TestDecode_Empty(t *testing.T) {
	schemas := []Schema{
		messageSchema,
		{{"name", String}},
		{{"count", Int}, {"unread", Int}},
	}
	for _, raw := range []string{"", "\n"} {
		for _, schema := range schemas {
			records, err := Decode(raw, schema)
			assert.NoError(t, err)
			assert.NotNil(t, records)
			assert.Empty(t, records)
		}
	}
}

func TestDecode_Records(t *testing.T) {
	raw := rec("101", "Hello", "true", "2026-01-15T10:30:00") + RecordSeparator +
		rec("102", "World", "false", "2026-01-16T08:00:00") + RecordSeparator + "\n"

	records, err := Decode(raw, messageSchema)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, int64(101), records[0].Int("id"))
	assert.Equal(t, "Hello", records[0].String("subject"))
	assert.True(t, records[0].Bool("read"))
	assert.Equal(t, time.Date(2026, 1, 15, 10, 30, 0, 0, time.Local), records[0].Time("date"))

	assert.Equal(t, int64(102), records[1].Int("id"))
	assert.False(t, records[1].Bool("read"))
	assert.Equal(t, map[string]interface{}{
		"id":      int64(102),
		"subject": "World",
		"read":    false,
		"date":    time.Date(2026, 1, 16, 8, 0, 0, 0, time.Local),
	}, records[1].Map())
}

func TestDecode_FieldCount(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		ok   bool
		// err is a substring of the expected error
		err string
	}{
		{"too few", rec("101", "Hello", "true"), false, "decode record 0: expected 4 fields, got 3"},
		{"too few in second", rec("1", "a", "true", "") + RecordSeparator + rec("2"), false, "decode record 1: expected 4 fields, got 1"},
		{"trailing empty tolerated", rec("101", "Hello", "true", "", ""), true, ""},
		{"several trailing empty tolerated", rec("101", "Hello", "true", "", "", "", ""), true, ""},
		{"separator collision", rec("101", "Hel", "lo", "true", "2026-01-15T10:30:00"), false, "a field value probably contains a separator"},
		// The split shifts "lo" into the read field once the empty date is trimmed.
		{"separator collision before empty field", rec("101", "Hel", "lo", "true", ""), false, "decode record 0"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			records, err := Decode(tc.raw, messageSchema)
			if tc.ok {
				assert.NoError(t, err)
				assert.NotEmpty(t, records)
				return
			}
			assert.Nil(t, records)
			var decodeErr *domain.DecodeError
			require.True(t, errors.As(err, &decodeErr), "got %v", err)
			assert.Contains(t, err.Error(), tc.err)
		})
	}
}

func TestDecode_Coercion(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		err  string
	}{
		{"int", rec("abc", "s", "true", ""), `decode record 0 field id: not an integer: "abc"`},
		{"bool", rec("1", "s", "yes", ""), `decode record 0 field read: not a boolean: "yes"`},
		{"empty bool", rec("1", "s", "", ""), `decode record 0 field read: not a boolean: ""`},
		{"date", rec("1", "s", "true", "Monday"), `decode record 0 field date: not a date: "Monday"`},
		{"missing date", rec("1", "s", "true", "missing value"), ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.raw, messageSchema)
			if tc.err == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tc.err)
			}
		})
	}
}

func TestDecode_SingleFieldRecords(t *testing.T) {
	records, err := Decode("changed\n", Schema{{"status", String}})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "changed", records[0].String("status"))
	assert.Equal(t, "", records[0].String("unknown"))
	assert.Equal(t, int64(0), records[0].Int("unknown"))
}

func TestDecode_EmptySchema(t *testing.T) {
	_, err := Decode("x", nil)
	assert.Error(t, err)
}

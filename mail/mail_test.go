// SPDX-License-Identifier: GPL-3.0-or-later
package mail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	raw := "From: =?ISO-8859-1?Q?J=F6rg_M=FCller?= <joerg@example.com>\n" +
		"Subject: =?UTF-8?B?TcKlIFLDqsOQ?=\n" +
		"Message-Id: <abc@example.com>\n" +
		"Received: from a\n by b\n"

	headers, err := ParseHeaders(raw)
	require.NoError(t, err)
	require.Len(t, headers, 4)
	assert.Equal(t, Header{"From", "Jörg Müller <joerg@example.com>"}, headers[0])
	assert.Equal(t, Header{"Subject", "M¥ RêÐ"}, headers[1])
	assert.Equal(t, Header{"Message-Id", "<abc@example.com>"}, headers[2])
	assert.Equal(t, "Received", headers[3].Key)
	assert.Contains(t, headers[3].Value, "from a")
	assert.Contains(t, headers[3].Value, "by b")
}

func TestParseHeaders_Invalid(t *testing.T) {
	_, err := ParseHeaders("no colon here\n")
	assert.Error(t, err)

	headers, err := ParseHeaders("")
	assert.NoError(t, err)
	assert.Empty(t, headers)
}

func TestExtractEmail(t *testing.T) {
	tests := []struct {
		sender   string
		expected string
	}{
		{"Jane Doe <Jane@Example.com>", "jane@example.com"},
		{"jane@example.com", "jane@example.com"},
		{"\"Doe, Jane\" <jane@example.com>", "jane@example.com"},
		{"Broken Name, Inc <billing@example.com>", "billing@example.com"},
		{"", ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, ExtractEmail(tc.sender), tc.sender)
	}
}

func TestNormalizeSubject(t *testing.T) {
	tests := []struct {
		subject  string
		expected string
	}{
		{"Hello", "Hello"},
		{"Re: Hello", "Hello"},
		{"RE: Fwd: re: Hello", "Hello"},
		{"AW: WG: Termin", "Termin"},
		{"SV: VS: Möte", "Möte"},
		{"Re[2]: Hello", "Hello"},
		{"Regarding: Hello", "Regarding: Hello"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, NormalizeSubject(tc.subject), tc.subject)
	}
}

func TestShortSubject(t *testing.T) {
	assert.Equal(t, "short", ShortSubject("short"))
	assert.Equal(t, "ääääääääääääääääääääääääääääää...", ShortSubject("ääääääääääääääääääääääääääääääääää"))
}

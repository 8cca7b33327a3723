// SPDX-License-Identifier: GPL-3.0-or-later
package script

import (
	"strconv"
	"strings"
)

// Quote renders s as an AppleScript string literal. Control characters that
// have no backslash escape are spliced in as (character id N) so that the
// literal never contains them raw.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == '"':
			b.WriteString(`\"`)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r == 0x7f || r == 0x2028 || r == 0x2029:
			b.WriteString(`" & (character id `)
			b.WriteString(strconv.Itoa(int(r)))
			b.WriteString(`) & "`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// SPDX-License-Identifier: GPL-3.0-or-later

// Package decode turns the delimited text returned by automation scripts into
// typed records. Records are separated by RecordSeparator, fields within a
// record by FieldSeparator. Scripts replace both separators in text values
// with spaces, so a value never carries one.
package decode

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/CrawX/go-mxctl/domain"
)

const (
	RecordSeparator = "\x1e"
	FieldSeparator  = "\x1f"

	// TimeLayout is what AppleScript produces for a date coerced via «class isot».
	TimeLayout = "2006-01-02T15:04:05"
)

type FieldType int

const (
	String FieldType = iota
	Int
	Bool
	Time
)

func (t FieldType) String() string {
	switch t {
	case String:
		return "string"
	case Int:
		return "int"
	case Bool:
		return "bool"
	case Time:
		return "time"
	}
	return fmt.Sprintf("FieldType(%d)", int(t))
}

type Field struct {
	Name string
	Type FieldType
}

type Schema []Field

func (s Schema) Index(name string) int {
	for i, f := range s {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Decode splits raw into records and coerces every field to its schema type.
// Empty input yields an empty slice, not an error.
func Decode(raw string, schema Schema) ([]*Record, error) {
	if len(schema) == 0 {
		return nil, fmt.Errorf("empty schema")
	}

	raw = strings.TrimSuffix(raw, "\n")
	records := []*Record{}
	if raw == "" {
		return records, nil
	}

	units := strings.Split(raw, RecordSeparator)
	for len(units) > 0 && units[len(units)-1] == "" {
		units = units[:len(units)-1]
	}

	for i, unit := range units {
		r, err := decodeRecord(i, unit, schema)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	return records, nil
}

func decodeRecord(index int, unit string, schema Schema) (*Record, error) {
	fields := strings.Split(unit, FieldSeparator)
	if len(fields) < len(schema) {
		return nil, &domain.DecodeError{
			Record: index,
			Reason: fmt.Sprintf("expected %d fields, got %d", len(schema), len(fields)),
		}
	}

	for len(fields) > len(schema) && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}
	if len(fields) > len(schema) {
		return nil, &domain.DecodeError{
			Record: index,
			Reason: fmt.Sprintf("expected %d fields, got %d non-empty, a field value probably contains a separator", len(schema), len(fields)),
		}
	}

	r := &Record{schema: schema, values: make([]Value, len(schema))}
	for i, f := range schema {
		v, err := coerce(f.Type, fields[i])
		if err != nil {
			return nil, &domain.DecodeError{Record: index, Field: f.Name, Reason: err.Error()}
		}
		r.values[i] = v
	}

	return r, nil
}

func coerce(t FieldType, text string) (Value, error) {
	v := Value{Type: t, Raw: text}
	switch t {
	case String:
	case Int:
		i, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return v, fmt.Errorf("not an integer: %q", text)
		}
		v.int = i
	case Bool:
		switch text {
		case "true":
			v.bool = true
		case "false":
		default:
			return v, fmt.Errorf("not a boolean: %q", text)
		}
	case Time:
		if text == "" || text == "missing value" {
			break
		}
		tm, err := time.ParseInLocation(TimeLayout, text, time.Local)
		if err != nil {
			return v, fmt.Errorf("not a date: %q", text)
		}
		v.time = tm
	default:
		return v, fmt.Errorf("unsupported field type %v", t)
	}
	return v, nil
}

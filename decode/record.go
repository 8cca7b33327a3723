// SPDX-License-Identifier: GPL-3.0-or-later
package decode

import "time"

type Value struct {
	Type FieldType
	Raw  string

	int  int64
	bool bool
	time time.Time
}

func (v Value) Interface() interface{} {
	switch v.Type {
	case Int:
		return v.int
	case Bool:
		return v.bool
	case Time:
		if v.time.IsZero() {
			return nil
		}
		return v.time
	}
	return v.Raw
}

// Record is one decoded unit. Accessors return the zero value for names that
// are not part of the schema.
type Record struct {
	schema Schema
	values []Value
}

func (r *Record) Len() int {
	return len(r.values)
}

func (r *Record) Value(name string) (Value, bool) {
	i := r.schema.Index(name)
	if i < 0 {
		return Value{}, false
	}
	return r.values[i], true
}

func (r *Record) String(name string) string {
	v, _ := r.Value(name)
	return v.Raw
}

func (r *Record) Int(name string) int64 {
	v, _ := r.Value(name)
	return v.int
}

func (r *Record) Bool(name string) bool {
	v, _ := r.Value(name)
	return v.bool
}

func (r *Record) Time(name string) time.Time {
	v, _ := r.Value(name)
	return v.time
}

// Map returns the record keyed by field name, for structured output.
func (r *Record) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(r.values))
	for i, f := range r.schema {
		m[f.Name] = r.values[i].Interface()
	}
	return m
}

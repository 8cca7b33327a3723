// SPDX-License-Identifier: GPL-3.0-or-later
package script

import (
	"bytes"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"text/template"

	"github.com/CrawX/go-mxctl/decode"
	"github.com/CrawX/go-mxctl/domain"
)

type ParamType int

const (
	String ParamType = iota
	Int
	Bool
	Enum
	Path
)

// Class selects the timeout an invocation of the template gets.
type Class int

const (
	ClassSingle Class = iota
	ClassScan
)

type Placeholder struct {
	Name     string
	Type     ParamType
	Optional bool

	// Int bounds, inclusive. Max 0 means unbounded.
	Min, Max int64

	// Enum values are checked against Allowed and, if set, the named vocabulary.
	Allowed    []string
	Vocabulary string
}

type Template struct {
	Name         string
	Class        Class
	Mutating     bool
	Placeholders []Placeholder
	Schema       decode.Schema
	Body         string
}

type Params map[string]interface{}

type compiled struct {
	Template
	tmpl *template.Template
}

// Engine renders named templates. Render is pure; the allow-lists are only
// changed through Allow.
type Engine struct {
	templates map[string]*compiled

	mu    sync.RWMutex
	vocab map[string]map[string]bool
}

func NewEngine(templates []Template) (*Engine, error) {
	e := &Engine{
		templates: make(map[string]*compiled, len(templates)),
		vocab:     make(map[string]map[string]bool),
	}

	for _, t := range templates {
		if _, ok := e.templates[t.Name]; ok {
			return nil, fmt.Errorf("duplicate template %s", t.Name)
		}
		tmpl, err := template.New(t.Name).Option("missingkey=error").Parse(t.Body)
		if err != nil {
			return nil, fmt.Errorf("could not parse template %s: %w", t.Name, err)
		}
		e.templates[t.Name] = &compiled{Template: t, tmpl: tmpl}
	}

	return e, nil
}

// Allow adds values to the named allow-list used by Enum placeholders.
func (e *Engine) Allow(vocabulary string, values ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, ok := e.vocab[vocabulary]
	if !ok {
		v = make(map[string]bool)
		e.vocab[vocabulary] = v
	}
	for _, value := range values {
		v[value] = true
	}
}

func (e *Engine) Allowed(vocabulary string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	values := []string{}
	for v := range e.vocab[vocabulary] {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

func (e *Engine) Template(name string) (Template, bool) {
	c, ok := e.templates[name]
	if !ok {
		return Template{}, false
	}
	return c.Template, true
}

func (e *Engine) Render(name string, params Params) (string, error) {
	c, ok := e.templates[name]
	if !ok {
		return "", &domain.TemplateError{Template: name, Reason: "unknown template"}
	}

	known := map[string]bool{}
	for _, p := range c.Placeholders {
		known[p.Name] = true
	}
	for k := range params {
		if !known[k] {
			return "", &domain.TemplateError{Template: name, Placeholder: k, Reason: "unknown placeholder"}
		}
	}

	literals := make(map[string]string, len(c.Placeholders))
	for _, p := range c.Placeholders {
		value, present := params[p.Name]
		if !present || value == nil {
			if !p.Optional {
				return "", &domain.TemplateError{Template: name, Placeholder: p.Name, Reason: "missing required value"}
			}
			literals[p.Name] = zeroLiteral(p.Type)
			continue
		}

		literal, err := e.literal(p, value)
		if err != nil {
			return "", &domain.TemplateError{Template: name, Placeholder: p.Name, Reason: err.Error()}
		}
		literals[p.Name] = literal
	}

	var buf bytes.Buffer
	buf.WriteString("-- " + name + "\n")
	if err := c.tmpl.Execute(&buf, literals); err != nil {
		return "", &domain.TemplateError{Template: name, Reason: err.Error()}
	}

	return buf.String(), nil
}

func zeroLiteral(t ParamType) string {
	switch t {
	case Int:
		return "0"
	case Bool:
		return "false"
	}
	return `""`
}

func (e *Engine) literal(p Placeholder, value interface{}) (string, error) {
	switch p.Type {
	case String:
		s, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("expected string, got %T", value)
		}
		return Quote(s), nil

	case Int:
		i, ok := toInt64(value)
		if !ok {
			return "", fmt.Errorf("expected integer, got %T", value)
		}
		if i < p.Min || (p.Max != 0 && i > p.Max) {
			return "", fmt.Errorf("value %d outside of [%d, %s]", i, p.Min, maxString(p.Max))
		}
		return strconv.FormatInt(i, 10), nil

	case Bool:
		b, ok := value.(bool)
		if !ok {
			return "", fmt.Errorf("expected bool, got %T", value)
		}
		return strconv.FormatBool(b), nil

	case Enum:
		s, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("expected string, got %T", value)
		}
		if !e.allowed(p, s) {
			return "", fmt.Errorf("value %q is not allowed", s)
		}
		return Quote(s), nil

	case Path:
		s, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("expected path string, got %T", value)
		}
		cleaned, err := cleanPath(s)
		if err != nil {
			return "", err
		}
		return Quote(cleaned), nil
	}

	return "", fmt.Errorf("unsupported placeholder type %d", p.Type)
}

func (e *Engine) allowed(p Placeholder, value string) bool {
	for _, a := range p.Allowed {
		if a == value {
			return true
		}
	}
	if p.Vocabulary == "" {
		return false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.vocab[p.Vocabulary][value]
}

func cleanPath(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("empty path")
	}
	if strings.ContainsRune(s, 0) {
		return "", fmt.Errorf("path contains NUL")
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return "", fmt.Errorf("path contains control character %#x", r)
		}
	}
	if !filepath.IsAbs(s) {
		return "", fmt.Errorf("path %q is not absolute", s)
	}
	return filepath.Clean(s), nil
}

func toInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint32:
		return int64(v), true
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	}
	return 0, false
}

func maxString(max int64) string {
	if max == 0 {
		return "∞"
	}
	return strconv.FormatInt(max, 10)
}

package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrNotObject = errors.New("report data must be a JSON object")

// Pair is one top-level key of the report data with its raw JSON value.
type Pair struct {
	Key   string
	Value json.RawMessage
}

// Payload is a JSON object that remembers key order, so quiz answers are
// drawn in the order the client sent them.
type Payload struct {
	pairs  []Pair
	index  map[string]int
	object bool
}

// ParsePayload decodes data as a JSON object. An empty string is an empty
// payload. Valid JSON of any other kind is also an empty payload, marked as
// not an object. A repeated key keeps its first position and its last value.
func ParsePayload(data string) (*Payload, error) {
	p := &Payload{index: map[string]int{}, object: true}
	if strings.TrimSpace(data) == "" {
		return p, nil
	}
	if !json.Valid([]byte(data)) {
		return nil, errors.New("parse report data: invalid JSON")
	}

	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parse report data: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		p.object = false
		return p, nil
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parse report data: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("parse report data: unexpected key %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parse report data: %w", err)
		}
		p.set(key, raw)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("parse report data: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("parse report data: trailing data after object")
	}
	return p, nil
}

func (p *Payload) set(key string, raw json.RawMessage) {
	if i, ok := p.index[key]; ok {
		p.pairs[i].Value = raw
		return
	}
	p.index[key] = len(p.pairs)
	p.pairs = append(p.pairs, Pair{Key: key, Value: raw})
}

// IsObject reports whether the data was a JSON object (or absent).
func (p *Payload) IsObject() bool {
	return p.object
}

func (p *Payload) Pairs() []Pair {
	return p.pairs
}

// Lookup returns the display text for key and whether the key was present.
func (p *Payload) Lookup(key string) (string, bool) {
	i, ok := p.index[key]
	if !ok {
		return "", false
	}
	return FormatValue(p.pairs[i].Value), true
}

// FormatValue renders a JSON value as a single report line fragment.
// Strings are unquoted and arrays are bracketed, comma separated lists.
func FormatValue(raw json.RawMessage) string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return string(raw)
	}
	return formatAny(v)
}

func formatAny(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = formatAny(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

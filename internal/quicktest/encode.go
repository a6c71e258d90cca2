package quicktest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Schema is the ordered list of one-hot column names the classifier was
// trained on. Column identity and order are the whole contract: a row built
// against any other ordering feeds the tree the wrong features.
type Schema struct {
	columns []string
	index   map[string]int
}

func NewSchema(columns []string) (*Schema, error) {
	if len(columns) == 0 {
		return nil, errors.New("column schema is empty")
	}
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c]; dup {
			return nil, fmt.Errorf("column schema: duplicate column %q", c)
		}
		index[c] = i
	}
	return &Schema{columns: append([]string(nil), columns...), index: index}, nil
}

// LoadSchema reads a JSON array of column names.
func LoadSchema(path string) (*Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read column schema: %w", err)
	}
	var columns []string
	if err := json.Unmarshal(raw, &columns); err != nil {
		return nil, fmt.Errorf("parse column schema %s: %w", path, err)
	}
	return NewSchema(columns)
}

func (s *Schema) Columns() []string {
	return append([]string(nil), s.columns...)
}

func (s *Schema) Len() int { return len(s.columns) }

// OneHot names the indicator columns set for r, one per field, as
// "<Field>_<value>".
func OneHot(r SymptomRecord) []string {
	fields := r.Fields()
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.Name+"_"+f.Value)
	}
	return out
}

// Row aligns the one-hot encoding of r to the schema. Columns the record
// does not set are 0; encoded columns the schema does not know are dropped.
func (s *Schema) Row(r SymptomRecord) []float64 {
	row := make([]float64, len(s.columns))
	for _, col := range OneHot(r) {
		if i, ok := s.index[col]; ok {
			row[i] = 1
		}
	}
	return row
}

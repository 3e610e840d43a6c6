package classify

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Standard result field names.
const (
	FieldCommand = "command"
	FieldSpeaker = "speaker"
)

// Field is one labelled output of a classifier.
type Field struct {
	Name       string  `json:"name" yaml:"name" msgpack:"name"`
	Label      string  `json:"label" yaml:"label" msgpack:"label"`
	Confidence float64 `json:"confidence" yaml:"confidence" msgpack:"confidence"`
}

// Result is an ordered set of labelled fields. It is immutable.
type Result struct {
	fields []Field
}

// NewResult builds a result. Field names must be unique and non-empty and
// confidences are clamped to [0, 1].
func NewResult(fields ...Field) (*Result, error) {
	seen := make(map[string]bool, len(fields))
	out := make([]Field, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("classify: field %d has no name", i)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("classify: duplicate field %q", f.Name)
		}
		seen[f.Name] = true
		f.Confidence = clamp01(f.Confidence)
		out[i] = f
	}
	return &Result{fields: out}, nil
}

// Fields returns a copy of the fields in order.
func (r *Result) Fields() []Field {
	return append([]Field(nil), r.fields...)
}

// Field looks up a field by name.
func (r *Result) Field(name string) (Field, bool) {
	for _, f := range r.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Label returns the label of the named field or "".
func (r *Result) Label(name string) string {
	f, _ := r.Field(name)
	return f.Label
}

// Len returns the number of fields.
func (r *Result) Len() int { return len(r.fields) }

// String formats fields as "Command: stop, Speaker: alice".
func (r *Result) String() string {
	parts := make([]string, len(r.fields))
	for i, f := range r.fields {
		name := f.Name
		if name != "" {
			name = strings.ToUpper(name[:1]) + name[1:]
		}
		parts[i] = name + ": " + f.Label
	}
	return strings.Join(parts, ", ")
}

func clamp01(v float64) float64 {
	switch {
	case v != v:
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// MarshalJSON encodes the result as its ordered field list.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.fields)
}

// UnmarshalJSON decodes an ordered field list.
func (r *Result) UnmarshalJSON(b []byte) error {
	var fields []Field
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	res, err := NewResult(fields...)
	if err != nil {
		return err
	}
	*r = *res
	return nil
}

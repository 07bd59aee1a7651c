package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

type AnswerKind string

const (
	AnswerOption AnswerKind = "option"
	AnswerText   AnswerKind = "text"
	AnswerFields AnswerKind = "fields"
)

// Answer is a raw participant answer. On the wire it is a number (option
// index), a string (free text) or an object (form fields).
type Answer struct {
	Kind   AnswerKind
	Option int
	Text   string
	Fields map[string]string
}

func OptionAnswer(i int) Answer           { return Answer{Kind: AnswerOption, Option: i} }
func TextAnswer(s string) Answer          { return Answer{Kind: AnswerText, Text: s} }
func FieldsAnswer(m map[string]string) Answer {
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Answer{Kind: AnswerFields, Fields: cp}
}

// IsEmpty reports whether the answer carries no content. An option answer is
// never empty.
func (a Answer) IsEmpty() bool {
	switch a.Kind {
	case AnswerOption:
		return false
	case AnswerText:
		return strings.TrimSpace(a.Text) == ""
	case AnswerFields:
		for _, v := range a.Fields {
			if strings.TrimSpace(v) != "" {
				return false
			}
		}
	}
	return true
}

// String renders the answer for review exports.
func (a Answer) String() string {
	switch a.Kind {
	case AnswerOption:
		return fmt.Sprintf("%d", a.Option)
	case AnswerText:
		return a.Text
	case AnswerFields:
		keys := make([]string, 0, len(a.Fields))
		for k := range a.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+a.Fields[k])
		}
		return strings.Join(parts, "; ")
	}
	return ""
}

func (a Answer) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case AnswerOption:
		return json.Marshal(a.Option)
	case AnswerText:
		return json.Marshal(a.Text)
	case AnswerFields:
		return json.Marshal(a.Fields)
	}
	return []byte("null"), nil
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("answer must not be null")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = TextAnswer(s)
	case '{':
		var m map[string]string
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("answer fields must be strings: %w", err)
		}
		*a = FieldsAnswer(m)
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("answer must be a number, string or object: %w", err)
		}
		if f != math.Trunc(f) {
			return fmt.Errorf("option answer must be an integer, got %v", f)
		}
		*a = OptionAnswer(int(f))
	}
	return nil
}

// AnswerMap maps a question position to its answer.
type AnswerMap map[int]Answer

func (m AnswerMap) Get(pos int) (Answer, bool) {
	a, ok := m[pos]
	return a, ok
}

func (m AnswerMap) Answered(pos int) bool {
	a, ok := m[pos]
	return ok && !a.IsEmpty()
}

func (m AnswerMap) Clone() AnswerMap {
	out := make(AnswerMap, len(m))
	for k, v := range m {
		if v.Kind == AnswerFields {
			v = FieldsAnswer(v.Fields)
		}
		out[k] = v
	}
	return out
}

// List returns answers ordered by position for n questions; missing entries
// are nil and serialize as null.
func (m AnswerMap) List(n int) []*Answer {
	out := make([]*Answer, n)
	for i := 0; i < n; i++ {
		if a, ok := m[i]; ok {
			a := a
			out[i] = &a
		}
	}
	return out
}

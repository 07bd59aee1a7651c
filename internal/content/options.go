package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type option struct {
	Key  string
	Text string
}

// orderedOptions keeps the order in which the backend listed the options. It
// accepts either an object keyed by label or a plain array.
type orderedOptions []option

func (o *orderedOptions) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*o = nil
		return nil
	}

	if data[0] == '[' {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("options: %w", err)
		}
		out := make(orderedOptions, len(list))
		for i, text := range list {
			out[i] = option{Key: letter(i), Text: text}
		}
		*o = out
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("options: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("options: expected object or array")
	}

	var out orderedOptions
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("options: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("options: expected string key")
		}
		var text string
		if err := dec.Decode(&text); err != nil {
			return fmt.Errorf("options[%s]: %w", key, err)
		}
		out = append(out, option{Key: key, Text: text})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("options: %w", err)
	}
	*o = out
	return nil
}

func (o orderedOptions) texts() []string {
	out := make([]string, len(o))
	for i, opt := range o {
		out[i] = opt.Text
	}
	return out
}

// resolve finds the index of the labelled solution within the option order.
// The solution may be a label ("b"), a 0-based index, or the option text.
func (o orderedOptions) resolve(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, fmt.Errorf("missing solution")
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		i := int(n)
		if float64(i) != n || i < 0 || i >= len(o) {
			return 0, fmt.Errorf("solution index %v out of range", n)
		}
		return i, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("unsupported solution %s", raw)
	}
	s = strings.TrimSpace(s)
	for i, opt := range o {
		if strings.EqualFold(opt.Key, s) {
			return i, nil
		}
	}
	for i, opt := range o {
		if strings.EqualFold(strings.TrimSpace(opt.Text), s) {
			return i, nil
		}
	}
	if i, err := strconv.Atoi(s); err == nil && i >= 0 && i < len(o) {
		return i, nil
	}
	return 0, fmt.Errorf("solution %q matches no option", s)
}

func letter(i int) string {
	return string(rune('a' + i))
}

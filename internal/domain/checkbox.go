package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Cells is the ordered checkbox array. Every element is 0 or 1.
// It serializes as a JSON number array rather than the base64 string encoding/json uses for []byte.
type Cells []byte

func (c Cells) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(c)*2 + 2)
	buf.WriteByte('[')
	for i, v := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		if v != 0 {
			buf.WriteByte('1')
		} else {
			buf.WriteByte('0')
		}
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (c *Cells) UnmarshalJSON(data []byte) error {
	var raw []float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: checkboxes: %v", ErrInvalidSnapshot, err)
	}
	cells := make(Cells, len(raw))
	for i, v := range raw {
		if v != 0 {
			cells[i] = 1
		}
	}
	*c = cells
	return nil
}

// State is the whole checkbox document, served on GET /checkboxes and persisted as-is.
type State struct {
	Length     int   `json:"length"`
	Checkboxes Cells `json:"checkboxes"`
}

// NewState returns an all-zero state of length n.
func NewState(n int) State {
	return State{Length: n, Checkboxes: make(Cells, n)}
}

// Clone returns a deep copy.
func (s State) Clone() State {
	cells := make(Cells, len(s.Checkboxes))
	copy(cells, s.Checkboxes)
	return State{Length: s.Length, Checkboxes: cells}
}

// Normalize resizes the state to exactly n cells. A longer array is truncated to its
// first n values; a shorter one keeps all values and is padded with zeros.
// Reports whether anything changed.
func (s *State) Normalize(n int) bool {
	if s.Length == n && len(s.Checkboxes) == n {
		return false
	}
	cells := make(Cells, n)
	copy(cells, s.Checkboxes)
	s.Checkboxes = cells
	s.Length = n
	return true
}

// Update describes one cell mutation, as fanned out to connected clients.
type Update struct {
	Checkbox int   `json:"checkbox"`
	State    uint8 `json:"state"`
}

// Notifier receives every accepted mutation. Notify must enqueue delivery before returning.
type Notifier interface {
	Notify(update Update)
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func(update Update)

func (f NotifierFunc) Notify(update Update) { f(update) }

// Truthy coerces a decoded JSON value to a cell value using JavaScript truthiness:
// false, 0, "" and null are off, everything else is on.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case string:
		return t != ""
	default:
		return true
	}
}

// internal/keypad/keypad.go
// Package keypad defines the 4x4 DTMF keypad of ITU-T Q.23: the sixteen keys,
// their row/column placement, and the eight signalling frequencies.
package keypad

import (
	"errors"
	"fmt"
	"strings"
)

// Number of rows and columns on the keypad
const (
	Rows    = 4
	Columns = 4
	// Size is the number of keys on the keypad
	Size = Rows * Columns
)

var (
	// ErrUnknownKey indicates a symbol outside the sixteen DTMF keys
	ErrUnknownKey = errors.New("unknown DTMF key")
)

// Key is a single keypad symbol: 0-9, *, #, A-D.
type Key rune

// String returns the key as a one-character string
func (k Key) String() string {
	return string(rune(k))
}

// rowFrequencies and columnFrequencies are the Q.23 low and high group tones in Hz.
// Index order matters: row index i selects rowFrequencies[i].
var (
	rowFrequencies    = [Rows]float64{697, 770, 852, 941}
	columnFrequencies = [Columns]float64{1209, 1336, 1477, 1633}
)

// Entry places a key on the keypad. Row 0, column 0 is the upper left key.
type Entry struct {
	Key    Key
	Row    int
	Column int
}

// RowFrequency returns the low group tone for this entry in Hz
func (e Entry) RowFrequency() float64 {
	return rowFrequencies[e.Row]
}

// ColumnFrequency returns the high group tone for this entry in Hz
func (e Entry) ColumnFrequency() float64 {
	return columnFrequencies[e.Column]
}

// Frequencies returns both tones of the entry
func (e Entry) Frequencies() (row, column float64) {
	return e.RowFrequency(), e.ColumnFrequency()
}

// entries is the keypad in row-major order.
var entries = [Size]Entry{
	{'1', 0, 0}, {'2', 0, 1}, {'3', 0, 2}, {'A', 0, 3},
	{'4', 1, 0}, {'5', 1, 1}, {'6', 1, 2}, {'B', 1, 3},
	{'7', 2, 0}, {'8', 2, 1}, {'9', 2, 2}, {'C', 2, 3},
	{'*', 3, 0}, {'0', 3, 1}, {'#', 3, 2}, {'D', 3, 3},
}

// byKey is built once at package initialization and only read afterwards.
var byKey = func() map[Key]Entry {
	m := make(map[Key]Entry, Size)
	for _, e := range entries {
		m[e.Key] = e
	}
	return m
}()

// Lookup returns the placement of key k
func Lookup(k Key) (Entry, error) {
	e, ok := byKey[k]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownKey, rune(k))
	}
	return e, nil
}

// Entries returns a copy of all sixteen entries in row-major order.
func Entries() [Size]Entry {
	return entries
}

// RowFrequencies returns a copy of the low group frequency table.
func RowFrequencies() [Rows]float64 {
	return rowFrequencies
}

// ColumnFrequencies returns a copy of the high group frequency table.
func ColumnFrequencies() [Columns]float64 {
	return columnFrequencies
}

// At returns the key at the given row and column, or false if out of range.
func At(row, column int) (Key, bool) {
	if row < 0 || row >= Rows || column < 0 || column >= Columns {
		return 0, false
	}
	return entries[row*Columns+column].Key, true
}

// ParseKeys converts a string of keypad symbols into keys. Letters are accepted
// in either case; whitespace, '-' and ',' separators are skipped.
func ParseKeys(s string) ([]Key, error) {
	keys := make([]Key, 0, len(s))
	for _, r := range strings.ToUpper(s) {
		switch r {
		case ' ', '\t', '-', ',':
			continue
		}
		k := Key(r)
		if _, ok := byKey[k]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKey, r)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// Package names resolves archive table indices to readable identifiers.
//
// A name table is a JSON document with two arrays of strings: "tickflow"
// holds the game names in game-table order and "tickflowEndless" the gate
// names in gate-table order. Extra keys are ignored.
package names

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/rhmodding/deckompiler/pkg/c00"
)

const (
	gameKey = "tickflow"
	gateKey = "tickflowEndless"
)

// ErrInvalidNames is returned when a name table is not usable
var ErrInvalidNames = errors.New("invalid name table")

// Table is a loaded name table. The zero value resolves nothing.
type Table struct {
	data []byte
}

// Parse validates data and returns a Table over it
func Parse(data []byte) (*Table, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrInvalidNames)
	}
	for _, key := range []string{gameKey, gateKey} {
		v := gjson.GetBytes(data, key)
		if v.Exists() && !v.IsArray() {
			return nil, fmt.Errorf("%w: %q must be an array", ErrInvalidNames, key)
		}
	}
	return &Table{data: data}, nil
}

// Load reads and parses the name table at path
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read name table %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Lookup returns the name recorded for a candidate
func (t *Table) Lookup(c c00.Candidate) (string, bool) {
	if t == nil || t.data == nil || c.Index < 0 {
		return "", false
	}
	key := gameKey
	if c.IsGate() {
		key = gateKey
	}
	v := gjson.GetBytes(t.data, key+"."+strconv.Itoa(c.Index))
	if !v.Exists() || v.Type != gjson.String || v.Str == "" {
		return "", false
	}
	return v.Str, true
}

// Name returns the candidate's name, or a placeholder built from its tagged
// index when the table has none.
func (t *Table) Name(c c00.Candidate) string {
	if name, ok := t.Lookup(c); ok {
		return name
	}
	if c.IsGate() {
		return fmt.Sprintf("gate_%02X", c.Index)
	}
	return fmt.Sprintf("game_%03X", c.TaggedIndex())
}

// FileName is the file an extracted candidate would be written to
func (t *Table) FileName(c c00.Candidate) string {
	return t.Name(c) + ".bin"
}

// Len returns the number of game and gate names
func (t *Table) Len() (games, gates int) {
	if t == nil || t.data == nil {
		return 0, 0
	}
	return int(gjson.GetBytes(t.data, gameKey+".#").Int()),
		int(gjson.GetBytes(t.data, gateKey+".#").Int())
}

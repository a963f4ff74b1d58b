package command

import (
	"github.com/spf13/pflag"

	"github.com/rhmodding/deckompiler/pkg/c00"
)

var (
	// for deckompiler unpack
	baseOffset offsetValue
	variant    string
	namesFile  string
)

var _ pflag.Value = (*offsetValue)(nil)

// offsetValue is a pflag.Value accepting decimal, 0x, 0o and 0b literals
type offsetValue struct {
	value uint32
	set   bool
}

func (v *offsetValue) String() string {
	if !v.set {
		return ""
	}
	return c00.FormatOffset(v.value)
}

func (v *offsetValue) Set(s string) error {
	n, err := c00.ParseOffset(s)
	if err != nil {
		return err
	}
	v.value = n
	v.set = true
	return nil
}

func (v *offsetValue) Type() string {
	return "integer"
}

// Get returns the parsed value and whether the flag was given
func (v *offsetValue) Get() (uint32, bool) {
	return v.value, v.set
}

package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	humanize "github.com/dustin/go-humanize"
)

// Strings is a helper type that (un)marshals a single string to/from a single
// JSON string and a slice of strings to/from a JSON array of strings.
type Strings []string

// UnmarshalJSON conforms to the json.Unmarshaler interface.
func (o *Strings) UnmarshalJSON(data []byte) error {
	if data[0] == '[' {
		return json.Unmarshal(data, (*[]string)(o))
	}
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	if len(value) == 0 {
		*o = []string{}
	} else {
		*o = []string{value}
	}
	return nil
}

// MarshalJSON conforms to the json.Marshaler interface.
func (o Strings) MarshalJSON() ([]byte, error) {
	switch len(o) {
	case 0:
		return json.Marshal(nil)
	case 1:
		return json.Marshal(o[0])
	default:
		return json.Marshal([]string(o))
	}
}

var (
	_ json.Unmarshaler = (*Strings)(nil)
	_ json.Marshaler   = (*Strings)(nil)
)

// Flag represents a ternary value: false (-1), default (0), or true (+1).
//
// When encoded in json, False is "false", Default is "null" (or empty), and True
// is "true".
type Flag int8

const (
	False   Flag = -1
	Default Flag = 0
	True    Flag = 1
)

// WithDefault resolves the value of the flag given the provided default value.
func (f Flag) WithDefault(defaultValue bool) bool {
	switch f {
	case False:
		return false
	case Default:
		return defaultValue
	case True:
		return true
	default:
		panic(fmt.Sprintf("invalid flag value %d", f))
	}
}

func (f Flag) MarshalJSON() ([]byte, error) {
	switch f {
	case Default:
		return json.Marshal(nil)
	case True:
		return json.Marshal(true)
	case False:
		return json.Marshal(false)
	default:
		return nil, fmt.Errorf("invalid flag value: %d", f)
	}
}

func (f *Flag) UnmarshalJSON(input []byte) error {
	switch string(input) {
	case "null", "\"default\"", "\"null\"":
		*f = Default
	case "false":
		*f = False
	case "true":
		*f = True
	default:
		return fmt.Errorf("failed to unmarshal %q into a flag: must be null/undefined, true, or false", string(input))
	}
	return nil
}

func (f Flag) String() string {
	switch f {
	case Default:
		return "default"
	case True:
		return "true"
	case False:
		return "false"
	default:
		return fmt.Sprintf("<invalid flag value %d>", f)
	}
}

var (
	_ json.Unmarshaler = (*Flag)(nil)
	_ json.Marshaler   = (*Flag)(nil)
)

// isDefaultJSON reports whether the raw value is one of the spellings users
// (and older tooling) write for "unset".
func isDefaultJSON(input []byte) bool {
	switch strings.TrimSpace(string(input)) {
	case "null", "\"null\"", "\"default\"", "\"\"":
		return true
	}
	return false
}

// OptionalDuration wraps time.Duration to provide json serialization and
// deserialization.
//
// NOTE: the zero value encodes to JSON null.
type OptionalDuration struct {
	value *time.Duration
}

// NewOptionalDuration returns an OptionalDuration from a string.
func NewOptionalDuration(d time.Duration) *OptionalDuration {
	return &OptionalDuration{value: &d}
}

func (d *OptionalDuration) UnmarshalJSON(input []byte) error {
	if isDefaultJSON(input) {
		d.value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(input, &s); err != nil {
		return fmt.Errorf("unable to parse duration %s: %w", input, err)
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("unable to parse duration %q: %w", s, err)
	}
	if dur < 0 {
		return fmt.Errorf("duration %q must not be negative", s)
	}
	d.value = &dur
	return nil
}

func (d *OptionalDuration) IsDefault() bool {
	return d == nil || d.value == nil
}

func (d *OptionalDuration) WithDefault(defaultValue time.Duration) time.Duration {
	if d.IsDefault() {
		return defaultValue
	}
	return *d.value
}

func (d OptionalDuration) MarshalJSON() ([]byte, error) {
	if d.value == nil {
		return json.Marshal(nil)
	}
	return json.Marshal(d.value.String())
}

func (d OptionalDuration) String() string {
	if d.value == nil {
		return "default"
	}
	return d.value.String()
}

var (
	_ json.Unmarshaler = (*OptionalDuration)(nil)
	_ json.Marshaler   = (*OptionalDuration)(nil)
)

// OptionalInteger represents an integer that has a default value
//
// When encoded in json, Default is encoded as "null".
type OptionalInteger struct {
	value *int64
}

// NewOptionalInteger returns an OptionalInteger from a int64.
func NewOptionalInteger(v int64) *OptionalInteger {
	return &OptionalInteger{value: &v}
}

// WithDefault resolves the integer with the given default.
func (p *OptionalInteger) WithDefault(defaultValue int64) int64 {
	if p.IsDefault() {
		return defaultValue
	}
	return *p.value
}

// IsDefault returns if this is a default optional integer.
func (p *OptionalInteger) IsDefault() bool {
	return p == nil || p.value == nil
}

func (p OptionalInteger) MarshalJSON() ([]byte, error) {
	if p.value != nil {
		return json.Marshal(p.value)
	}
	return json.Marshal(nil)
}

func (p *OptionalInteger) UnmarshalJSON(input []byte) error {
	switch string(input) {
	case "null", "\"null\"", "\"default\"":
		p.value = nil
		return nil
	}
	var value int64
	if err := json.Unmarshal(input, &value); err != nil {
		return err
	}
	p.value = &value
	return nil
}

func (p OptionalInteger) String() string {
	if p.value == nil {
		return "default"
	}
	return fmt.Sprintf("%d", *p.value)
}

var (
	_ json.Unmarshaler = (*OptionalInteger)(nil)
	_ json.Marshaler   = (*OptionalInteger)(nil)
)

// OptionalString represents a string that has a default value
//
// When encoded in json, Default is encoded as "null".
type OptionalString struct {
	value *string
}

// NewOptionalString returns an OptionalString from a string.
func NewOptionalString(s string) *OptionalString {
	return &OptionalString{value: &s}
}

// WithDefault resolves the string with the given default.
func (p *OptionalString) WithDefault(defaultValue string) string {
	if p.IsDefault() {
		return defaultValue
	}
	return *p.value
}

// IsDefault returns if this is a default optional string.
func (p *OptionalString) IsDefault() bool {
	return p == nil || p.value == nil
}

func (p OptionalString) MarshalJSON() ([]byte, error) {
	if p.value != nil {
		return json.Marshal(p.value)
	}
	return json.Marshal(nil)
}

func (p *OptionalString) UnmarshalJSON(input []byte) error {
	switch string(input) {
	case "null", "\"null\"", "\"default\"":
		p.value = nil
		return nil
	}
	var value string
	if err := json.Unmarshal(input, &value); err != nil {
		return err
	}
	p.value = &value
	return nil
}

func (p OptionalString) String() string {
	if p.value == nil {
		return "default"
	}
	return *p.value
}

var (
	_ json.Unmarshaler = (*OptionalString)(nil)
	_ json.Marshaler   = (*OptionalString)(nil)
)

// OptionalBytes is a byte size such as "256KiB" or "10GB". Bare JSON numbers
// are accepted and kept in string form.
type OptionalBytes struct {
	OptionalString
}

// NewOptionalBytes returns an OptionalBytes holding s. It does not validate s.
func NewOptionalBytes(s string) *OptionalBytes {
	return &OptionalBytes{OptionalString{value: &s}}
}

// WithDefault resolves the size in bytes. It panics if the stored value is
// not a byte size; UnmarshalJSON never stores such a value.
func (b *OptionalBytes) WithDefault(defaultValue uint64) uint64 {
	if b == nil || b.IsDefault() {
		return defaultValue
	}
	n, err := humanize.ParseBytes(*b.value)
	if err != nil {
		panic(fmt.Sprintf("invalid byte size %q: %s", *b.value, err))
	}
	return n
}

func (b *OptionalBytes) UnmarshalJSON(input []byte) error {
	switch string(input) {
	case "null", "\"null\"", "\"default\"":
		b.value = nil
		return nil
	}

	var s string
	if input[0] == '"' {
		if err := json.Unmarshal(input, &s); err != nil {
			return err
		}
	} else {
		var n uint64
		if err := json.Unmarshal(input, &n); err != nil {
			return fmt.Errorf("byte size must be a string or a number: %w", err)
		}
		s = fmt.Sprintf("%d", n)
	}
	if _, err := humanize.ParseBytes(s); err != nil {
		return fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	b.value = &s
	return nil
}

var _ json.Unmarshaler = (*OptionalBytes)(nil)

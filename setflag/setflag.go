// Package setflag is a flag.Value holding a set of strings picked from a
// fixed list, like -phases=discovery,refresh.
package setflag

import (
	"fmt"
	"strings"
)

func New(options ...string) *SetFlag {
	sf := &SetFlag{
		values:  make(map[string]struct{}, len(options)),
		options: options,
	}
	return sf
}

type SetFlag struct {
	options []string
	values  map[string]struct{}
}

// List returns the chosen values in the order the options were given.
func (sf *SetFlag) List() []string {
	var values []string
	for _, opt := range sf.options {
		if _, ok := sf.values[opt]; ok {
			values = append(values, opt)
		}
	}
	return values
}

func (sf *SetFlag) String() string {
	if sf == nil {
		return ""
	}
	return strings.Join(sf.List(), ",")
}

// Set adds a value, or a comma-separated list of them. It can be called more
// than once.
func (sf *SetFlag) Set(value string) error {
	for _, v := range strings.Split(value, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if !sf.valid(v) {
			return fmt.Errorf("unsupported value '%s'; expected one of %s", v, strings.Join(sf.options, ", "))
		}
		sf.values[v] = struct{}{}
	}
	return nil
}

func (sf *SetFlag) valid(v string) bool {
	for _, opt := range sf.options {
		if opt == v {
			return true
		}
	}
	return false
}

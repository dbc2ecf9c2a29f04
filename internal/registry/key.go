// Package registry holds named parameters for a model.
//
// Every parameter is addressed by a Key: the hierarchical path of the
// module that owns it plus the parameter's role within that module.
// Keys render as "module.path.param", the naming used by weight files.
package registry

import (
	"strconv"
	"strings"
)

// Param names a parameter's role within its module.
type Param string

// Parameter roles.
const (
	Weight Param = "weight"
	Bias   Param = "bias"
	BiasK  Param = "bias_k"
	BiasV  Param = "bias_v"
)

// Valid reports whether p is a known parameter role.
func (p Param) Valid() bool {
	switch p {
	case Weight, Bias, BiasK, BiasV:
		return true
	}
	return false
}

// Prefix is the dot-separated path of a module, e.g. "encoder.layers.0.ffn".
type Prefix string

// Join appends path segments to p.
func (p Prefix) Join(parts ...string) Prefix {
	var b strings.Builder
	b.WriteString(string(p))
	for _, part := range parts {
		if part == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(part)
	}
	return Prefix(b.String())
}

// Index appends a numeric path segment to p, as used for layer stacks.
func (p Prefix) Index(i int) Prefix {
	return p.Join(strconv.Itoa(i))
}

// Key returns the key of param within the module at p.
func (p Prefix) Key(param Param) Key {
	return Key{Module: p, Param: param}
}

// Key identifies a parameter.
type Key struct {
	Module Prefix
	Param  Param
}

// String renders the key as "module.param".
func (k Key) String() string {
	if k.Module == "" {
		return string(k.Param)
	}
	return string(k.Module) + "." + string(k.Param)
}

// ParseKey parses a "module.param" string. The parameter role must be known.
func ParseKey(s string) (Key, error) {
	i := strings.LastIndexByte(s, '.')
	if i <= 0 || i == len(s)-1 {
		return Key{}, &KeyError{Key: s, Err: ErrInvalidKey, Details: "expected module.param"}
	}

	k := Key{Module: Prefix(s[:i]), Param: Param(s[i+1:])}
	if !k.Param.Valid() {
		return Key{}, &KeyError{Key: s, Err: ErrInvalidKey, Details: "unknown parameter " + strconv.Quote(string(k.Param))}
	}
	return k, nil
}

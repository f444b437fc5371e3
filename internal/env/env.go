// Package env composes KEY=VALUE layers and expands ${VAR} references.
package env

import (
	"os"
	"strings"
)

type Var map[string]string

// FromOS returns the current process environment.
func FromOS() Var {
	return Parse(os.Environ())
}

// Parse reads "K=V" entries. Entries without '=' or with an empty key are
// skipped; later entries win.
func Parse(kvs []string) Var {
	m := make(Var, len(kvs))
	for _, kv := range kvs {
		if i := strings.IndexByte(kv, '='); i > 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	return m
}

// Merge returns a new map with every layer applied in order.
func Merge(layers ...Var) Var {
	m := make(Var)
	for _, l := range layers {
		for k, v := range l {
			if k == "" {
				continue
			}
			m[k] = v
		}
	}
	return m
}

// Expand replaces ${VAR} with its value in m. Unknown references are kept
// as is; expansion is not recursive.
func Expand(s string, m Var) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var b strings.Builder
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		j := strings.IndexByte(s[i+2:], '}')
		if j < 0 {
			b.WriteString(s)
			return b.String()
		}
		name := s[i+2 : i+2+j]
		b.WriteString(s[:i])
		if v, ok := m[name]; ok && name != "" {
			b.WriteString(v)
		} else {
			b.WriteString(s[i : i+3+j])
		}
		s = s[i+3+j:]
	}
}

// ExpandAll expands every element of ss.
func ExpandAll(ss []string, m Var) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = Expand(s, m)
	}
	return out
}

// Pairs renders m as "K=V" entries.
func (m Var) Pairs() []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	return out
}

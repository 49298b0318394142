// Package kv holds the list-of-pairs editing state used for labels,
// annotations, selectors, config data and container environment
// variables.
package kv

import (
	"sort"
	"strings"
)

// Entry is one row in a key-value editor.
type Entry struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// List is an ordered list of entries. Keys need not be unique while
// the list is being edited.
type List []Entry

// FromMap returns the entries of m, sorted by key so the result is
// stable.
func FromMap(m map[string]string) List {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	l := make(List, 0, len(keys))
	for _, k := range keys {
		l = append(l, Entry{Key: k, Value: m[k]})
	}
	return l
}

// Add appends a blank row.
func (l List) Add() List {
	return append(l, Entry{})
}

// Set replaces the row at index i. Out of range indices leave the
// list as it is.
func (l List) Set(i int, e Entry) List {
	if i < 0 || i >= len(l) {
		return l
	}
	out := make(List, len(l))
	copy(out, l)
	out[i] = e
	return out
}

// Remove drops the row at index i.
func (l List) Remove(i int) List {
	if i < 0 || i >= len(l) {
		return l
	}
	out := make(List, 0, len(l)-1)
	out = append(out, l[:i]...)
	return append(out, l[i+1:]...)
}

// Map collapses the list into a map. Rows with a blank key are
// skipped; a repeated key takes the value of its last row.
func (l List) Map() map[string]string {
	m := map[string]string{}
	for _, e := range l {
		if strings.TrimSpace(e.Key) == "" {
			continue
		}
		m[e.Key] = e.Value
	}
	return m
}

// EnvVar is the container environment form of an entry.
type EnvVar struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Env converts the list to environment variables, in list order,
// skipping rows with a blank key.
func (l List) Env() []EnvVar {
	var env []EnvVar
	for _, e := range l {
		if strings.TrimSpace(e.Key) == "" {
			continue
		}
		env = append(env, EnvVar{Name: e.Key, Value: e.Value})
	}
	return env
}

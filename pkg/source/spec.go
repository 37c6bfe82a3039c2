package source

import (
	"sort"
	"strings"
)

// SourceSpec is the canonical, structured description of where to obtain a
// source and at what version. Fields' keys exactly match the inputs declared
// by the fetcher registered for Kind.
//
// SourceSpecs are created by ConstructSource and TranslateShortcut and are
// never mutated in place; UpdateSource returns a fresh copy.
type SourceSpec struct {
	Kind   string
	Fields map[string]string
}

// Clone returns a deep copy of the spec.
func (s *SourceSpec) Clone() *SourceSpec {
	fields := make(map[string]string, len(s.Fields))
	for k, v := range s.Fields {
		fields[k] = v
	}
	return &SourceSpec{Kind: s.Kind, Fields: fields}
}

// Key returns a canonical string identity for the spec, used as the cache
// and in-flight dedup key. Fields are serialized in sorted order.
func (s *SourceSpec) Key() string {
	keys := make([]string, 0, len(s.Fields))
	for k := range s.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(s.Kind)
	for _, k := range keys {
		b.WriteByte(0)
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(s.Fields[k])
	}
	return b.String()
}

// Package lock reads and writes the dream.lock file: the persisted record
// of resolved sources and their content hashes.
package lock

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/baracoder/dream2nix/pkg/source"
)

// FileName is the default lock file name.
const FileName = "dream.lock"

// Reserved record keys; source field names must not collide with them.
const (
	kindKey = "type"
	hashKey = "hash"
)

type Lock struct {
	Generic Generic           `json:"generic"`
	Sources map[string]Source `json:"sources"`
}

type Generic struct {
	// SourcesCombinedHash is set instead of per-source hashes when the
	// lock is written in combined mode.
	SourcesCombinedHash string `json:"sourcesCombinedHash,omitempty"`
}

// Source is one locked source record. On the wire it is a flat JSON object
// holding the kind under "type", the content hash under "hash", and every
// source field at the top level, so a SourceSpec round-trips losslessly.
type Source struct {
	Kind   string
	Hash   string
	Fields map[string]string
}

// FromSpec builds a lock record from a resolved source spec and its hash.
func FromSpec(spec *source.SourceSpec, hash string) (Source, error) {
	for _, reserved := range []string{kindKey, hashKey} {
		if _, ok := spec.Fields[reserved]; ok {
			return Source{}, fmt.Errorf("source field %q collides with a reserved lock key", reserved)
		}
	}

	s := Source{Kind: spec.Kind, Hash: hash, Fields: make(map[string]string, len(spec.Fields))}
	for k, v := range spec.Fields {
		s.Fields[k] = v
	}
	return s, nil
}

// Spec converts the record back into a source spec.
func (s Source) Spec() *source.SourceSpec {
	fields := make(map[string]string, len(s.Fields))
	for k, v := range s.Fields {
		fields[k] = v
	}
	return &source.SourceSpec{Kind: s.Kind, Fields: fields}
}

func (s Source) MarshalJSON() ([]byte, error) {
	flat := make(map[string]string, len(s.Fields)+2)
	for k, v := range s.Fields {
		if k == kindKey || k == hashKey {
			return nil, fmt.Errorf("source field %q collides with a reserved lock key", k)
		}
		flat[k] = v
	}
	flat[kindKey] = s.Kind
	if s.Hash != "" {
		flat[hashKey] = s.Hash
	}
	return json.Marshal(flat)
}

func (s *Source) UnmarshalJSON(data []byte) error {
	flat := make(map[string]string)
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}

	s.Kind = flat[kindKey]
	if s.Kind == "" {
		return fmt.Errorf("source record is missing %q", kindKey)
	}
	s.Hash = flat[hashKey]
	delete(flat, kindKey)
	delete(flat, hashKey)
	s.Fields = flat
	return nil
}

// StripHashes removes every per-source hash, e.g. before computing a
// combined hash over all sources.
func (l *Lock) StripHashes() {
	for name, src := range l.Sources {
		src.Hash = ""
		l.Sources[name] = src
	}
}

// Load reads a lock file. A missing file yields an empty lock.
func Load(path string) (*Lock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Lock{Sources: map[string]Source{}}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	l := &Lock{}
	if err := json.Unmarshal(data, l); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if l.Sources == nil {
		l.Sources = map[string]Source{}
	}
	return l, nil
}

// Save writes the lock file with stable formatting. Map keys marshal in
// sorted order, so output is deterministic.
func Save(path string, l *Lock) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling lock: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

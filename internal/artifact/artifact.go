// Package artifact reads and writes the immutable per-invocation record
// files that back the cache. One file holds one invocation's full record:
// identity, arguments, result payload, timestamp, metadata, and whether the
// invocation may satisfy future cache lookups.
//
// Artifact files are append-created and never mutated. They are the durable
// source of truth: the index can always be rebuilt by scanning them.
package artifact

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/cachelog/internal/key"
)

// Version identifies the record format. Stored in every artifact so future
// readers can detect old records.
const Version = "0.1"

// Record is the full content of one artifact file.
type Record struct {
	// Key is the identity of the computation (see internal/key).
	Key string `json:"cache_key"`

	// Function is the logical name the identity was derived from.
	Function string `json:"function"`

	// Args is the argument set the identity was derived from.
	Args map[string]any `json:"arguments"`

	// Result is the opaque payload produced by the computation.
	Result []byte `json:"results"`

	// Timestamp is when the invocation ran, nanoseconds since the epoch.
	Timestamp int64 `json:"timestamp"`

	// Metadata is caller-supplied and used only for later filtering.
	Metadata map[string]any `json:"metadata,omitempty"`

	// CacheEligible marks whether this record may answer cache lookups,
	// as opposed to being a write-only log entry.
	CacheEligible bool `json:"is_cache_hit"`

	// Version is the record format version.
	Version string `json:"cachelog_version"`

	// GitHash records code provenance when the worktree was committed.
	GitHash string `json:"git_hash,omitempty"`
}

// Store reads and writes artifact files under root/scope directories.
type Store struct {
	root string
}

// NewStore returns a Store rooted at the given cache directory.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// ScopeDir returns the directory holding a scope's artifacts and index.
func (s *Store) ScopeDir(scope string) string {
	return filepath.Join(s.root, scope)
}

// EnsureScope creates the scope directory if it does not exist.
func (s *Store) EnsureScope(scope string) error {
	if err := os.MkdirAll(s.ScopeDir(scope), 0o755); err != nil {
		return fmt.Errorf("artifact: create scope dir: %w", err)
	}
	return nil
}

// Write creates the artifact file for rec and returns its file name. The
// name is derived from the record's key and timestamp, and creation is
// exclusive: artifacts are immutable, so an existing file is never
// overwritten.
func (s *Store) Write(scope string, rec Record) (string, error) {
	if rec.Version == "" {
		rec.Version = Version
	}
	name := key.ArtifactName(rec.Key, rec.Timestamp)

	raw, err := marshalRecord(rec)
	if err != nil {
		return "", err
	}

	f, err := os.OpenFile(filepath.Join(s.ScopeDir(scope), name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("artifact: create %s: %w", name, err)
	}
	defer f.Close()

	if _, err := f.Write(raw); err != nil {
		return "", fmt.Errorf("artifact: write %s: %w", name, err)
	}
	return name, nil
}

// Read parses the named artifact file. Argument values decode via
// json.Number so identities recomputed from them match the originals.
func (s *Store) Read(scope, fileName string) (Record, error) {
	raw, err := os.ReadFile(filepath.Join(s.ScopeDir(scope), fileName))
	if err != nil {
		return Record{}, fmt.Errorf("artifact: read %s: %w", fileName, err)
	}
	return unmarshalRecord(raw)
}

// Result materializes just the stored payload of the named artifact.
func (s *Store) Result(scope, fileName string) ([]byte, error) {
	rec, err := s.Read(scope, fileName)
	if err != nil {
		return nil, err
	}
	return rec.Result, nil
}

// Scan enumerates the artifact file names in a scope, in lexical order.
// Only files carrying the artifact extension are candidates; the index file
// and lock directory are never touched. A missing scope directory yields an
// empty listing.
func (s *Store) Scan(scope string) ([]string, error) {
	entries, err := os.ReadDir(s.ScopeDir(scope))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("artifact: scan scope %q: %w", scope, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), key.Extension) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// marshalRecord serializes with HTML escaping off so stored text matches
// its source bytes.
func marshalRecord(rec Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return nil, fmt.Errorf("artifact: marshal record: %w", err)
	}
	return buf.Bytes(), nil
}

func unmarshalRecord(raw []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return Record{}, fmt.Errorf("artifact: parse record: %w", err)
	}
	return rec, nil
}

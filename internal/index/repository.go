package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/cachelog/internal/lease"
)

// LockDirName is the subdirectory of a scope holding lease tickets.
const LockDirName = ".locks"

// Repository loads, saves, and mutates the persisted index for scopes under
// one cache root. All mutation goes through Fold; Load and Save are exposed
// for callers that manage the lease hold themselves (such as rebuild).
type Repository struct {
	root   string
	leases *lease.Manager
}

// NewRepository returns a Repository over the given cache root, coordinating
// through the given lease manager.
func NewRepository(root string, leases *lease.Manager) *Repository {
	return &Repository{root: root, leases: leases}
}

// LockDir returns the lock directory arbitrating a scope's index lease.
func (r *Repository) LockDir(scope string) string {
	return filepath.Join(r.root, scope, LockDirName)
}

func (r *Repository) indexPath(scope string) string {
	return filepath.Join(r.root, scope, FileName)
}

// requireLease asserts the hold precondition for Load and Save.
func (r *Repository) requireLease(op, scope string) error {
	held, err := r.leases.HeldByUs(r.LockDir(scope))
	if err != nil {
		return fmt.Errorf("index: %s: %w", op, err)
	}
	if !held {
		return fmt.Errorf("index: %s scope %q: %w", op, scope, lease.ErrNotHeld)
	}
	return nil
}

// Load returns the current index for a scope. The caller must hold the
// scope's index lease. A missing or unparsable index file self-heals: Load
// persists and returns a fresh empty index instead of failing, trading a
// silent cache cold start for availability.
func (r *Repository) Load(scope string) (*Index, error) {
	if err := r.requireLease("load", scope); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(r.root, scope), 0o755); err != nil {
		return nil, fmt.Errorf("index: create scope dir: %w", err)
	}

	raw, err := os.ReadFile(r.indexPath(scope))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("unreadable index file, reinitializing", "scope", scope, "error", err)
		}
		return r.reinitialize(scope)
	}

	ix := New()
	if err := json.Unmarshal(raw, ix); err != nil {
		slog.Warn("corrupt index file, reinitializing", "scope", scope, "error", err)
		return r.reinitialize(scope)
	}
	if ix.Entries == nil {
		ix.Entries = make(map[string]*Entry)
	}
	if ix.Calls == nil {
		ix.Calls = make(map[string][]CallRecord)
	}
	return ix, nil
}

func (r *Repository) reinitialize(scope string) (*Index, error) {
	ix := New()
	if err := r.Save(ix, scope); err != nil {
		return nil, err
	}
	return ix, nil
}

// Save persists the index for a scope. The caller must hold the scope's
// index lease. The file is written to a temp name and renamed into place so
// readers never observe a truncated index.
func (r *Repository) Save(ix *Index, scope string) error {
	if err := r.requireLease("save", scope); err != nil {
		return err
	}

	raw, err := marshalIndex(ix)
	if err != nil {
		return err
	}

	path := r.indexPath(scope)
	tmp, err := os.CreateTemp(filepath.Dir(path), FileName+".tmp.*")
	if err != nil {
		return fmt.Errorf("index: create temp file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("index: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("index: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("index: replace index file: %w", err)
	}
	return nil
}

// Fold atomically merges one completed invocation into a scope's index:
// acquire the lease, load, apply, save, release. This is the unit of
// mutation; concurrent folds apply in lease acquisition order.
func (r *Repository) Fold(ctx context.Context, scope string, f Fold) error {
	lockDir := r.LockDir(scope)
	if err := r.leases.Acquire(ctx, lockDir); err != nil {
		return err
	}
	defer r.leases.Release(lockDir)

	ix, err := r.Load(scope)
	if err != nil {
		return err
	}
	ix.Apply(f)
	if err := r.Save(ix, scope); err != nil {
		return err
	}
	slog.Debug("fold applied",
		"scope", scope,
		"identity", f.Identity,
		"file", f.FileName,
		"eligible", f.CacheEligible)
	return nil
}

// Lookup returns the cache artifact file name for an identity, with ok
// false when the identity has no entry or no cache-eligible artifact. The
// lease is held only for the index read.
func (r *Repository) Lookup(ctx context.Context, scope, identity string) (string, bool, error) {
	var file string
	err := r.withLease(ctx, scope, func(ix *Index) {
		if e, ok := ix.Entries[identity]; ok {
			file = e.CacheFile
		}
	})
	if err != nil {
		return "", false, err
	}
	return file, file != "", nil
}

// LogEntries returns a copy of the historical log entries for an identity,
// in fold order. Filtering is the caller's business and happens outside the
// lease.
func (r *Repository) LogEntries(ctx context.Context, scope, identity string) ([]LogEntry, error) {
	var entries []LogEntry
	err := r.withLease(ctx, scope, func(ix *Index) {
		if e, ok := ix.Entries[identity]; ok {
			entries = append([]LogEntry(nil), e.LogEntries...)
		}
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// LoggedCalls returns a copy of the per-function call log for a function
// name, in fold order.
func (r *Repository) LoggedCalls(ctx context.Context, scope, function string) ([]CallRecord, error) {
	var calls []CallRecord
	err := r.withLease(ctx, scope, func(ix *Index) {
		calls = append([]CallRecord(nil), ix.Calls[function]...)
	})
	if err != nil {
		return nil, err
	}
	return calls, nil
}

// withLease runs a read against the loaded index under the scope's lease.
func (r *Repository) withLease(ctx context.Context, scope string, read func(*Index)) error {
	lockDir := r.LockDir(scope)
	if err := r.leases.Acquire(ctx, lockDir); err != nil {
		return err
	}
	defer r.leases.Release(lockDir)

	ix, err := r.Load(scope)
	if err != nil {
		return err
	}
	read(ix)
	return nil
}

// marshalIndex serializes deterministically: map keys sort, HTML escaping is
// off, output is indented with a trailing newline. Rebuilding the same
// artifact set twice yields byte-identical files.
func marshalIndex(ix *Index) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ix); err != nil {
		return nil, fmt.Errorf("index: marshal: %w", err)
	}
	return buf.Bytes(), nil
}

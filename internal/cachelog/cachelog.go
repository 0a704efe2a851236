// Package cachelog is the collaborator-facing surface of the store: memoize
// deterministic computations on disk, keep a permanent log of every
// invocation tagged with caller metadata, and recover the index from raw
// artifacts after corruption.
//
// Results are opaque byte payloads. A computation is identified by its
// function name and argument set; invocations sharing an identity are "the
// same cached computation". Multiple independent processes may share one
// cache root concurrently; all index access serializes through a per-scope
// filesystem lease.
package cachelog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/cachelog/internal/artifact"
	"github.com/roach88/cachelog/internal/gitinfo"
	"github.com/roach88/cachelog/internal/index"
	"github.com/roach88/cachelog/internal/key"
	"github.com/roach88/cachelog/internal/lease"
)

// Func is a deterministic computation whose result can be memoized. The
// payload it returns is stored verbatim and returned verbatim on cache hits;
// side effects are not replayed.
type Func func(ctx context.Context, args map[string]any) ([]byte, error)

// Store memoizes and logs computations under one cache root.
type Store struct {
	cfg       Config
	artifacts *artifact.Store
	repo      *index.Repository
}

// New creates a Store for cfg. Each Store is an independent lease holder;
// two Stores over the same root arbitrate like separate processes.
func New(cfg Config) *Store {
	if cfg.Root == "" {
		cfg.Root = DefaultConfig().Root
	}
	leases := lease.NewManager(cfg.Lease)
	return &Store{
		cfg:       cfg,
		artifacts: artifact.NewStore(cfg.Root),
		repo:      index.NewRepository(cfg.Root, leases),
	}
}

// scopeOr resolves the documented fallback: scope "" means the configured
// default scope.
func (s *Store) scopeOr(scope string) string {
	if scope == "" {
		return s.cfg.Scope
	}
	return scope
}

// Cache returns the memoized result of function(args) if one exists,
// otherwise runs fn, stores the result as a cache-eligible artifact, folds
// it into the index, and returns it.
func (s *Store) Cache(ctx context.Context, scope, function string, fn Func, args, metadata map[string]any) ([]byte, error) {
	payload, hit, err := s.Lookup(ctx, scope, function, args)
	if err != nil {
		return nil, err
	}
	if hit {
		return payload, nil
	}
	return s.Log(ctx, scope, function, fn, args, metadata, true)
}

// Log always runs fn and records the invocation: the full record lands in
// an immutable artifact file, and the index gains a log entry. When
// cacheEligible is true the new record also competes for the cache slot
// under the latest-eligible-timestamp-wins rule.
func (s *Store) Log(ctx context.Context, scope, function string, fn Func, args, metadata map[string]any, cacheEligible bool) ([]byte, error) {
	scope = s.scopeOr(scope)
	if s.cfg.RequireCommitted {
		if err := gitinfo.RequireCommitted(s.cfg.GitDir); err != nil {
			return nil, err
		}
	}
	if err := s.artifacts.EnsureScope(scope); err != nil {
		return nil, err
	}

	result, err := fn(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("cachelog: computation %q: %w", function, err)
	}

	identity := key.ForCall(function, args)
	timestamp := key.Timestamp()
	fileName, err := s.artifacts.Write(scope, artifact.Record{
		Key:           identity,
		Function:      function,
		Args:          args,
		Result:        result,
		Timestamp:     timestamp,
		Metadata:      metadata,
		CacheEligible: cacheEligible,
		GitHash:       gitinfo.Capture(s.cfg.GitDir),
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.Fold(ctx, scope, index.Fold{
		Identity:      identity,
		Function:      function,
		Args:          args,
		FileName:      fileName,
		Timestamp:     timestamp,
		Metadata:      metadata,
		CacheEligible: cacheEligible,
	}); err != nil {
		return nil, err
	}
	return result, nil
}

// Lookup returns the cached payload for function(args), with hit false when
// no cache-eligible record exists. The index read happens under the scope's
// lease; materializing the artifact happens after release. A cache artifact
// that has since been removed (external garbage collection) degrades to a
// miss.
func (s *Store) Lookup(ctx context.Context, scope, function string, args map[string]any) ([]byte, bool, error) {
	scope = s.scopeOr(scope)
	identity := key.ForCall(function, args)

	fileName, ok, err := s.repo.Lookup(ctx, scope, identity)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	payload, err := s.artifacts.Result(scope, fileName)
	if err != nil {
		slog.Warn("cache artifact unreadable, treating as miss",
			"scope", scope, "identity", identity, "file", fileName, "error", err)
		return nil, false, nil
	}
	return payload, true, nil
}

// ListLogEntries returns the historical log entries for function(args) in
// fold order. The filter, when non-nil, is applied after the lease is
// released.
func (s *Store) ListLogEntries(ctx context.Context, scope, function string, args map[string]any, filter func(index.LogEntry) bool) ([]index.LogEntry, error) {
	scope = s.scopeOr(scope)
	entries, err := s.repo.LogEntries(ctx, scope, key.ForCall(function, args))
	if err != nil {
		return nil, err
	}
	if filter == nil {
		return entries, nil
	}
	kept := entries[:0]
	for _, e := range entries {
		if filter(e) {
			kept = append(kept, e)
		}
	}
	return kept, nil
}

// LoggedCalls returns every recorded invocation of a function across all
// argument sets, in fold order.
func (s *Store) LoggedCalls(ctx context.Context, scope, function string) ([]index.CallRecord, error) {
	return s.repo.LoggedCalls(ctx, s.scopeOr(scope), function)
}

// Result materializes the payload of a named artifact file.
func (s *Store) Result(scope, fileName string) ([]byte, error) {
	return s.artifacts.Result(s.scopeOr(scope), fileName)
}

// Rebuild reconstructs a scope's index from its artifact files. See
// index.Repository.Rebuild for the safety caveats.
func (s *Store) Rebuild(ctx context.Context, scope string) (index.Report, error) {
	return s.repo.Rebuild(ctx, s.scopeOr(scope), s.artifacts)
}

// Cachify wraps fn so every call checks the cache first and stores misses,
// like Cache with the function name and scope bound up front.
func (s *Store) Cachify(scope, function string, fn Func) Func {
	return func(ctx context.Context, args map[string]any) ([]byte, error) {
		return s.Cache(ctx, scope, function, fn, args, nil)
	}
}

// Logify wraps fn so every call runs it and records the invocation. With
// cacheEligible true the record also competes for the cache slot.
func (s *Store) Logify(scope, function string, fn Func, cacheEligible bool) Func {
	return func(ctx context.Context, args map[string]any) ([]byte, error) {
		return s.Log(ctx, scope, function, fn, args, nil, cacheEligible)
	}
}

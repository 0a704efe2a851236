package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/cachelog/internal/artifact"
	"github.com/roach88/cachelog/internal/key"
)

// Skip records one artifact file excluded from a rebuild and why.
type Skip struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// Report is the per-file outcome of a rebuild.
type Report struct {
	Scanned int      `json:"scanned"`
	Kept    []string `json:"kept"`
	Skipped []Skip   `json:"skipped"`
}

// Rebuild discards the persisted index for a scope and reconstructs it by
// scanning every artifact file and replaying its embedded record through the
// same fold rule as live traffic. Files that fail to parse, or whose stored
// identity does not match the identity recomputed from their stored function
// and arguments, are skipped and reported; rebuild never aborts on partial
// corruption.
//
// The lease is held only around the final persist. Running rebuild while
// live folds are in flight is unsafe: folds that land between the scan and
// the persist are lost.
func (r *Repository) Rebuild(ctx context.Context, scope string, store *artifact.Store) (Report, error) {
	names, err := store.Scan(scope)
	if err != nil {
		return Report{}, fmt.Errorf("index: rebuild: %w", err)
	}

	report := Report{Scanned: len(names)}
	fresh := New()
	for _, name := range names {
		rec, err := store.Read(scope, name)
		if err != nil {
			report.Skipped = append(report.Skipped, Skip{File: name, Reason: fmt.Sprintf("unparsable: %v", err)})
			continue
		}
		if recomputed := key.ForCall(rec.Function, rec.Args); recomputed != rec.Key {
			report.Skipped = append(report.Skipped, Skip{
				File:   name,
				Reason: fmt.Sprintf("identity mismatch: stored %q, recomputed %q", rec.Key, recomputed),
			})
			continue
		}

		fresh.Apply(Fold{
			Identity:      rec.Key,
			Function:      rec.Function,
			Args:          rec.Args,
			FileName:      name,
			Timestamp:     rec.Timestamp,
			Metadata:      rec.Metadata,
			CacheEligible: rec.CacheEligible,
		})
		report.Kept = append(report.Kept, name)
	}

	lockDir := r.LockDir(scope)
	if err := r.leases.Acquire(ctx, lockDir); err != nil {
		return Report{}, err
	}
	defer r.leases.Release(lockDir)

	if err := r.Save(fresh, scope); err != nil {
		return Report{}, err
	}
	slog.Info("index rebuilt",
		"scope", scope,
		"scanned", report.Scanned,
		"kept", len(report.Kept),
		"skipped", len(report.Skipped))
	return report, nil
}

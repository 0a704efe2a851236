package cachelog

import (
	"context"
	"fmt"
)

// savedDataFunc is the synthetic function name under which titled data is
// logged. Saving is log-only: saved records never answer cache lookups, so
// repeated saves under one title accumulate instead of overwriting.
const savedDataFunc = "save_data"

// SavedRecord is one saved datum with the metadata and timestamp it was
// logged under.
type SavedRecord struct {
	Data      []byte
	Metadata  map[string]any
	Timestamp int64
}

func titleArgs(title string) map[string]any {
	return map[string]any{"title": title}
}

// Save stores data under a title. Each save is timestamped, so saving the
// same title many times keeps every version.
func (s *Store) Save(ctx context.Context, scope, title string, data []byte, metadata map[string]any) error {
	fn := func(context.Context, map[string]any) ([]byte, error) { return data, nil }
	_, err := s.Log(ctx, scope, savedDataFunc, fn, titleArgs(title), metadata, false)
	return err
}

// Get returns every datum saved under a title, oldest first, filtered by
// the caller's predicate over metadata and timestamp when non-nil.
func (s *Store) Get(ctx context.Context, scope, title string, filter func(SavedRecord) bool) ([]SavedRecord, error) {
	entries, err := s.ListLogEntries(ctx, scope, savedDataFunc, titleArgs(title), nil)
	if err != nil {
		return nil, err
	}

	var records []SavedRecord
	for _, e := range entries {
		data, err := s.Result(scope, e.FileName)
		if err != nil {
			return nil, fmt.Errorf("cachelog: materialize %s: %w", e.FileName, err)
		}
		rec := SavedRecord{Data: data, Metadata: e.Metadata, Timestamp: e.Timestamp}
		if filter == nil || filter(rec) {
			records = append(records, rec)
		}
	}
	return records, nil
}

// GetLast returns the most recently saved datum under a title that passes
// the filter, with ok false when nothing matches.
func (s *Store) GetLast(ctx context.Context, scope, title string, filter func(SavedRecord) bool) ([]byte, bool, error) {
	records, err := s.Get(ctx, scope, title, filter)
	if err != nil {
		return nil, false, err
	}

	var last SavedRecord
	found := false
	for _, r := range records {
		if !found || r.Timestamp > last.Timestamp {
			last = r
			found = true
		}
	}
	if !found {
		return nil, false, nil
	}
	return last.Data, true, nil
}

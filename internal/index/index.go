package index

// FileName is the name of the persisted index file within a scope.
const FileName = "cacheIndex"

// LogEntry records one historical invocation under an identity.
type LogEntry struct {
	FileName  string         `json:"file_name"`
	Timestamp int64          `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Entry is the index state for one identity: the artifact answering cache
// lookups (if any) and the ordered log of every invocation.
//
// Invariant: CacheFile names the log entry with the greatest timestamp among
// cache-eligible entries; CacheTime is that timestamp, or zero when no entry
// is eligible.
type Entry struct {
	CacheFile  string     `json:"cache_file,omitempty"`
	CacheTime  int64      `json:"cache_time"`
	LogEntries []LogEntry `json:"log_entries"`
}

// CallRecord is one invocation in the per-function call log.
type CallRecord struct {
	Arguments map[string]any `json:"arguments"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// Index maps identities to entries for one scope. Calls is a secondary
// per-function view: every invocation of a function, across all argument
// sets, in fold order.
type Index struct {
	Entries map[string]*Entry       `json:"entries"`
	Calls   map[string][]CallRecord `json:"calls"`
}

// New returns an empty index.
func New() *Index {
	return &Index{
		Entries: make(map[string]*Entry),
		Calls:   make(map[string][]CallRecord),
	}
}

// Fold is one completed invocation to be merged into the index.
type Fold struct {
	Identity      string
	Function      string
	Args          map[string]any
	FileName      string
	Timestamp     int64
	Metadata      map[string]any
	CacheEligible bool
}

// Apply merges one fold into the in-memory index: the log entry is appended
// unconditionally, and the cache artifact is replaced only when the fold is
// eligible and strictly newer than the current cache timestamp. Two folds
// with an identical timestamp leave the first applied one in place.
func (ix *Index) Apply(f Fold) {
	e, ok := ix.Entries[f.Identity]
	if !ok {
		e = &Entry{}
		ix.Entries[f.Identity] = e
	}

	e.LogEntries = append(e.LogEntries, LogEntry{
		FileName:  f.FileName,
		Timestamp: f.Timestamp,
		Metadata:  f.Metadata,
	})
	if f.CacheEligible && f.Timestamp > e.CacheTime {
		e.CacheFile = f.FileName
		e.CacheTime = f.Timestamp
	}

	if f.Function != "" {
		ix.Calls[f.Function] = append(ix.Calls[f.Function], CallRecord{
			Arguments: f.Args,
			Metadata:  f.Metadata,
			Timestamp: f.Timestamp,
		})
	}
}

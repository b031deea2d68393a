package ports

// SnapshotStore persists pipeline state between runs: the last seen row
// set per source (for semantic diffing) and the run ledger. Concurrent
// reads are safe; writes are serialized by the adapter.
//
// Crash safety: saves must be transactional. A crash mid-write must not
// corrupt previously committed state.
type SnapshotStore interface {
	// SaveSnapshot stores the raw-input hash and row set for a source,
	// replacing any prior snapshot for that source.
	SaveSnapshot(source, hash string, rows []Row) error

	// LoadSnapshot retrieves the last snapshot for a source.
	// ok is false when no snapshot exists (first run); that is not an error.
	LoadSnapshot(source string) (hash string, rows []Row, ok bool, err error)

	// SaveRun appends one entry to the run ledger.
	SaveRun(run Run) error

	// ListRuns returns the most recent runs, newest first.
	// limit <= 0 returns all.
	ListRuns(limit int) ([]Run, error)

	// DeleteSource removes the stored snapshot for a source. Deleting a
	// source that was never snapshotted is not an error.
	DeleteSource(source string) error

	// Close releases the underlying store. Safe to call multiple times.
	Close() error
}

// Watcher monitors a directory for newly downloaded registry exports and
// triggers a rebuild. The adapter (fsnotify) must filter out temp and
// partial files and debounce bursts before invoking onExport. Only one
// Watch call should be active at a time.
type Watcher interface {
	// Watch starts monitoring dir. onExport is called with the absolute
	// path of each settled export file. The callback may be invoked from
	// any goroutine. Returns an error if the directory doesn't exist.
	Watch(dir string, onExport func(path string)) error

	// Stop ends monitoring and releases all resources. After Stop returns,
	// no further onExport calls will fire. Safe to call multiple times.
	Stop() error
}

package bbolt

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kakiii/kmatch/internal/ports"
)

// newTestStore creates a temporary bbolt store for testing.
func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	store, err := NewStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, path
}

// makeTestRows creates a realistic register snapshot.
func makeTestRows() []ports.Row {
	return []ports.Row{
		{Organisation: "ASML Holding N.V.", Fields: map[string]string{
			"KvK number":        "17085815",
			"Registration date": "2013-08-01",
		}},
		{Organisation: "Heineken N.V.", Fields: map[string]string{
			"KvK number": "33011433",
		}},
		{Organisation: "Coöperatie Royal FloraHolland U.A."},
	}
}

func makeRun(id string, startedAt time.Time) ports.Run {
	return ports.Run{
		ID:         id,
		StartedAt:  startedAt,
		FinishedAt: startedAt.Add(3 * time.Second),
		Source:     "register",
		SourceHash: "9f86d081884c7d65",
		RowCount:   4123,
		Added:      12,
		Removed:    3,
		Modified:   1,
		Published:  true,
	}
}

func TestStore_SaveLoadSnapshot_Roundtrip(t *testing.T) {
	store, _ := newTestStore(t)
	original := makeTestRows()

	err := store.SaveSnapshot("register", "hash-1", original)
	require.NoError(t, err)

	hash, rows, ok, err := store.LoadSnapshot("register")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hash-1", hash)
	assert.Equal(t, original, rows)
}

func TestStore_LoadSnapshot_Missing(t *testing.T) {
	store, _ := newTestStore(t)

	hash, rows, ok, err := store.LoadSnapshot("never-saved")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, hash)
	assert.Nil(t, rows)
}

func TestStore_SaveSnapshot_Replaces(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.SaveSnapshot("register", "hash-1", makeTestRows()))
	require.NoError(t, store.SaveSnapshot("register", "hash-2", []ports.Row{
		{Organisation: "Philips International B.V."},
	}))

	hash, rows, ok, err := store.LoadSnapshot("register")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hash-2", hash)
	require.Len(t, rows, 1)
	assert.Equal(t, "Philips International B.V.", rows[0].Organisation)
}

func TestStore_SnapshotsSourceScoped(t *testing.T) {
	// The live register and a downloaded export are tracked separately;
	// one source's snapshot is invisible to the other.
	store, _ := newTestStore(t)

	require.NoError(t, store.SaveSnapshot("register", "hash-reg", makeTestRows()))
	require.NoError(t, store.SaveSnapshot("export:KMatch - 12_05_2025.xlsx", "hash-exp", []ports.Row{
		{Organisation: "Adyen N.V."},
	}))

	hash, rows, ok, err := store.LoadSnapshot("register")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hash-reg", hash)
	assert.Len(t, rows, 3)

	hash, rows, ok, err = store.LoadSnapshot("export:KMatch - 12_05_2025.xlsx")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hash-exp", hash)
	require.Len(t, rows, 1)
	assert.Equal(t, "Adyen N.V.", rows[0].Organisation)

	require.NoError(t, store.SaveSnapshot("empty", "hash-empty", nil))
	hash, rows, ok, err = store.LoadSnapshot("empty")
	require.NoError(t, err)
	assert.True(t, ok, "an empty row set is still a snapshot")
	assert.Equal(t, "hash-empty", hash)
	assert.Empty(t, rows)
}

func TestStore_SaveRun_RequiresID(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.SaveRun(ports.Run{Source: "register"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no id")
}

func TestStore_ListRuns_NewestFirst(t *testing.T) {
	store, _ := newTestStore(t)
	base := time.Date(2025, 5, 12, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveRun(makeRun("run-1", base)))
	require.NoError(t, store.SaveRun(makeRun("run-2", base.Add(1*time.Hour))))
	require.NoError(t, store.SaveRun(makeRun("run-3", base.Add(2*time.Hour))))

	runs, err := store.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-3", runs[0].ID)
	assert.Equal(t, "run-2", runs[1].ID)
	assert.Equal(t, "run-1", runs[2].ID)

	// Full fidelity on one entry.
	assert.Equal(t, makeRun("run-3", base.Add(2*time.Hour)), runs[0])

	limited, err := store.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "run-3", limited[0].ID)
}

func TestStore_ListRuns_SubSecondOrder(t *testing.T) {
	// Runs in the same second must still list newest first: the run key
	// uses fixed-width nanoseconds, not a trimmed format.
	store, _ := newTestStore(t)
	base := time.Date(2025, 5, 12, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveRun(makeRun("whole", base)))
	require.NoError(t, store.SaveRun(makeRun("mid", base.Add(100*time.Millisecond))))
	require.NoError(t, store.SaveRun(makeRun("late", base.Add(500*time.Millisecond))))

	runs, err := store.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "late", runs[0].ID)
	assert.Equal(t, "mid", runs[1].ID)
	assert.Equal(t, "whole", runs[2].ID)
}

func TestStore_StateSurvivesRestart(t *testing.T) {
	// Save, close, reopen, load. Simulates process restart.
	dir := t.TempDir()
	path := filepath.Join(dir, "restart.db")

	store1, err := NewStore(path)
	require.NoError(t, err)

	original := makeTestRows()
	require.NoError(t, store1.SaveSnapshot("register", "hash-1", original))
	require.NoError(t, store1.SaveRun(makeRun("run-1", time.Date(2025, 5, 12, 8, 0, 0, 0, time.UTC))))
	require.NoError(t, store1.Close())

	_, err = os.Stat(path)
	require.NoError(t, err)

	store2, err := NewStore(path)
	require.NoError(t, err)
	defer store2.Close()

	hash, rows, ok, err := store2.LoadSnapshot("register")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hash-1", hash)
	assert.Equal(t, original, rows)

	runs, err := store2.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
}

func TestStore_DeleteSource(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.SaveSnapshot("register", "hash-a", makeTestRows()))
	require.NoError(t, store.SaveSnapshot("export:a.xlsx", "hash-b", makeTestRows()))

	require.NoError(t, store.DeleteSource("register"))

	_, _, ok, err := store.LoadSnapshot("register")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, ok, err = store.LoadSnapshot("export:a.xlsx")
	require.NoError(t, err)
	assert.True(t, ok, "other sources unaffected")

	// Deleting a source that was never saved is idempotent.
	assert.NoError(t, store.DeleteSource("never-saved"))
}

func TestStore_ConcurrentReads(t *testing.T) {
	// bbolt supports concurrent readers, single writer.
	store, _ := newTestStore(t)
	require.NoError(t, store.SaveSnapshot("register", "hash-1", makeTestRows()))

	var wg sync.WaitGroup
	errs := make(chan error, 10)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, rows, ok, err := store.LoadSnapshot("register")
			if err != nil {
				errs <- err
				return
			}
			if !ok {
				errs <- fmt.Errorf("snapshot missing")
				return
			}
			if len(rows) != 3 {
				errs <- fmt.Errorf("expected 3 rows, got %d", len(rows))
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent read error: %v", err)
	}
}

func TestStore_LargeSnapshot_Performance(t *testing.T) {
	// A full register is ~4-5k rows; save and load must stay cheap.
	store, _ := newTestStore(t)

	rows := make([]ports.Row, 4500)
	for i := range rows {
		rows[i] = ports.Row{
			Organisation: fmt.Sprintf("Bedrijf %04d B.V.", i),
			Fields: map[string]string{
				"KvK number":        fmt.Sprintf("%08d", 10000000+i),
				"Registration date": "2022-01-15",
			},
		}
	}

	start := time.Now()
	err := store.SaveSnapshot("register", "hash-big", rows)
	saveTime := time.Since(start)
	require.NoError(t, err)

	start = time.Now()
	_, loaded, ok, err := store.LoadSnapshot("register")
	loadTime := time.Since(start)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, len(rows), len(loaded))
	assert.Less(t, saveTime, 200*time.Millisecond, "save took %v", saveTime) // generous for CI
	assert.Less(t, loadTime, 200*time.Millisecond, "load took %v", loadTime)

	t.Logf("Performance: save=%v load=%v rows=%d", saveTime, loadTime, len(rows))
}

func TestEncodeRows_Deterministic(t *testing.T) {
	rows := makeTestRows()

	a, err := encodeRows(rows)
	require.NoError(t, err)
	b, err := encodeRows(rows)
	require.NoError(t, err)
	assert.Equal(t, a, b, "field key sorting makes encoding stable")
}

func TestDecodeRows_Corrupt(t *testing.T) {
	blob, err := encodeRows(makeTestRows())
	require.NoError(t, err)

	// Any truncation point must error, never panic.
	for cut := 0; cut < len(blob); cut += 7 {
		_, err := decodeRows(blob[:cut])
		assert.Error(t, err, "cut at %d", cut)
	}

	// An inflated row count must not drive a huge allocation.
	bad := append([]byte(nil), blob...)
	bad[0], bad[1], bad[2], bad[3] = 0xFF, 0xFF, 0xFF, 0xFF
	_, err = decodeRows(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row count")
}

func TestStore_OpenTimeout_DoesNotHang(t *testing.T) {
	// When another handle holds the bbolt exclusive lock, a second open
	// times out in ~1 second instead of hanging.
	dir := t.TempDir()
	path := filepath.Join(dir, "locked.db")

	store1, err := NewStore(path)
	require.NoError(t, err)
	defer store1.Close()

	start := time.Now()
	store2, err := NewStore(path)
	elapsed := time.Since(start)

	require.Error(t, err, "second open should fail with lock timeout")
	assert.Nil(t, store2)
	assert.Contains(t, err.Error(), "timeout")
	assert.Contains(t, err.Error(), "bbolt open")
	assert.Less(t, elapsed, 3*time.Second, "should fail fast, not hang")
}

func TestStore_OpenAfterClose_Succeeds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "released.db")

	store1, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store1.SaveSnapshot("register", "hash-1", makeTestRows()))
	store1.Close()

	store2, err := NewStore(path)
	require.NoError(t, err, "open after close should succeed")
	defer store2.Close()

	_, rows, ok, err := store2.LoadSnapshot("register")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, rows, 3)
}

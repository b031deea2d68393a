package dataset

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/kakiii/kmatch/internal/domain/names"
)

// DefaultShardCeiling is the target upper bound for one shard file.
// Kept well under common static-hosting single-resource caps.
const DefaultShardCeiling = 3 << 20

const shardPrefix = "sponsors-dataset-part"

// Writer publishes dataset artifacts into a directory: the canonical
// file, the alphabetic shards plus manifest, and the legacy first-word
// grouping. Existing artifacts are copied to a timestamped backup before
// anything is overwritten; backups are never pruned. Any write failure
// is fatal for the run.
type Writer struct {
	Dir          string
	Version      string
	ShardCeiling int // target bytes per shard file
	ShardCount   int // fixed shard count; 0 derives one from ShardCeiling

	log *slog.Logger
}

// NewWriter returns a Writer publishing into dir.
func NewWriter(dir string, log *slog.Logger) *Writer {
	if log == nil {
		log = slog.Default()
	}
	return &Writer{
		Dir:          dir,
		Version:      "1.0.0",
		ShardCeiling: DefaultShardCeiling,
		log:          log,
	}
}

// WriteResult reports what one publish produced.
type WriteResult struct {
	ArtifactPath string
	ShardPaths   []string
	ManifestPath string
	LegacyPath   string
	BackupDir    string // empty on the first publish
}

// Write publishes the record set and its indexes. source names the raw
// input the set was built from and lands in artifact metadata.
func (w *Writer) Write(set *Set, idx *Indexes, source string) (*WriteResult, error) {
	if set == nil || set.Len() == 0 {
		return nil, fmt.Errorf("refusing to publish an empty dataset")
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	now := time.Now().UTC()
	res := &WriteResult{}

	backupDir, err := w.backupExisting(now)
	if err != nil {
		return nil, err
	}
	res.BackupDir = backupDir

	// Stale shard files from a previous, wider split must not survive a
	// narrower one.
	if err := w.removeOldShards(); err != nil {
		return nil, err
	}

	sponsors := make(map[string]*SponsorRecord, set.Len())
	for _, r := range set.Records() {
		sponsors[r.ID] = r
	}

	artifact := &Artifact{
		LastUpdated:   now,
		Version:       w.Version,
		TotalSponsors: set.Len(),
		SourceFile:    source,
		Sponsors:      sponsors,
		Index:         idx,
	}

	shardPaths, manifest, err := w.writeShards(set, source, now)
	if err != nil {
		return nil, err
	}
	res.ShardPaths = shardPaths

	manifestPath := filepath.Join(w.Dir, ManifestFile)
	if err := writeJSON(manifestPath, manifest, true); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	res.ManifestPath = manifestPath

	artifactPath := filepath.Join(w.Dir, ArtifactFile)
	if err := writeJSON(artifactPath, artifact, false); err != nil {
		return nil, fmt.Errorf("write artifact: %w", err)
	}
	res.ArtifactPath = artifactPath

	legacyPath := filepath.Join(w.Dir, LegacyFile)
	if err := writeJSON(legacyPath, legacyView(set, now), true); err != nil {
		return nil, fmt.Errorf("write legacy artifact: %w", err)
	}
	res.LegacyPath = legacyPath

	w.log.Info("dataset published",
		"records", set.Len(),
		"shards", len(shardPaths),
		"dir", w.Dir,
		"backup", backupDir)
	return res, nil
}

// writeShards sorts the records alphabetically, splits them into
// near-equal contiguous chunks and writes one file per chunk. The chunk
// union is exactly the record set.
func (w *Writer) writeShards(set *Set, source string, now time.Time) ([]string, *Manifest, error) {
	ordered := make([]*SponsorRecord, set.Len())
	copy(ordered, set.Records())
	sort.SliceStable(ordered, func(i, j int) bool {
		return sortKey(ordered[i].PrimaryName) < sortKey(ordered[j].PrimaryName)
	})

	chunks := splitChunks(ordered, w.shardTotal(ordered))

	manifest := &Manifest{Generated: now}
	paths := make([]string, 0, len(chunks))

	for i, chunk := range chunks {
		rng := RangeLabel(chunk[0].PrimaryName) + "-" + RangeLabel(chunk[len(chunk)-1].PrimaryName)

		sponsors := make(map[string]*SponsorRecord, len(chunk))
		for _, r := range chunk {
			sponsors[r.ID] = r
		}
		shard := &Shard{
			LastUpdated: now,
			Version:     w.Version,
			SourceFile:  source,
			SplitInfo: SplitInfo{
				Part:          i + 1,
				Of:            len(chunks),
				Range:         rng,
				OriginalTotal: set.Len(),
			},
			Sponsors: sponsors,
		}

		name := shardPrefix + strconv.Itoa(i+1) + ".json"
		path := filepath.Join(w.Dir, name)
		if err := writeJSON(path, shard, false); err != nil {
			return nil, nil, fmt.Errorf("write shard %d: %w", i+1, err)
		}
		paths = append(paths, path)
		manifest.Files = append(manifest.Files, ManifestEntry{File: name, Range: rng, Count: len(chunk)})
	}
	return paths, manifest, nil
}

// shardTotal decides how many shards to cut. A fixed ShardCount wins;
// otherwise the serialized size estimate is divided by the ceiling.
func (w *Writer) shardTotal(ordered []*SponsorRecord) int {
	k := w.ShardCount
	if k <= 0 {
		ceiling := w.ShardCeiling
		if ceiling <= 0 {
			ceiling = DefaultShardCeiling
		}
		var total int
		for _, r := range ordered {
			b, err := json.Marshal(r)
			if err != nil {
				continue
			}
			total += len(b)
		}
		k = (total + ceiling - 1) / ceiling
	}
	if k < 1 {
		k = 1
	}
	if k > len(ordered) {
		k = len(ordered)
	}
	return k
}

// splitChunks cuts ordered into k contiguous chunks whose sizes differ
// by at most one record.
func splitChunks(ordered []*SponsorRecord, k int) [][]*SponsorRecord {
	n := len(ordered)
	base, rem := n/k, n%k

	chunks := make([][]*SponsorRecord, 0, k)
	start := 0
	for i := 0; i < k; i++ {
		size := base
		if i < rem {
			size++
		}
		if size == 0 {
			continue
		}
		chunks = append(chunks, ordered[start:start+size])
		start += size
	}
	return chunks
}

// backupExisting copies every current artifact file into a fresh
// timestamped directory under backups/. Returns "" when there is
// nothing to back up.
func (w *Writer) backupExisting(now time.Time) (string, error) {
	existing, err := w.artifactFiles()
	if err != nil {
		return "", err
	}
	if len(existing) == 0 {
		return "", nil
	}

	stamp := now.Format("20060102-150405")
	dir := filepath.Join(w.Dir, "backups", stamp)
	for n := 2; ; n++ {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			break
		}
		dir = filepath.Join(w.Dir, "backups", stamp+"-"+strconv.Itoa(n))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	for _, src := range existing {
		data, err := os.ReadFile(src)
		if err != nil {
			return "", fmt.Errorf("back up %s: %w", src, err)
		}
		dst := filepath.Join(dir, filepath.Base(src))
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return "", fmt.Errorf("back up %s: %w", src, err)
		}
	}
	w.log.Info("backed up previous artifacts", "files", len(existing), "dir", dir)
	return dir, nil
}

// artifactFiles lists the artifact files currently present in Dir.
func (w *Writer) artifactFiles() ([]string, error) {
	var files []string
	for _, name := range []string{ArtifactFile, ManifestFile, LegacyFile} {
		p := filepath.Join(w.Dir, name)
		if _, err := os.Stat(p); err == nil {
			files = append(files, p)
		}
	}
	parts, err := filepath.Glob(filepath.Join(w.Dir, shardPrefix+"*.json"))
	if err != nil {
		return nil, err
	}
	return append(files, parts...), nil
}

func (w *Writer) removeOldShards() error {
	parts, err := filepath.Glob(filepath.Join(w.Dir, shardPrefix+"*.json"))
	if err != nil {
		return err
	}
	for _, p := range parts {
		if err := os.Remove(p); err != nil {
			return fmt.Errorf("remove stale shard %s: %w", p, err)
		}
	}
	return nil
}

// sortKey orders records for sharding: lowercased and accent-folded so
// the split is stable across spelling variants.
func sortKey(name string) string {
	return strings.ToLower(names.Fold(name))
}

// RangeLabel is the single uppercase character a name files under.
func RangeLabel(name string) string {
	for _, r := range strings.TrimSpace(names.Fold(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return string(unicode.ToUpper(r))
		}
	}
	return "#"
}

// writeJSON marshals v and writes it atomically: temp file in the target
// directory, then rename.
func writeJSON(path string, v any, indent bool) error {
	var (
		data []byte
		err  error
	)
	if indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".kmatch-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

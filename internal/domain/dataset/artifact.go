package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Default artifact file names inside the data directory.
const (
	ArtifactFile = "sponsors-dataset.json"
	ManifestFile = "sponsors-manifest.json"
	LegacyFile   = "sponsors.json"
)

// Artifact is the canonical serialized dataset: every record plus the
// prebuilt indexes and provenance metadata. Consumers either load it
// whole or dispatch to shards via the manifest.
type Artifact struct {
	LastUpdated   time.Time                 `json:"lastUpdated"`
	Version       string                    `json:"version"`
	TotalSponsors int                       `json:"totalSponsors"`
	SourceFile    string                    `json:"sourceFile"`
	Sponsors      map[string]*SponsorRecord `json:"sponsors"`
	Index         *Indexes                  `json:"index,omitempty"`
}

// Indexes are the inverted lookup structures over a record set.
// ByNormalizedName and ByDomain map to exactly one id (first write
// wins); ByFirstWord and BySearchToken are append-only posting lists in
// ingestion order.
type Indexes struct {
	ByFirstWord      map[string][]string `json:"byFirstWord"`
	ByNormalizedName map[string]string   `json:"byNormalizedName"`
	BySearchToken    map[string][]string `json:"bySearchToken"`
	ByDomain         map[string]string   `json:"byDomain,omitempty"`
}

// NewIndexes returns empty index maps ready to fill.
func NewIndexes() *Indexes {
	return &Indexes{
		ByFirstWord:      make(map[string][]string),
		ByNormalizedName: make(map[string]string),
		BySearchToken:    make(map[string][]string),
		ByDomain:         make(map[string]string),
	}
}

// SplitInfo tags a shard with its position in the sharded artifact.
type SplitInfo struct {
	Part          int    `json:"part"`
	Of            int    `json:"of"`
	Range         string `json:"range"`
	OriginalTotal int    `json:"originalTotal"`
}

// Shard is one alphabetic partition of the dataset.
type Shard struct {
	LastUpdated time.Time                 `json:"lastUpdated"`
	Version     string                    `json:"version"`
	SourceFile  string                    `json:"sourceFile"`
	SplitInfo   SplitInfo                 `json:"splitInfo"`
	Sponsors    map[string]*SponsorRecord `json:"sponsors"`
}

// ManifestEntry locates one shard file and its range.
type ManifestEntry struct {
	File  string `json:"file"`
	Range string `json:"range"`
	Count int    `json:"count"`
}

// Manifest lists every shard of a sharded artifact.
type Manifest struct {
	Generated time.Time       `json:"generated"`
	Files     []ManifestEntry `json:"files"`
}

// ReadArtifact loads and decodes a canonical artifact file.
func ReadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", path, err)
	}
	if a.Sponsors == nil {
		return nil, fmt.Errorf("artifact %s has no sponsors", path)
	}
	return &a, nil
}

// ReadShard loads and decodes one shard file.
func ReadShard(path string) (*Shard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read shard: %w", err)
	}
	var s Shard
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode shard %s: %w", path, err)
	}
	return &s, nil
}

// ReadManifest loads and decodes a shard manifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return &m, nil
}

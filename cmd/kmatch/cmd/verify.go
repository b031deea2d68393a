package cmd

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kakiii/kmatch/internal/domain/dataset"
	"github.com/kakiii/kmatch/internal/domain/names"
)

var verifyDir string

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify published artifact integrity",
	Long:  "Checks that the shard union equals the dataset, manifest counts are\naccurate, shard ranges hold and every index entry points at a record.",
	RunE:  runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyDir, "dir", "", "Data directory to verify (default: configured data dir)")
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dir := verifyDir
	if dir == "" {
		dir = cfg.Data.Dir
	}

	summary, problems, err := verifyArtifacts(dir)
	if err != nil {
		return err
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		for _, p := range problems {
			fmt.Printf("⚠ %s\n", p)
		}
		return fmt.Errorf("verify failed with %d problem(s)", len(problems))
	}

	fmt.Printf("⚡ verify passed │ %s\n", summary)
	return nil
}

// verifyArtifacts cross-checks the canonical artifact, the shards and
// the legacy file in dir. The error covers unreadable base files; every
// integrity violation becomes one problem string.
func verifyArtifacts(dir string) (summary string, problems []string, err error) {
	artifact, err := dataset.ReadArtifact(filepath.Join(dir, dataset.ArtifactFile))
	if err != nil {
		return "", nil, err
	}
	manifest, err := dataset.ReadManifest(filepath.Join(dir, dataset.ManifestFile))
	if err != nil {
		return "", nil, err
	}

	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if artifact.TotalSponsors != len(artifact.Sponsors) {
		addf("artifact declares %d sponsors but carries %d", artifact.TotalSponsors, len(artifact.Sponsors))
	}

	union := make(map[string]string, len(artifact.Sponsors)) // record id -> shard file
	for i, entry := range manifest.Files {
		shard, err := dataset.ReadShard(filepath.Join(dir, entry.File))
		if err != nil {
			addf("%v", err)
			continue
		}
		if len(shard.Sponsors) != entry.Count {
			addf("%s: manifest declares %d records, shard carries %d", entry.File, entry.Count, len(shard.Sponsors))
		}
		if shard.SplitInfo.Part != i+1 || shard.SplitInfo.Of != len(manifest.Files) {
			addf("%s: split info says part %d of %d, manifest says part %d of %d",
				entry.File, shard.SplitInfo.Part, shard.SplitInfo.Of, i+1, len(manifest.Files))
		}
		if shard.SplitInfo.Range != entry.Range {
			addf("%s: shard range %q does not match manifest range %q", entry.File, shard.SplitInfo.Range, entry.Range)
		}
		if shard.SplitInfo.OriginalTotal != artifact.TotalSponsors {
			addf("%s: original total %d does not match dataset total %d", entry.File, shard.SplitInfo.OriginalTotal, artifact.TotalSponsors)
		}
		if rng := shardRange(shard); rng != "" && rng != shard.SplitInfo.Range {
			addf("%s: members span %s, split info says %s", entry.File, rng, shard.SplitInfo.Range)
		}

		for id, rec := range shard.Sponsors {
			if prev, dup := union[id]; dup {
				addf("record %s appears in both %s and %s", id, prev, entry.File)
				continue
			}
			union[id] = entry.File

			master, ok := artifact.Sponsors[id]
			switch {
			case !ok:
				addf("%s: record %s is not in the dataset", entry.File, id)
			case master.PrimaryName != rec.PrimaryName:
				addf("%s: record %s name %q differs from dataset name %q", entry.File, id, rec.PrimaryName, master.PrimaryName)
			}
		}
	}
	for id, rec := range artifact.Sponsors {
		if _, ok := union[id]; !ok {
			addf("record %s (%s) is in no shard", id, rec.PrimaryName)
		}
	}

	if artifact.Index == nil {
		addf("artifact has no index")
	} else {
		problems = append(problems, indexProblems(artifact)...)
	}

	if legacyNames, err := dataset.ReadLegacy(filepath.Join(dir, dataset.LegacyFile)); err != nil {
		addf("%v", err)
	} else if len(legacyNames) != len(artifact.Sponsors) {
		addf("legacy artifact carries %d names, dataset %d", len(legacyNames), len(artifact.Sponsors))
	}

	summary = fmt.Sprintf("%d records │ %d shards │ version %s",
		len(artifact.Sponsors), len(manifest.Files), artifact.Version)
	return summary, problems, nil
}

// shardRange recomputes the range label a shard's members actually span.
func shardRange(s *dataset.Shard) string {
	var lo, hi, loKey, hiKey string
	first := true
	for _, rec := range s.Sponsors {
		key := strings.ToLower(names.Fold(rec.PrimaryName))
		if first || key < loKey {
			lo, loKey = rec.PrimaryName, key
		}
		if first || key > hiKey {
			hi, hiKey = rec.PrimaryName, key
		}
		first = false
	}
	if first {
		return ""
	}
	return dataset.RangeLabel(lo) + "-" + dataset.RangeLabel(hi)
}

// indexProblems checks that every index entry resolves to a record and
// every record is reachable through its normalized name.
func indexProblems(a *dataset.Artifact) []string {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}
	checkID := func(kind, key, id string) {
		if _, ok := a.Sponsors[id]; !ok {
			addf("index %s[%q] points at missing record %s", kind, key, id)
		}
	}

	idx := a.Index
	for key, id := range idx.ByNormalizedName {
		checkID("byNormalizedName", key, id)
	}
	for key, ids := range idx.ByFirstWord {
		for _, id := range ids {
			checkID("byFirstWord", key, id)
		}
	}
	for key, ids := range idx.BySearchToken {
		for _, id := range ids {
			checkID("bySearchToken", key, id)
		}
	}
	for key, id := range idx.ByDomain {
		checkID("byDomain", key, id)
	}

	// A collision winner satisfies reachability for the losers too: the
	// lookup still answers for that normalized name.
	for id, rec := range a.Sponsors {
		if rec.NormalizedName == "" {
			continue
		}
		if _, ok := idx.ByNormalizedName[rec.NormalizedName]; !ok {
			addf("record %s (%s) has no byNormalizedName entry", id, rec.PrimaryName)
		}
	}
	return problems
}

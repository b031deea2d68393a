package cmd

import (
	"fmt"
	"strings"

	"github.com/kakiii/kmatch/internal/app"
	"github.com/kakiii/kmatch/internal/domain/changes"
	"github.com/kakiii/kmatch/internal/domain/dataset"
	"github.com/kakiii/kmatch/internal/domain/match"
	"github.com/kakiii/kmatch/internal/ports"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorCyan   = "\033[36m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

// formatRunResult renders one pipeline run for terminal display.
//
//	⚡ published 4123 records │ 2 shards │ source register
//	  +12 added  -3 removed  ~2 modified
//	  artifact data/sponsors-dataset.json
func formatRunResult(res *app.RunResult) string {
	var sb strings.Builder

	if !res.Published() {
		sb.WriteString(fmt.Sprintf("%s⚡ no changes%s │ %d rows │ source %s\n",
			colorBold, colorReset, res.Run.RowCount, res.Run.Source))
		sb.WriteString(fmt.Sprintf("  %shash %s │ --force republishes anyway%s\n",
			colorGray, shortHash(res.Changes.Hash), colorReset))
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("%s⚡ published %d records%s │ %d shards │ source %s\n",
		colorBold, res.Build.Records, colorReset, len(res.Write.ShardPaths), res.Run.Source))

	if res.Changes.HasChanges {
		sb.WriteString(fmt.Sprintf("  %s+%d added%s  %s-%d removed%s  %s~%d modified%s\n",
			colorGreen, len(res.Changes.Added), colorReset,
			colorYellow, len(res.Changes.Removed), colorReset,
			colorCyan, len(res.Changes.Modified), colorReset))
	} else {
		sb.WriteString(fmt.Sprintf("  %sno row changes, republished on --force%s\n", colorGray, colorReset))
	}

	if res.Build.DuplicatesDropped > 0 || res.Build.MalformedSkipped > 0 {
		sb.WriteString(fmt.Sprintf("  %s⚠ %d duplicate rows dropped, %d malformed rows skipped%s\n",
			colorYellow, res.Build.DuplicatesDropped, res.Build.MalformedSkipped, colorReset))
	}

	sb.WriteString(fmt.Sprintf("  artifact %s%s%s\n", colorCyan, res.Write.ArtifactPath, colorReset))
	sb.WriteString(fmt.Sprintf("  manifest %s%s%s\n", colorCyan, res.Write.ManifestPath, colorReset))
	if res.Write.BackupDir != "" {
		sb.WriteString(fmt.Sprintf("  %sprevious artifacts moved to %s%s\n",
			colorGray, res.Write.BackupDir, colorReset))
	}
	return sb.String()
}

// formatDiff renders a detector result, one line per changed organisation.
func formatDiff(res changes.Result) string {
	if !res.HasChanges {
		return fmt.Sprintf("%s⚡ no changes%s\n", colorBold, colorReset)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s⚡ %d added │ %d removed │ %d modified%s\n",
		colorBold, len(res.Added), len(res.Removed), len(res.Modified), colorReset))
	for _, name := range res.Added {
		sb.WriteString(fmt.Sprintf("  %s+ %s%s\n", colorGreen, name, colorReset))
	}
	for _, name := range res.Removed {
		sb.WriteString(fmt.Sprintf("  %s- %s%s\n", colorYellow, name, colorReset))
	}
	for _, name := range res.Modified {
		sb.WriteString(fmt.Sprintf("  %s~ %s%s\n", colorCyan, name, colorReset))
	}
	return sb.String()
}

// formatStats renders the dataset summary and the recent run ledger.
func formatStats(artifact *dataset.Artifact, manifest *dataset.Manifest, runs []ports.Run) string {
	var sb strings.Builder

	if artifact == nil {
		sb.WriteString(fmt.Sprintf("%s⚡ no published dataset%s │ run `kmatch build` first\n",
			colorBold, colorReset))
	} else {
		sb.WriteString(fmt.Sprintf("%s⚡ %d sponsors%s │ version %s │ updated %s\n",
			colorBold, artifact.TotalSponsors, colorReset,
			artifact.Version, artifact.LastUpdated.Format("2006-01-02 15:04")))
		sb.WriteString(fmt.Sprintf("  source   %s%s%s\n", colorCyan, artifact.SourceFile, colorReset))
		if artifact.Index != nil {
			sb.WriteString(fmt.Sprintf("  index    %d first words │ %d search tokens │ %d domains\n",
				len(artifact.Index.ByFirstWord), len(artifact.Index.BySearchToken), len(artifact.Index.ByDomain)))
		}
		if manifest != nil {
			sb.WriteString(fmt.Sprintf("\n  %sShards:%s\n", colorBold, colorReset))
			for _, entry := range manifest.Files {
				sb.WriteString(fmt.Sprintf("    %-34s %-4s %s%d records%s\n",
					entry.File, entry.Range, colorCyan, entry.Count, colorReset))
			}
		}
	}

	if len(runs) > 0 {
		sb.WriteString(fmt.Sprintf("\n  %sRecent runs:%s\n", colorBold, colorReset))
		for _, run := range runs {
			status := colorGreen + "published" + colorReset
			if !run.Published {
				status = colorGray + "skipped  " + colorReset
			}
			sb.WriteString(fmt.Sprintf("    %s  %-32s %s  +%d -%d ~%d\n",
				run.StartedAt.Format("2006-01-02 15:04"), run.Source, status,
				run.Added, run.Removed, run.Modified))
		}
	}

	return sb.String()
}

// formatVerdict renders one check verdict line.
func formatVerdict(name string, ok bool) string {
	if ok {
		return fmt.Sprintf("%s✓%s %s\n", colorGreen, colorReset, name)
	}
	return fmt.Sprintf("%s✗%s %s\n", colorYellow, colorReset, name)
}

// formatDetails renders the per-stage breakdown for one query.
func formatDetails(d match.Details) string {
	var sb strings.Builder

	verdict := colorGreen + "recognised" + colorReset
	if !d.Matched {
		verdict = colorYellow + "not recognised" + colorReset
	}
	sb.WriteString(fmt.Sprintf("%s⚡ %s%s │ %s\n", colorBold, d.Query, colorReset, verdict))

	if len(d.MatchedTypes) > 0 {
		sb.WriteString(fmt.Sprintf("  stages      %s%s%s\n",
			colorGreen, strings.Join(d.MatchedTypes, ", "), colorReset))
	}
	sb.WriteString(fmt.Sprintf("  normalized  %s\n", d.Normalized))
	if len(d.Tokens) > 0 {
		sb.WriteString(fmt.Sprintf("  tokens      %s\n", strings.Join(d.Tokens, " ")))
	}
	if len(d.FirstWords) > 0 {
		sb.WriteString(fmt.Sprintf("  first words %s\n", strings.Join(d.FirstWords, ", ")))
	}
	return sb.String()
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

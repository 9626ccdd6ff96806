package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/havenly/codematch/internal/output"
	"github.com/havenly/codematch/internal/progress"
	"github.com/havenly/codematch/internal/scanner"
	"github.com/havenly/codematch/pkg/engine"
)

var batchCmd = &cobra.Command{
	Use:     "batch [path...]",
	Aliases: []string{"scan"},
	Short:   "Compare every pair of Pascal source files under one or more paths",
	RunE:    runBatch,
}

func init() {
	batchCmd.Flags().Float64("threshold", 0, "Override the batch decision threshold (0 = configured or batch-adaptive threshold)")
	batchCmd.Flags().Int("min-occurrences", 1, "Minimum shared k-gram occurrences for a fragment to count")
	batchCmd.Flags().Int("limit", 0, "Only show the top N most similar pairs (0 = all)")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	sc := scanner.NewScanner(cfg)

	var paths []string
	for _, root := range getPaths(args) {
		found, err := sc.ScanDir(root)
		if err != nil {
			return fmt.Errorf("scan %s: %w", root, err)
		}
		paths = append(paths, found...)
	}

	if len(paths) == 0 {
		color.Yellow("No Pascal source files found")
		return nil
	}

	paths, skipped := scanner.FilterBySize(paths, cfg.Detection.MaxFileSize)
	if skipped > 0 {
		color.Yellow("Skipped %d file(s) exceeding the size limit", skipped)
	}

	files := make([]engine.SourceFile, 0, len(paths))
	unreadable := 0
	readTracker := progress.NewTracker("Reading files", len(paths))
	for _, p := range paths {
		content, err := os.ReadFile(p)
		readTracker.Tick()
		if err != nil {
			color.Yellow("warning: skipping %s: %v", p, err)
			unreadable++
			continue
		}
		files = append(files, engine.SourceFile{Name: p, Text: string(content)})
	}
	if unreadable > 0 {
		readTracker.FinishSkipped(fmt.Sprintf("%d file(s) unreadable", unreadable))
	} else {
		readTracker.FinishSuccess()
	}

	eng, err := newEngine(cfg)
	if err != nil {
		return err
	}

	compareTracker := progress.NewSpinner(fmt.Sprintf("Comparing %d files...", len(files)))
	var opts engine.BatchOptions
	if threshold, _ := cmd.Flags().GetFloat64("threshold"); threshold > 0 {
		opts.Threshold = &threshold
	}
	if minOcc, _ := cmd.Flags().GetInt("min-occurrences"); minOcc > 0 {
		opts.MinOccurrences = &minOcc
	}

	batchResult, err := eng.DetectBatch(files, opts)
	if err != nil {
		compareTracker.FinishError(err)
		return fmt.Errorf("batch detection failed: %w", err)
	}
	compareTracker.FinishSuccess()

	formatter, err := newFormatter(cmd)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if formatter.Format() == output.FormatJSON || formatter.Format() == output.FormatTOON {
		return formatter.Output(batchResult)
	}

	limit, _ := cmd.Flags().GetInt("limit")
	return formatter.Output(batchReport(batchResult, limit))
}

func batchReport(result engine.BatchResult, limit int) *output.Report {
	rows := result.Results
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	var tableRows [][]string
	for _, r := range rows {
		marker := ""
		if r.IsPlagiarism {
			marker = "*"
		}
		tableRows = append(tableRows, []string{
			marker + r.File1,
			r.File2,
			percent(r.OverallSimilarity),
			string(r.Confidence),
			fmt.Sprintf("%d", r.SignificantMappedFragments),
		})
	}

	table := output.NewTable(
		"Pairwise Similarity",
		[]string{"File1", "File2", "Similarity", "Confidence", "Fragments"},
		tableRows,
		[]string{
			fmt.Sprintf("Comparisons: %d", result.TotalComparisons),
			fmt.Sprintf("Flagged: %d", result.SuspiciousPairs),
			fmt.Sprintf("Threshold: %s", percent(result.Threshold)),
		},
		result,
	).WithColorColumn(3, func(s string) string { return output.ConfidenceColor(s, s) })

	sections := []output.Renderable{table}
	if dist := similarityDistribution(result.Results); dist != nil {
		sections = append(sections, dist)
	}

	return &output.Report{Title: "codematch batch", Sections: sections, Data: result}
}

// similarityDistribution summarizes the P50/P90/P99 overall similarity
// across every compared pair, to give a sense of how dense the batch is
// without scrolling the full pairwise table.
func similarityDistribution(results []engine.Result) *output.Section {
	if len(results) == 0 {
		return nil
	}

	similarities := make([]float64, len(results))
	for i, r := range results {
		similarities[i] = r.OverallSimilarity
	}
	sort.Float64s(similarities)

	content := fmt.Sprintf(
		"P50: %s  P90: %s  P99: %s",
		percent(percentile(similarities, 50)),
		percent(percentile(similarities, 90)),
		percent(percentile(similarities, 99)),
	)
	return &output.Section{Title: "Similarity Distribution", Content: content}
}

// percentile returns the p-th percentile of a slice already sorted
// ascending. Returns 0 for an empty slice.
func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (p * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

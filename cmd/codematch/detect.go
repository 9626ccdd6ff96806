package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/havenly/codematch/internal/cache"
	"github.com/havenly/codematch/internal/output"
	"github.com/havenly/codematch/pkg/config"
	"github.com/havenly/codematch/pkg/engine"
)

var detectCmd = &cobra.Command{
	Use:     "detect <fileA> <fileB>",
	Aliases: []string{"compare", "diff"},
	Short:   "Compare two Pascal source files for similarity",
	Args:    cobra.ExactArgs(2),
	RunE:    runDetect,
}

func init() {
	detectCmd.Flags().Float64("threshold", 0, "Override the decision threshold (0 = configured or adaptive threshold)")
	detectCmd.Flags().Int("min-occurrences", 1, "Minimum shared k-gram occurrences for a fragment to count")
	detectCmd.Flags().Bool("snippets", false, "Include line-numbered source snippets in text output")
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	aText, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	bText, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[1], err)
	}

	eng, err := newEngine(cfg)
	if err != nil {
		return err
	}

	var opts engine.DetectOptions
	if threshold, _ := cmd.Flags().GetFloat64("threshold"); threshold > 0 {
		opts.Threshold = &threshold
	}
	if minOcc, _ := cmd.Flags().GetInt("min-occurrences"); minOcc > 0 {
		opts.MinOccurrences = &minOcc
	}

	c, err := cache.New(cfg.Cache.Dir, cfg.Cache.TTL, cfg.Cache.Enabled)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}

	threshold, minOcc := 0.0, 0
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}
	if opts.MinOccurrences != nil {
		minOcc = *opts.MinOccurrences
	}
	configSig := fmt.Sprintf("%+v|%v|%v", cfg.Detection, threshold, minOcc)
	key := cache.Key(aText, bText, configSig)

	result, cached := c.Get(key)
	if !cached {
		var detectErr error
		result, detectErr = eng.Detect(
			engine.SourceFile{Name: args[0], Text: string(aText)},
			engine.SourceFile{Name: args[1], Text: string(bText)},
			opts,
		)
		if detectErr != nil {
			color.Yellow("warning: %v", detectErr)
		}
		_ = c.Set(key, result)
	}

	formatter, err := newFormatter(cmd)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if formatter.Format() == output.FormatJSON || formatter.Format() == output.FormatTOON {
		return formatter.Output(result)
	}

	showSnippets, _ := cmd.Flags().GetBool("snippets")
	return formatter.Output(detectReport(result, showSnippets))
}

func detectReport(result engine.Result, showSnippets bool) *output.Report {
	verdict := "not plagiarism"
	if result.IsPlagiarism {
		verdict = "plagiarism detected"
	}

	summary := fmt.Sprintf(
		"%s vs %s\nOverall similarity: %s (confidence: %s)\nSyntactic similarity: %s\nCoverage: %s / %s\nLongest shared run: %d tokens\nVerdict: %s",
		result.File1, result.File2,
		percent(result.OverallSimilarity), result.Confidence,
		percent(result.SyntacticSimilarity),
		percent(result.Coverage1), percent(result.Coverage2),
		result.LongestFragment,
		verdict,
	)

	sections := []output.Renderable{
		&output.Section{Title: "Summary", Content: summary},
	}

	if len(result.MappedFragments) > 0 {
		var rows [][]string
		for _, mf := range result.MappedFragments {
			rows = append(rows, []string{
				fmt.Sprintf("%d-%d", mf.File1Lines.Start, mf.File1Lines.End),
				fmt.Sprintf("%d-%d", mf.File2Lines.Start, mf.File2Lines.End),
				string(mf.FragmentType),
				percent(mf.Confidence),
				fmt.Sprintf("%d", len(mf.SharedTokens)),
				truncate(mf.TokenPattern, 60),
			})
		}
		sections = append(sections, output.NewTable(
			"Shared Fragments",
			[]string{"File1 Lines", "File2 Lines", "Type", "Confidence", "Tokens", "Pattern"},
			rows,
			[]string{fmt.Sprintf("Significant: %d / %d", result.SignificantMappedFragments, result.TotalMappedFragments)},
			nil,
		))

		if showSnippets {
			for _, mf := range result.MappedFragments {
				sections = append(sections, &output.Section{
					Title: fmt.Sprintf("Fragment %s (%s)", mf.FragmentID, mf.FragmentType),
					Sections: []output.Section{
						{Title: result.File1, Content: mf.File1CodeWithLineNumbers},
						{Title: result.File2, Content: mf.File2CodeWithLineNumbers},
					},
				})
			}
		}
	}

	return &output.Report{Title: "codematch detect", Sections: sections, Data: result}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var opts []config.LoadOption
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		opts = append(opts, config.WithPath(path))
	}
	result, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, err
	}
	return result.Config, nil
}

func newEngine(cfg *config.Config) (*engine.Engine, error) {
	engCfg := engine.EngineConfig{
		KGramSize:       cfg.Detection.KGramSize,
		WindowSize:      cfg.Detection.WindowSize,
		SyntacticWeight: cfg.Detection.SyntacticWeight,
		MinOccurrences:  cfg.Detection.MinOccurrences,
		GapTolerance:    cfg.Detection.GapTolerance,
		DriftBand:       cfg.Detection.DriftBand,
	}
	if cfg.Detection.Threshold > 0 {
		t := cfg.Detection.Threshold
		engCfg.Threshold = &t
	}
	return engine.New(engCfg)
}

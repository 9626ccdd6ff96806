package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/havenly/codematch/internal/output"
)

// getPaths returns paths from args, defaulting to ["."]
func getPaths(args []string) []string {
	if len(args) == 0 {
		return []string{"."}
	}
	return args
}

// getFormat reads the --format flag from cmd or its parents.
func getFormat(cmd *cobra.Command) string {
	format, _ := cmd.Flags().GetString("format")
	return format
}

// getOutputFile reads the --output flag from cmd or its parents.
func getOutputFile(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("output")
	return path
}

// getColor reads whether colored output should be used.
func getColor(cmd *cobra.Command) bool {
	noColor, _ := cmd.Flags().GetBool("no-color")
	return !noColor
}

// newFormatter builds an output.Formatter from the command's global flags.
func newFormatter(cmd *cobra.Command) (*output.Formatter, error) {
	return output.NewFormatter(output.ParseFormat(getFormat(cmd)), getOutputFile(cmd), getColor(cmd))
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 4 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// percent formats a 0-1 ratio as a percentage string.
func percent(ratio float64) string {
	return fmt.Sprintf("%.0f%%", ratio*100)
}

package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

func WriteMarkdown(summary BatchSummary, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(RenderMarkdown(summary)), 0o644)
}

func RenderMarkdown(summary BatchSummary) string {
	var b strings.Builder
	b.WriteString("# lyricgen batch report\n\n")
	if summary.BatchID != "" {
		fmt.Fprintf(&b, "Batch: `%s` (%s)\n\n", summary.BatchID, summary.Status)
	}
	fmt.Fprintf(&b, "Requested: %d | Collected: %d | Distinct: %d | Included: %d\n\n",
		summary.Requested, summary.Succeeded, summary.Distinct, summary.Included)

	b.WriteString("## Responses\n")
	if len(summary.Results) == 0 {
		b.WriteString("- None\n")
	} else {
		b.WriteString("| Unit | Temperature | Latency | Included | Preview |\n")
		b.WriteString("|---:|---:|---:|:---:|---|\n")
		for _, r := range summary.Results {
			included := ""
			if r.Included {
				included = "yes"
				if r.Edited {
					included = "edited"
				}
			}
			fmt.Fprintf(&b, "| %d | %.1f | %s | %s | %s |\n",
				r.Index+1, r.Temperature, r.Latency.Round(time.Millisecond), included, escapeCell(r.Preview))
		}
	}
	b.WriteString("\n")

	b.WriteString("## Failure\n")
	switch {
	case summary.Failure == nil:
		b.WriteString("- None\n")
	case summary.Failure.Index < 0:
		fmt.Fprintf(&b, "- batch: %s\n", summary.Failure.FailureReason)
	default:
		fmt.Fprintf(&b, "- unit %d (temperature %.1f): %s\n",
			summary.Failure.Index+1, summary.Failure.Temperature, summary.Failure.FailureReason)
	}
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func preview(text string, width int) string {
	line := strings.Join(strings.Fields(text), " ")
	runes := []rune(line)
	if len(runes) > width {
		return string(runes[:width-1]) + "…"
	}
	return line
}

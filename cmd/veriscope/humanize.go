package main

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"veriscope/internal/jobs"
	"veriscope/internal/scoring"
)

var titleCaser = cases.Title(language.English)

// humanizeStatus renders a status value for terminal output, e.g.
// "infer_video" becomes "Infer Video".
func humanizeStatus(status jobs.Status) string {
	return titleCaser.String(strings.ReplaceAll(string(status), "_", " "))
}

// humanizeLabel renders a verdict label, e.g. "LIKELY_FAKE" becomes
// "Likely Fake". Unset labels render as a dash.
func humanizeLabel(label scoring.Label) string {
	if label == "" {
		return "-"
	}
	return titleCaser.String(strings.ReplaceAll(strings.ToLower(string(label)), "_", " "))
}

func formatScore(score *float64) string {
	if score == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *score)
}

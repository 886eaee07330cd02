// Package scoring defines the shared score, label, and modality types used
// across analysis, fusion, and reporting.
package scoring

import "strings"

// Label classifies a fused manipulation score into a verdict bucket.
type Label string

const (
	LabelAuthentic       Label = "AUTHENTIC"
	LabelLikelyAuthentic Label = "LIKELY_AUTHENTIC"
	LabelSuspicious      Label = "SUSPICIOUS"
	LabelLikelyFake      Label = "LIKELY_FAKE"
	LabelFake            Label = "FAKE"
)

var allLabels = []Label{
	LabelAuthentic,
	LabelLikelyAuthentic,
	LabelSuspicious,
	LabelLikelyFake,
	LabelFake,
}

var labelSet = func() map[Label]struct{} {
	set := make(map[Label]struct{}, len(allLabels))
	for _, label := range allLabels {
		set[label] = struct{}{}
	}
	return set
}()

var labelDescriptions = map[Label]string{
	LabelAuthentic:       "No significant manipulation indicators detected.",
	LabelLikelyAuthentic: "Minor anomalies detected but likely authentic.",
	LabelSuspicious:      "Some manipulation indicators present. Further review recommended.",
	LabelLikelyFake:      "Strong manipulation indicators detected.",
	LabelFake:            "High confidence of manipulation across modalities.",
}

// AllLabels returns the ordered list of verdict labels, least to most severe.
func AllLabels() []Label {
	cp := make([]Label, len(allLabels))
	copy(cp, allLabels)
	return cp
}

// ParseLabel converts a string into a known Label.
func ParseLabel(value string) (Label, bool) {
	normalized := Label(strings.ToUpper(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := labelSet[normalized]
	return normalized, ok
}

// LabelForScore buckets a fused score into a verdict label. Boundaries are
// lower-inclusive: a score of exactly 0.25 is LIKELY_AUTHENTIC, 0.8 is FAKE.
func LabelForScore(score float64) Label {
	switch {
	case score < 0.25:
		return LabelAuthentic
	case score < 0.45:
		return LabelLikelyAuthentic
	case score < 0.6:
		return LabelSuspicious
	case score < 0.8:
		return LabelLikelyFake
	default:
		return LabelFake
	}
}

// Description returns the fixed human-readable summary for the label.
func (l Label) Description() string {
	if desc, ok := labelDescriptions[l]; ok {
		return desc
	}
	return ""
}

// Modality identifies one analysis channel of a media item.
type Modality string

const (
	ModalityVideo   Modality = "video"
	ModalityAudio   Modality = "audio"
	ModalityLipsync Modality = "lipsync"
)

var allModalities = []Modality{
	ModalityVideo,
	ModalityAudio,
	ModalityLipsync,
}

var modalitySet = func() map[Modality]struct{} {
	set := make(map[Modality]struct{}, len(allModalities))
	for _, modality := range allModalities {
		set[modality] = struct{}{}
	}
	return set
}()

// Modalities returns the canonical modality ordering used for fusion
// weighting and concern reporting.
func Modalities() []Modality {
	cp := make([]Modality, len(allModalities))
	copy(cp, allModalities)
	return cp
}

// ParseModality converts a string into a known Modality.
func ParseModality(value string) (Modality, bool) {
	normalized := Modality(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := modalitySet[normalized]
	return normalized, ok
}

// Clamp01 bounds a score to the closed interval [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

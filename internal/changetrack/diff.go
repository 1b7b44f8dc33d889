package changetrack

import (
	"strings"

	"github.com/quaero-labs/corequaero/internal/config"
	"github.com/quaero-labs/corequaero/internal/dedup"
)

// Diff scores the change between two snapshots using the configured
// content/structural/metadata/visual weights and classifies it into a
// Significance band via the configured thresholds. Visual scoring is a
// ContentExtractor/BrowserSession-boundary concern (spec.md's explicit
// non-goal for this module) and always contributes 0 here; a caller with
// a screenshot-diff component can still populate it by constructing a
// ChangeReport directly rather than through Diff.
func Diff(cfg config.ChangeConfig, previous, current Snapshot) ChangeReport {
	contentScore := contentChangeScore(previous, current)
	structuralScore := structuralChangeScore(previous, current)
	metadataScore := metadataChangeScore(previous, current)
	const visualScore = 0.0

	score := cfg.WeightContent*contentScore +
		cfg.WeightStructural*structuralScore +
		cfg.WeightMetadata*metadataScore +
		cfg.WeightVisual*visualScore

	return ChangeReport{
		URL:          current.URL,
		Previous:     previous,
		Current:      current,
		Score:        score,
		Significance: classify(cfg, score),
	}
}

// contentChangeScore is the normalized SimHash Hamming distance: how much
// of the 64-bit signature flipped between observations.
func contentChangeScore(previous, current Snapshot) float64 {
	if previous.Text == current.Text {
		return 0
	}
	return float64(dedup.HammingDistance(previous.SimHash, current.SimHash)) / 64.0
}

// structuralChangeScore approximates document-shape drift via relative
// text-length change, since a full DOM tree diff is outside this module's
// scope (structure-aware diffing belongs to a richer ContentExtractor).
func structuralChangeScore(previous, current Snapshot) float64 {
	prevLen := len(previous.Text)
	curLen := len(current.Text)
	if prevLen == 0 && curLen == 0 {
		return 0
	}
	maxLen := prevLen
	if curLen > maxLen {
		maxLen = curLen
	}
	if maxLen == 0 {
		return 0
	}
	delta := curLen - prevLen
	if delta < 0 {
		delta = -delta
	}
	ratio := float64(delta) / float64(maxLen)
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}

// metadataChangeScore reports the fraction of tracked metadata fields
// (title plus every extracted <meta> tag) whose value changed.
func metadataChangeScore(previous, current Snapshot) float64 {
	keys := make(map[string]bool)
	keys["__title__"] = true
	for k := range previous.Metadata {
		keys[k] = true
	}
	for k := range current.Metadata {
		keys[k] = true
	}
	if len(keys) == 0 {
		return 0
	}

	var changed int
	for k := range keys {
		if k == "__title__" {
			if !strings.EqualFold(previous.Title, current.Title) {
				changed++
			}
			continue
		}
		if previous.Metadata[k] != current.Metadata[k] {
			changed++
		}
	}
	return float64(changed) / float64(len(keys))
}

func classify(cfg config.ChangeConfig, score float64) Significance {
	switch {
	case score >= cfg.ThresholdCritical:
		return SignificanceCritical
	case score >= cfg.ThresholdMajor:
		return SignificanceMajor
	case score >= cfg.ThresholdModerate:
		return SignificanceModerate
	case score >= cfg.ThresholdMinor:
		return SignificanceMinor
	default:
		return SignificanceNone
	}
}

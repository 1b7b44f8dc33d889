package research

import (
	"context"
	"strings"

	"github.com/quaero-labs/corequaero/internal/dedup"
)

// negativeMarkers are simple lexical cues of an affirmative vs. negated
// stance, used for the deterministic fallback conflict signal spec.md
// §4.14 stage 5 describes when no Synthesizer is available to label
// stance clusters directly.
var negativeMarkers = []string{"not", "no longer", "false", "debunked", "disproven", "never", "fails to"}

// detectConflicts flags pairs of findings whose excerpts are lexically
// similar (same claim) but carry opposite polarity markers — the
// deterministic fallback for spec.md §4.14 stage 5's conflict detection.
func detectConflicts(findings []Finding) []Conflict {
	var conflicts []Conflict
	sigs := make([]dedup.Signature, len(findings))
	for i, f := range findings {
		sigs[i] = dedup.Compute(f.Excerpt)
	}
	for i := 0; i < len(findings); i++ {
		for j := i + 1; j < len(findings); j++ {
			if findings[i].Excerpt == "" || findings[j].Excerpt == "" {
				continue
			}
			if !dedup.Similar(sigs[i], sigs[j], 16) {
				continue
			}
			if hasNegation(findings[i].Excerpt) == hasNegation(findings[j].Excerpt) {
				continue
			}
			conflicts = append(conflicts, Conflict{
				URLA:     findings[i].URL,
				URLB:     findings[j].URL,
				ExcerptA: findings[i].Excerpt,
				ExcerptB: findings[j].Excerpt,
			})
		}
	}
	return conflicts
}

func hasNegation(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range negativeMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// buildConsensus returns the titles of the first five findings that have
// no fetch error and a non-empty title; Run passes findings sorted by
// score, so these are the highest-scored ones. Findings that are party to
// a detected conflict are not excluded, and the result is built the same
// way whether or not a Synthesizer is wired.
func buildConsensus(findings []Finding) []string {
	var out []string
	for _, f := range findings {
		if f.FetchErr != "" || f.Title == "" {
			continue
		}
		out = append(out, f.Title)
		if len(out) >= 5 {
			break
		}
	}
	return out
}

// synthesize produces the run's narrative Summary: via Synthesizer when
// wired, else the top-excerpt fallback spec.md §4.14 stage 6 specifies.
func (o *Orchestrator) synthesize(ctx context.Context, topic string, findings []Finding) Summary {
	if o.synth != nil {
		if s, err := o.synth.Synthesize(ctx, topic, findings); err == nil {
			return s
		}
	}

	var themes []string
	for _, f := range findings {
		if f.Title == "" {
			continue
		}
		themes = append(themes, f.Title)
		if len(themes) >= 5 {
			break
		}
	}

	var overview strings.Builder
	for i, f := range findings {
		if i >= 3 || f.Excerpt == "" {
			break
		}
		if overview.Len() > 0 {
			overview.WriteString(" ")
		}
		overview.WriteString(f.Excerpt)
	}

	return Summary{
		Overview: overview.String(),
		Themes:   themes,
	}
}

package research

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"github.com/quaero-labs/corequaero/internal/rank"
)

// scoreFindings ranks findings against topic using BM25, combining with
// SemanticScorer when available per spec.md §4.14 stage 4's
// 0.4·BM25 + 0.6·semantic blend; BM25-only otherwise. Credibility is
// scored independently from source heuristics, since it gates on signal
// the pipeline can observe without fetching any ranking model.
func (o *Orchestrator) scoreFindings(ctx context.Context, topic string, findings []Finding) {
	docs := make([]rank.Document, 0, len(findings))
	for i, f := range findings {
		if f.FetchErr != "" {
			continue
		}
		docs = append(docs, rank.Document{ID: idFor(i), Text: f.Excerpt})
	}
	index := rank.NewIndex(docs)
	scored := index.Search(topic, len(docs))

	bm25 := make(map[string]float64, len(scored))
	maxScore := 0.0
	for _, s := range scored {
		bm25[s.ID] = s.Score
		if s.Score > maxScore {
			maxScore = s.Score
		}
	}

	for i := range findings {
		f := &findings[i]
		if f.FetchErr != "" {
			continue
		}
		raw := bm25[idFor(i)]
		if maxScore > 0 {
			f.BM25Score = raw / maxScore
		}
		f.Credibility = credibilityScore(f.URL)

		if o.semantic != nil {
			if sem, err := o.semantic.Score(ctx, topic, f.Excerpt); err == nil {
				f.SemanticScore = sem
				f.CombinedScore = 0.4*f.BM25Score + 0.6*sem
				continue
			}
		}
		f.CombinedScore = f.BM25Score
	}
}

func idFor(i int) string {
	return strings.Join([]string{"doc", itoa(i)}, "-")
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var buf [12]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	return string(buf[pos:])
}

// credibilityScore is a deterministic source-heuristic proxy for the
// richer domain-age/reference-graph signal spec.md §4.14 stage 4
// describes, scoped to what's observable from the URL alone: an https
// scheme and the .edu, .gov and .org TLDs raise the score; no TLD lowers it.
func credibilityScore(rawURL string) float64 {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	score := 0.5
	if u.Scheme == "https" {
		score += 0.3
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case strings.HasSuffix(host, ".edu"), strings.HasSuffix(host, ".gov"):
		score += 0.2
	case strings.HasSuffix(host, ".org"):
		score += 0.1
	}
	if score > 1 {
		score = 1
	}
	return score
}

func filterByCredibility(findings []Finding, threshold float64) []Finding {
	out := make([]Finding, 0, len(findings))
	for _, f := range findings {
		if f.FetchErr != "" {
			continue
		}
		if f.Credibility < threshold {
			continue
		}
		out = append(out, f)
	}
	return out
}

func sortByScore(findings []Finding) {
	sort.Slice(findings, func(i, j int) bool {
		return findings[i].CombinedScore > findings[j].CombinedScore
	})
}

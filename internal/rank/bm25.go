// Package rank implements C10: BM25 relevance scoring over extracted page
// text, used by the search/research tools to order crawl results. No pack
// example ships a ranking/IR library (grounded decision in DESIGN.md); the
// formula itself is a direct implementation of the standard Okapi BM25
// definition, tokenized the same simple way the teacher's own search
// layer tokenizes query strings (lowercase, split on non-alphanumerics).
package rank

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// Document is one BM25-scorable unit: an identifier plus its tokenized
// text field.
type Document struct {
	ID   string
	Text string
}

// Scored pairs a Document ID with its BM25 score against a query.
type Scored struct {
	ID    string
	Score float64
}

const (
	k1 = 1.2
	b  = 0.75
)

// Index is a BM25 index built once over a corpus of Documents and queried
// repeatedly (e.g. once per research sub-question).
type Index struct {
	docIDs    []string
	docTerms  [][]string
	docLen    []int
	avgDocLen float64
	termDF    map[string]int
	n         int
}

// NewIndex tokenizes and indexes docs for BM25 scoring.
func NewIndex(docs []Document) *Index {
	idx := &Index{termDF: make(map[string]int)}
	var totalLen int
	for _, d := range docs {
		terms := tokenize(d.Text)
		idx.docIDs = append(idx.docIDs, d.ID)
		idx.docTerms = append(idx.docTerms, terms)
		idx.docLen = append(idx.docLen, len(terms))
		totalLen += len(terms)

		seen := make(map[string]bool, len(terms))
		for _, t := range terms {
			if !seen[t] {
				seen[t] = true
				idx.termDF[t]++
			}
		}
	}
	idx.n = len(docs)
	if idx.n > 0 {
		idx.avgDocLen = float64(totalLen) / float64(idx.n)
	}
	return idx
}

// Search scores every indexed document against query and returns the top
// results sorted by descending score.
func (idx *Index) Search(query string, topK int) []Scored {
	queryTerms := tokenize(query)
	results := make([]Scored, 0, idx.n)

	for i, terms := range idx.docTerms {
		score := idx.scoreDoc(i, terms, queryTerms)
		if score > 0 {
			results = append(results, Scored{ID: idx.docIDs[i], Score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

func (idx *Index) scoreDoc(docIndex int, docTerms, queryTerms []string) float64 {
	termFreq := make(map[string]int, len(docTerms))
	for _, t := range docTerms {
		termFreq[t]++
	}

	docLen := float64(idx.docLen[docIndex])
	var score float64
	for _, qt := range queryTerms {
		freq, ok := termFreq[qt]
		if !ok {
			continue
		}
		df := idx.termDF[qt]
		idf := math.Log(1 + (float64(idx.n)-float64(df)+0.5)/(float64(df)+0.5))
		numerator := float64(freq) * (k1 + 1)
		denominator := float64(freq) + k1*(1-b+b*docLen/idx.avgDocLen)
		score += idf * numerator / denominator
	}
	return score
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return fields
}

package research

import "strings"

// approachModifiers prepends/appends terms that bias query expansion
// toward the requested research approach, since no SemanticScorer is
// guaranteed to be available (spec.md §4.14 stage 1's deterministic
// fallback path).
var approachModifiers = map[Approach][]string{
	ApproachBroad:         {"overview", "guide"},
	ApproachFocused:       {"detailed analysis"},
	ApproachAcademic:      {"research", "study"},
	ApproachCurrentEvents: {"latest news", "recent"},
	ApproachComparative:   {"comparison", "versus"},
}

// expandQueries produces K variant queries from topic: the bare topic,
// one per approach modifier, and a narrowing/broadening pair. Results are
// deduplicated by normalized (lowercased, whitespace-collapsed) form.
func expandQueries(topic string, approach Approach) []string {
	seen := make(map[string]bool)
	var out []string

	add := func(q string) {
		norm := normalize(q)
		if norm == "" || seen[norm] {
			return
		}
		seen[norm] = true
		out = append(out, q)
	}

	add(topic)
	for _, mod := range approachModifiers[approach] {
		add(topic + " " + mod)
	}
	add(topic + " explained")
	add("what is " + topic)

	return out
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

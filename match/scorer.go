package match

// Scoring weights. The tag part and personality part are blended 70/30.
const (
	TagWeight         = 0.7
	PersonalityWeight = 0.3

	SameArchetypeScore      = 0.3
	DifferentArchetypeScore = 0.1
)

// Score returns the compatibility of two attribute bundles in [0, 1].
// It is pure and symmetric: Score(a, b) == Score(b, a).
func Score(a, b *Attributes) float64 {
	if a == nil || b == nil {
		return 0
	}
	score := TagWeight*TagSimilarity(a, b) + PersonalityWeight*PersonalitySimilarity(a.Personality, b.Personality)
	return clamp01(score)
}

// TagSimilarity is the Jaccard index of the two tag-id sets, 0 when both are empty.
func TagSimilarity(a, b *Attributes) float64 {
	return jaccard(a.TagSet(), b.TagSet())
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	// iterate the smaller set
	if len(a) > len(b) {
		a, b = b, a
	}
	inter := 0
	for id := range a {
		if _, ok := b[id]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// PersonalitySimilarity compares archetypes with a case-sensitive match.
func PersonalitySimilarity(a, b *PersonalityProfile) float64 {
	if a == nil || b == nil {
		return 0
	}
	if a.Archetype == b.Archetype {
		return SameArchetypeScore
	}
	return DifferentArchetypeScore
}

func clamp01(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

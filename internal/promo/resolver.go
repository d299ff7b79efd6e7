package promo

import "sort"

// effectivePriority treats an absent priority as zero so explicitly ranked
// offers always beat unranked ones.
func effectivePriority(o Offer) int32 {
	if o.Priority != nil {
		return *o.Priority
	}
	return 0
}

// SelectBest picks the single winning offer among applicable candidates.
// Ordering is explicit priority descending, then creation time descending for
// offers sharing a priority. Remaining ties resolve stably in favour of the
// earliest candidate in the input slice. The input is never mutated; nil is
// returned for an empty input.
func SelectBest(offers []Offer) *Offer {
	if len(offers) == 0 {
		return nil
	}
	ranked := make([]Offer, len(offers))
	copy(ranked, offers)
	sort.SliceStable(ranked, func(i, j int) bool {
		pi, pj := effectivePriority(ranked[i]), effectivePriority(ranked[j])
		if pi != pj {
			return pi > pj
		}
		return ranked[i].CreatedAt.After(ranked[j].CreatedAt)
	})
	best := ranked[0]
	return &best
}

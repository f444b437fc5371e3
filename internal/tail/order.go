package tail

import (
	"slices"

	"github.com/loykin/trailtail/internal/event"
)

// Order returns the batch sorted oldest first. The lookup API answers newest
// first, so the batch is reversed before the stable sort; events sharing a
// timestamp keep their oldest-first arrival order. The input is not modified.
func Order(batch []event.Event) []event.Event {
	out := slices.Clone(batch)
	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b event.Event) int {
		return a.Time.Compare(b.Time)
	})
	return out
}

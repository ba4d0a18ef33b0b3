package reservation

import (
	"github.com/clinicdesk/clinic-scheduler/internal/schedule"
)

// assignSeed is the draw-counter start value for every assignment pass.
// Fixed so that re-running a pass over the same reservation set yields
// the same permutations.
const assignSeed = 13

// slotKey identifies one (provider, time) cell of a day's occupancy.
type slotKey struct {
	providerID string
	slot       schedule.Slot
}

// occupancy is the mutable occupied-slot state of one batch run. It is
// always created inside an invocation and passed explicitly; nothing
// survives across runs.
type occupancy map[slotKey]bool

// draw maps a counter value to a pseudo-random float in [0, 1). It is a
// pure function: one xorshift64* step over the counter (offset by an
// odd constant so the zero state is unreachable). Call sites advance
// the counter by one per draw, which keeps every draw in a batch run
// reproducible without threading generator state around.
func draw(counter uint64) float64 {
	x := counter + 0x9E3779B97F4A7C15
	x ^= x >> 12
	x ^= x << 25
	x ^= x >> 27
	return float64((x*0x2545F4914F6CDD1D)>>11) / float64(1<<53)
}

// shuffledProviders returns a Fisher-Yates permutation of ids where
// each exchange index comes from draw at the current counter value.
// Both the resolver's seeded pass and the migrator's ground-truth
// recompute consume it in ascending reservation ID order, which is what
// makes batch runs reproducible.
func shuffledProviders(ids []string, counter *uint64) []string {
	out := append([]string(nil), ids...)
	for i := len(out) - 1; i > 0; i-- {
		j := int(draw(*counter) * float64(i+1))
		*counter++
		out[i], out[j] = out[j], out[i]
	}
	return out
}

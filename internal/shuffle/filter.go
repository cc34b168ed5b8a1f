package shuffle

import (
	"math/rand/v2"
	"time"

	"github.com/fkhayef/meetup/internal/activity"
	"github.com/fkhayef/meetup/internal/profile"
)

// Filter returns the candidates self can be matched with: online users with
// the same mood, other than self, whose age is within maxAgeDifference of
// self's. An unknown age on either side never excludes a candidate.
func Filter(self *profile.Profile, pool []*profile.Profile, mood activity.Mood, maxAgeDifference int, now time.Time) []*profile.Profile {
	selfAge, selfAgeKnown := self.Age(now)

	var out []*profile.Profile
	for _, c := range pool {
		if c.ID == self.ID || !c.IsOnline || c.Mood != mood {
			continue
		}
		if selfAgeKnown {
			if age, ok := c.Age(now); ok && absInt(age-selfAge) > maxAgeDifference {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// samplePicks draws rounds uniform random picks from a non-empty pool, each
// shown for interval. It also returns the profile behind the final pick.
func samplePicks(r *rand.Rand, pool []*profile.Profile, rounds int, interval time.Duration, now time.Time) ([]Pick, *profile.Profile) {
	picks := make([]Pick, rounds)
	var last *profile.Profile
	for i := range picks {
		last = pool[r.IntN(len(pool))]
		picks[i] = Pick{
			Candidate:  candidateOf(last, now),
			DisplayFor: interval,
		}
	}
	return picks, last
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

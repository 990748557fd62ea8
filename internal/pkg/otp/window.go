package otp

import (
	"slices"
	"strconv"
	"time"
)

const (
	// StepDuration is the length of one timestep.
	StepDuration = 30 * time.Second

	// WindowSize is how many steps either side of a centre step are accepted.
	WindowSize = 1
)

// Timestep counts StepDuration intervals since the Unix epoch.
type Timestep int64

func (t Timestep) String() string {
	return strconv.FormatInt(int64(t), 10)
}

// CurrentTimestep returns floor(now / StepDuration).
func CurrentTimestep(now time.Time) Timestep {
	step := int64(StepDuration / time.Second)
	sec := now.Unix()

	q := sec / step
	if sec%step != 0 && sec < 0 {
		q--
	}

	return Timestep(q)
}

// AllowedTimesteps returns center-WindowSize through center+WindowSize in
// ascending order.
func AllowedTimesteps(center Timestep) []Timestep {
	out := make([]Timestep, 0, 2*WindowSize+1)
	for ts := center - WindowSize; ts <= center+WindowSize; ts++ {
		out = append(out, ts)
	}

	return out
}

// InWindow reports whether ts is acceptable for a window centred on center.
func InWindow(center, ts Timestep) bool {
	return slices.Contains(AllowedTimesteps(center), ts)
}

// IntersectTimesteps returns the members of a that are also in b, keeping
// the order of a.
func IntersectTimesteps(a, b []Timestep) []Timestep {
	out := make([]Timestep, 0, len(a))
	for _, ts := range a {
		if slices.Contains(b, ts) {
			out = append(out, ts)
		}
	}

	return out
}

// ChallengeTTL is how long an issued challenge stays live. A challenge at T
// accepts T+WindowSize, and that code stays valid until T+2*WindowSize, so
// the challenge must outlive every step one of its answers could satisfy.
func ChallengeTTL() time.Duration {
	return time.Duration(2*WindowSize+1) * StepDuration
}

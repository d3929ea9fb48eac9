package task

import "time"

// historySize is the number of observations kept per provider.
const historySize = 5

// Observation is one collected value. OK is false when the provider raised
// an error; Value is nil in that case.
type Observation struct {
	Time  time.Time `json:"time"`
	Value any       `json:"value"`
	OK    bool      `json:"is_success"`
}

// observationRing is a fixed-capacity ring of the most recent observations.
type observationRing struct {
	buf   [historySize]Observation
	next  int
	count int
}

func (r *observationRing) add(o Observation) {
	r.buf[r.next] = o
	r.next = (r.next + 1) % historySize
	if r.count < historySize {
		r.count++
	}
}

// snapshot returns the stored observations, newest first.
func (r *observationRing) snapshot() []Observation {
	out := make([]Observation, 0, r.count)
	for i := 1; i <= r.count; i++ {
		out = append(out, r.buf[(r.next-i+historySize)%historySize])
	}
	return out
}

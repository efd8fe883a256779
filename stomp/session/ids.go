package session

import (
	"math/rand"
	"strconv"
	"sync/atomic"
)

// SubscriptionPrefix starts every generated subscription id.
const SubscriptionPrefix = "sub-"

// IDGenerator produces subscription ids. Implementations need not
// guarantee uniqueness; the session re-draws ids that are in use.
type IDGenerator interface {
	NextID() string
}

// IDFunc adapts a function to IDGenerator.
type IDFunc func() string

func (f IDFunc) NextID() string { return f() }

// SequentialIDs yields sub-0, sub-1, ... It is the default generator.
type SequentialIDs struct {
	n atomic.Int64
}

func (s *SequentialIDs) NextID() string {
	return SubscriptionPrefix + strconv.FormatInt(s.n.Add(1)-1, 10)
}

// RandomIDs draws sub-N with N uniform in [0, Max). Max defaults to 1000.
type RandomIDs struct {
	Max int
}

func (r RandomIDs) NextID() string {
	n := r.Max
	if n <= 0 {
		n = 1000
	}
	return SubscriptionPrefix + strconv.Itoa(rand.Intn(n))
}

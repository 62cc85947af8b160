package service

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// OrderNumberGenerator produces human-readable order numbers of the form
// YYYYMMDDHHMMSS-CXXX-RRRR, e.g. 20260106210303-C005-8472: second-precision
// creation time, zero-padded customer id, 4-digit random suffix.
//
// The composite is practically unique at expected order volume but is NOT
// checked against existing orders; a same-second collision for the same
// customer with the same random draw is an accepted risk.
type OrderNumberGenerator struct {
	now func() time.Time

	// mu guards rnd: *rand.Rand is not goroutine-safe and one generator
	// serves all concurrent placements.
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewOrderNumberGenerator creates a generator with an injectable clock and
// random source so tests can pin both.
func NewOrderNumberGenerator(now func() time.Time, rnd *rand.Rand) *OrderNumberGenerator {
	if now == nil {
		now = time.Now
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &OrderNumberGenerator{now: now, rnd: rnd}
}

// Next returns a fresh order number for the given customer
func (g *OrderNumberGenerator) Next(customerID int64) string {
	datePart := g.now().Format("20060102150405")
	g.mu.Lock()
	randomPart := 1000 + g.rnd.Intn(9000)
	g.mu.Unlock()
	return fmt.Sprintf("%s-C%03d-%04d", datePart, customerID, randomPart)
}

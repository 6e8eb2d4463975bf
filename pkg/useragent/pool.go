package useragent

import (
	"math/rand/v2"
	"sync/atomic"
)

// Defaults is the rotation used when no client identification is configured.
var Defaults = []string{
	// Chrome Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	// Chrome Mac
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	// Firefox
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:126.0) Gecko/20100101 Firefox/126.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:126.0) Gecko/20100101 Firefox/126.0",
	// Safari Mac
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	// Edge Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0",
}

// Pool hands out User-Agent strings for outgoing requests.
// It is safe for concurrent use.
type Pool struct {
	uas  []string
	next atomic.Uint64
}

// NewPool creates a pool from the given User-Agents, falling back to Defaults
// when the slice is empty. Blank entries are ignored.
func NewPool(uas []string) *Pool {
	copied := make([]string, 0, len(uas))
	for _, ua := range uas {
		if ua != "" {
			copied = append(copied, ua)
		}
	}
	if len(copied) == 0 {
		copied = append(copied, Defaults...)
	}
	return &Pool{uas: copied}
}

// Fixed returns a pool that always yields ua. An empty ua yields the default rotation.
func Fixed(ua string) *Pool {
	return NewPool([]string{ua})
}

// Next returns the next User-Agent in round-robin order.
func (p *Pool) Next() string {
	idx := p.next.Add(1) - 1
	return p.uas[idx%uint64(len(p.uas))]
}

// Random returns a uniformly chosen User-Agent.
func (p *Pool) Random() string {
	return p.uas[rand.IntN(len(p.uas))]
}

// Len reports how many User-Agents the pool rotates through.
func (p *Pool) Len() int {
	return len(p.uas)
}

// All returns a copy of the pool contents.
func (p *Pool) All() []string {
	out := make([]string, len(p.uas))
	copy(out, p.uas)
	return out
}

package chromedp_enricher

import (
	"math/rand/v2"
	"sync"
)

// userAgents rotates the browser identity presented to item pages.
type userAgents struct {
	mu     sync.Mutex
	agents []string
	next   int
}

func newUserAgents(agents []string) *userAgents {
	if len(agents) == 0 {
		agents = defaultUserAgents
	}
	// Random starting point so restarted processes do not all open with the same agent.
	return &userAgents{agents: agents, next: rand.IntN(len(agents))}
}

// pick returns the next agent in round-robin order.
func (u *userAgents) pick() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	ua := u.agents[u.next]
	u.next = (u.next + 1) % len(u.agents)
	return ua
}

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
}

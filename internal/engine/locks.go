package engine

import "sync"

// portfolioLocks hands out one mutex per portfolio id so that the
// read-check-write sequences of PlaceOrder and CancelOrder are
// serialized per portfolio while unrelated portfolios proceed in
// parallel. Locks are never released back to the map; the set is
// bounded by the number of portfolios ever touched.
type portfolioLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newPortfolioLocks() *portfolioLocks {
	return &portfolioLocks{locks: make(map[string]*sync.Mutex)}
}

// get returns the mutex for a portfolio, creating it on first use.
func (p *portfolioLocks) get(portfolioID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.locks[portfolioID]
	if !ok {
		l = &sync.Mutex{}
		p.locks[portfolioID] = l
	}
	return l
}

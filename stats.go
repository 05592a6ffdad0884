package taxios

import "go.uber.org/atomic"

// Stats is a snapshot of client counters.
type Stats struct {
	Requests       uint64
	CacheHits      uint64
	CacheMisses    uint64
	Superseded     uint64
	Failures       uint64
	TokenRefreshes uint64
}

type counters struct {
	requests       atomic.Uint64
	cacheHits      atomic.Uint64
	cacheMisses    atomic.Uint64
	superseded     atomic.Uint64
	failures       atomic.Uint64
	tokenRefreshes atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Requests:       c.requests.Load(),
		CacheHits:      c.cacheHits.Load(),
		CacheMisses:    c.cacheMisses.Load(),
		Superseded:     c.superseded.Load(),
		Failures:       c.failures.Load(),
		TokenRefreshes: c.tokenRefreshes.Load(),
	}
}

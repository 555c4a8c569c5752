// Package netmon translates connectivity probes into an online/offline signal
// with transition-edge notification. Subscribers are invoked only when the
// state actually changes, so a flapping probe cannot trigger redundant sync
// drains.
package netmon

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Prober answers a single "are we online right now" question.
// The default implementation issues an HTTP HEAD against the API ping path.
type Prober interface {
	Probe(ctx context.Context) bool
}

// probeTimeout bounds one connectivity check so a black-holed network cannot
// stall the polling loop.
const probeTimeout = 5 * time.Second

// HTTPProber probes connectivity with a HEAD request to a fixed URL.
type HTTPProber struct {
	url    string
	client *http.Client
}

// NewHTTPProber creates a prober against url. A nil client gets a dedicated
// one with the probe timeout.
func NewHTTPProber(url string, client *http.Client) *HTTPProber {
	if client == nil {
		client = &http.Client{Timeout: probeTimeout}
	}

	return &HTTPProber{url: url, client: client}
}

// Probe reports whether the endpoint answered at all. Any HTTP status counts
// as online; only transport failure counts as offline.
func (p *HTTPProber) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()

	return true
}

// Monitor polls a Prober and publishes online/offline transitions.
type Monitor struct {
	prober   Prober
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	online bool
	nextID int
	subs   map[int]func(online bool)
}

// New creates a Monitor. The monitor starts in the offline state; the first
// probe in Run (or an explicit SetOnline) establishes the real state.
func New(prober Prober, interval time.Duration, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Monitor{
		prober:   prober,
		interval: interval,
		logger:   logger,
		subs:     make(map[int]func(online bool)),
	}
}

// IsOnline returns the last observed connectivity state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.online
}

// Subscribe registers fn to be called on every state transition. The returned
// function unsubscribes; calling it more than once is harmless.
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subs[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		delete(m.subs, id)
	}
}

// SetOnline records a connectivity observation, notifying subscribers only on
// an actual transition. Exposed so tests and platform integrations can feed
// observations without a prober.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()

	if m.online == online {
		m.mu.Unlock()
		return
	}

	m.online = online

	// Snapshot subscribers so callbacks run without holding the lock;
	// a callback may subscribe or unsubscribe.
	fns := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	m.logger.Info("connectivity changed", "online", online)

	for _, fn := range fns {
		fn(online)
	}
}

// Run polls the prober until ctx is canceled. The first probe fires
// immediately so callers get an accurate state without waiting one interval.
func (m *Monitor) Run(ctx context.Context) error {
	m.SetOnline(m.prober.Probe(ctx))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.SetOnline(m.prober.Probe(ctx))
		}
	}
}

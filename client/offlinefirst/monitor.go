package offlinefirst

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/simonmuehling/educafric-app-sub019/core"
)

type (
	// Monitor reports the connectivity with the server.
	Monitor interface {
		Online() bool
		// Subscribe returns a channel receiving the new state on every change, closed once ctx is done.
		Subscribe(ctx context.Context) <-chan bool
	}

	// Prober checks that the server answers.
	Prober interface {
		Health(ctx context.Context) error
	}
)

type state struct {
	mu     sync.Mutex
	online bool
	subs   map[chan bool]struct{}
}

func (s *state) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// set stores online and reports whether it changed.
func (s *state) set(online bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if online == s.online {
		return false
	}
	s.online = online
	for ch := range s.subs {
		// keep only the latest state for slow subscribers
		select {
		case <-ch:
		default:
		}
		ch <- online
	}
	return true
}

func (s *state) Subscribe(ctx context.Context) <-chan bool {
	ch := make(chan bool, 1)
	s.mu.Lock()
	if s.subs == nil {
		s.subs = make(map[chan bool]struct{})
	}
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, ch)
		close(ch)
		s.mu.Unlock()
	}()
	return ch
}

// StaticMonitor is switched by hand, for tests and the forced offline mode.
type StaticMonitor struct {
	state
}

func NewStaticMonitor(online bool) *StaticMonitor {
	m := &StaticMonitor{}
	m.online = online
	return m
}

func (m *StaticMonitor) Set(online bool) {
	m.set(online)
}

// ProbeMonitor polls the server health on an interval.
type ProbeMonitor struct {
	state
	prober   Prober
	interval time.Duration
	logger   core.Logger
}

func NewProbeMonitor(prober Prober, interval time.Duration, logger core.Logger) *ProbeMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ProbeMonitor{prober: prober, interval: interval, logger: logger}
}

// Probe checks the server once and updates the state.
func (m *ProbeMonitor) Probe(ctx context.Context) bool {
	timeout := m.interval
	if timeout > 10*time.Second {
		timeout = 10 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	err := m.prober.Health(probeCtx)
	cancel()
	if ctx.Err() != nil {
		return m.Online()
	}

	online := err == nil
	if m.set(online) {
		if online {
			m.logger.Info("server reachable, back online")
		} else {
			m.logger.Warn(fmt.Sprintf("server unreachable, going offline: %v", err))
		}
	}
	return online
}

// Run probes right away then on every tick until ctx is done.
func (m *ProbeMonitor) Run(ctx context.Context) {
	m.Probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

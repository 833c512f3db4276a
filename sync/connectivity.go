// ABOUTME: Connectivity monitor probing the sync server on an interval
// ABOUTME: Tracks online state, supports forced-offline mode, and notifies subscribers on transitions

package sync

import (
	"context"
	"log"
	"sync"
	"time"
)

// defaultProbeInterval is how often the monitor checks the server.
const defaultProbeInterval = 30 * time.Second

// Prober is the health check the monitor runs. *APIClient.Health satisfies it.
type Prober func(ctx context.Context) error

// Connectivity watches whether the sync server is reachable. Construct with
// NewConnectivity and tear down with Destroy.
type Connectivity struct {
	probe    Prober
	interval time.Duration
	logger   *log.Logger

	mu            sync.Mutex
	online        bool
	forcedOffline bool
	nextSubID     int
	subscribers   map[int]func(online bool)

	cancel context.CancelFunc
	done   chan struct{}
}

// NewConnectivity starts a monitor that probes immediately and then every
// interval. A zero interval gets the 30s default. If logger is nil,
// log.Default() is used.
func NewConnectivity(probe Prober, interval time.Duration, logger *log.Logger) *Connectivity {
	if interval == 0 {
		interval = defaultProbeInterval
	}
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connectivity{
		probe:       probe,
		interval:    interval,
		logger:      logger,
		subscribers: make(map[int]func(online bool)),
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	go c.loop(ctx)
	return c
}

// Destroy stops the probe loop and waits for it to exit.
func (c *Connectivity) Destroy() {
	c.cancel()
	<-c.done
}

func (c *Connectivity) loop(ctx context.Context) {
	defer close(c.done)

	c.runProbe(ctx)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runProbe(ctx)
		}
	}
}

func (c *Connectivity) runProbe(ctx context.Context) {
	c.mu.Lock()
	forced := c.forcedOffline
	c.mu.Unlock()
	if forced {
		c.setOnline(false)
		return
	}
	err := c.probe(ctx)
	c.setOnline(err == nil)
}

// setOnline records the state and notifies subscribers on a transition.
// Callbacks run outside the lock so a subscriber may call back into the
// monitor.
func (c *Connectivity) setOnline(online bool) {
	c.mu.Lock()
	if c.online == online {
		c.mu.Unlock()
		return
	}
	c.online = online
	subs := make([]func(bool), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	if online {
		c.logger.Printf("[sync] connection to sync server restored")
	} else {
		c.logger.Printf("[sync] sync server unreachable, working offline")
	}
	for _, fn := range subs {
		fn(online)
	}
}

// IsOnline reports the last observed state. Forced offline always reads as
// offline.
func (c *Connectivity) IsOnline() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online && !c.forcedOffline
}

// SetForcedOffline pins the monitor offline regardless of probe results.
// Turning it off takes effect immediately by re-running the probe.
func (c *Connectivity) SetForcedOffline(forced bool) {
	c.mu.Lock()
	c.forcedOffline = forced
	c.mu.Unlock()
	if forced {
		c.setOnline(false)
	} else {
		c.Recheck()
	}
}

// Recheck runs one probe synchronously, outside the interval schedule.
func (c *Connectivity) Recheck() {
	c.runProbe(context.Background())
}

// Subscribe registers a callback fired on every online/offline transition.
// The returned function unsubscribes it.
func (c *Connectivity) Subscribe(fn func(online bool)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
	}
}

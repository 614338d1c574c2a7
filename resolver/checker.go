package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/wintermutant/anvil-composable-tutorial/config"
	"github.com/wintermutant/anvil-composable-tutorial/errors"
	"github.com/wintermutant/anvil-composable-tutorial/health"
	"github.com/wintermutant/anvil-composable-tutorial/metric"
)

// Checker probes each replica's liveness endpoint on a fixed interval and
// flips pool membership through per-replica threshold trackers: a replica
// leaves rotation after FailThreshold consecutive probe failures and
// returns after RestoreThreshold consecutive successes.
type Checker struct {
	pool     *Pool
	config   config.DiscoveryConfig
	logger   *slog.Logger
	metrics  *metric.Metrics
	monitor  *health.Monitor
	client   *http.Client
	trackers map[string]*health.Tracker

	// Lifecycle
	running  bool
	mu       sync.Mutex
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewChecker creates a health checker over the pool's replica set
func NewChecker(
	pool *Pool,
	cfg config.DiscoveryConfig,
	logger *slog.Logger,
	metrics *metric.Metrics,
	monitor *health.Monitor,
) (*Checker, error) {
	if pool == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Checker", "NewChecker",
			"pool is required")
	}

	if logger == nil {
		logger = slog.Default()
	}

	trackers := make(map[string]*health.Tracker)
	for _, replica := range pool.Replicas() {
		trackers[replica] = health.NewTracker(cfg.FailThreshold, cfg.RestoreThreshold)
	}

	return &Checker{
		pool:     pool,
		config:   cfg,
		logger:   logger,
		metrics:  metrics,
		monitor:  monitor,
		trackers: trackers,
		client: &http.Client{
			Timeout: cfg.ProbeTimeout,
		},
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start runs the probe loop until the context is cancelled or Stop is called
func (c *Checker) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.WrapFatal(errors.ErrAlreadyStarted, "Checker", "Start",
			"checker already running")
	}
	c.running = true
	c.mu.Unlock()

	c.logger.Info("Health checker starting",
		"replicas", len(c.trackers),
		"interval", c.config.ProbeInterval,
		"fail_threshold", c.config.FailThreshold,
		"restore_threshold", c.config.RestoreThreshold)

	go c.run(ctx)
	return nil
}

// Stop halts the probe loop and waits for it to exit
func (c *Checker) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
	<-c.done

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	c.logger.Info("Health checker stopped")
}

func (c *Checker) run(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.config.ProbeInterval)
	defer ticker.Stop()

	// Probe immediately so a dead replica leaves rotation without waiting
	// a full interval
	c.probeAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.probeAll(ctx)
		}
	}
}

// probeAll probes every replica once, concurrently
func (c *Checker) probeAll(ctx context.Context) {
	var wg sync.WaitGroup
	for replica := range c.trackers {
		wg.Add(1)
		go func(replica string) {
			defer wg.Done()
			c.probeOne(ctx, replica)
		}(replica)
	}
	wg.Wait()
}

// probeOne issues a single liveness probe and records the outcome
func (c *Checker) probeOne(ctx context.Context, replica string) {
	err := c.probe(ctx, replica)
	tracker := c.trackers[replica]

	if err == nil {
		if tracker.RecordSuccess() {
			c.logger.Info("Replica restored", "replica", replica)
			c.pool.SetHealthy(replica, true)
			c.recordTransition(replica, true)
		}
		c.updateMonitor(replica, tracker)
		c.setHealthGauge(replica, tracker.Healthy())
		return
	}

	if tracker.RecordFailure() {
		c.logger.Warn("Replica removed from rotation", "replica", replica, "error", err)
		c.pool.SetHealthy(replica, false)
		c.recordTransition(replica, false)
	} else {
		c.logger.Debug("Replica probe failed", "replica", replica, "error", err)
	}
	c.updateMonitor(replica, tracker)
	c.setHealthGauge(replica, tracker.Healthy())
}

// probe performs one HTTP liveness check against a replica
func (c *Checker) probe(ctx context.Context, replica string) error {
	probeCtx, cancel := context.WithTimeout(ctx, c.config.ProbeTimeout)
	defer cancel()

	url := strings.TrimSuffix(replica, "/") + c.config.ProbePath
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, url, nil)
	if err != nil {
		return errors.WrapFatal(err, "Checker", "probe", "failed to build probe request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.WrapTransient(errors.ErrReplicaUnreachable, "Checker", "probe",
			fmt.Sprintf("reach %s", replica))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.WrapTransient(errors.ErrReplicaUnreachable, "Checker", "probe",
			fmt.Sprintf("probe with status %d", resp.StatusCode))
	}

	return nil
}

func (c *Checker) updateMonitor(replica string, tracker *health.Tracker) {
	if c.monitor == nil {
		return
	}

	failures, successes := tracker.Counts()
	if tracker.Healthy() {
		c.monitor.Update(replica, health.Status{
			Healthy:              true,
			Status:               "healthy",
			Timestamp:            time.Now().UTC(),
			ConsecutiveSuccesses: successes,
		})
	} else {
		c.monitor.Update(replica, health.Status{
			Healthy:             false,
			Status:              "unhealthy",
			Message:             "liveness probe failing",
			Timestamp:           time.Now().UTC(),
			ConsecutiveFailures: failures,
		})
	}
}

func (c *Checker) setHealthGauge(replica string, healthy bool) {
	if c.metrics == nil {
		return
	}
	value := 0.0
	if healthy {
		value = 1.0
	}
	c.metrics.ReplicaHealthy.WithLabelValues(replica).Set(value)
}

func (c *Checker) recordTransition(replica string, healthy bool) {
	if c.metrics == nil {
		return
	}
	to := "unhealthy"
	if healthy {
		to = "healthy"
	}
	c.metrics.HealthTransitions.WithLabelValues(replica, to).Inc()
}

// Package sentinel runs the dependency watch loop. Each configured dependency
// gets its own goroutine that probes it on a fixed interval through a circuit
// breaker, so probing stops fast-failing dependencies until their recovery
// timeout elapses. An aggregate rate limiter caps probes per second across
// all dependencies.
package sentinel

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dskow/resilience-core/internal/config"
	"github.com/dskow/resilience-core/internal/metrics"
	"github.com/dskow/resilience-core/pkg/breaker"
)

// ProbeFunc checks one dependency. It must honor ctx cancellation and return
// nil only when the dependency answered.
type ProbeFunc func(ctx context.Context, dep config.DependencyConfig) error

// Watcher owns the per-dependency probe goroutines.
type Watcher struct {
	group   *breaker.Group
	limiter *rate.Limiter
	logger  *slog.Logger
	probe   ProbeFunc

	mu         sync.Mutex
	deps       map[string]*depWatch
	started    bool
	rootCtx    context.Context
	cancelRoot context.CancelFunc
	wg         sync.WaitGroup
}

type depWatch struct {
	cfg       config.DependencyConfig
	effective breaker.Settings
	cancel    context.CancelFunc
}

// NewWatcher registers every configured dependency on group and prepares the
// watch loops. Start must be called to begin probing.
func NewWatcher(group *breaker.Group, cfg config.SentinelConfig, defaults config.BreakerConfig, logger *slog.Logger) (*Watcher, error) {
	w := &Watcher{
		group:   group,
		limiter: rate.NewLimiter(probeLimit(cfg.MaxProbeRate)),
		logger:  logger,
		probe:   defaultProbe,
		deps:    make(map[string]*depWatch),
	}

	for _, dep := range cfg.Dependencies {
		eff := breakerSettings(dep, defaults)
		if err := group.Configure(dep.Name, eff); err != nil {
			return nil, err
		}
		// Create the breaker now so readiness and the admin API see every
		// watched dependency before its first probe settles.
		group.Get(dep.Name)
		w.deps[dep.Name] = &depWatch{cfg: dep, effective: eff}
	}

	return w, nil
}

func probeLimit(maxProbeRate float64) (rate.Limit, int) {
	if maxProbeRate <= 0 {
		return rate.Inf, 0
	}
	burst := int(math.Ceil(maxProbeRate))
	if burst < 1 {
		burst = 1
	}
	return rate.Limit(maxProbeRate), burst
}

func breakerSettings(dep config.DependencyConfig, defaults config.BreakerConfig) breaker.Settings {
	eff := dep.BreakerSettings(defaults)
	return breaker.Settings{
		FailureThreshold: eff.FailureThreshold,
		SuccessThreshold: eff.SuccessThreshold,
		RecoveryTimeout:  eff.RecoveryTimeout,
	}
}

// Start launches one watch goroutine per dependency.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	w.rootCtx, w.cancelRoot = context.WithCancel(context.Background())

	for _, dw := range w.deps {
		w.spawnLocked(dw)
	}
	w.logger.Info("sentinel started", "dependencies", len(w.deps))
}

// Stop cancels all watch goroutines and waits for them to drain.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	w.cancelRoot()
	w.mu.Unlock()

	w.wg.Wait()
	w.logger.Info("sentinel stopped")
}

// spawnLocked starts the watch loop for dw. Caller holds w.mu and has
// verified the watcher is started.
func (w *Watcher) spawnLocked(dw *depWatch) {
	ctx, cancel := context.WithCancel(w.rootCtx)
	dw.cancel = cancel
	w.wg.Add(1)
	go w.watchLoop(ctx, dw.cfg)
}

func (w *Watcher) watchLoop(ctx context.Context, dep config.DependencyConfig) {
	defer w.wg.Done()

	b := w.group.Get(dep.Name)

	// Probe immediately so readiness settles without waiting a full interval.
	w.probeOnce(ctx, b, dep)

	ticker := time.NewTicker(dep.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.probeOnce(ctx, b, dep)
		}
	}
}

func (w *Watcher) probeOnce(ctx context.Context, b *breaker.Breaker, dep config.DependencyConfig) {
	if !w.limiter.Allow() {
		metrics.ProbeSkips.WithLabelValues(dep.Name, "rate-limited").Inc()
		w.logger.Debug("probe skipped", "dependency", dep.Name, "cause", "rate-limited")
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, dep.Timeout)
	defer cancel()

	start := time.Now()
	err := b.Do(probeCtx, func(ctx context.Context) error {
		return w.probe(ctx, dep)
	})

	if breaker.IsOpen(err) {
		metrics.ProbeSkips.WithLabelValues(dep.Name, "circuit-open").Inc()
		w.logger.Debug("probe skipped", "dependency", dep.Name, "cause", "circuit-open")
		return
	}

	duration := time.Since(start)
	metrics.ProbeDuration.WithLabelValues(dep.Name).Observe(duration.Seconds())

	if err != nil {
		metrics.ProbesTotal.WithLabelValues(dep.Name, "failure").Inc()
		w.logger.Warn("dependency probe failed",
			"dependency", dep.Name,
			"probe", dep.Probe,
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
		return
	}

	metrics.ProbesTotal.WithLabelValues(dep.Name, "success").Inc()
	w.logger.Debug("dependency probe ok", "dependency", dep.Name, "duration_ms", duration.Milliseconds())
}

// UpdateConfig applies a reloaded configuration. New dependencies start
// watching, removed ones stop and drop their breaker, and changed ones are
// recreated with fresh breaker state. Unchanged dependencies keep their
// breaker state and in-flight loops.
func (w *Watcher) UpdateConfig(cfg config.SentinelConfig, defaults config.BreakerConfig) {
	w.mu.Lock()
	defer w.mu.Unlock()

	limit, burst := probeLimit(cfg.MaxProbeRate)
	w.limiter.SetLimit(limit)
	w.limiter.SetBurst(burst)

	incoming := make(map[string]config.DependencyConfig, len(cfg.Dependencies))
	for _, dep := range cfg.Dependencies {
		incoming[dep.Name] = dep
	}

	// Stop watchers for removed or changed dependencies.
	for name, dw := range w.deps {
		dep, ok := incoming[name]
		if ok && dwKey(dep) == dwKey(dw.cfg) && breakerSettings(dep, defaults) == dw.effective {
			continue
		}
		if dw.cancel != nil {
			dw.cancel()
		}
		w.group.Remove(name)
		delete(w.deps, name)
		if ok {
			w.logger.Info("dependency watcher replaced", "dependency", name)
		} else {
			w.logger.Info("dependency watcher removed", "dependency", name)
		}
	}

	// Start watchers for new or replaced dependencies.
	for name, dep := range incoming {
		if _, ok := w.deps[name]; ok {
			continue
		}
		eff := breakerSettings(dep, defaults)
		if err := w.group.Configure(name, eff); err != nil {
			w.logger.Error("dependency watcher not started", "dependency", name, "error", err)
			continue
		}
		w.group.Get(name)
		dw := &depWatch{cfg: dep, effective: eff}
		w.deps[name] = dw
		if w.started {
			w.spawnLocked(dw)
			w.logger.Info("dependency watcher started", "dependency", name)
		}
	}
}

// dwKey strips the override pointers so configs compare by value.
func dwKey(dep config.DependencyConfig) config.DependencyConfig {
	dep.FailureThreshold = nil
	dep.SuccessThreshold = nil
	dep.RecoveryTimeout = nil
	return dep
}

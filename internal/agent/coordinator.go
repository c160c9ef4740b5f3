// Package agent wires C1-C9 behind a single coordinator (spec.md §5): a
// background ticker drives the probe and heartbeat cycles, every K-th
// heartbeat triggers a self-update check, and the HTTP surface (C10,
// internal/httpapi) reads through the coordinator for every response.
//
// Grounded on the teacher's service-wiring convention of a single struct
// holding every subsystem's already-constructed client (see
// internal/security-gateway's gateway service constructor), generalized
// from one process-lifetime struct per microservice to this agent's own
// C1-C9 set.
package agent

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/DimaJoyti/node-agent/internal/commlog"
	"github.com/DimaJoyti/node-agent/internal/configstore"
	"github.com/DimaJoyti/node-agent/internal/heartbeat"
	"github.com/DimaJoyti/node-agent/internal/identity"
	"github.com/DimaJoyti/node-agent/internal/probe"
	"github.com/DimaJoyti/node-agent/internal/proxy"
	"github.com/DimaJoyti/node-agent/internal/selfupdate"
	"github.com/DimaJoyti/node-agent/internal/stats"
	"github.com/DimaJoyti/node-agent/internal/workflow"
	"github.com/DimaJoyti/node-agent/pkg/logger"
)

// Config bundles the coordinator's construction-time parameters, sourced
// from CLI flags (spec.md §6).
type Config struct {
	AgentDir         string
	AgentVersion     string
	Port             int
	LLMPort          int
	RenderPort       int
	ServerURL        string
	NoUpdate         bool
	ProbeInterval    time.Duration
	HeartbeatInterval time.Duration
	ExecPath         string
}

// Coordinator is the single in-process owner of every piece of mutable
// agent state.
type Coordinator struct {
	cfg Config
	log *logger.Logger

	Identity  *identity.Identity
	Overrides *configstore.Store
	Workflows *workflow.Registry

	LLMState    *ServiceState
	RenderState *ServiceState
	LLMStats    *stats.Engine
	RenderStats *stats.Engine
	LLMLog      *commlog.Ring
	RenderLog   *commlog.Ring
	LLMJobs     *proxy.JobTracker
	RenderJobs  *proxy.JobTracker

	Proxy     *proxy.Handler
	Prober    *probe.Prober
	Heartbeat *heartbeat.Client
	Updater   *selfupdate.Updater

	startedAt      time.Time
	heartbeatTicks int64

	hardware atomic.Value // identity.Hardware
}

// New constructs a Coordinator with every subsystem wired together.
func New(cfg Config, log *logger.Logger) (*Coordinator, error) {
	id, err := identity.New(cfg.AgentDir, cfg.Port, cfg.AgentVersion, log)
	if err != nil {
		return nil, err
	}

	store, err := configstore.Load(cfg.AgentDir)
	if err != nil {
		return nil, err
	}

	llmLog := commlog.New()
	renderLog := commlog.New()
	llmStats := stats.New()
	renderStats := stats.New()
	llmJobs := proxy.NewJobTracker()
	renderJobs := proxy.NewJobTracker()

	c := &Coordinator{
		cfg:         cfg,
		log:         log,
		Identity:    id,
		Overrides:   store,
		Workflows:   workflow.NewRegistry(),
		LLMState:    &ServiceState{},
		RenderState: &ServiceState{},
		LLMStats:    llmStats,
		RenderStats: renderStats,
		LLMLog:      llmLog,
		RenderLog:   renderLog,
		LLMJobs:     llmJobs,
		RenderJobs:  renderJobs,
		Prober:      probe.New(cfg.LLMPort, cfg.RenderPort, llmLog, renderLog, log),
		Heartbeat:   heartbeat.New(cfg.ServerURL, log),
		Updater:     selfupdate.New(cfg.ServerURL, cfg.ExecPath, log),
		startedAt:   time.Now(),
	}
	c.Proxy = proxy.New(
		proxy.Target{Port: cfg.LLMPort, Stats: llmStats, Log: llmLog, Jobs: llmJobs},
		proxy.Target{Port: cfg.RenderPort, Stats: renderStats, Log: renderLog, Jobs: renderJobs},
		log,
	)
	c.hardware.Store(identity.Hardware{})
	return c, nil
}

// StartedAt returns when this process started serving.
func (c *Coordinator) StartedAt() time.Time {
	return c.startedAt
}

// UptimeSeconds reports elapsed seconds since StartedAt.
func (c *Coordinator) UptimeSeconds() float64 {
	return time.Since(c.startedAt).Seconds()
}

// Hardware returns the last collected hardware snapshot.
func (c *Coordinator) Hardware() identity.Hardware {
	return c.hardware.Load().(identity.Hardware)
}

// Run drives the background probe/heartbeat/update loop until ctx is
// canceled (spec.md §5 "Scheduling model"). It performs one immediate
// probe cycle and, unless suppressed, one startup update check before
// entering the ticking loop.
func (c *Coordinator) Run(ctx context.Context) {
	c.runProbeCycle(ctx)

	if !c.cfg.NoUpdate {
		c.checkAndApplyUpdate(ctx)
	}

	probeTicker := time.NewTicker(c.cfg.ProbeInterval)
	heartbeatTicker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer probeTicker.Stop()
	defer heartbeatTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-probeTicker.C:
			c.runProbeCycle(ctx)
		case <-heartbeatTicker.C:
			c.runHeartbeatCycle(ctx)
		}
	}
}

func (c *Coordinator) runProbeCycle(ctx context.Context) {
	result := c.Prober.ProbeAll(ctx)
	c.LLMState.SetLLM(result.LLMAvailable, result.LLMModels)
	c.RenderState.SetRender(result.RenderAvailable, result.RenderCatalog)
	c.hardware.Store(identity.CollectHardware(ctx, c.log))
}

func (c *Coordinator) runHeartbeatCycle(ctx context.Context) {
	if err := c.Heartbeat.Send(ctx, c.HeartbeatPayload()); err != nil && c.log != nil {
		c.log.Warn("heartbeat failed: %v", err)
	}

	ticks := atomic.AddInt64(&c.heartbeatTicks, 1)
	if !c.cfg.NoUpdate && ticks%selfupdate.HeartbeatCycleInterval == 0 {
		c.checkAndApplyUpdate(ctx)
	}
}

// checkAndApplyUpdate runs the full check->download->apply->restart
// protocol in the background loop. Failures at any step are logged and
// swallowed; the next scheduled check retries (spec.md §4.9).
func (c *Coordinator) checkAndApplyUpdate(ctx context.Context) {
	if !c.Updater.Enabled() {
		return
	}
	result, err := c.Updater.Check(ctx)
	if err != nil {
		if c.log != nil {
			c.log.Warn("update check failed: %v", err)
		}
		return
	}
	if !result.NeedsUpdate {
		return
	}
	if err := c.ApplyUpdate(ctx); err != nil {
		if c.log != nil {
			c.log.Error("self-update failed: %v", err)
		}
		return
	}
	if c.log != nil {
		c.log.Info("self-update applied, restarting")
	}
	c.Restart()
}

// ApplyUpdate runs download+apply (not restart), used both by the
// background loop and by the manual POST /update/apply endpoint.
func (c *Coordinator) ApplyUpdate(ctx context.Context) error {
	if err := c.Updater.Download(ctx); err != nil {
		return err
	}
	return c.Updater.Apply()
}

// Restart re-execs the running process with its original argv and
// environment. Only returns on failure (a successful re-exec never
// returns to the caller).
func (c *Coordinator) Restart() {
	if err := c.Updater.Restart(os.Args, os.Environ()); err != nil && c.log != nil {
		c.log.Error("restart after update failed: %v", err)
	}
}

// HeartbeatPayload builds one heartbeat body from a consistent snapshot
// of every subsystem, taken without holding any lock across network I/O
// (spec.md §5 "Ordering").
func (c *Coordinator) HeartbeatPayload() heartbeat.Payload {
	now := time.Now()

	observedModels := c.LLMState.Models()
	advertisedModels := c.Overrides.FilterLLMModels(observedModels)
	renderCatalog := c.RenderState.Catalog()

	var advertisedIDs, readyIDs []string
	for _, id := range c.Workflows.IDs() {
		if c.Overrides.IsWorkflowHidden(id) {
			continue
		}
		advertisedIDs = append(advertisedIDs, id)
		if readiness, ok := c.Workflows.EvaluateReadiness(id, renderCatalog); ok && readiness.AllAvailable {
			readyIDs = append(readyIDs, id)
		}
	}

	return heartbeat.Payload{
		NodeID:   c.Identity.NodeID,
		Hostname: c.Identity.Hostname,
		Version:  c.cfg.AgentVersion,
		LLM: heartbeat.ServiceView{
			Available:  c.LLMState.Available(),
			Models:     advertisedModels,
			AllModels:  observedModels,
			Stats:      c.LLMStats.Snapshot(now),
			CurrentJob: c.LLMJobs.Current(),
		},
		Render: heartbeat.ServiceView{
			Available:  c.RenderState.Available(),
			Catalog:    renderCatalog,
			Stats:      c.RenderStats.Snapshot(now),
			CurrentJob: c.RenderJobs.Current(),
		},
		WorkflowIDs:    advertisedIDs,
		ReadyWorkflows: readyIDs,
		Hardware:       c.Hardware(),
		Timestamp:      now,
	}
}

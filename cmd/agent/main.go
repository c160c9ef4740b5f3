package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/DimaJoyti/node-agent/internal/agent"
	"github.com/DimaJoyti/node-agent/internal/httpapi"
	"github.com/DimaJoyti/node-agent/pkg/logger"
)

// version is the executable's own version string, reported on GET /version,
// GET /health and in heartbeats. Self-update compares the MD5 of the
// executable file, not this string. Overridable at build time via
// -ldflags, following the teacher's gocoffee-cli convention.
var version = "1.1.0"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "node-agent",
		Short: "Distributed AI-worker node agent",
		Long: `node-agent fronts a local LLM runtime and a render (ComfyUI-style)
runtime behind one HTTP control plane: it probes both for availability and
models, proxies generation/render requests while tracking per-job state,
reports rolling-window statistics, and (optionally) heartbeats to and
self-updates from an orchestrator.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), v)
		},
	}

	flags := cmd.Flags()
	flags.Int("port", 8765, "port the agent's own HTTP control plane listens on")
	flags.String("server", "", "orchestrator base URL; empty disables heartbeat and self-update")
	flags.Int("llm-port", 11434, "local LLM runtime port (Ollama-compatible)")
	flags.Int("render-port", 8000, "local render runtime port (ComfyUI-compatible)")
	flags.Bool("no-update", false, "disable the self-update background check even when --server is set")
	flags.Duration("probe-interval", 10*time.Second, "interval between local LLM/render availability probes")
	flags.Duration("heartbeat-interval", 30*time.Second, "interval between orchestrator heartbeats")
	flags.String("agent-dir", "", "directory holding agent_config.json; defaults to the executable's own directory")

	bindFlags(v, flags, "port", "server", "llm-port", "render-port", "no-update", "probe-interval", "heartbeat-interval", "agent-dir")

	v.SetEnvPrefix("AGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return cmd
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys ...string) {
	for _, key := range keys {
		_ = v.BindPFlag(key, flags.Lookup(key))
	}
}

func run(ctx context.Context, v *viper.Viper) error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to resolve own executable path: %w", err)
	}

	agentDir := v.GetString("agent-dir")
	if agentDir == "" {
		agentDir = filepath.Dir(execPath)
	}

	env := os.Getenv("AGENT_ENV")
	log := logger.NewFromEnv(env, "node-agent")

	coord, err := agent.New(agent.Config{
		AgentDir:          agentDir,
		AgentVersion:      version,
		Port:              v.GetInt("port"),
		LLMPort:           v.GetInt("llm-port"),
		RenderPort:        v.GetInt("render-port"),
		ServerURL:         v.GetString("server"),
		NoUpdate:          v.GetBool("no-update"),
		ProbeInterval:     v.GetDuration("probe-interval"),
		HeartbeatInterval: v.GetDuration("heartbeat-interval"),
		ExecPath:          execPath,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to construct agent coordinator: %w", err)
	}

	if token := os.Getenv("AGENT_UPDATE_TOKEN"); token != "" {
		if err := coord.Updater.SetAuthToken(token); err != nil {
			log.Warn("ignoring AGENT_UPDATE_TOKEN: %v", err)
		}
	}

	router := httpapi.NewRouter(coord, log)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", v.GetInt("port")),
		Handler: router,
	}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	go coord.Run(bgCtx)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("node-agent listening on %s (llm=:%d render=:%d)", server.Addr, v.GetInt("llm-port"), v.GetInt("render-port"))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, draining connections")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	}

	stopBackground()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// Command aicihost is the reference host simulator: it wires the in-memory
// fake tokenizer, the JSON-over-WebSocket wire transport, and the MCP
// variable store together and drives a small fixed set of demo programs
// end to end, standing in for a real inference runtime and controller host.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aici-run/aici-go/internal/budget"
	"github.com/aici-run/aici-go/internal/config"
	"github.com/aici-run/aici-go/internal/demoprogram"
	"github.com/aici-run/aici-go/internal/faketoken"
	"github.com/aici-run/aici-go/internal/forkrunner"
	"github.com/aici-run/aici-go/internal/health"
	"github.com/aici-run/aici-go/internal/observe"
	"github.com/aici-run/aici-go/internal/varstore/mcpvarstore"
	"github.com/aici-run/aici-go/internal/wire"
	"github.com/aici-run/aici-go/pkg/aici"
)

// version is reported to OpenTelemetry and the MCP implementation handshake.
const version = "0.1.0"

// forkFanOut is how many siblings the "fork-branch" demo program always
// produces. A reference host with a fixed program registry can hardcode
// this; a host driving arbitrary programs would need the fan-out
// communicated some other way before the forking round.
const forkFanOut = 2

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "aicihost: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "aicihost: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("aicihost starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"wire_addr", cfg.Wire.ListenAddr,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "aicihost",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise observability providers", "error", err)
		return 1
	}
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(shutCtx); err != nil {
			slog.Error("observability shutdown error", "error", err)
		}
	}()

	metrics := observe.DefaultMetrics()

	vars := mcpvarstore.NewStore()
	mcpSession, err := startVarStoreServer(ctx, vars)
	if err != nil {
		slog.Error("failed to start variable store", "error", err)
		return 1
	}
	defer func() { _ = mcpSession.Close() }()

	if err := selfCheckVarStore(ctx, mcpSession); err != nil {
		slog.Error("variable store self-check failed", "error", err)
		return 1
	}
	slog.Info("variable store self-check passed")

	connectExternalMCPServers(ctx, cfg.MCP.Servers)

	wireServer := wire.NewServer(wire.WithLogger(logger), wire.WithMetrics(metrics))

	healthHandler := health.New(health.Checker{
		Name:  "variable_store",
		Check: func(ctx context.Context) error { return selfCheckVarStore(ctx, mcpSession) },
	})
	adminMux := http.NewServeMux()
	healthHandler.Register(adminMux)
	adminMux.Handle("GET /metrics", promhttp.Handler())
	adminSrv := &http.Server{Addr: cfg.Server.ListenAddr, Handler: observe.Middleware(metrics)(adminMux)}
	go func() {
		if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("admin server error", "error", err)
		}
	}()

	var wireHandler http.Handler = wireServer.Handler()
	if cfg.Wire.Path != "" {
		root := http.NewServeMux()
		root.Handle(cfg.Wire.Path+"/", http.StripPrefix(cfg.Wire.Path, wireHandler))
		wireHandler = root
	}
	wireSrv := &http.Server{Addr: cfg.Wire.ListenAddr, Handler: observe.Middleware(metrics)(wireHandler)}
	go func() {
		if err := wireSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("wire server error", "error", err)
		}
	}()

	// Give the listeners a moment to come up before any sequence dials out.
	time.Sleep(50 * time.Millisecond)

	printStartupSummary(*configPath, cfg)

	wireBaseURL := "ws://" + cfg.Wire.ListenAddr + cfg.Wire.Path
	limits := cfg.Budget.Limits()

	var wg sync.WaitGroup
	var nextID atomic.Int64
	nextID.Store(1)

	// launchSequence spins up one configured sequence in its own goroutine.
	// It is used both for the initial batch below and for sequences a config
	// reload adds or changes later, which is why sequence ids are handed out
	// through an atomic counter rather than a plain loop variable.
	launchSequence := func(seqCfg config.SequenceConfig) {
		tracker := budget.NewTracker(seqCfg.Name, tieredLimits(seqCfg.Tier, limits))

		if seqCfg.Program == "fork-branch" {
			id := aici.SeqId(nextID.Add(forkFanOut) - forkFanOut)
			wg.Add(1)
			go func(seqCfg config.SequenceConfig, id aici.SeqId) {
				defer wg.Done()
				runForkSequence(ctx, wireBaseURL, seqCfg, id, vars, wireServer, tracker)
			}(seqCfg, id)
			return
		}

		id := aici.SeqId(nextID.Add(1) - 1)
		wg.Add(1)
		go func(seqCfg config.SequenceConfig, id aici.SeqId) {
			defer wg.Done()
			runSequence(ctx, wireBaseURL, seqCfg, id, vars, wireServer, mcpSession, tracker)
		}(seqCfg, id)
	}

	for _, seqCfg := range cfg.Sequences {
		launchSequence(seqCfg)
	}
	slog.Info("all sequences launched — press Ctrl+C to shut down")

	watcher, err := config.NewWatcher(*configPath, func(old, newCfg *config.Config) {
		onConfigChange(&logger, old, newCfg, launchSequence)
	})
	if err != nil {
		slog.Warn("config hot-reload disabled: failed to start watcher", "error", err)
	} else {
		defer watcher.Stop()
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	slog.Info("shutdown signal received, stopping…")
	if watcher != nil {
		watcher.Stop()
	}
	if err := wireSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("wire server shutdown error", "error", err)
	}
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("admin server shutdown error", "error", err)
	}

	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
		slog.Info("all sequences completed")
	case <-shutdownCtx.Done():
		slog.Warn("timed out waiting for in-flight sequences to finish")
	}

	slog.Info("goodbye")
	return 0
}

// onConfigChange reacts to a hot-reloaded config: it swaps in a new logger on
// a log level change and relaunches any sequence the reload added or
// modified. Removed sequences are logged but left running — there is no
// cancellation hook a reference host can call into a live [aici.Driver], so
// the old instance simply runs to completion on its original config.
func onConfigChange(logger **slog.Logger, old, newCfg *config.Config, launchSequence func(config.SequenceConfig)) {
	diff := config.Diff(old, newCfg)

	if diff.LogLevelChanged {
		*logger = newLogger(diff.NewLogLevel)
		slog.SetDefault(*logger)
		slog.Info("log level changed via config reload", "level", diff.NewLogLevel)
	}

	for _, sd := range diff.SequenceChanges {
		if sd.Removed {
			slog.Warn("sequence removed from config; the already-running instance keeps going until it finishes on its own", "sequence", sd.Name)
			continue
		}

		seqCfg, ok := lookupSequence(newCfg, sd.Name)
		if !ok {
			slog.Error("config diff referenced a sequence missing from the new config", "sequence", sd.Name)
			continue
		}
		if sd.Added {
			slog.Info("launching sequence added by config reload", "sequence", sd.Name)
		} else {
			slog.Info("relaunching sequence changed by config reload", "sequence", sd.Name)
		}
		launchSequence(seqCfg)
	}
}

// lookupSequence finds a sequence by name in cfg, the lookup the hot-reload
// path needs since [config.Diff] reports changes by name only.
func lookupSequence(cfg *config.Config, name string) (config.SequenceConfig, bool) {
	for _, seqCfg := range cfg.Sequences {
		if seqCfg.Name == name {
			return seqCfg, true
		}
	}
	return config.SequenceConfig{}, false
}

// runSequence drives one non-forking demo sequence to completion over the
// wire transport, logging its final detokenized output.
func runSequence(ctx context.Context, wireBaseURL string, seqCfg config.SequenceConfig, id aici.SeqId, vars *mcpvarstore.Store, wireServer *wire.Server, mcpSession *mcpsdk.ClientSession, tracker *budget.Tracker) {
	prog, err := demoprogram.Lookup(seqCfg.Program)
	if err != nil {
		slog.Error("unknown demo program", "sequence", seqCfg.Name, "program", seqCfg.Program, "error", err)
		return
	}

	host := faketoken.NewHost(id, vars, func(d *aici.Driver) { wireServer.Register(id, d) })
	d := aici.New(host, prog)
	d.InitPrompt(host.Tokenize(seqCfg.Prompt))

	// echo-var blocks on a host variable nobody else in this run would ever
	// set; seed it through the MCP variable store, the same way an external
	// operator or tool would, to demonstrate the suspend/unblock path.
	if seqCfg.Program == "echo-var" {
		go func() {
			time.Sleep(50 * time.Millisecond)
			if _, err := mcpSession.CallTool(ctx, &mcpsdk.CallToolParams{
				Name:      "set_var",
				Arguments: map[string]any{"name": "topic", "value": seqCfg.Prompt},
			}); err != nil {
				slog.Error("failed to seed topic variable via mcp", "sequence", seqCfg.Name, "error", err)
			}
		}()
	}

	client, err := wire.Dial(ctx, wireBaseURL, id)
	if err != nil {
		slog.Error("failed to dial wire server", "sequence", seqCfg.Name, "error", err)
		return
	}
	defer func() { _ = client.Close() }()

	for ctx.Err() == nil {
		var outcome wire.RoundOutcome
		var runErr error
		tracker.Track(budget.PhaseMid, func() {
			outcome, runErr = client.RunRound(ctx, []aici.SeqId{id}, faketoken.Sample)
		})
		if runErr != nil {
			if ctx.Err() == nil {
				slog.Error("sequence round failed", "sequence", seqCfg.Name, "error", runErr)
			}
			return
		}
		if outcome.Suspended {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if outcome.Stop || outcome.StopSeq {
			break
		}
	}

	generated := d.Tokens()[d.PromptLen():]
	slog.Info("sequence finished", "sequence", seqCfg.Name, "output", string(host.Detokenize(generated)))
}

// runForkSequence pre-allocates forkFanOut sibling sequence ids for a known
// forking demo program, then drives every sibling concurrently over its own
// wire connection via [forkrunner.RunCollect].
func runForkSequence(ctx context.Context, wireBaseURL string, seqCfg config.SequenceConfig, baseID aici.SeqId, vars *mcpvarstore.Store, wireServer *wire.Server, tracker *budget.Tracker) {
	prog, err := demoprogram.Lookup(seqCfg.Program)
	if err != nil {
		slog.Error("unknown demo program", "sequence", seqCfg.Name, "program", seqCfg.Program, "error", err)
		return
	}

	forkGroup := make([]aici.SeqId, forkFanOut)
	for i := range forkGroup {
		forkGroup[i] = baseID + aici.SeqId(i)
	}

	drivers := make(map[aici.SeqId]*aici.Driver, forkFanOut)
	hosts := make(map[aici.SeqId]*faketoken.Host, forkFanOut)
	for _, id := range forkGroup {
		host := faketoken.NewHost(id, vars, func(d *aici.Driver) { wireServer.Register(id, d) })
		d := aici.New(host, prog)
		d.InitPrompt(host.Tokenize(seqCfg.Prompt))
		drivers[id] = d
		hosts[id] = host
	}

	results, err := forkrunner.RunCollect(ctx, forkGroup, func(ctx context.Context, id aici.SeqId, fg []aici.SeqId) (string, error) {
		client, err := wire.Dial(ctx, wireBaseURL, id)
		if err != nil {
			return "", err
		}
		defer func() { _ = client.Close() }()

		for ctx.Err() == nil {
			var outcome wire.RoundOutcome
			var runErr error
			tracker.Track(budget.PhaseMid, func() {
				outcome, runErr = client.RunRound(ctx, fg, faketoken.Sample)
			})
			if runErr != nil {
				return "", runErr
			}
			if outcome.Suspended {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			if outcome.ForkCount > 1 && outcome.ForkCount != len(fg) {
				slog.Warn("fork fan-out did not match the pre-allocated group size",
					"sequence", seqCfg.Name, "expected", len(fg), "observed", outcome.ForkCount)
			}
			if outcome.Stop || outcome.StopSeq {
				break
			}
		}

		d := drivers[id]
		generated := d.Tokens()[d.PromptLen():]
		return string(hosts[id].Detokenize(generated)), nil
	})
	if err != nil {
		slog.Error("fork sequence failed", "sequence", seqCfg.Name, "error", err)
		return
	}

	for i, id := range forkGroup {
		slog.Info("fork branch finished", "sequence", seqCfg.Name, "branch", i, "seq_id", id, "output", results[i])
	}
}

// tieredLimits scales base's mid-process budget by how much headroom a
// sequence's tier is expected to need. Pre/post budgets stay fixed since the
// demo programs never do meaningful work in those phases.
func tieredLimits(tier config.Tier, base budget.Limits) budget.Limits {
	mult := 1.0
	switch tier {
	case config.TierFast:
		mult = 0.5
	case config.TierDeep:
		mult = 4
	case config.TierStandard, "":
		mult = 1
	}
	limits := base
	limits.Mid = time.Duration(float64(base.Mid) * mult)
	return limits
}

// startVarStoreServer publishes vars as an MCP server over an in-memory
// transport and returns a connected client session, the handle the rest of
// this binary uses to reach it through the real MCP protocol rather than
// the Go-level Store API.
func startVarStoreServer(ctx context.Context, vars *mcpvarstore.Store) (*mcpsdk.ClientSession, error) {
	mcpServer := mcpvarstore.New(vars, "aicihost-varstore", version)
	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()

	go func() {
		if err := mcpServer.Run(ctx, serverTransport); err != nil && ctx.Err() == nil {
			slog.Error("mcp variable store server exited", "error", err)
		}
	}()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "aicihost", Version: version}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		return nil, fmt.Errorf("aicihost: connect to variable store: %w", err)
	}
	return session, nil
}

// selfCheckVarStoreProbe is the variable name the self-check writes and
// reads back; chosen unlikely to collide with anything a demo program uses.
const selfCheckVarStoreProbe = "__aicihost_selfcheck__"

// selfCheckVarStore exercises a full set_var/get_var round trip through the
// MCP session, confirming the variable store is actually reachable over the
// wire-facing protocol and not just through the embedded Go API.
func selfCheckVarStore(ctx context.Context, session *mcpsdk.ClientSession) error {
	if _, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      "set_var",
		Arguments: map[string]any{"name": selfCheckVarStoreProbe, "value": "ok"},
	}); err != nil {
		return fmt.Errorf("set_var: %w", err)
	}
	res, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      "get_var",
		Arguments: map[string]any{"name": selfCheckVarStoreProbe},
	})
	if err != nil {
		return fmt.Errorf("get_var: %w", err)
	}
	if res.IsError {
		return fmt.Errorf("get_var reported an error")
	}
	return nil
}

// connectExternalMCPServers dials every configured external MCP server and
// logs its discovered tool catalogue. Connections are not kept open — this
// binary's own variable store is the only MCP server anything in
// SPEC_FULL's demo programs actually calls; external servers are purely for
// operator-visible federation at startup.
func connectExternalMCPServers(ctx context.Context, servers []config.MCPServerConfig) {
	if len(servers) == 0 {
		return
	}
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "aicihost", Version: version}, nil)

	for _, srv := range servers {
		var transport mcpsdk.Transport
		switch srv.Transport {
		case config.TransportStdio:
			fields := strings.Fields(srv.Command)
			if len(fields) == 0 {
				slog.Warn("mcp server has an empty command", "server", srv.Name)
				continue
			}
			cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
			for k, v := range srv.Env {
				cmd.Env = append(cmd.Env, k+"="+v)
			}
			transport = &mcpsdk.CommandTransport{Command: cmd}
		case config.TransportStreamableHTTP:
			transport = &mcpsdk.StreamableClientTransport{Endpoint: srv.URL}
		default:
			slog.Warn("mcp server has an unrecognised transport", "server", srv.Name, "transport", srv.Transport)
			continue
		}

		session, err := client.Connect(ctx, transport, nil)
		if err != nil {
			slog.Warn("failed to connect to external mcp server", "server", srv.Name, "error", err)
			continue
		}

		var toolNames []string
		for tool, err := range session.Tools(ctx, nil) {
			if err != nil {
				slog.Warn("failed to list tools for external mcp server", "server", srv.Name, "error", err)
				break
			}
			toolNames = append(toolNames, tool.Name)
		}
		slog.Info("connected to external mcp server", "server", srv.Name, "tools", toolNames)
		_ = session.Close()
	}
}

func printStartupSummary(configPath string, cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        aicihost — startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	fmt.Printf("║  Config          : %-19s ║\n", truncate(configPath, 19))
	fmt.Printf("║  Admin addr      : %-19s ║\n", truncate(cfg.Server.ListenAddr, 19))
	fmt.Printf("║  Wire addr       : %-19s ║\n", truncate(cfg.Wire.ListenAddr+cfg.Wire.Path, 19))
	fmt.Printf("║  Sequences       : %-19d ║\n", len(cfg.Sequences))
	fmt.Printf("║  MCP servers     : %-19d ║\n", len(cfg.MCP.Servers))
	for _, seqCfg := range cfg.Sequences {
		fmt.Printf("║    - %-35s ║\n", truncate(seqCfg.Name+" ("+seqCfg.Program+")", 35))
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogLevelDebug:
		lvl = slog.LevelDebug
	case config.LogLevelWarn:
		lvl = slog.LevelWarn
	case config.LogLevelError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

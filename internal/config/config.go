// Package config provides the configuration schema, loader, and hot-reload
// watcher for the reference host simulator (cmd/aicihost).
package config

import (
	"time"

	"github.com/aici-run/aici-go/internal/budget"
)

// Config is the root configuration structure for the reference host
// simulator. It is typically loaded from a YAML file using [Load] or
// [LoadFromReader].
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Wire      WireConfig       `yaml:"wire"`
	Budget    BudgetConfig     `yaml:"budget"`
	Sequences []SequenceConfig `yaml:"sequences"`
	MCP       MCPConfig        `yaml:"mcp"`
}

// ServerConfig holds network and logging settings for the admin/health HTTP
// surface.
type ServerConfig struct {
	// ListenAddr is the TCP address the admin HTTP server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// LogLevel selects slog's verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	default:
		return false
	}
}

// WireConfig configures the JSON-over-WebSocket transport that carries the
// host<->controller callback protocol.
type WireConfig struct {
	// ListenAddr is the TCP address the wire server listens on (e.g., ":8787").
	ListenAddr string `yaml:"listen_addr"`

	// Path is the HTTP path the WebSocket endpoint is served on.
	Path string `yaml:"path"`
}

// BudgetConfig holds the soft per-phase time budgets passed to
// [budget.Limits]. Each value is a Go duration string (e.g. "1ms", "20ms").
// Empty strings fall back to [budget.DefaultLimits].
type BudgetConfig struct {
	Pre  string `yaml:"pre"`
	Mid  string `yaml:"mid"`
	Post string `yaml:"post"`
}

// Limits converts the configured duration strings into [budget.Limits],
// falling back to [budget.DefaultLimits] field-by-field for any value left
// empty. Callers should run [Validate] first so parse errors never occur
// here.
func (b BudgetConfig) Limits() budget.Limits {
	defaults := budget.DefaultLimits()
	limits := defaults
	if d, err := time.ParseDuration(b.Pre); err == nil {
		limits.Pre = d
	}
	if d, err := time.ParseDuration(b.Mid); err == nil {
		limits.Mid = d
	}
	if d, err := time.ParseDuration(b.Post); err == nil {
		limits.Post = d
	}
	return limits
}

// SequenceConfig describes one sample sequence the reference host runs
// against the controller: a user program identified by name, an initial
// prompt, and the generation constraints it's expected to honour.
type SequenceConfig struct {
	// Name uniquely identifies this sequence (used in logs and metrics
	// attributes).
	Name string `yaml:"name"`

	// Program selects which built-in demo program to run (e.g. "greeter",
	// "choice", "regex-word"). Looked up in the host's program registry.
	Program string `yaml:"program"`

	// Prompt is the initial prompt text tokenized and fed to the driver
	// before the first round.
	Prompt string `yaml:"prompt"`

	// Regex is a generation pattern for the sequence. It is validated (it
	// may not be combined with Options) and compared by [Diff]; the built-in
	// demo programs use their own fixed pattern and do not read it.
	Regex string `yaml:"regex"`

	// Options is a list of fixed strings for the sequence. It is validated
	// and compared by [Diff]; the built-in demo programs use their own fixed
	// options and do not read it.
	Options []string `yaml:"options"`

	// StoreVar names a host variable for the generated text. It is compared
	// by [Diff]; the built-in demo programs use their own fixed variable
	// names and do not read it.
	StoreVar string `yaml:"store_var"`

	// MaxTokens is a per-generation token cap. It is validated (must be
	// >= 0); the built-in demo programs do not read it.
	MaxTokens int `yaml:"max_tokens"`

	// Tier hints at how much wall-clock headroom this sequence's mid-process
	// callback is expected to need, used to pick a [budget.Tracker] profile.
	Tier Tier `yaml:"tier"`
}

// Tier classifies how much per-phase latency headroom a sequence's
// callbacks are expected to need.
type Tier string

const (
	TierFast     Tier = "fast"
	TierStandard Tier = "standard"
	TierDeep     Tier = "deep"
)

// IsValid reports whether t is a recognised tier.
func (t Tier) IsValid() bool {
	switch t {
	case TierFast, TierStandard, TierDeep:
		return true
	default:
		return false
	}
}

// MCPConfig holds the list of external Model Context Protocol servers the
// host dials at startup to log their tool catalogues. The host's own
// variable store is an in-process MCP server and is not configured here.
type MCPConfig struct {
	Servers []MCPServerConfig `yaml:"servers"`
}

// MCPServerConfig describes how to connect to a single MCP tool server.
type MCPServerConfig struct {
	// Name is a unique human-readable identifier for this server (used in logs).
	Name string `yaml:"name"`

	// Transport specifies the connection mechanism.
	// Valid values: "stdio", "streamable-http".
	Transport Transport `yaml:"transport"`

	// Command is the executable (with optional arguments) launched when
	// Transport is "stdio". Ignored for the streamable-http transport.
	Command string `yaml:"command"`

	// URL is the endpoint address used when Transport is "streamable-http".
	// Ignored for the stdio transport.
	URL string `yaml:"url"`

	// Env holds additional environment variables injected into the subprocess
	// when Transport is "stdio". May be nil.
	Env map[string]string `yaml:"env"`
}

// Transport names an MCP server connection mechanism.
type Transport string

const (
	TransportStdio          Transport = "stdio"
	TransportStreamableHTTP Transport = "streamable-http"
)

// IsValid reports whether t is a recognised transport.
func (t Transport) IsValid() bool {
	switch t {
	case TransportStdio, TransportStreamableHTTP:
		return true
	default:
		return false
	}
}

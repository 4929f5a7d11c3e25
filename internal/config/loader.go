package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Budget durations, if set, must parse.
	if _, err := parseDuration("budget.pre", cfg.Budget.Pre); err != nil {
		errs = append(errs, err)
	}
	if _, err := parseDuration("budget.mid", cfg.Budget.Mid); err != nil {
		errs = append(errs, err)
	}
	if _, err := parseDuration("budget.post", cfg.Budget.Post); err != nil {
		errs = append(errs, err)
	}

	// Sequence duplicate name detection.
	namesSeen := make(map[string]int, len(cfg.Sequences))

	for i, seq := range cfg.Sequences {
		prefix := fmt.Sprintf("sequences[%d]", i)
		if seq.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := namesSeen[seq.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of sequences[%d]", prefix, seq.Name, prev))
			}
			namesSeen[seq.Name] = i
		}
		if seq.Program == "" {
			errs = append(errs, fmt.Errorf("%s.program is required", prefix))
		}
		if seq.Tier != "" && !seq.Tier.IsValid() {
			errs = append(errs, fmt.Errorf("%s.tier %q is invalid; valid values: fast, standard, deep", prefix, seq.Tier))
		}
		if seq.Regex != "" && len(seq.Options) > 0 {
			errs = append(errs, fmt.Errorf("%s: regex and options are mutually exclusive", prefix))
		}
		if seq.MaxTokens < 0 {
			errs = append(errs, fmt.Errorf("%s.max_tokens must be >= 0", prefix))
		}
	}

	if len(cfg.Sequences) == 0 {
		slog.Warn("no sequences configured; the host will have nothing to run")
	}

	// MCP servers
	for i, srv := range cfg.MCP.Servers {
		prefix := fmt.Sprintf("mcp.servers[%d]", i)
		if srv.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		if srv.Transport != "" && !srv.Transport.IsValid() {
			errs = append(errs, fmt.Errorf("%s.transport %q is invalid; valid values: stdio, streamable-http", prefix, srv.Transport))
		}
		if srv.Transport == TransportStdio && srv.Command == "" {
			errs = append(errs, fmt.Errorf("%s.command is required when transport is stdio", prefix))
		}
		if srv.Transport == TransportStreamableHTTP && srv.URL == "" {
			errs = append(errs, fmt.Errorf("%s.url is required when transport is streamable-http", prefix))
		}
	}

	return errors.Join(errs...)
}

// parseDuration validates a configured duration string, tolerating the empty
// string (meaning "use the default").
func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not a valid duration: %w", field, s, err)
	}
	return d, nil
}

// Package config loads and hot-reloads the ServerConfig set the
// Manager routes against (spec.md §4.3 "Configuration ships with
// defaults"). Grounded on lsp/types.go's LanguageServerConfig/
// LSPServerConfig and lsp/config_env_overrides.go's env-expansion
// pass, generalized to drop the TCP/session-manager modes that
// SPEC_FULL.md's Non-goals exclude.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Mode selects how a server process is reached.
type Mode string

const (
	ModeStdio     Mode = "stdio"
	ModeWebSocket Mode = "websocket"
)

// ServerConfig is one language's server launch configuration
// (spec.md §3 "ServerConfig").
type ServerConfig struct {
	Command    string   `json:"command"`
	Args       []string `json:"args"`
	Extensions []string `json:"extensions"`
	Enabled    bool     `json:"enabled"`

	Mode Mode   `json:"mode,omitempty"`
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`
}

func (c ServerConfig) EffectiveMode() Mode {
	if c.Mode == "" {
		return ModeStdio
	}
	return c.Mode
}

// Config is the full set of per-language server configurations.
type Config struct {
	Servers map[string]ServerConfig `json:"servers"`
}

// Defaults returns the built-in configuration for the four languages
// spec.md §6 names, matching the teacher's LanguageServerConfig shape
// (command/args/extensions) rather than its map[LanguageServer]...
// keying, since SPEC_FULL.md has no distinct "language server name"
// identity apart from the language tag itself.
func Defaults() Config {
	return Config{
		Servers: map[string]ServerConfig{
			"typescript": {
				Command:    "typescript-language-server",
				Args:       []string{"--stdio"},
				Extensions: []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"},
				Enabled:    true,
			},
			"rust": {
				Command:    "rust-analyzer",
				Args:       nil,
				Extensions: []string{".rs"},
				Enabled:    true,
			},
			"python": {
				Command:    "pylsp",
				Args:       nil,
				Extensions: []string{".py"},
				Enabled:    true,
			},
			"cpp": {
				Command:    "clangd",
				Args:       []string{"--background-index"},
				Extensions: []string{".c", ".cpp", ".cc", ".h", ".hpp", ".cxx"},
				Enabled:    true,
			},
		},
	}
}

// Load reads a JSON config file and layers it over Defaults: a
// language present in the file replaces the default entry wholesale,
// languages absent from the file keep their default.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		ApplyEnvOverrides(&cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(&cfg)
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var overrides Config
	if err := json.Unmarshal(data, &overrides); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg = ApplyOverrides(cfg, overrides)
	ApplyEnvOverrides(&cfg)
	return cfg, nil
}

// ApplyOverrides merges a partial config on top of base, rebuilding the
// combined set (spec.md §4.3 "updateConfigs ... rebuilds the
// extension→language index" — the index itself lives in manager.Manager,
// this just produces the merged server map it will be built from).
func ApplyOverrides(base, overrides Config) Config {
	merged := Config{Servers: make(map[string]ServerConfig, len(base.Servers))}
	for lang, sc := range base.Servers {
		merged.Servers[lang] = sc
	}
	for lang, sc := range overrides.Servers {
		merged.Servers[lang] = sc
	}
	return merged
}

// ApplyEnvOverrides expands ${VAR_NAME} placeholders in every server's
// argument vector, adapted from lsp/config_env_overrides.go with the
// Java -Xmx special-case dropped (no Java-based server is in scope
// here; see DESIGN.md).
func ApplyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}
	for lang, sc := range cfg.Servers {
		sc.Args = expandEnvVarsInArgs(sc.Args)
		cfg.Servers[lang] = sc
	}
}

func expandEnvVarsInArgs(args []string) []string {
	result := make([]string, len(args))
	for i, arg := range args {
		result[i] = os.Expand(arg, func(key string) string {
			if val, exists := os.LookupEnv(key); exists {
				return val
			}
			return "${" + strings.TrimSpace(key) + "}"
		})
	}
	return result
}

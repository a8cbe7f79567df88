package config

import (
	"testing"
)

func TestDefaults_CoversEveryLanguage(t *testing.T) {
	cfg := Defaults()

	want := map[string]string{
		"typescript": "typescript-language-server",
		"rust":       "rust-analyzer",
		"python":     "pylsp",
		"cpp":        "clangd",
	}
	for lang, command := range want {
		sc, ok := cfg.Servers[lang]
		if !ok {
			t.Errorf("Defaults() missing %q", lang)
			continue
		}
		if sc.Command != command {
			t.Errorf("Defaults()[%q].Command = %q, want %q", lang, sc.Command, command)
		}
		if !sc.Enabled {
			t.Errorf("Defaults()[%q].Enabled = false, want true", lang)
		}
		if len(sc.Extensions) == 0 {
			t.Errorf("Defaults()[%q].Extensions is empty", lang)
		}
		if sc.EffectiveMode() != ModeStdio {
			t.Errorf("Defaults()[%q].EffectiveMode() = %q, want %q", lang, sc.EffectiveMode(), ModeStdio)
		}
	}
}

func TestApplyOverrides(t *testing.T) {
	base := Defaults()

	t.Run("replaces a language wholesale", func(t *testing.T) {
		overrides := Config{Servers: map[string]ServerConfig{
			"rust": {Command: "custom-rust-analyzer", Args: []string{"--log-file", "/tmp/ra.log"}, Extensions: []string{".rs"}, Enabled: true},
		}}
		merged := ApplyOverrides(base, overrides)

		sc := merged.Servers["rust"]
		if sc.Command != "custom-rust-analyzer" {
			t.Errorf("merged rust.Command = %q, want %q", sc.Command, "custom-rust-analyzer")
		}
		if len(sc.Args) != 2 {
			t.Errorf("merged rust.Args = %v, want 2 elements", sc.Args)
		}
	})

	t.Run("leaves languages absent from the override untouched", func(t *testing.T) {
		overrides := Config{Servers: map[string]ServerConfig{
			"rust": {Command: "custom-rust-analyzer", Extensions: []string{".rs"}, Enabled: true},
		}}
		merged := ApplyOverrides(base, overrides)

		if merged.Servers["python"].Command != base.Servers["python"].Command {
			t.Errorf("python config changed despite no override")
		}
	})

	t.Run("can disable a language by overriding it", func(t *testing.T) {
		overrides := Config{Servers: map[string]ServerConfig{
			"cpp": {Enabled: false},
		}}
		merged := ApplyOverrides(base, overrides)

		if merged.Servers["cpp"].Enabled {
			t.Errorf("merged cpp.Enabled = true, want false")
		}
	})

	t.Run("does not mutate base", func(t *testing.T) {
		overrides := Config{Servers: map[string]ServerConfig{
			"rust": {Command: "custom-rust-analyzer", Extensions: []string{".rs"}, Enabled: true},
		}}
		_ = ApplyOverrides(base, overrides)

		if base.Servers["rust"].Command != "rust-analyzer" {
			t.Errorf("ApplyOverrides mutated base.Servers[rust].Command = %q", base.Servers["rust"].Command)
		}
	})
}

func TestApplyEnvOverrides_ExpandsPlaceholders(t *testing.T) {
	t.Setenv("LSPMUX_TEST_LOG_DIR", "/var/log/lsp")

	cfg := Config{Servers: map[string]ServerConfig{
		"cpp": {Command: "clangd", Args: []string{"--log=${LSPMUX_TEST_LOG_DIR}/clangd.log", "--background-index"}},
	}}
	ApplyEnvOverrides(&cfg)

	got := cfg.Servers["cpp"].Args[0]
	want := "--log=/var/log/lsp/clangd.log"
	if got != want {
		t.Errorf("ApplyEnvOverrides expanded arg = %q, want %q", got, want)
	}
	if cfg.Servers["cpp"].Args[1] != "--background-index" {
		t.Errorf("ApplyEnvOverrides altered an arg with no placeholder: %q", cfg.Servers["cpp"].Args[1])
	}
}

func TestApplyEnvOverrides_UnsetVarPassesThrough(t *testing.T) {
	cfg := Config{Servers: map[string]ServerConfig{
		"rust": {Command: "rust-analyzer", Args: []string{"--flag=${LSPMUX_TEST_DOES_NOT_EXIST}"}},
	}}
	ApplyEnvOverrides(&cfg)

	got := cfg.Servers["rust"].Args[0]
	want := "--flag=${LSPMUX_TEST_DOES_NOT_EXIST}"
	if got != want {
		t.Errorf("ApplyEnvOverrides on unset var = %q, want literal passthrough %q", got, want)
	}
}

func TestApplyEnvOverrides_NilConfigIsNoop(t *testing.T) {
	ApplyEnvOverrides(nil) // must not panic
}

func TestExpandEnvVarsInArgs(t *testing.T) {
	t.Setenv("LSPMUX_TEST_HOME", "/home/dev")

	tests := []struct {
		name  string
		args  []string
		want  []string
	}{
		{
			name: "expands a set variable",
			args: []string{"--root=${LSPMUX_TEST_HOME}/project"},
			want: []string{"--root=/home/dev/project"},
		},
		{
			name: "passes through an unset variable untouched",
			args: []string{"${LSPMUX_TEST_UNSET_VAR}"},
			want: []string{"${LSPMUX_TEST_UNSET_VAR}"},
		},
		{
			name: "leaves args with no placeholders untouched",
			args: []string{"--stdio"},
			want: []string{"--stdio"},
		},
		{
			name: "nil args yields empty, not nil-panic",
			args: nil,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := expandEnvVarsInArgs(tt.args)
			if len(got) != len(tt.want) {
				t.Fatalf("expandEnvVarsInArgs(%v) = %v, want %v", tt.args, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("expandEnvVarsInArgs(%v)[%d] = %q, want %q", tt.args, i, got[i], tt.want[i])
				}
			}
		})
	}
}

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigShow(t *testing.T) {
	home := isolateEnv(t)
	if err := os.WriteFile(filepath.Join(home, "config.toml"), []byte("[context]\nmax_age = \"6h\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, want := range []string{"# from " + filepath.Join(home, "config.toml"), "max_age: 6h", "socket: " + filepath.Join(home, "empacy.sock")} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantOut string
		wantErr string
	}{
		{name: "defaults", wantOut: "config ok (defaults)"},
		{name: "valid file", body: "logging:\n  level: debug\n", wantOut: "config ok ("},
		{name: "bad level", body: "logging:\n  level: chatty\n", wantErr: "invalid config: logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := isolateEnv(t)
			if tt.body != "" {
				if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte(tt.body), 0o600); err != nil {
					t.Fatal(err)
				}
			}
			out, err := runCLI(t, "config", "validate")
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil || !strings.Contains(out, tt.wantOut) {
				t.Errorf("out = %q, err = %v", out, err)
			}
		})
	}
}

package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/muurk/wifican/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		configPath = ""
		encodeExtended = false
		configForce = false
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestEncodeCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "standard",
			args: []string{"encode", "--id", "0x456", "--data", "0806040200"},
			want: ":S456N0806040200;\n",
		},
		{
			name: "extended with separators",
			args: []string{"encode", "--id", "56789A", "--data", "05 03 07 09", "--extended"},
			want: ":X56789AN05030709;\n",
		},
		{
			name: "candump notation",
			args: []string{"encode", "--candump", "0056789A#05030709"},
			want: ":X56789AN05030709;\n",
		},
		{
			name: "empty payload",
			args: []string{"encode", "--id", "0x1", "--data", ""},
			want: ":S001N;\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := execute(t, tt.args...)
			if err != nil {
				t.Fatalf("encode error = %v", err)
			}
			if got != tt.want {
				t.Errorf("encode output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncodeCommand_RejectsInvalid(t *testing.T) {
	if _, err := execute(t, "encode", "--id", "0x800", "--data", "00"); err == nil {
		t.Error("standard id 0x800 should be rejected")
	}
	if _, err := execute(t, "encode", "--id", "0x1", "--data", "000102030405060708"); err == nil {
		t.Error("9-byte payload should be rejected")
	}
}

func TestEncodeCommand_IDOrCandump(t *testing.T) {
	if _, err := execute(t, "encode", "--data", "00"); err == nil {
		t.Error("encode without --id or --candump should fail")
	}
	if _, err := execute(t, "encode", "--id", "0x1", "--candump", "001#00"); err == nil {
		t.Error("--id and --candump together should fail")
	}
}

func TestDecodeCommand(t *testing.T) {
	out, err := execute(t, "decode", ":S456N0806040200;", ":x1fffff22n010000;")
	if err != nil {
		t.Fatalf("decode error = %v", err)
	}
	want := ":S456N0806040200;  456#0806040200  standard  5 bytes\n" +
		":X1FFFFF22N010000;  1FFFFF22#010000  extended  3 bytes\n"
	if out != want {
		t.Errorf("decode output = %q, want %q", out, want)
	}

	if _, err := execute(t, "decode", ":S800N00;"); err == nil {
		t.Error("decode should reject a standard id above 0x7FF")
	}
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wifican.yaml")

	out, err := execute(t, "config", "init", "--config", path)
	if err != nil {
		t.Fatalf("config init error = %v", err)
	}
	if !strings.Contains(out, path) {
		t.Errorf("config init output = %q", out)
	}

	if _, err := execute(t, "config", "init", "--config", path); err == nil {
		t.Error("config init should refuse to overwrite without --force")
	}

	out, err = execute(t, "config", "show", "--config", path)
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	for _, want := range []string{"192.168.42.1", "10001", "0x56789A", "100ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("config show missing %q:\n%s", want, out)
		}
	}
}

func TestApplySessionFlags(t *testing.T) {
	t.Cleanup(func() {
		for _, name := range []string{"host", "port", "read-timeout", "dial-attempts"} {
			runCmd.Flags().Lookup(name).Changed = false
		}
	})
	if err := runCmd.Flags().Parse([]string{"--host", "10.0.0.7", "--read-timeout", "3s"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	cfg := config.Default()
	applySessionFlags(runCmd, cfg)

	if cfg.Gateway.Host != "10.0.0.7" {
		t.Errorf("Host = %q, want flag value", cfg.Gateway.Host)
	}
	if cfg.Gateway.ReadTimeout.D() != 3*time.Second {
		t.Errorf("ReadTimeout = %v, want 3s", cfg.Gateway.ReadTimeout)
	}
	if cfg.Gateway.Port != config.DefaultPort {
		t.Errorf("Port = %d, unset flag should keep the file value", cfg.Gateway.Port)
	}
}

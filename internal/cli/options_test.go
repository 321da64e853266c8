package cli

import (
	"testing"

	"github.com/mossy-p/classroom-signaling/internal/peerlink"
)

func TestLoad_Priority(t *testing.T) {
	t.Setenv("SIGNAL_URL", "ws://env:8080/ws")
	t.Setenv("STUN_SERVER", "stun:env:3478")
	t.Setenv("ICE_POLICY", "drop")
	t.Setenv("PEER_NAME", "EnvName")
	t.Setenv("TURN_SERVER", "")
	t.Setenv("LOG_LEVEL", "")

	t.Run("environment over defaults", func(t *testing.T) {
		cfg, err := Load(Options{})
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.URL != "ws://env:8080/ws" || cfg.Name != "EnvName" {
			t.Errorf("URL/Name = %s/%s, want env values", cfg.URL, cfg.Name)
		}
		if len(cfg.ICE.STUNServers) != 1 || cfg.ICE.STUNServers[0] != "stun:env:3478" {
			t.Errorf("STUNServers = %v, want env value", cfg.ICE.STUNServers)
		}
		if cfg.Policy != peerlink.CandidateDrop {
			t.Errorf("Policy = %s, want drop", cfg.Policy)
		}
		if len(cfg.ICE.TURNServers) != 0 {
			t.Errorf("TURNServers = %v, want none", cfg.ICE.TURNServers)
		}
		if cfg.LogLevel != DefaultLogLevel {
			t.Errorf("LogLevel = %s, want %s", cfg.LogLevel, DefaultLogLevel)
		}
	})

	t.Run("flags over environment", func(t *testing.T) {
		cfg, err := Load(Options{
			URL:       "ws://flag:9000/ws",
			Name:      "Flag",
			STUN:      "stun:a:1,stun:b:2",
			ICEPolicy: "buffer",
		})
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.URL != "ws://flag:9000/ws" || cfg.Name != "Flag" {
			t.Errorf("URL/Name = %s/%s, want flag values", cfg.URL, cfg.Name)
		}
		if len(cfg.ICE.STUNServers) != 2 {
			t.Errorf("STUNServers = %v, want two", cfg.ICE.STUNServers)
		}
		if cfg.Policy != peerlink.CandidateBuffer {
			t.Errorf("Policy = %s, want buffer", cfg.Policy)
		}
	})

	t.Run("bad policy", func(t *testing.T) {
		if _, err := Load(Options{ICEPolicy: "sometimes"}); err == nil {
			t.Error("Load() error = nil, want policy error")
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"SIGNAL_URL", "STUN_SERVER", "ICE_POLICY", "TURN_SERVER"} {
		t.Setenv(key, "")
	}

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.URL != "" {
		t.Errorf("URL = %q, want empty for discovery", cfg.URL)
	}
	if len(cfg.ICE.STUNServers) != 1 || cfg.ICE.STUNServers[0] != DefaultSTUN {
		t.Errorf("STUNServers = %v, want default", cfg.ICE.STUNServers)
	}
	if cfg.Name == "" {
		t.Error("Name is empty, want hostname fallback")
	}
}

package main

import (
	"testing"
	"time"

	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/internal/config"
)

func baseConfig() config.Config {
	return config.Config{
		PollInterval:       time.Second,
		DeviceQueryTimeout: 5 * time.Second,
		NvidiaSMIEnabled:   true,
		NvidiaSMIPath:      "nvidia-smi",
		HostEnabled:        true,
	}
}

func sourceNames(cfg config.Config) []string {
	var names []string
	for _, src := range buildSources(cfg) {
		names = append(names, src.Name())
	}
	return names
}

func TestBuildSources_Defaults(t *testing.T) {
	names := sourceNames(baseConfig())
	want := []string{"nvidia-smi", "host"}
	if len(names) != len(want) {
		t.Fatalf("sources = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("sources = %v, want %v", names, want)
		}
	}
}

func TestBuildSources_DCGMPrecedence(t *testing.T) {
	cfg := baseConfig()
	cfg.DCGMEndpoints = []string{"http://10.0.0.5:9400"}

	// Both GPU backends see the same devices; dcgm wins when configured,
	// even with nvidia-smi left enabled.
	names := sourceNames(cfg)
	for _, n := range names {
		if n == "nvidia-smi" {
			t.Fatalf("nvidia-smi wired alongside dcgm: %v", names)
		}
	}
	if names[0] != "dcgm-exporter" {
		t.Fatalf("sources = %v, want dcgm-exporter first", names)
	}
}

func TestBuildSources_HostOnly(t *testing.T) {
	cfg := baseConfig()
	cfg.NvidiaSMIEnabled = false

	names := sourceNames(cfg)
	if len(names) != 1 || names[0] != "host" {
		t.Fatalf("sources = %v, want [host]", names)
	}
}

package config

import "testing"

func TestLoadRequiresDetectorEndpoint(t *testing.T) {
	t.Setenv("DETECTOR_ENDPOINT", "")
	if _, err := Load("./does-not-exist.env"); err == nil {
		t.Fatal("expected an error when DETECTOR_ENDPOINT is unset")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("DETECTOR_ENDPOINT", "http://localhost:9000/invoke")
	cfg, err := Load("./does-not-exist.env")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("got db port %d, want 5432", cfg.Database.Port)
	}
	if cfg.Queue.Dir != "./queue" {
		t.Errorf("got queue dir %q, want ./queue", cfg.Queue.Dir)
	}
	if cfg.Service.MaxConcurrentRegions != 4 {
		t.Errorf("got max concurrent regions %d, want 4", cfg.Service.MaxConcurrentRegions)
	}
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"png2webp/exifcomment"
)

func TestConfigResolve(t *testing.T) {
	now := time.Date(2024, 5, 1, 23, 59, 0, 0, time.Local)

	cfg := DefaultConfig()
	cfg.OutputRoot = "outputs"
	if err := cfg.resolve(now); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Date != "2024-05-01" {
		t.Errorf("Date = %q, want 2024-05-01", cfg.Date)
	}
	if want := filepath.Join("outputs", "2024-05-01"); cfg.WorkDir != want {
		t.Errorf("WorkDir = %q, want %q", cfg.WorkDir, want)
	}

	cfg = DefaultConfig()
	cfg.OutputRoot = "outputs"
	cfg.Date = "2023-12-24"
	if err := cfg.resolve(now); err != nil {
		t.Fatalf("resolve with explicit date: %v", err)
	}
	if want := filepath.Join("outputs", "2023-12-24"); cfg.WorkDir != want {
		t.Errorf("WorkDir = %q, want %q", cfg.WorkDir, want)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"missing output", func(c *Config) { c.OutputRoot = "" }, false},
		{"quality too high", func(c *Config) { c.Quality = 101 }, false},
		{"quality negative", func(c *Config) { c.Quality = -1 }, false},
		{"quality zero", func(c *Config) { c.Quality = 0 }, true},
		{"no workers", func(c *Config) { c.Workers = 0 }, false},
		{"bad date", func(c *Config) { c.Date = "05/01/2024" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.OutputRoot = "out"
			cfg.Date = "2024-05-01"
			tt.mutate(cfg)
			err := cfg.validate()
			if tt.ok && err != nil {
				t.Errorf("validate() = %v, want nil", err)
			}
			if !tt.ok && err == nil {
				t.Error("validate() = nil, want error")
			}
		})
	}
}

func TestEncodingOptions(t *testing.T) {
	cfg := DefaultConfig()
	opts := cfg.GetEncodingOptions()
	if opts.Lossless || opts.Quality != 100 {
		t.Errorf("default options = %+v, want lossy quality 100", opts)
	}
	if cfg.encodingMode() != "lossy q100" {
		t.Errorf("encodingMode() = %q", cfg.encodingMode())
	}

	cfg.Lossless = true
	if !cfg.GetEncodingOptions().Lossless || cfg.encodingMode() != "lossless" {
		t.Error("--lossless not reflected in encoding options")
	}
}

func TestRootCmd_ConvertsDatedDirectory(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "2024-05-01")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	writePNG(t, dir, "00001-42.png", entries("parameters", "a cute cat"))

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--output", root, "--date", "2024-05-01", "--delete-source", "--no-color"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "00001-42.png")); !os.IsNotExist(err) {
		t.Error("source not deleted")
	}
	got, err := exifcomment.Read(filepath.Join(dir, "00001-42.webp"))
	if err != nil {
		t.Fatalf("exifcomment.Read: %v", err)
	}
	if got != "a cute cat" {
		t.Errorf("user comment = %q", got)
	}
}

func TestRootCmd_Errors(t *testing.T) {
	root := t.TempDir()
	tests := []struct {
		name string
		args []string
	}{
		{"missing output flag", []string{"--date", "2024-05-01"}},
		{"missing day directory", []string{"--output", root, "--date", "1999-01-01"}},
		{"bad quality", []string{"--output", root, "--quality", "150"}},
		{"positional args", []string{"--output", root, "extra"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCmd()
			cmd.SetArgs(append(tt.args, "--no-color"))
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			if err := cmd.Execute(); err == nil {
				t.Error("Execute succeeded, want error")
			}
		})
	}
}

func TestInspectCmd(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "b.png", entries("Steps", "20", "Sampler", "Euler"))
	p, _ := newTestProcessor(t, DefaultConfig())
	if _, err := p.ProcessDirectory(dir); err != nil {
		t.Fatalf("ProcessDirectory: %v", err)
	}

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"inspect", "--no-color", filepath.Join(dir, "b.webp")})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if strings.TrimSpace(out.String()) != "Steps: 20\nSampler: Euler" {
		t.Errorf("inspect output = %q", out.String())
	}

	cmd = newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"inspect", "--no-color", filepath.Join(dir, "b.png")})
	if err := cmd.Execute(); err == nil {
		t.Error("inspect of a PNG succeeded, want error")
	}
}

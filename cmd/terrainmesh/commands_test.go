package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"terrainmesh/internal/config"
	"terrainmesh/internal/store"
)

func writeTestConfig(t *testing.T) (string, string) {
	t.Helper()
	t.Setenv(envConfigJSON, "")
	t.Setenv(envConfigYAMLB64, "")

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Mesh.Subdivisions = 6
	cfg.Mesh.Workers = 2
	cfg.Output.Dir = filepath.Join(dir, "out")
	cfg.Output.PreviewSize = 8
	cfg.Store.Driver = config.StoreDisk
	cfg.Store.Path = filepath.Join(dir, "meshes.log")

	path := filepath.Join(dir, "config.json")
	if err := config.Save(path, cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}
	return dir, path
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--env-file", ""}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestGenerateCommandWritesOutputs(t *testing.T) {
	dir, cfgPath := writeTestConfig(t)

	out, err := runRoot(t, "--config", cfgPath, "generate", "--seed", "5")
	if err != nil {
		t.Fatalf("generate: %v\n%s", err, out)
	}

	for _, name := range []string{"terrain_5.obj", "terrain_5.png"} {
		path := filepath.Join(dir, "out", name)
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
		if !strings.Contains(out, path) {
			t.Fatalf("expected output to mention %s, got %q", path, out)
		}
	}

	meshes, err := store.OpenDisk(filepath.Join(dir, "meshes.log"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer meshes.Close()
	list, err := meshes.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Seed != 5 || list[0].Cols != 8 {
		t.Fatalf("unexpected stored meshes %+v", list)
	}
}

func TestGenerateCommandFormatOverride(t *testing.T) {
	dir, cfgPath := writeTestConfig(t)
	outDir := filepath.Join(dir, "alt")

	if _, err := runRoot(t, "--config", cfgPath, "generate", "--seed", "3", "--format", "bin", "--out", outDir); err != nil {
		t.Fatalf("generate: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(outDir, "terrain_3.bin"))
	if err != nil {
		t.Fatalf("read binary mesh: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("TMSH")) {
		t.Fatalf("unexpected binary header %q", data[:4])
	}

	if _, err := runRoot(t, "--config", cfgPath, "generate", "--format", "stl"); err == nil {
		t.Fatalf("expected unsupported format to fail")
	}
}

func TestGenerateCommandRejectsConflictingSeedFlags(t *testing.T) {
	_, cfgPath := writeTestConfig(t)
	_, err := runRoot(t, "--config", cfgPath, "generate", "--seed", "1", "--random-seed")
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Fatalf("expected conflicting flags error, got %v", err)
	}
}

func TestSeedCommandWritesConfig(t *testing.T) {
	_, cfgPath := writeTestConfig(t)

	out, err := runRoot(t, "--config", cfgPath, "seed", "--write")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	seed, err := strconv.ParseInt(strings.TrimSpace(out), 10, 64)
	if err != nil {
		t.Fatalf("parse printed seed %q: %v", out, err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if cfg.Noise.Seed != seed {
		t.Fatalf("expected stored seed %d, got %d", seed, cfg.Noise.Seed)
	}
	if cfg.Mesh.Subdivisions != 6 {
		t.Fatalf("seed --write clobbered other settings: subdivisions=%d", cfg.Mesh.Subdivisions)
	}

	if _, err := runRoot(t, "seed", "--write"); err == nil {
		t.Fatalf("expected --write without --config to fail")
	}
}

func TestInitConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terrain.yaml")

	if _, err := runRoot(t, "init-config", path); err != nil {
		t.Fatalf("init-config: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load written config: %v", err)
	}
	if cfg.Mesh.Subdivisions != config.Default().Mesh.Subdivisions {
		t.Fatalf("expected defaults, got subdivisions %d", cfg.Mesh.Subdivisions)
	}

	if _, err := runRoot(t, "init-config", path); err == nil {
		t.Fatalf("expected init-config to refuse overwriting")
	}
}

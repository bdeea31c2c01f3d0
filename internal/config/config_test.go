package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestValidateDefaultConfig(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration should be valid: %v", err)
	}
}

func TestValidateDetectsInvalidConfigurations(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "non positive mesh dimensions",
			mutate: func(cfg *Config) {
				cfg.Mesh.Width = 0
			},
			wantErr: "mesh dimensions must be positive",
		},
		{
			name: "negative subdivisions",
			mutate: func(cfg *Config) {
				cfg.Mesh.Subdivisions = -1
			},
			wantErr: "mesh.subdivisions cannot be negative",
		},
		{
			name: "too many subdivisions",
			mutate: func(cfg *Config) {
				cfg.Mesh.Subdivisions = 65535
			},
			wantErr: "mesh.subdivisions must be below 4096",
		},
		{
			name: "negative workers",
			mutate: func(cfg *Config) {
				cfg.Mesh.Workers = -2
			},
			wantErr: "mesh.workers cannot be negative",
		},
		{
			name: "negative flatten power",
			mutate: func(cfg *Config) {
				cfg.EdgeFlatten.Power = -1
			},
			wantErr: "edgeFlatten.power cannot be negative",
		},
		{
			name: "strength above one",
			mutate: func(cfg *Config) {
				cfg.Smoothing.Strength = 1.5
			},
			wantErr: "smoothing.strength must be within [0,1]",
		},
		{
			name: "unknown noise",
			mutate: func(cfg *Config) {
				cfg.Noise.Type = "cellular"
			},
			wantErr: `noise.type "cellular" is not supported`,
		},
		{
			name: "zero frequency",
			mutate: func(cfg *Config) {
				cfg.Noise.Frequency = 0
			},
			wantErr: "noise.frequency must be positive",
		},
		{
			name: "unknown output format",
			mutate: func(cfg *Config) {
				cfg.Output.Format = "fbx"
			},
			wantErr: `output.format "fbx" is not supported`,
		},
		{
			name: "disk store without path",
			mutate: func(cfg *Config) {
				cfg.Store.Driver = StoreDisk
				cfg.Store.Path = ""
			},
			wantErr: "store.path must be set for the disk driver",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected an error, got nil")
			}
			if err.Error() != tt.wantErr {
				t.Fatalf("unexpected error: got %q want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load default config: %v", err)
	}
	if want := Default(); !reflect.DeepEqual(cfg, want) {
		t.Fatalf("default configuration mismatch:\nwant: %#v\n got: %#v", want, cfg)
	}
}

func TestLoadReadsJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := Default()
	cfg.Mesh.Subdivisions = 15
	cfg.Noise.Seed = 77
	cfg.Server.ShutdownTimeout = Duration(3 * time.Second)

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !reflect.DeepEqual(got, cfg) {
		t.Fatalf("loaded configuration mismatch:\nwant: %#v\n got: %#v", cfg, got)
	}
}

func TestLoadPartialYAMLKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terrain.yml")
	contents := `
mesh:
  subdivisions: 7
noise:
  type: perlin
  seed: 12
server:
  shutdown_timeout: 250ms
  read_header_timeout: 1000000000
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if got.Mesh.Subdivisions != 7 {
		t.Fatalf("subdivisions = %d, want 7", got.Mesh.Subdivisions)
	}
	if got.Mesh.Width != 64 || got.Mesh.Variation != 16 {
		t.Fatalf("expected untouched mesh fields to keep defaults, got %+v", got.Mesh)
	}
	if got.Noise.Type != NoisePerlin || got.Noise.Seed != 12 {
		t.Fatalf("unexpected noise config: %+v", got.Noise)
	}
	if got.Server.ShutdownTimeout.Duration() != 250*time.Millisecond {
		t.Fatalf("shutdown timeout = %v", got.Server.ShutdownTimeout.Duration())
	}
	if got.Server.ReadHeaderTimeout.Duration() != time.Second {
		t.Fatalf("read header timeout = %v", got.Server.ReadHeaderTimeout.Duration())
	}
}

func TestWriteDefaultRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "terrain.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("write default: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read default: %v", err)
	}
	var probe map[string]any
	if err := yaml.Unmarshal(raw, &probe); err != nil {
		t.Fatalf("default config is not yaml: %v", err)
	}
	if _, ok := probe["edge_flatten"]; !ok {
		t.Fatalf("expected snake_case yaml keys, got %s", raw)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load written default: %v", err)
	}
	if want := Default(); !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\nwant: %#v\n got: %#v", want, got)
	}
}

func TestLoadInvalidConfiguration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := Default()
	cfg.Mesh.Depth = -4

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err = Load(path)
	if err == nil {
		t.Fatalf("expected load to fail")
	}
	if !strings.Contains(err.Error(), "validate config: mesh dimensions must be positive") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDurationUnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{in: `"150ms"`, want: 150 * time.Millisecond},
		{in: `""`, want: 0},
		{in: `null`, want: 0},
		{in: `2000`, want: 2000},
	}
	for _, tt := range tests {
		var d Duration
		if err := d.UnmarshalJSON([]byte(tt.in)); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.in, err)
		}
		if d.Duration() != tt.want {
			t.Fatalf("unmarshal %s = %v, want %v", tt.in, d.Duration(), tt.want)
		}
	}

	var d Duration
	if err := d.UnmarshalJSON([]byte(`"soon"`)); err == nil {
		t.Fatalf("expected invalid duration to fail")
	}
}

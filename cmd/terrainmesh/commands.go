package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"terrainmesh/internal/config"
	"terrainmesh/internal/mesh"
	"terrainmesh/internal/server"
	"terrainmesh/internal/store"
	"terrainmesh/internal/terrain"
)

type rootOptions struct {
	cfgPath string
	envFile string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "terrainmesh",
		Short:         "Generate noise displaced terrain meshes with flattened edges",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "init-config" {
				return nil
			}
			return opts.load()
		},
	}
	root.PersistentFlags().StringVar(&opts.cfgPath, "config", "", "path to configuration file (.json, .yaml or .yml)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "optional dotenv file read before the configuration")

	root.AddCommand(
		newGenerateCmd(opts),
		newSeedCmd(opts),
		newServeCmd(opts),
		newInitConfigCmd(),
	)
	return root
}

func (o *rootOptions) load() error {
	if err := loadEnvFile(o.envFile); err != nil {
		return err
	}
	if _, err := writeConfigFromEnv(o.cfgPath); err != nil {
		return err
	}
	cfg, err := config.Load(o.cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	o.cfg = cfg
	return nil
}

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	var (
		seed       int64
		randomSeed bool
		outDir     string
		format     string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one terrain mesh and write it to the output directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *opts.cfg
			if outDir != "" {
				cfg.Output.Dir = outDir
			}
			if format != "" {
				cfg.Output.Format = format
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("validate flags: %w", err)
			}

			gen, err := terrain.NewGenerator(cfg, nil)
			if err != nil {
				return err
			}
			switch {
			case randomSeed && cmd.Flags().Changed("seed"):
				return errors.New("--seed and --random-seed are mutually exclusive")
			case randomSeed:
				if _, err := gen.RandomizeSeed(); err != nil {
					return err
				}
			case cmd.Flags().Changed("seed"):
				if err := gen.SetSeed(seed); err != nil {
					return err
				}
			}

			m, err := gen.Generate(cmd.Context())
			if err != nil {
				return err
			}

			written, err := writeOutputs(cfg.Output, m)
			if err != nil {
				return err
			}
			if cfg.Store.Driver == config.StoreDisk {
				if err := persist(cfg.Store, m); err != nil {
					return err
				}
			}

			summary := m.Summary()
			for _, path := range written {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mesh %s seed %d: %d vertices, %d triangles, height %.3f..%.3f\n",
				summary.ID, summary.Seed, summary.Vertices, summary.Triangles, summary.Min.Y(), summary.Max.Y())
			return nil
		},
	}
	cmd.Flags().Int64Var(&seed, "seed", 0, "noise seed (defaults to noise.seed from the configuration)")
	cmd.Flags().BoolVar(&randomSeed, "random-seed", false, "pick a random noise seed")
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (defaults to output.dir)")
	cmd.Flags().StringVar(&format, "format", "", "mesh format: obj, json or bin (defaults to output.format)")
	return cmd
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Print a random noise seed, optionally storing it in the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seed := terrain.RandomSeed()
			if write {
				if opts.cfgPath == "" {
					return errors.New("--write requires --config")
				}
				cfg := *opts.cfg
				cfg.Noise.Seed = seed
				if err := config.Save(opts.cfgPath, &cfg); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), seed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "store the seed as noise.seed in the --config file")
	return cmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve mesh generation over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			meshes, err := store.Open(opts.cfg.Store)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer meshes.Close()

			gen, err := terrain.NewGenerator(*opts.cfg, nil)
			if err != nil {
				return fmt.Errorf("initialise generator: %w", err)
			}
			return server.New(opts.cfg, gen, meshes).Run(cmd.Context())
		},
	}
}

func newInitConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config <path>",
		Short: "Write the default configuration to path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err == nil {
				return fmt.Errorf("%s already exists", args[0])
			}
			if err := config.WriteDefault(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
			return nil
		},
	}
}

// writeOutputs writes m in the configured format, plus a heightmap preview
// when enabled, and returns the paths written.
func writeOutputs(out config.OutputConfig, m *mesh.Mesh) ([]string, error) {
	if err := os.MkdirAll(out.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	base := filepath.Join(out.Dir, fmt.Sprintf("terrain_%d", m.Seed))

	meshPath := base + "." + out.Format
	if err := writeFile(meshPath, func(f *os.File) error {
		switch out.Format {
		case config.FormatOBJ:
			return m.WriteOBJ(f)
		case config.FormatJSON:
			return m.WriteJSON(f)
		case config.FormatBinary:
			data, err := m.MarshalBinary()
			if err != nil {
				return err
			}
			_, err = f.Write(data)
			return err
		default:
			return fmt.Errorf("unsupported output format %q", out.Format)
		}
	}); err != nil {
		return nil, err
	}
	written := []string{meshPath}

	if out.Preview {
		previewPath := base + ".png"
		if err := writeFile(previewPath, func(f *os.File) error {
			return mesh.WritePreview(f, m, out.PreviewSize)
		}); err != nil {
			return nil, err
		}
		written = append(written, previewPath)
	}
	return written, nil
}

func writeFile(path string, fn func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func persist(cfg config.StoreConfig, m *mesh.Mesh) error {
	meshes, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer meshes.Close()
	if err := meshes.Save(m); err != nil {
		return fmt.Errorf("store mesh: %w", err)
	}
	return nil
}

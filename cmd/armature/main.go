// Command armature runs graph-to-geometry synchronization from the
// command line: recalculate a saved project and report the resulting
// entities, or export one entity's mesh to a file.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chazu/armature/pkg/apply"
	"github.com/chazu/armature/pkg/config"
	"github.com/chazu/armature/pkg/eval"
	"github.com/chazu/armature/pkg/geom"
	"github.com/chazu/armature/pkg/kernel/sdfx"
	"github.com/chazu/armature/pkg/pipeline"
	"github.com/chazu/armature/pkg/scene"
	"github.com/chazu/armature/pkg/workflow"
)

var (
	flagConfig  string
	flagVerbose bool
)

func main() {
	root := &cobra.Command{
		Use:           "armature",
		Short:         "Parametric node-graph geometry engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "armature.yaml", "config file")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	root.AddCommand(recalcCmd(), exportCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "armature:", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newEngine wires kernel, evaluator, orchestrator and workflow engine from
// the config file.
func newEngine(log *slog.Logger) (*workflow.Engine, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	k := sdfx.New()
	k.MeshCells = cfg.Mesh.Cells

	ev := eval.NewEngine(k)
	ev.Samples = cfg.Mesh.CurveSamples

	sc := scene.NewState()
	orch := pipeline.New(ev, pipeline.Options{
		Epsilons: apply.Epsilons(cfg.Epsilons),
		Density:  cfg.DensityPtr(),
		Scene:    sc,
		Log:      log,
	})
	return workflow.New(orch, sc, workflow.Options{Config: cfg, Log: log}), nil
}

func recalcCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recalc <project.json>",
		Short: "Recalculate a project and list the resulting entities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			engine, err := newEngine(log)
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if err := engine.LoadProject(raw); err != nil {
				return err
			}

			store := engine.Store()
			fmt.Printf("%d entities\n", store.Len())
			for _, id := range store.IDs() {
				e := store.Get(id)
				line := fmt.Sprintf("%s  %-13s layer=%s", id.Short(), e.Kind(), e.Layer)
				if e.Physical != nil {
					line += fmt.Sprintf("  volume=%.6g", e.Physical.Volume)
					if e.Physical.MassKg != nil {
						line += fmt.Sprintf("  mass=%.6g", *e.Physical.MassKg)
					}
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <project.json> <entity-id-prefix> <out.stl|out.obj>",
		Short: "Recalculate a project and export one entity's mesh",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			engine, err := newEngine(log)
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if err := engine.LoadProject(raw); err != nil {
				return err
			}

			e, err := findEntity(engine.Store(), args[1])
			if err != nil {
				return err
			}
			mesh := geom.ResolvedMesh(e)
			if mesh.IsEmpty() || mesh.TriangleCount() == 0 {
				return fmt.Errorf("entity %s has no mesh", e.ID.Short())
			}

			out := args[2]
			var data []byte
			switch strings.ToLower(filepath.Ext(out)) {
			case ".stl":
				data = apply.EncodeSTL(mesh)
			case ".obj":
				data = apply.EncodeOBJ(mesh)
			default:
				return fmt.Errorf("unsupported extension %q", filepath.Ext(out))
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			log.Info("exported", "entity", e.ID.Short(), "triangles", mesh.TriangleCount(), "file", out)
			return nil
		},
	}
}

// findEntity resolves an id prefix to exactly one entity.
func findEntity(store *geom.Store, prefix string) (*geom.Entity, error) {
	var found *geom.Entity
	for _, id := range store.IDs() {
		if strings.HasPrefix(string(id), prefix) {
			if found != nil {
				return nil, fmt.Errorf("prefix %q is ambiguous", prefix)
			}
			found = store.Get(id)
		}
	}
	if found == nil {
		return nil, fmt.Errorf("no entity matches %q", prefix)
	}
	return found, nil
}

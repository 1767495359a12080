package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/goldencore/core/edit"
	"github.com/goldencore/core/engine"
	"github.com/goldencore/core/id"
	"github.com/goldencore/core/persist"
	"github.com/goldencore/core/value"
	"github.com/spf13/cobra"
)

// scriptOp is one line of a scripted ingress file: a SetParam intent
// targeting a node by its stable uuid, since a script written offline
// has no session-local id.NodeId to reference.
type scriptOp struct {
	TargetUuid  string      `json:"target_uuid"`
	Value       value.Value `json:"value"`
	Propagation string      `json:"propagation"`
}

func propagationFromString(s string) edit.Propagation {
	switch s {
	case "end_of_tick":
		return edit.EndOfTick
	case "next_tick":
		return edit.NextTick
	default:
		return edit.Immediate
	}
}

var (
	runTicks  int
	runScript string
	runOut    string
	runStrict bool
)

var runCmd = &cobra.Command{
	Use:   "run <project-file>",
	Short: "Load a project, apply a scripted ingress file, tick, and save",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return doRun(args[0])
	},
}

func init() {
	runCmd.Flags().IntVar(&runTicks, "ticks", 1, "number of engine ticks to run")
	runCmd.Flags().StringVar(&runScript, "script", "", "path to a JSON array of scripted ingress ops")
	runCmd.Flags().StringVar(&runOut, "out", "", "path to save the resulting project to (defaults to the input path)")
	runCmd.Flags().BoolVar(&runStrict, "strict", false, "reject project records whose decl_id the schema does not declare")
}

func doRun(projectPath string) error {
	file, err := persist.LoadFile(projectPath)
	if err != nil {
		return fmt.Errorf("load project: %w", err)
	}

	reg := demoRegistry()
	cfg := engine.DefaultConfig()
	cfg.StrictSchemaLoad = runStrict
	eng := engine.New(reg, cfg, nil)
	root, err := eng.LoadProject(file)
	if err != nil {
		return fmt.Errorf("instantiate project: %w", err)
	}

	if runScript != "" {
		if err := applyScript(eng, runScript); err != nil {
			return fmt.Errorf("apply script: %w", err)
		}
	}

	eng.Loop(runTicks)

	out, err := eng.SaveProject(root)
	if err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	outPath := runOut
	if outPath == "" {
		outPath = projectPath
	}
	if err := persist.SaveFile(outPath, out); err != nil {
		return fmt.Errorf("write project: %w", err)
	}
	fmt.Printf("ran %d tick(s), saved to %s\n", runTicks, outPath)
	return nil
}

func applyScript(eng *engine.Engine, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var ops []scriptOp
	if err := json.Unmarshal(b, &ops); err != nil {
		return err
	}
	for _, op := range ops {
		targetUuid, err := id.ParseUuid(op.TargetUuid)
		if err != nil {
			return fmt.Errorf("op targeting %q: %w", op.TargetUuid, err)
		}
		target, ok := eng.Store().ResolveUuid(targetUuid)
		if !ok {
			return fmt.Errorf("op targeting %q: uuid not found in project", op.TargetUuid)
		}
		intent := edit.SetParam(target, op.Value, propagationFromString(op.Propagation))
		if err := eng.Queue().Push(intent); err != nil {
			return fmt.Errorf("op targeting %q: %w", op.TargetUuid, err)
		}
	}
	return nil
}

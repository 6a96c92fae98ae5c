package cmd

import (
	"fmt"
	"os"

	"github.com/jamestiotio/SimEng/internal/akita/sim"
	"github.com/jamestiotio/SimEng/internal/config"
	"github.com/jamestiotio/SimEng/internal/core"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	cycles    uint64
	startAddr uint64
)

var runCmd = &cobra.Command{
	Use:   "run <config.yaml>",
	Short: "run one core against a YAML config for a fixed number of cycles",
	Args:  cobra.ExactArgs(1),
	RunE:  runE,
}

func init() {
	runCmd.Flags().Uint64Var(&cycles, "cycles", 10000, "number of cycles to simulate")
	runCmd.Flags().Uint64Var(&startAddr, "start-addr", 0, "initial program counter")
}

// boundedCore caps a *core.Core to a fixed number of Tick calls, so that a
// self-rescheduling sim.TickingComponent stops on its own once the
// --cycles budget is spent, even though sim.SerialEngine.Run drains its
// event queue unconditionally.
type boundedCore struct {
	*core.Core
	remaining uint64
}

func (b *boundedCore) Tick() bool {
	if b.remaining == 0 {
		return false
	}
	b.remaining--
	return b.Core.Tick()
}

func runE(_ *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("simeng: reading config: %w", err)
	}

	var doc config.Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("simeng: parsing config: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("simeng: %w", err)
	}

	c := core.New(&doc, nopDecoder{}, nopExceptionHandler{}, startAddr)
	ticker := &boundedCore{Core: c, remaining: cycles}

	engine := sim.NewSerialEngine()
	tc := sim.NewTickingComponent("Core", engine, sim.GHz, ticker)
	tc.TickNow()

	if err := engine.Run(); err != nil {
		return fmt.Errorf("simeng: %w", err)
	}
	engine.Finished()

	stats := c.Stats()
	fmt.Printf("cycles=%d retired=%d ipc=%.3f flushes=%d branch-miss-rate=%.3f\n",
		stats.Cycles, stats.Retired, stats.IPC, stats.Flushes, stats.BranchMissRate)

	return nil
}

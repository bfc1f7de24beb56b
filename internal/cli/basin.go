package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lazypower/attractor/internal/basin"
)

var basinCmd = &cobra.Command{
	Use:   "basin",
	Short: "Manage basins",
}

// --- basin add ---

var (
	basinDescription string
	basinConcepts    []string
	basinStrength    float64
)

var basinAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or update a basin",
	Long: "Add a basin to the catalogue and store its pattern. Re-adding an existing basin " +
		"updates its description and concepts but keeps its learned strength.",
	Args: cobra.ExactArgs(1),
	RunE: runBasinAdd,
}

func runBasinAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	d := basin.Descriptor{
		Name:        strings.TrimSpace(args[0]),
		Description: basinDescription,
		Concepts:    basinConcepts,
		Strength:    basinStrength,
	}
	if err := sess.db.UpsertBasin(ctx, d); err != nil {
		return err
	}
	if _, err := sess.rt.Warm(ctx); err != nil {
		return err
	}

	st, _ := sess.rt.Registry().Get(d.Name)
	fmt.Printf("basin %s stored (degree %d, energy %.3f)\n", d.Name, st.Degree, st.Energy)
	return nil
}

// --- basin list ---

var basinListCmd = &cobra.Command{
	Use:   "list",
	Short: "List basins",
	RunE:  runBasinList,
}

func runBasinList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	descs, err := sess.db.ListBasins(ctx)
	if err != nil {
		return err
	}
	if len(descs) == 0 {
		fmt.Println("No basins yet. Add one with `attractor basin add`.")
		return nil
	}

	for _, d := range descs {
		st, _ := sess.rt.Registry().Get(d.Name)
		fmt.Printf("%-20s strength %.3f  degree %d  energy %8.3f\n", d.Name, d.Strength, st.Degree, st.Energy)
		if d.Description != "" {
			fmt.Printf("  %s\n", d.Description)
		}
		if len(d.Concepts) > 0 {
			fmt.Printf("  concepts: %s\n", strings.Join(d.Concepts, ", "))
		}
	}
	return nil
}

// --- basin stability ---

var basinStabilityCmd = &cobra.Command{
	Use:   "stability <name>",
	Short: "Measure how reliably a basin recovers from noise",
	Args:  cobra.ExactArgs(1),
	RunE:  runBasinStability,
}

func runBasinStability(cmd *cobra.Command, args []string) error {
	sess, err := openSession(context.Background())
	if err != nil {
		return err
	}
	defer sess.Close()

	stability, err := sess.rt.Registry().Stability(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s: stability %.2f\n", args[0], stability)
	if levels := sess.cfg.Stability.NoiseLevels(); len(levels) > 0 {
		fmt.Printf("  %d trials, noise %.0f%% to %.0f%%\n", len(levels), levels[0]*100, levels[len(levels)-1]*100)
	}
	return nil
}

func init() {
	basinAddCmd.Flags().StringVarP(&basinDescription, "description", "d", "", "Basin description")
	basinAddCmd.Flags().StringSliceVarP(&basinConcepts, "concept", "c", nil, "Concept keyword (repeatable)")
	basinAddCmd.Flags().Float64Var(&basinStrength, "strength", 1.0, "Initial strength for a new basin")

	basinCmd.AddCommand(basinAddCmd)
	basinCmd.AddCommand(basinListCmd)
	basinCmd.AddCommand(basinStabilityCmd)
}

package cli

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/attractor/internal/metrics"
	"github.com/lazypower/attractor/internal/router"
)

// --- route command ---

var routeBasin string

var routeCmd = &cobra.Command{
	Use:   "route <content...>",
	Short: "Score content against a basin",
	Long:  "Score content against --basin, or against every basin when --basin is omitted, and log the decision.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRoute,
}

func runRoute(cmd *cobra.Command, args []string) error {
	content := strings.Join(args, " ")

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	var d router.Decision
	if routeBasin == "" {
		d, err = sess.rt.RouteBest(ctx, content)
	} else {
		d, err = sess.rt.Route(ctx, content, routeBasin)
	}
	if err != nil {
		return fmt.Errorf("route: %w", err)
	}
	printDecision(d)
	return nil
}

func printDecision(d router.Decision) {
	if d.Basin == "" {
		fmt.Println("No basins to route to.")
		return
	}
	fmt.Printf("%s  [%.3f] %s\n", d.Basin, d.BlendedScore, d.Zone)
	fmt.Printf("  hopfield %.3f", d.HopfieldScore)
	if d.OracleScore != nil {
		fmt.Printf("  oracle %.3f", *d.OracleScore)
	}
	fmt.Println()
	if d.TransitionSuggested {
		fmt.Printf("  suggest: %s [%.3f]\n", d.SuggestedBasin, d.SuggestedScore)
	}
	fmt.Printf("  %s\n", d.Reason)
}

// --- reinforce command ---

var reinforceCmd = &cobra.Command{
	Use:   "reinforce <basin> <score>",
	Short: "Feed an observed score back into a basin",
	Args:  cobra.ExactArgs(2),
	RunE:  runReinforce,
}

func runReinforce(cmd *cobra.Command, args []string) error {
	score, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("score must be a number: %w", err)
	}

	ctx := context.Background()
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	res, err := sess.rt.Reinforce(ctx, args[0], score)
	if err != nil {
		return err
	}
	fmt.Printf("%s: strength %.3f (%+.3f)", res.Basin, res.Strength, res.Delta)
	if res.Degree > 0 {
		fmt.Printf(", pattern re-stored with degree %d", res.Degree)
	}
	fmt.Println()
	return nil
}

// --- nearest command ---

var nearestMaxIterations int

var nearestCmd = &cobra.Command{
	Use:   "nearest <query...>",
	Short: "Let the network settle from a query and report the basin it falls into",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runNearest,
}

func runNearest(cmd *cobra.Command, args []string) error {
	sess, err := openSession(context.Background())
	if err != nil {
		return err
	}
	defer sess.Close()

	maxIter := nearestMaxIterations
	if maxIter <= 0 {
		maxIter = sess.cfg.Engine.MaxIterations
	}

	reg := sess.rt.Registry()
	res := reg.FindNearest(strings.Join(args, " "), maxIter)
	if res == nil {
		fmt.Println("No basins registered.")
		return nil
	}
	metrics.ObserveConvergence(*res)

	state := "converged"
	if !res.Converged {
		state = "did not converge"
	}
	fmt.Printf("%s after %d sweeps, energy %.3f\n", state, res.Iterations, res.FinalEnergy)
	if st, overlap, ok := reg.Match(res.FinalState); ok {
		note := ""
		if overlap < 0 {
			note = " (negated)"
		}
		fmt.Printf("  nearest basin: %s, overlap %.3f%s\n", st.Name, overlap, note)
	}
	return nil
}

// --- capacity command ---

var capacityCmd = &cobra.Command{
	Use:   "capacity",
	Short: "Report how loaded the weight matrix is",
	RunE:  runCapacity,
}

func runCapacity(cmd *cobra.Command, args []string) error {
	sess, err := openSession(context.Background())
	if err != nil {
		return err
	}
	defer sess.Close()

	r := sess.rt.Registry().Engine().Capacity()
	kappa := "inf"
	if !math.IsInf(r.ConditionNumber, 0) {
		kappa = fmt.Sprintf("%.3f", r.ConditionNumber)
	}
	fmt.Printf("units:              %d\n", r.Units)
	fmt.Printf("stored patterns:    %d (total degree %d)\n", r.StoredPatterns, r.TotalDegree)
	fmt.Printf("condition number:   %s (threshold %.1f)\n", kappa, r.Threshold)
	fmt.Printf("capacity remaining: %.1f%%\n", r.CapacityRemaining*100)
	if r.Overloaded {
		fmt.Println("warning: network is overloaded; retrieval is unreliable")
	}
	return nil
}

// --- decisions command ---

var (
	decisionsLimit int
	decisionsBasin string
)

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Show recent routing decisions",
	RunE:  runDecisions,
}

func runDecisions(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	decisions, err := db.RecentDecisions(context.Background(), decisionsBasin, decisionsLimit)
	if err != nil {
		return err
	}
	if len(decisions) == 0 {
		fmt.Println("No decisions recorded.")
		return nil
	}
	for _, d := range decisions {
		fmt.Printf("%s  ", d.CreatedAt.Local().Format(time.DateTime))
		printDecision(d)
	}
	return nil
}

func init() {
	routeCmd.Flags().StringVarP(&routeBasin, "basin", "b", "", "Basin to score against (default: best match)")
	nearestCmd.Flags().IntVar(&nearestMaxIterations, "max-iterations", 0, "Sweep limit (default from config)")
	decisionsCmd.Flags().IntVarP(&decisionsLimit, "limit", "n", 20, "Maximum number of decisions")
	decisionsCmd.Flags().StringVarP(&decisionsBasin, "basin", "b", "", "Only show decisions for this basin")
}

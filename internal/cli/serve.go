package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/attractor/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	sess, err := openSession(context.Background())
	if err != nil {
		return err
	}
	defer sess.Close()
	cfg := sess.cfg

	fmt.Fprintf(os.Stderr, "  engine: %d units, bias %v, threshold %.1f\n",
		cfg.Engine.Dimensions, cfg.Engine.Bias, cfg.Engine.ConditionThreshold)
	fmt.Fprintf(os.Stderr, "  basins: %d loaded\n", sess.rt.Registry().Len())
	if sess.rt.OracleEnabled() {
		fmt.Fprintf(os.Stderr, "  oracle: %s\n", cfg.Oracle.Provider)
	} else {
		fmt.Fprintf(os.Stderr, "  oracle: disabled\n")
	}

	srv := server.New(sess.db, sess.rt, VersionString(), server.WithMaxIterations(cfg.Engine.MaxIterations))
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "attractor serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", sess.db.Path)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}

package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"missioncontrol/internal/healthrun"
)

func sweepCmd() *cobra.Command {
	var interval time.Duration
	var once bool
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Test every integration in a loop (stateless worker; results go to PostgreSQL)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if once {
				interval = 0
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			runner := healthrun.New(a.service,
				healthrun.WithConcurrency(a.cfg.Health.Concurrency),
				healthrun.WithMetrics(a.metrics),
				healthrun.WithLogger(a.logger),
			)

			doOnce := func() error {
				sum, err := runner.Sweep(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), sum)
			}

			if interval == 0 {
				return doOnce()
			}
			t := time.NewTicker(interval)
			defer t.Stop()
			for {
				if err := doOnce(); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "sweep failed:", err)
				}
				select {
				case <-ctx.Done():
					return nil
				case <-t.C:
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 10*time.Minute, "Sweep interval (0 to run once)")
	cmd.Flags().BoolVar(&once, "once", false, "Run once and exit")
	return cmd
}

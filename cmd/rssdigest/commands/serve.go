package commands

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hoanghai1803/rssdigest/internal/api"
	"github.com/hoanghai1803/rssdigest/internal/models"
	"github.com/hoanghai1803/rssdigest/internal/pipeline"
	"github.com/hoanghai1803/rssdigest/internal/scheduler"
	"github.com/hoanghai1803/rssdigest/internal/timerange"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(g *globalOptions) *cobra.Command {
	var noSchedule bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API and run the pipeline on a schedule",
		Long: `Serve the read-only JSON API on server.host:server.port and, unless
--no-schedule is given, run the pipeline immediately and then on every
schedule tick. Each scheduled run starts where the previous one ended.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				var sched *scheduler.Scheduler
				if !noSchedule {
					trigger, err := scheduler.NewTrigger(a.cfg.Schedule.Cron, a.cfg.Schedule.IntervalHours)
					if err != nil {
						return err
					}
					p, err := a.pipeline(true)
					if err != nil {
						return err
					}
					sched = scheduler.New(trigger, runJob(p), a.store, a.logger)
				}

				srv := &http.Server{
					Addr:              a.cfg.Server.Addr(),
					Handler:           api.NewRouter(a.store, a.resolver(), a.logger),
					ReadHeaderTimeout: 10 * time.Second,
				}
				return serve(ctx, a, srv, sched)
			})
		},
	}
	cmd.Flags().BoolVar(&noSchedule, "no-schedule", false, "Only serve the API")
	return cmd
}

func runJob(p *pipeline.Pipeline) scheduler.Job {
	return func(ctx context.Context, bounds timerange.Bounds) (*models.RunResult, error) {
		return p.Run(ctx, pipeline.RunOptions{Range: bounds})
	}
}

// serve runs the HTTP server and the scheduler until ctx is cancelled or
// either of them fails.
func serve(ctx context.Context, a *app, srv *http.Server, sched *scheduler.Scheduler) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("starting server", "addr", "http://"+ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	if sched != nil {
		g.Go(func() error {
			return sched.Start(ctx)
		})
	}

	return g.Wait()
}

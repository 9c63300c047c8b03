package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/RestinGreen/stable-pricer/pkg/database"
	"github.com/RestinGreen/stable-pricer/pkg/feed"
	"github.com/RestinGreen/stable-pricer/pkg/memory"
	"github.com/RestinGreen/stable-pricer/pkg/metrics"
	"github.com/RestinGreen/stable-pricer/pkg/peek"
	"github.com/RestinGreen/stable-pricer/pkg/router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

type watchOptions struct {
	refresh time.Duration
	peek    bool
}

func watchCmd(setup func() (*app, error)) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch [token address]...",
		Short: "Keep prices current from pair Sync events",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.log.Sync()
			return a.watch(cmd.Context(), args, opts)
		},
	}
	cmd.Flags().DurationVar(&opts.refresh, "refresh", time.Minute, "interval of full reserve re-reads, 0 disables")
	cmd.Flags().BoolVar(&opts.peek, "peek", true, "enable the key driven inspector when stdin is a terminal")
	return cmd
}

func (a *app) watch(ctx context.Context, args []string, opts watchOptions) error {

	access, err := a.dial(ctx)
	if err != nil {
		return err
	}
	defer access.conn.Close()

	tokens, err := a.resolveTokens(ctx, access.binding, args)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	mtr, err := metrics.New(reg)
	if err != nil {
		return err
	}

	mem := memory.NewMemory(memory.WithMetrics(mtr), memory.WithLogger(a.log))
	monitorOpts := []memory.MonitorOption{memory.WithMonitorLogger(a.log)}

	if a.general.DatabaseEnabled() {
		db, err := database.NewDB(ctx, a.general, a.log)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		stored, err := db.LoadPairs(ctx, a.network.ChainID)
		if err != nil {
			return err
		}
		for _, pair := range stored {
			mem.AddPair(pair)
		}
		monitorOpts = append(monitorOpts, memory.WithSaver(db))
	}

	monitor := memory.NewDataMonitor(mem, access.reader, access.conn.EthClient, monitorOpts...)
	if _, err := monitor.Load(ctx, a.network, tokens); err != nil {
		return err
	}

	r := router.New(mem, a.general, a.registry, router.WithMetrics(mtr), router.WithLogger(a.log))
	prices := feed.New(r, mem, tokens, a.log)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		prices.Run(ctx)
		return nil
	})
	g.Go(func() error {
		for snapshot := range prices.Snapshots() {
			a.logSnapshot(snapshot)
		}
		return nil
	})
	g.Go(func() error {
		err := monitor.ListenPairSyncEvents(ctx)
		if errors.Is(err, memory.ErrNothingToWatch) {
			a.log.Warn("no pairs found for the watch list")
			return nil
		}
		return err
	})
	if opts.refresh > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(opts.refresh)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := monitor.Refresh(ctx); err != nil {
						a.log.Warn("refresh failed", zap.Error(err))
					}
				}
			}
		})
	}
	if a.general.MetricsAddr != "" {
		server := &http.Server{
			Addr:              a.general.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			a.log.Info("serving metrics", zap.String("addr", server.Addr))
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return server.Close()
		})
	}
	if opts.peek && term.IsTerminal(int(os.Stdin.Fd())) {
		g.Go(func() error {
			restore := peek.Cbreak()
			defer restore()
			err := peek.NewPeek(os.Stdin, os.Stdout, prices, mem).Run(ctx)
			// q ends the whole watch
			cancel()
			return err
		})
	}

	a.log.Info("watching prices", zap.Int("tokens", len(tokens)), zap.Int("pairs", mem.Len()))
	return g.Wait()
}

func (a *app) logSnapshot(snapshot feed.Snapshot) {
	for i, token := range snapshot.Tokens {
		q := snapshot.Quotes[i]
		if !q.Available() {
			a.log.Info("price", zap.Stringer("token", token), zap.Stringer("route", q.Route))
			continue
		}
		a.log.Info("price",
			zap.Stringer("token", token),
			zap.Stringer("route", q.Route),
			zap.String("price", q.Price.ToFixed(6)),
		)
	}
}

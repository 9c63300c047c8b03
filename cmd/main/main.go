package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/RestinGreen/stable-pricer/pkg/assets"
	"github.com/RestinGreen/stable-pricer/pkg/general"
	"github.com/RestinGreen/stable-pricer/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app is what every command needs before it starts.
type app struct {
	general  *general.General
	log      *zap.Logger
	registry *assets.Registry
	network  *assets.Network
}

func newApp(envFile string) (*app, error) {

	gen, err := general.NewGeneral(envFile)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(gen.LogLevel)
	if err != nil {
		return nil, err
	}
	registry := assets.Default()
	network, err := registry.Lookup(gen.Chain)
	if err != nil {
		return nil, fmt.Errorf("chain %d: %w", gen.Chain, err)
	}
	return &app{general: gen, log: log, registry: registry, network: network}, nil
}

func rootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "stable-pricer",
		Short:         "Price tokens in a stable reference asset through Uniswap V2 pairs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env", "", "path of the .env file (default ./.env when present)")

	setup := func() (*app, error) { return newApp(envFile) }
	root.AddCommand(priceCmd(setup), watchCmd(setup), migrateCmd(setup))
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

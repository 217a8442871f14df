// Command main resets the car table to the fixture cars.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"carlot/internal/config"
	"carlot/internal/database"
	"carlot/internal/middleware"
	"carlot/internal/repository"
	"carlot/internal/seed"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := seed.Options{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Reset the car table to the fixture cars",
		Long: `Reset the car table to the fixture cars.

By default only cars without an owner are replaced, so cars created by
signed-in users survive. Pass --all to wipe every car first.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "delete owned cars too")

	return cmd
}

func run(ctx context.Context, opts seed.Options) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	middleware.SetupLogger(cfg.Env)

	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			middleware.Logger.Error("error closing database", slog.String("error", err.Error()))
		}
	}()

	cars, err := seed.Reset(ctx, repository.NewCarRepository(db), opts)
	if err != nil {
		return err
	}

	for _, car := range cars {
		fmt.Printf("%s\t%s\t%s\n", car.ID, car.Name, car.Color)
	}
	return nil
}

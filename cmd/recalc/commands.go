package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/padraicbc/racepool/config"
	bundb "github.com/padraicbc/racepool/db"
	applog "github.com/padraicbc/racepool/logger"
	"github.com/padraicbc/racepool/service"
	"github.com/padraicbc/racepool/store"
)

func init() {
	rootCmd.AddCommand(raceCmd)
	rootCmd.AddCommand(poolCmd)
}

var raceCmd = &cobra.Command{
	Use:   "race <race-id>",
	Short: "Recompute one race",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withScorer(cmd.Context(), func(ctx context.Context, s *service.Scorer) error {
			out, err := s.RecalculateRace(ctx, id)
			if out != nil {
				if perr := printOutcomes(cmd.OutOrStdout(), out); perr != nil {
					return perr
				}
			}
			return err
		})
	},
}

var poolCmd = &cobra.Command{
	Use:   "pool <pool-id>",
	Short: "Recompute every published race of a pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withScorer(cmd.Context(), func(ctx context.Context, s *service.Scorer) error {
			outs, err := s.RecalculatePool(ctx, id)
			if perr := printOutcomes(cmd.OutOrStdout(), outs...); perr != nil {
				return perr
			}
			return err
		})
	},
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// withScorer opens the database, builds a Scorer and hands it to fn.
func withScorer(ctx context.Context, fn func(context.Context, *service.Scorer) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.Load()
	logger, err := applog.New(cfg.Debug)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := bundb.Open(ctx, cfg.PostgresDSN(), cfg.Debug)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer db.Close()

	scorer := service.New(store.New(db), logger, nil)
	if err := fn(ctx, scorer); err != nil {
		logger.Error("recompute failed", zap.Error(err))
		return err
	}
	return nil
}

func printOutcomes(w io.Writer, outs ...*service.RaceOutcome) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(outs)
	}
	for _, o := range outs {
		fmt.Fprintf(w, "pool %d race %d: %d scores written, %d stale removed\n", o.PoolID, o.RaceID, o.Written, o.Deleted)
		for k, msg := range o.Failures {
			fmt.Fprintf(w, "  %s not saved: %s\n", k, msg)
		}
	}
	return nil
}

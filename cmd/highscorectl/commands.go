package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"highscore/core"
	"highscore/engine"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the highscore table if it does not exist",
		Long: `Create the highscore table or key space when missing.

With --seed, sample records are loaded, but only into a store that
this command created. Existing data is never touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			storage, err := rootOpts.openStorage(cmd.Context(), seed)
			if err != nil {
				return err
			}
			defer storage.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "storage ready")
			return nil
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "load sample records into a newly created store")
	return cmd
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		name       string
		difficulty int64
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List highscores, optionally filtered by name and difficulty",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			storage, err := rootOpts.openStorage(ctx, false)
			if err != nil {
				return err
			}
			defer storage.Close()
			svc := newService(storage)
			defer svc.Close()

			byName := cmd.Flags().Changed("name")
			byDifficulty := cmd.Flags().Changed("difficulty")
			var records []core.Record
			switch {
			case byName && byDifficulty:
				records, err = svc.ListByNameAndDifficulty(ctx, name, difficulty)
			case byName:
				records, err = svc.ListByName(ctx, name)
			case byDifficulty:
				records, err = svc.ListByDifficulty(ctx, difficulty)
			default:
				records, err = svc.ListAll(ctx)
			}
			if err != nil {
				return err
			}
			return writeRecords(cmd.OutOrStdout(), rootOpts.Format, records)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "only this player")
	cmd.Flags().Int64Var(&difficulty, "difficulty", 0, "only this difficulty")
	return cmd
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <name> <difficulty> <score>",
		Short: "Submit a score; it is stored only if it beats the current one",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			storage, err := rootOpts.openStorage(ctx, false)
			if err != nil {
				return err
			}
			defer storage.Close()
			svc := newService(storage)
			defer svc.Close()

			res, err := svc.Submit(ctx, map[string]any{
				"name":       args[0],
				"difficulty": args[1],
				"score":      args[2],
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !res.Accepted {
				fmt.Fprintf(out, "not improved: %s already has %d on difficulty %d\n",
					res.Record.Name, res.Record.Score, res.Record.Difficulty)
				return nil
			}
			return writeRecords(out, rootOpts.Format, []core.Record{res.Record})
		},
	}
	return cmd
}

func newService(storage engine.Storage) *engine.ScoreService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return engine.NewScoreService(storage, engine.NewEventBus(engine.DispatchSync), logger)
}

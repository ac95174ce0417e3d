package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"highscore/config"
	"highscore/core"
	"highscore/engine"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	Profile    string
	Adapter    string
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for highscorectl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "highscorectl",
		Short: "Inspect and update a highscore store",
		Long: `highscorectl works directly on the storage configured for the
highscore server, using the same environment variables and profiles.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "path to a JSON config file")
	cmd.PersistentFlags().StringVar(&opts.Profile, "profile", "", "configuration profile (development|testing|staging|production)")
	cmd.PersistentFlags().StringVar(&opts.Adapter, "adapter", "", "override the storage adapter")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewSubmitCommand(opts))

	return cmd
}

func (o *RootOptions) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case o.ConfigFile != "":
		cfg, err = config.LoadFromFile(o.ConfigFile)
	case o.Profile != "":
		cfg, err = config.LoadProfile(o.Profile)
	default:
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if o.Adapter != "" {
		cfg.Storage.Adapter = o.Adapter
	}
	return cfg, nil
}

// openStorage opens the configured store, optionally asking it to seed.
func (o *RootOptions) openStorage(ctx context.Context, seed bool) (engine.Storage, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if seed {
		cfg.Storage.SetSeedSampleData(true)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg.Storage.Open(ctx)
}

func writeRecords(w io.Writer, format string, records []core.Record) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DIFFICULTY\tNAME\tSCORE")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%d\n", r.Difficulty, r.Name, r.Score)
	}
	return tw.Flush()
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/onnwee/collegepredictor/internal/college"
	"github.com/onnwee/collegepredictor/internal/config"
	"github.com/onnwee/collegepredictor/internal/db"
	"github.com/onnwee/collegepredictor/internal/predict"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

type rootOptions struct {
	configPath string
	envFile    string
	rank       int
	category   string
	branch     string
	output     string
}

func newRootCmd(b backend) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict eligible colleges for an EAMCET rank",
		Long: `Computes the rank window for the given rank and lists, for every
counselling phase, the colleges offering the branch whose closing rank for
the category falls inside the window.`,
		Example:       `  predict --rank 5000 --category OC_BOYS --branch "COMPUTER SCIENCE AND ENGINEERING"`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := runPredict(cmd, b, opts)
			if err != nil {
				color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			}
			return err
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "optional YAML config file")
	flags.StringVar(&opts.envFile, "env-file", ".env", "optional .env file loaded before reading the environment")

	cmd.Flags().IntVar(&opts.rank, "rank", 0, "candidate rank (positive integer)")
	cmd.Flags().StringVar(&opts.category, "category", "", "category/gender column, e.g. OC_BOYS")
	cmd.Flags().StringVar(&opts.branch, "branch", "", "exact branch name")
	cmd.Flags().StringVarP(&opts.output, "output", "o", outputTable, "output format: table or json")
	_ = cmd.MarkFlagRequired("rank")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("branch")

	cmd.AddCommand(newSchemaCmd(b, opts), newCategoriesCmd())
	return cmd
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return nil, err
	}
	cfg, errs := config.Load(opts.configPath)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func runPredict(cmd *cobra.Command, b backend, opts *rootOptions) error {
	if opts.output != outputTable && opts.output != outputJSON {
		return fmt.Errorf("unknown output format %q", opts.output)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	req := predict.Request{
		Rank:     opts.rank,
		Category: strings.TrimSpace(opts.category),
		Branch:   opts.branch,
	}
	// Reject bad input before opening a connection.
	if _, err := predict.Validate(req); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, closeStore, err := b.openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	engine := predict.NewEngine(store, predict.WithTimeout(cfg.QueryTimeout))
	pred, err := engine.Predict(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.output == outputJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(pred.Results)
	}
	renderPrediction(out, req, pred)
	return nil
}

func newSchemaCmd(b backend, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create the phase tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			pool, err := b.openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.EnsureSchema(cmd.Context(), pool); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Schema ready: %d phase tables\n", len(college.Partitions()))
			return nil
		},
	}
}

func newCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the accepted category/gender identifiers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, c := range college.Categories() {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/caresched/config"
	"github.com/kilianp07/caresched/core/model"
)

var genOpts model.GenerateOptions

var genOut string

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a reproducible synthetic dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		grid, err := cfg.Grid.Build()
		if err != nil {
			return err
		}
		ds, err := model.Generate(grid, genOpts)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if genOut != "" {
			f, err := os.Create(genOut)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			w = f
		}
		return model.WriteDataset(w, ds)
	},
}

func init() {
	f := generateCmd.Flags()
	f.Int64Var(&genOpts.Seed, "seed", 42, "random seed")
	f.IntVar(&genOpts.Clients, "clients", 10, "number of clients")
	f.IntVar(&genOpts.Providers, "providers", 4, "number of providers")
	f.StringVarP(&genOut, "out", "o", "", "output file, stdout when empty")
	rootCmd.AddCommand(generateCmd)
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kilianp07/caresched/app"
	"github.com/kilianp07/caresched/core/model"
	"github.com/kilianp07/caresched/core/schedule"
	"github.com/kilianp07/caresched/pkg/export"
)

var solveOpts struct {
	dataset string
	csvDir  string
	pdfDir  string
	json    string
}

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Schedule a dataset once and print the result",
	RunE:  runSolve,
}

func init() {
	f := solveCmd.Flags()
	f.StringVarP(&solveOpts.dataset, "dataset", "d", "", "dataset file (yaml or json)")
	f.StringVar(&solveOpts.csvDir, "csv", "", "write one CSV per client into this directory")
	f.StringVar(&solveOpts.pdfDir, "pdf", "", "write schedule.pdf into this directory")
	f.StringVar(&solveOpts.json, "json", "", "write the schedule as JSON to this file")
	_ = solveCmd.MarkFlagRequired("dataset")
	rootCmd.AddCommand(solveCmd)
}

func runSolve(cmd *cobra.Command, args []string) error {
	ds, err := model.LoadDataset(solveOpts.dataset)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	return withService(func(ctx context.Context, svc *app.Service) error {
		out, err := svc.Solve(ctx, ds)
		if err != nil {
			return err
		}
		return printOutcome(cmd.OutOrStdout(), ds, out)
	})
}

func printOutcome(w io.Writer, ds model.Dataset, out schedule.Outcome) error {
	if !out.Feasible() {
		_, err := fmt.Fprintf(w, "No feasible schedule could be created (%s).\n", out.Status)
		return err
	}
	if err := export.RenderConsultations(w, ds, out.Schedule); err != nil {
		return err
	}
	if err := export.RenderSchedule(w, ds, out.Schedule); err != nil {
		return err
	}
	if solveOpts.csvDir != "" {
		paths, err := export.ExportClientCSVs(solveOpts.csvDir, ds, out.Schedule)
		if err != nil {
			return err
		}
		for _, p := range paths {
			if _, err := fmt.Fprintf(w, "Exported schedule to %s\n", p); err != nil {
				return err
			}
		}
	}
	if solveOpts.pdfDir != "" {
		if err := os.MkdirAll(solveOpts.pdfDir, 0o755); err != nil {
			return err
		}
		if err := writeTo(filepath.Join(solveOpts.pdfDir, "schedule.pdf"), func(f io.Writer) error {
			return export.WriteSchedulePDF(f, ds, out.Schedule)
		}); err != nil {
			return err
		}
	}
	if solveOpts.json != "" {
		if err := writeTo(solveOpts.json, func(f io.Writer) error {
			return export.WriteJSON(f, out.Schedule)
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeTo(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/dto"
)

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.reconciler.RunOnce(ctx)
			if err != nil {
				return err
			}

			return json.NewEncoder(os.Stdout).Encode(dto.ReconcileResponse{
				Checked:      report.Checked,
				Completed:    report.Completed,
				StillPending: report.StillPending,
				Repaired:     report.Repaired,
				Expired:      report.Expired,
				Errors:       report.Errors,
			})
		},
	}

	return cmd
}

package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ogurasousui/spendsync/internal/core/directorysync"
)

type syncOutput struct {
	Command     string          `json:"command"`
	DurationMS  int64           `json:"duration_ms"`
	Success     bool            `json:"success"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at"`
	Stats       syncStatsOutput `json:"stats"`
	Errors      []string        `json:"errors"`
}

type syncStatsOutput struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

func newSyncCmd(opts *rootOptions, kind, short string) *cobra.Command {
	var (
		organizationID string
		integrationID  string
	)

	cmd := &cobra.Command{
		Use:   kind,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			in := directorysync.SyncInput{IntegrationID: integrationID, OrganizationID: organizationID}
			start := time.Now()

			var result *directorysync.SyncResult
			if kind == string(directorysync.KindDepartments) {
				result, err = a.sync.SyncDepartments(cmd.Context(), in)
			} else {
				result, err = a.sync.SyncEmployees(cmd.Context(), in)
			}
			if err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), syncOutput{
				Command:     "dirsync " + kind,
				DurationMS:  time.Since(start).Milliseconds(),
				Success:     result.Success,
				StartedAt:   result.StartedAt,
				CompletedAt: result.CompletedAt,
				Stats: syncStatsOutput{
					Created: result.Stats.Created,
					Updated: result.Stats.Updated,
					Skipped: result.Stats.Skipped,
					Errors:  result.Stats.Errors,
				},
				Errors: result.Errors,
			})
		},
	}

	cmd.Flags().StringVar(&organizationID, "org", "", "Organization ID (required)")
	cmd.Flags().StringVar(&integrationID, "integration", "", "Integration ID (required)")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("integration")
	return cmd
}

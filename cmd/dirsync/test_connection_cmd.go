package main

import (
	"github.com/spf13/cobra"

	"github.com/ogurasousui/spendsync/internal/core/integration"
)

type testConnectionOutput struct {
	Command       string `json:"command"`
	IntegrationID string `json:"integration_id"`
	Success       bool   `json:"success"`
	Message       string `json:"message,omitempty"`
	Status        string `json:"status"`
}

func newTestConnectionCmd(opts *rootOptions) *cobra.Command {
	var (
		organizationID string
		integrationID  string
	)

	cmd := &cobra.Command{
		Use:   "test-connection",
		Short: "Check that the integration's directory is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.integrations.TestConnection(cmd.Context(), integration.GetIntegrationInput{
				OrganizationID: organizationID,
				ID:             integrationID,
			})
			if err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), testConnectionOutput{
				Command:       "dirsync test-connection",
				IntegrationID: result.Integration.ID(),
				Success:       result.Success,
				Message:       result.Message,
				Status:        string(result.Integration.Status()),
			})
		},
	}

	cmd.Flags().StringVar(&organizationID, "org", "", "Organization ID (required)")
	cmd.Flags().StringVar(&integrationID, "integration", "", "Integration ID (required)")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("integration")
	return cmd
}

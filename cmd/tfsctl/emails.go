package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var emailLimit int

var emailsCmd = &cobra.Command{
	Use:   "emails",
	Short: "Inspect and drain the email queue",
}

var emailsProcessCmd = &cobra.Command{
	Use:   "process",
	Short: "Send one batch of due emails",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, deps, done, err := env(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		res, err := deps.Emails.ProcessBatch(cmd.Context(), emailLimit)
		if err != nil {
			return err
		}
		if res.Skipped {
			logger().Info("another worker holds the queue lease")
		}
		logger().Info("email batch", zap.Int("processed", res.Processed), zap.Int("sent", res.Sent), zap.Int("failed", res.Failed))
		fmt.Fprintf(cmd.OutOrStdout(), "processed=%d sent=%d failed=%d\n", res.Processed, res.Sent, res.Failed)
		return nil
	},
}

var emailsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count queued emails by status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, deps, done, err := env(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		st, err := deps.Emails.Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pending=%d sent=%d failed=%d\n", st.Pending, st.Sent, st.Failed)
		return nil
	},
}

func init() {
	emailsProcessCmd.Flags().IntVarP(&emailLimit, "limit", "n", 20, "maximum emails to send")
	emailsCmd.AddCommand(emailsProcessCmd, emailsStatsCmd)
}

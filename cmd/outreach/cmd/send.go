package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/outreach/internal/core"
	"github.com/JonMunkholm/outreach/internal/dispatch"
)

var (
	sendTemplate string
	sendRows     []int
	sendDryRun   bool
)

var sendCmd = &cobra.Command{
	Use:   "send FILE",
	Short: "Render a message template and send it by SMS",
	Long: `Processes FILE, renders --template for each contact and sends it through
Twilio using TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_PHONE_NUMBER.
With --dry-run the messages are printed instead of sent.`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVarP(&sendTemplate, "template", "t", "", "message template")
	sendCmd.Flags().IntSliceVar(&sendRows, "rows", nil, "row indexes to include (default: all)")
	sendCmd.Flags().BoolVar(&sendDryRun, "dry-run", false, "print messages without sending")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	if !sendDryRun && !cfg.SMS.Configured() {
		return dispatch.ErrCredentialsMissing
	}

	_, contacts, err := loadContacts(cmd.Context(), args[0], rowsFlag(cmd, sendRows))
	if err != nil {
		return err
	}
	msgs := dispatch.MessagesFor(contacts, newProcessor().GenerateLinks(contacts, sendTemplate))

	if sendDryRun {
		for _, m := range msgs {
			if err := dispatch.ValidateBody(m.Body, cfg.SMS.MaxLength); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tINVALID: %v\n", core.MaskPhone(m.To), err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", core.MaskPhone(m.To), m.Body)
		}
		return nil
	}

	sender := dispatch.NewTwilioSender(dispatch.TwilioConfig{
		AccountSID:  cfg.SMS.AccountSID,
		AuthToken:   cfg.SMS.AuthToken,
		From:        cfg.SMS.FromNumber,
		BaseURL:     cfg.SMS.BaseURL,
		MaxAttempts: cfg.SMS.MaxAttempts,
		Timeout:     cfg.SMS.Timeout,
	}, logger)
	bulk := dispatch.NewBulk(sender, dispatch.BulkConfig{
		RatePerSecond: cfg.SMS.RatePerSecond,
		MaxLength:     cfg.SMS.MaxLength,
		BatchSize:     cfg.SMS.BatchSize,
	}, logger, nil)

	results := bulk.Send(cmd.Context(), msgs)
	summary := dispatch.Summarize(results)
	fmt.Fprintf(cmd.ErrOrStderr(), "sent %d, failed %d\n", summary.Sent, summary.Failed)
	if err := printJSON(cmd.OutOrStdout(), results); err != nil {
		return err
	}
	if summary.Sent == 0 && summary.Failed > 0 {
		return fmt.Errorf("all %d messages failed", summary.Failed)
	}
	return nil
}

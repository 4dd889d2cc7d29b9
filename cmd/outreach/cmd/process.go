package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var processCmd = &cobra.Command{
	Use:   "process FILE",
	Short: "Validate a contact sheet and print the extracted contacts",
	Long: `Reads FILE, cleans and validates it, and prints the upload response as
JSON. Warnings for skipped rows are printed to stderr.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	resp, _, err := loadContacts(cmd.Context(), args[0], nil)
	for _, w := range resp.Warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
	}
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), resp)
}

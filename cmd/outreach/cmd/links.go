package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	linksTemplate string
	linksRows     []int
	linksFormat   string
)

var linksCmd = &cobra.Command{
	Use:   "links FILE",
	Short: "Render a message template and print click-to-chat links",
	Long: `Processes FILE and renders --template for each contact. Merge fields:
{first_name} {last_name} {full_name} {location} {engagement_date} {volunteer_url}.
An empty template uses the default greeting.`,
	Args: cobra.ExactArgs(1),
	RunE: runLinks,
}

func init() {
	linksCmd.Flags().StringVarP(&linksTemplate, "template", "t", "", "message template")
	linksCmd.Flags().IntSliceVar(&linksRows, "rows", nil, "row indexes to include (default: all)")
	linksCmd.Flags().StringVar(&linksFormat, "format", "json", "output format: json or text")
	rootCmd.AddCommand(linksCmd)
}

func runLinks(cmd *cobra.Command, args []string) error {
	_, contacts, err := loadContacts(cmd.Context(), args[0], rowsFlag(cmd, linksRows))
	if err != nil {
		return err
	}

	composed := newProcessor().GenerateLinks(contacts, linksTemplate)
	switch linksFormat {
	case "json":
		return printJSON(cmd.OutOrStdout(), composed)
	case "text":
		for _, m := range composed {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", m.Name, m.Link)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", linksFormat)
	}
}

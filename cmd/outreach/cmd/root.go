package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/outreach/internal/config"
	"github.com/JonMunkholm/outreach/internal/core"
	"github.com/JonMunkholm/outreach/internal/logging"
)

var (
	envFile  string
	logLevel string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "outreach",
	Short: "Contact sheet processing and outreach messaging",
	Long: `outreach reads a contact spreadsheet (.csv, .xlsx or .xls), normalizes phone
numbers and composes personalised messages.

Commands:
  process  - validate a sheet and print the extracted contacts
  links    - render a template and print click-to-chat links
  send     - render a template and send it by SMS`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional env file with configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
}

func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(envFile)
	if err != nil {
		return err
	}
	cfg = loaded

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	logger = logging.New(cmd.ErrOrStderr(), level, cfg.Logging.Format)
	return nil
}

func newProcessor() *core.Processor {
	return &core.Processor{
		Logger:   logger,
		Composer: core.NewComposer(cfg.Links.ChatBase),
	}
}

// loadContacts processes path and returns the contacts picked by rows. A nil
// rows keeps every extracted contact.
func loadContacts(ctx context.Context, path string, rows []int) (core.UploadResponse, []core.ExtractedContact, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.UploadResponse{}, nil, err
	}
	defer f.Close()

	resp, status := newProcessor().ProcessFile(ctx, core.UploadMeta{FileName: filepath.Base(path)}, f)
	if status != core.StatusOK {
		return resp, nil, errors.New(resp.Error)
	}
	return resp, core.Selected(core.SelectRows(resp.Results, rows)), nil
}

// rowsFlag returns nil when the flag was not given so every row is kept.
func rowsFlag(cmd *cobra.Command, rows []int) []int {
	if !cmd.Flags().Changed("rows") {
		return nil
	}
	return rows
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

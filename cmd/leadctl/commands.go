package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wolfman30/realty-lead-agent/internal/app/bootstrap"
	"github.com/wolfman30/realty-lead-agent/internal/chatlog"
	appconfig "github.com/wolfman30/realty-lead-agent/internal/config"
	"github.com/wolfman30/realty-lead-agent/pkg/logging"
)

// cli carries flag values shared by every subcommand.
type cli struct {
	logPath  string
	logLevel string
	now      func() time.Time
}

func newRootCmd() *cobra.Command {
	cfg := appconfig.Load()
	c := &cli{now: time.Now}

	root := &cobra.Command{
		Use:          "leadctl",
		Short:        "Inspect chat sessions and leads",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&c.logPath, "log", cfg.ChatLogPath, "conversation log file (JSON lines)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "diagnostic log level")

	root.AddCommand(
		c.analyticsCmd(),
		c.recentCmd(),
		c.sessionsCmd(),
		c.sessionCmd(),
		c.exportCmd(),
	)
	return root
}

func (c *cli) store() *chatlog.FileStore {
	return chatlog.NewFileStore(c.logPath, c.logger())
}

func (c *cli) logger() *logging.Logger {
	return logging.NewWithWriter(c.logLevel, "text", os.Stderr)
}

func (c *cli) analyticsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Show visitor and lead totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.store().Analytics(cmd.Context())
			if err != nil {
				return fmt.Errorf("leadctl: analytics: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), a)
		},
	}
}

func (c *cli) recentCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show the newest logged turns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return fmt.Errorf("leadctl: -n must be positive")
			}
			entries, err := c.store().Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("leadctl: recent: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of entries")
	return cmd
}

func (c *cli) sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List sessions, newest activity first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sessions, err := c.store().Sessions(cmd.Context())
			if err != nil {
				return fmt.Errorf("leadctl: sessions: %w", err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SESSION\tMESSAGES\tLAST MESSAGE\tNAME\tPHONE\tVERIFIED\tSUBMITTED")
			for _, s := range sessions {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%t\t%t\n",
					s.SessionID,
					s.MessageCount,
					s.LastMessage.Format(time.RFC3339),
					dash(s.LeadInfo.Name),
					dash(logging.MaskPhone(s.LeadInfo.Phone)),
					s.LeadInfo.PhoneVerified,
					s.LeadInfo.LeadSubmitted,
				)
			}
			return tw.Flush()
		},
	}
}

func (c *cli) sessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "session <id>",
		Short: "Print the transcript of one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := c.store().Session(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("leadctl: session: %w", err)
			}
			if len(entries) == 0 {
				return fmt.Errorf("leadctl: session %q not found", args[0])
			}
			return printJSON(cmd.OutOrStdout(), entries)
		},
	}
}

func (c *cli) exportCmd() *cobra.Command {
	var (
		out      string
		toBucket bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the log as CSV, optionally archiving it to S3",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var buf bytes.Buffer
			count, err := c.store().ExportCSV(cmd.Context(), &buf)
			if err != nil {
				return fmt.Errorf("leadctl: export: %w", err)
			}

			name := chatlog.ExportName(c.now())
			if out == "" {
				out = name
			}
			if out == "-" {
				_, err = cmd.OutOrStdout().Write(buf.Bytes())
			} else {
				err = os.WriteFile(out, buf.Bytes(), 0o644)
			}
			if err != nil {
				return fmt.Errorf("leadctl: write export: %w", err)
			}
			if out != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d entries to %s\n", count, out)
			}

			if !toBucket {
				return nil
			}
			archiver, err := bootstrap.BuildArchiver(cmd.Context(), appconfig.Load(), c.logger())
			if err != nil {
				return err
			}
			if !archiver.Enabled() {
				return fmt.Errorf("leadctl: EXPORT_S3_BUCKET is not set")
			}
			key, err := archiver.Upload(cmd.Context(), name, buf.Bytes())
			if err != nil {
				return fmt.Errorf("leadctl: archive export: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "archived to %s\n", key)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, '-' for stdout (default conversation_export_<timestamp>.csv)")
	cmd.Flags().BoolVar(&toBucket, "s3", false, "also upload the export to EXPORT_S3_BUCKET")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

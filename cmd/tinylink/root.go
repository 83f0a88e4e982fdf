package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sundayezeilo/tinylink/internal/dashboard"
)

const defaultServer = "http://localhost:3000"

type rootOptions struct {
	server  string
	timeout time.Duration
}

func (o *rootOptions) client() *dashboard.Client {
	return dashboard.NewClient(o.server, &http.Client{Timeout: o.timeout})
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "tinylink",
		Short: "Terminal client for a tinylink server",
		Long: `tinylink manages short links on a tinylink server from the terminal.

  tinylink create https://example.com/some/long/path
  tinylink list --search example
  tinylink watch`,
		SilenceUsage: true,
	}

	server := os.Getenv("TINYLINK_SERVER")
	if server == "" {
		server = defaultServer
	}
	root.PersistentFlags().StringVarP(&opts.server, "server", "s", server, "tinylink server URL (env TINYLINK_SERVER)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", dashboard.DefaultTimeout, "HTTP request timeout")

	root.AddCommand(
		newListCmd(opts),
		newGetCmd(opts),
		newCreateCmd(opts),
		newDeleteCmd(opts),
		newWatchCmd(opts),
		newMigrateCmd(),
	)
	return root
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List short links, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			links, err := opts.client().List(cmd.Context())
			if err != nil {
				return err
			}
			board := dashboard.NewBoard()
			board.Load(links)

			rows := board.Filter(search)
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No links found.")
				return nil
			}
			printTable(cmd.OutOrStdout(), rows)
			return nil
		},
	}
	cmd.Flags().StringVarP(&search, "search", "q", "", "only show links whose code or URL contains this text")
	return cmd
}

func newGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <code>",
		Short: "Show one short link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := opts.client().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Code:         %s\n", l.Code)
			fmt.Fprintf(out, "Short URL:    %s\n", l.ShortURL)
			fmt.Fprintf(out, "Target:       %s\n", l.URL)
			fmt.Fprintf(out, "Clicks:       %d\n", l.Clicks)
			fmt.Fprintf(out, "Last clicked: %s\n", formatTime(l.LastClicked))
			fmt.Fprintf(out, "Created:      %s\n", l.CreatedAt.Local().Format(time.DateTime))
			return nil
		},
	}
}

func newCreateCmd(opts *rootOptions) *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "create <url>",
		Short: "Create a short link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := opts.client().Create(cmd.Context(), args[0], code)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created: %s -> %s\n", l.ShortURL, l.URL)
			return nil
		},
	}
	cmd.Flags().StringVarP(&code, "code", "c", "", "custom code (6-8 letters or digits)")
	return cmd
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <code>",
		Short: "Delete a short link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := args[0]
			if !yes {
				ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Delete %s?", code))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}
			if err := opts.client().Delete(cmd.Context(), code); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", code)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var (
		interval time.Duration
		search   string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show live click counters until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			board := dashboard.NewBoard()
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))

			redraw := func() {
				fmt.Fprint(out, "\033[H\033[2J")
				fmt.Fprintf(out, "%s  (updated %s, Ctrl-C to quit)\n\n", opts.server, time.Now().Format(time.TimeOnly))
				rows := board.Filter(search)
				if len(rows) == 0 {
					fmt.Fprintln(out, "No links found.")
					return
				}
				printTable(out, rows)
			}

			poller := dashboard.NewPoller(dashboard.PollerConfig{
				Source: opts.client(),
				Board:  board,
				Period: interval,
				Logger: logger,
				OnChange: func([]string, bool) {
					redraw()
				},
			})
			if err := poller.Load(ctx); err != nil {
				return err
			}
			redraw()
			return poller.Run(ctx)
		},
	}
	cmd.Flags().DurationVarP(&interval, "interval", "i", dashboard.DefaultPollPeriod, "refresh interval")
	cmd.Flags().StringVarP(&search, "search", "q", "", "only show links whose code or URL contains this text")
	return cmd
}

func printTable(w io.Writer, rows []dashboard.Link) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tCLICKS\tLAST CLICKED\tURL")
	for _, l := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", l.Code, l.Clicks, formatTime(l.LastClicked), l.URL)
	}
	_ = tw.Flush()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/policyvoice/internal/mcp"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "Print a stored conversation, or list sessions",
	Long:  `With a session id, prints that conversation in order. Without one, lists the most recently active sessions.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := context.Background()
		store, closeStore, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		if len(args) == 1 {
			msgs, err := store.Load(ctx, args[0])
			if err != nil {
				return fmt.Errorf("loading session: %w", err)
			}
			if len(msgs) == 0 {
				fmt.Printf("No messages stored for session %q.\n", args[0])
				return nil
			}
			fmt.Print(mcpserver.FormatConversation(msgs))
			return nil
		}

		sessions, err := store.ListSessions(ctx, historyLimit)
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}
		total, err := store.CountSessions(ctx)
		if err != nil {
			return fmt.Errorf("counting sessions: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SESSION\tMESSAGES\tUPDATED")
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%d\t%s\n", s.ID, s.MessageCount, s.UpdatedAt.Local().Format(time.DateTime))
		}
		w.Flush()
		fmt.Printf("\n%d of %d session(s)\n", len(sessions), total)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum sessions to list")
	rootCmd.AddCommand(historyCmd)
}

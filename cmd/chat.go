package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/policyvoice/internal/turn"
)

var chatSession string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant in the terminal",
	Long: `Starts an interactive text conversation. Type "reset" to start a new
session and "exit" or "quit" to leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		sessionID := chatSession
		if sessionID == "" {
			sessionID = newCLISessionID()
		}
		return runChat(ctx, a.orchestrator, os.Stdin, os.Stdout, sessionID)
	},
}

func newCLISessionID() string {
	return "cli_" + uuid.NewString()[:8]
}

// runChat reads lines from in until EOF or an exit command, answering each
// through runner. Turn errors are printed and the loop continues.
func runChat(ctx context.Context, runner turn.Runner, in io.Reader, out io.Writer, sessionID string) error {
	fmt.Fprintln(out, "--- Insurance Assistant (CLI Mode) ---")
	fmt.Fprintf(out, "Session: %s. Type 'exit' to quit.\n\n", sessionID)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "You: ")
		if !scanner.Scan() {
			fmt.Fprintln(out, "\nGoodbye.")
			return scanner.Err()
		}

		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		switch strings.ToLower(text) {
		case "exit", "quit":
			fmt.Fprintln(out, "Bye.")
			return nil
		case "reset":
			sessionID = newCLISessionID()
			fmt.Fprintf(out, "Session reset (New ID: %s).\n", sessionID)
			continue
		}

		answer, err := runner.RunTurn(ctx, sessionID, text)
		if err != nil {
			answer = "Error: " + err.Error()
		}
		fmt.Fprintf(out, "Assistant: %s\n\n", answer)
	}
}

func init() {
	chatCmd.Flags().StringVar(&chatSession, "session", "", "Session to continue (default: a new cli_ session)")
	rootCmd.AddCommand(chatCmd)
}

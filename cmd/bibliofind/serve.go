package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/raro-catalog/bibliofind/pkg/controller"
)

var serveUserID string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the conversational discovery loop over stdin/stdout",
	Long:  `Drives the turn-based conversation protocol (spec.md §6) interactively: each line of input is one turn, dispatched through the Conversation Controller.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveUserID, "user", "", "User ID to attribute turns to (default: a generated one)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	userID := serveUserID
	if userID == "" {
		userID = uuid.NewString()
	}

	fmt.Fprintln(cmd.OutOrStdout(), "bibliofind: ask about the corpus. Ctrl-D to exit.")

	var sessionID string
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		if rootCtx.Err() != nil {
			return rootCtx.Err()
		}

		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		resp := a.controller.HandleTurn(rootCtx, controller.Request{
			SessionID: sessionID,
			UserID:    userID,
			Message:   text,
		})
		sessionID = resp.SessionID
		if resp.Error != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "error: %s\n", resp.Error.Message)
			continue
		}

		printResponse(cmd, resp)
	}
	return scanner.Err()
}

func printResponse(cmd *cobra.Command, resp controller.Response) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, resp.Message)

	if cs := resp.CandidateSet; cs != nil {
		fmt.Fprintf(out, "  %d match(es)\n", cs.TotalCount)
		for _, c := range cs.Candidates {
			fmt.Fprintf(out, "  - [%s] %s (%s)\n", c.RecordID, c.Title, c.ImprintsSummary)
		}
	}
	if ov := resp.Overview; ov != nil {
		fmt.Fprintf(out, "  %d record(s) in the active subgroup\n", ov.Count)
	}
	for _, f := range resp.SuggestedFollowups {
		fmt.Fprintf(out, "  > %s\n", f)
	}
}

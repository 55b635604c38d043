package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nviro-labs/pathway/agents/supervisor"
	"github.com/nviro-labs/pathway/chatmodel"
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Answer a single question and exit",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, err := newService(ctx, cmd)
		if err != nil {
			return err
		}
		defer svc.close(context.Background())

		question := strings.Join(args, " ")
		ctx = chatmodel.WithChatContext(ctx, chatmodel.NewChatContext(uuid.NewString(), nil))

		res := svc.supervisor.RunWithEvents(ctx, question, func(ev supervisor.Event) {
			if ev.Detail != "" {
				fmt.Printf("[%s] %s\n", ev.Node, ev.Detail)
			} else {
				fmt.Printf("[%s]\n", ev.Node)
			}
		})
		svc.record(ctx, question, res.Answer)

		fmt.Println()
		fmt.Println(res.Answer)
		for _, e := range res.Errors {
			fmt.Printf("error: %s\n", e)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
}

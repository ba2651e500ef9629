package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/model/chat"
)

func newRootCommand() *cobra.Command {
	var server string
	var timeout time.Duration

	rootCmd := &cobra.Command{
		Use:           "chatcli",
		Short:         "Query a running podcast chatbot server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVar(&server, "server", "http://localhost:8080", "Base URL of the chatbot server")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 60*time.Second, "Deadline for the whole command")

	newClient := func() *apiClient { return newAPIClient(server) }
	rootCmd.AddCommand(newExpertsCommand(newClient, &timeout))
	rootCmd.AddCommand(newAskCommand(newClient, &timeout))
	return rootCmd
}

func newExpertsCommand(newClient func() *apiClient, timeout *time.Duration) *cobra.Command {
	return &cobra.Command{
		Use:   "experts",
		Short: "List the available experts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), *timeout)
			defer cancel()

			experts, err := newClient().ListExperts(ctx)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(experts))
			for _, e := range experts {
				kind := "managed"
				if e.BuiltIn {
					kind = "built-in"
				}
				rows = append(rows, []string{e.ID, e.Name, kind})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Name", "Kind"}, rows))
			return nil
		},
	}
}

func newAskCommand(newClient func() *apiClient, timeout *time.Duration) *cobra.Command {
	var bots []string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask one question to several experts at once",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(bots) == 0 {
				bots = []string{""}
			}
			question := strings.Join(args, " ")

			ctx, cancel := context.WithTimeout(cmd.Context(), *timeout)
			defer cancel()

			answers := askAll(ctx, newClient(), bots, question)
			rows := make([][]string, 0, len(answers))
			for _, a := range answers {
				status := "ok"
				if a.Error {
					status = "error"
				}
				id := a.BotID
				if id == "" {
					id = "(default)"
				}
				rows = append(rows, []string{id, status, a.Text})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Expert", "Status", "Answer"}, rows))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&bots, "bots", nil, "Comma-separated expert ids (default expert when empty)")
	return cmd
}

// askAll queries every bot concurrently. Answers keep the order of bots and
// a failing bot never cancels the others.
func askAll(ctx context.Context, client *apiClient, bots []string, question string) []chat.ExpertAnswer {
	answers := make([]chat.ExpertAnswer, len(bots))
	messages := []chat.Message{{Role: chat.RoleUser, Content: question}}

	var g errgroup.Group
	for i, bot := range bots {
		g.Go(func() error {
			text, err := client.Ask(ctx, bot, messages)
			if err != nil {
				answers[i] = chat.ExpertAnswer{BotID: bot, Text: err.Error(), Error: true}
				return nil
			}
			answers[i] = chat.ExpertAnswer{BotID: bot, Text: text}
			return nil
		})
	}
	_ = g.Wait()
	return answers
}

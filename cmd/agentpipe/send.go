package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentpipe/a2a"
	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/task"
)

func newSendCmd(root *rootOptions) *cobra.Command {
	var (
		url       string
		contextID string
		stream    bool
	)

	cmd := &cobra.Command{
		Use:   "send <text>",
		Short: "Send a message to a running agent server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := root.load(cmd)
			if err != nil {
				return err
			}
			if url == "" {
				url = cfg.Server.RemoteURL
			}

			client, err := a2a.NewClient(url)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			if !stream {
				reply, err := client.SendText(ctx, contextID, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: %s\n", reply.AuthorName(), reply.Text)
				return nil
			}

			req := a2a.SendRequest{ContextID: contextID, Parts: []a2a.Part{a2a.TextPart(args[0])}}
			return client.StreamMessage(ctx, req, func(ev task.Event) error {
				fmt.Fprintf(out, "[%s] %s", ev.Kind, ev.TaskID)
				if ev.Message != nil {
					fmt.Fprintf(out, " %s", eventText(*ev.Message))
				}
				fmt.Fprintln(out)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Agent server URL (defaults to server.remote_url)")
	cmd.Flags().StringVar(&contextID, "context", "", "Conversation context id")
	cmd.Flags().BoolVar(&stream, "stream", false, "Print every task event")

	return cmd
}

func eventText(msg core.Message) string {
	return fmt.Sprintf("%s: %s", msg.AuthorName(), msg.Text)
}

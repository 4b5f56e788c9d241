package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentpipe"
	"github.com/hupe1980/agentpipe/agent"
	"github.com/hupe1980/agentpipe/config"
	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/engine"
)

func newRunCmd(root *rootOptions) *cobra.Command {
	var (
		pipeline string
		stream   bool
	)

	cmd := &cobra.Command{
		Use:   "run [input]",
		Short: "Run a pipeline and print the conversation",
		Long: `Run a pipeline over input and print every message of the resulting
conversation. Without input the feedback pipeline processes a sample.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load(cmd)
			if err != nil {
				return err
			}

			defs, err := config.LoadPipelines(cfg.PipelinesFile)
			if err != nil {
				return err
			}

			app := agentpipe.New(func(o *agentpipe.Options) {
				o.EngineConfig = engine.Config{
					MaxConcurrentRuns: cfg.Engine.MaxConcurrentRuns,
					EventBufferSize:   cfg.Engine.EventBuffer,
				}
				o.Logger = logger
			})

			ctx := cmd.Context()
			if err := app.BuildAll(ctx, defs, agentpipe.NewWorkerFactory(cfg.Provider, logger)); err != nil {
				return err
			}

			input := strings.TrimSpace(config.SampleFeedback)
			if len(args) == 1 {
				input = args[0]
			}

			p, ok := app.Engine().GetPipeline(pipeline)
			if !ok {
				return fmt.Errorf("%w: %s", engine.ErrPipelineNotFound, pipeline)
			}
			first := core.NewUserMessage(input)
			if seq, ok := p.(*agent.Sequential); ok {
				text, err := seq.RenderInput(input)
				if err != nil {
					return err
				}
				first = core.NewUserMessage(text)
			}

			out := cmd.OutOrStdout()
			if stream {
				return runStreaming(cmd, app, pipeline, input, first, out)
			}

			_, events, err := app.InvokeSync(ctx, pipeline, input)
			if err != nil {
				return err
			}
			printConversation(out, conversationOf(first, events))
			return nil
		},
	}

	cmd.Flags().StringVarP(&pipeline, "pipeline", "p", "feedback", "Pipeline to run")
	cmd.Flags().BoolVar(&stream, "stream", false, "Print each stage as soon as it finishes")

	return cmd
}

func runStreaming(cmd *cobra.Command, app *agentpipe.AgentPipe, pipeline, input string, first core.Message, out io.Writer) error {
	_, events, errs, err := app.Invoke(cmd.Context(), pipeline, input)
	if err != nil {
		return err
	}

	n := 1
	printMessage(out, n, first)
	for ev := range events {
		for _, msg := range ev.Messages {
			n++
			printMessage(out, n, msg)
		}
	}
	return <-errs
}

func conversationOf(first core.Message, events []core.OutputEvent) []core.Message {
	conv := core.NewConversation(first)
	for _, ev := range events {
		conv = conv.Append(ev.Messages...)
	}
	return conv.Messages()
}

func printConversation(w io.Writer, msgs []core.Message) {
	for i, msg := range msgs {
		printMessage(w, i+1, msg)
	}
}

func printMessage(w io.Writer, n int, msg core.Message) {
	fmt.Fprintf(w, "%s\n%02d [%s]\n%s\n", strings.Repeat("-", 60), n, msg.AuthorName(), msg.Text)
}

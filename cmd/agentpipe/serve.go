package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/hupe1980/agentpipe"
	"github.com/hupe1980/agentpipe/a2a"
	"github.com/hupe1980/agentpipe/bus"
	"github.com/hupe1980/agentpipe/config"
	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/engine"
	"github.com/hupe1980/agentpipe/logging"
	"github.com/hupe1980/agentpipe/metrics"
	"github.com/hupe1980/agentpipe/server"
	"github.com/hupe1980/agentpipe/task"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured agent and pipelines over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.load(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			m := metrics.MustNew(reg)

			app := agentpipe.New(func(o *agentpipe.Options) {
				o.EngineConfig = engine.Config{
					MaxConcurrentRuns: cfg.Engine.MaxConcurrentRuns,
					EventBufferSize:   cfg.Engine.EventBuffer,
				}
				o.Callbacks = engine.NewCallbackManager()
				for _, typ := range []engine.CallbackType{engine.CallbackAfterStage, engine.CallbackOnError} {
					o.Callbacks.RegisterCallback(engine.NewLoggingCallback(typ, func(msg string) {
						logger.Debug(msg)
					}))
				}
				o.Metrics = m
				o.Logger = logger
			})

			factory := agentpipe.NewWorkerFactory(cfg.Provider, logger)

			defs, err := config.LoadPipelines(cfg.PipelinesFile)
			if err != nil {
				return err
			}
			if err := app.BuildAll(ctx, defs, factory); err != nil {
				return err
			}

			identity := core.Identity{Name: cfg.Agent.Name, Instructions: cfg.Agent.Instructions}
			exec := a2a.NewExecutor(identity, factory, app.Workers(), func(o *a2a.ExecutorOptions) {
				if cfg.Agent.DisplayName != "" {
					o.DisplayName = cfg.Agent.DisplayName
				}
				o.Logger = logger.WithComponent("executor")
				o.Metrics = m
			})
			handler := a2a.NewHandler(a2a.TitleAgentCard(cfg.Server.Host, cfg.Server.Port), exec, func(o *a2a.HandlerOptions) {
				o.Store = task.NewInMemoryStore()
				o.Logger = logger
				o.Metrics = m
			})

			var events task.Sink
			if cfg.NATS.URL != "" {
				nc, err := bus.Connect(cfg.NATS.URL, appName)
				if err != nil {
					return err
				}
				defer func() { _ = nc.Drain() }()

				events = bus.NewSink(nc, func(o *bus.SinkOptions) {
					o.Subject = cfg.NATS.Subject
					o.Logger = logger
				})
				logger.Info("publishing task events", "url", cfg.NATS.URL, "subject", cfg.NATS.Subject)
			}

			if logging.ParseLevel(cfg.Log.Level) != logging.LogLevelDebug {
				gin.SetMode(gin.ReleaseMode)
			}

			srv := server.New(handler, func(o *server.Options) {
				o.Engine = app.Engine()
				o.Bus = events
				o.Gatherer = reg
				o.Logger = logger.WithComponent("server")
			})
			return srv.Run(ctx, cfg.Server.Addr())
		},
	}
}

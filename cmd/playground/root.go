package main

import (
	"context"
	stderrors "errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/bridge"
	"github.com/wippyai/wasm-bridge/config"
	"github.com/wippyai/wasm-bridge/engine"
)

// errReported is returned after a failure was already shown to the user.
var errReported = stderrors.New("reported")

type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry

	configPath string
	module     string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "playground",
		Short:         "Run focus programs in a WebAssembly interpreter",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "config file (YAML)")
	flags.StringVarP(&a.module, "module", "m", "", "interpreter module: path or http(s) URL")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(newRunCmd(a), newReplCmd(a), newCheckCmd(a))
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.module != "" {
		if isURL(a.module) {
			cfg.Module.URL, cfg.Module.Path = a.module, ""
		} else {
			cfg.Module.Path, cfg.Module.URL = a.module, ""
		}
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cfg.Log.Logger()
	if err != nil {
		return err
	}
	engine.SetLogger(logger)

	a.cfg = cfg
	a.logger = logger
	a.registry = prometheus.NewRegistry()
	return nil
}

// guest holds an uninitialized bridge and the engine behind it.
type guest struct {
	bridge *bridge.Bridge
	engine *engine.WazeroEngine
	source engine.Source
}

func (a *app) openGuest(ctx context.Context) (*guest, error) {
	src, err := a.cfg.Source()
	if err != nil {
		return nil, err
	}
	eng, err := engine.NewWazeroEngine(ctx, a.cfg.EngineConfig(a.logger))
	if err != nil {
		return nil, err
	}
	b := bridge.New(eng.Instantiator(src),
		bridge.WithLogger(a.logger.Named("bridge")),
		bridge.WithMetrics(bridge.NewMetrics(a.registry)))
	return &guest{bridge: b, engine: eng, source: src}, nil
}

func (g *guest) Close(ctx context.Context) {
	_ = g.bridge.Close(ctx)
	_ = g.engine.Close(ctx)
}

func isURL(s string) bool {
	return len(s) > 7 && (s[:7] == "http://" || (len(s) > 8 && s[:8] == "https://"))
}

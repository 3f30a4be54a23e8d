package cli

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/repcore/internal/codec"
	"github.com/roach88/repcore/internal/configschema"
	"github.com/roach88/repcore/internal/engine"
	"github.com/roach88/repcore/internal/ir"
	"github.com/roach88/repcore/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	ConfigPath string
}

// NewServeCommand creates the serve command: load config, replay any
// persisted operations, then run the engine until interrupted,
// persisting every newly executed operation as it completes.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the engine, resuming from its sqlite store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "repcore.yaml", "path to the bootstrap config file")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	raw, err := os.ReadFile(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read config file", err)
	}
	cfg, err := configschema.Load(raw)
	if err != nil {
		return WrapExitError(ExitCommandError, "config failed validation", err)
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logLevelFromString(cfg.LogLevel)}))
	peer := ir.PeerID(cfg.PeerID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st *store.Store
	var persisted [][]byte
	engineOpts := []engine.EngineOption{
		engine.WithPeerID(peer),
		engine.WithLogger(logger),
		engine.WithDeferralWarnThreshold(cfg.DeferralWarnThreshold),
	}

	if cfg.SQLitePath != "" {
		st, err = store.Open(cfg.SQLitePath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open sqlite store", err)
		}
		defer st.Close()

		if highest, ok, err := st.HighestOpNumber(ctx, peer); err != nil {
			return WrapExitError(ExitCommandError, "failed to read persisted counter", err)
		} else if ok {
			engineOpts = append(engineOpts, engine.WithIdentifierFloor(highest))
		}

		persisted, err = st.LoadAll(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load persisted operations", err)
		}
	}

	e := engine.New(engineOpts...)
	go e.Run(ctx)

	for _, raw := range persisted {
		op, err := codec.Decode(raw)
		if err != nil {
			logger.Error("dropping unreadable persisted operation", "error", err)
			continue
		}
		if err := e.Submit(op); err != nil && engine.IsFatal(err) {
			logger.Error("fatal error replaying persisted operation", "op", op.Identity(), "error", err)
		}
	}

	if st != nil {
		e.OnExecute(func(enc *ir.EncodedOp) {
			raw, err := json.Marshal(enc)
			if err != nil {
				logger.Error("failed to encode executed operation for persistence", "op", enc.UID, "error", err)
				return
			}
			if err := st.PutOperation(ctx, enc.UID, enc.Type, raw, time.Now().Unix()); err != nil {
				logger.Error("failed to persist executed operation", "op", enc.UID, "error", err)
			}
		})
	}

	logger.Info("engine started", "peer_id", cfg.PeerID)
	<-ctx.Done()
	logger.Info("engine shutting down")
	return nil
}

func logLevelFromString(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

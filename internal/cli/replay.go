package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/repcore/internal/codec"
	"github.com/roach88/repcore/internal/engine"
	"github.com/roach88/repcore/internal/ir"
	"github.com/roach88/repcore/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	PeerID   string
}

// ReplayResult reports the outcome of re-deriving the CL twice from a
// persisted operation log.
type ReplayResult struct {
	OperationCount int      `json:"operation_count"`
	VisibleCount   int      `json:"visible_count"`
	Deterministic  bool     `json:"deterministic"`
	Sequence       []string `json:"sequence"`
}

// NewReplayCommand creates the replay command. Execute is idempotent
// (spec §3.2), so replaying the same persisted log twice into two fresh
// engines and comparing their visible sequences is a direct determinism
// check: two independent reconstructions from the same log must agree.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the persisted operation log and verify determinism",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the sqlite store (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.PeerID, "peer", "replay", "peer id to attribute this reconstruction to")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open sqlite store", err)
	}
	defer st.Close()

	persisted, err := st.LoadAll(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load persisted operations", err)
	}

	seqA, err := reconstructSequence(opts.PeerID, persisted)
	if err != nil {
		return WrapExitError(ExitCommandError, "first reconstruction failed", err)
	}
	seqB, err := reconstructSequence(opts.PeerID, persisted)
	if err != nil {
		return WrapExitError(ExitCommandError, "second reconstruction failed", err)
	}

	result := ReplayResult{
		OperationCount: len(persisted),
		VisibleCount:   len(seqA),
		Deterministic:  stringSlicesEqual(seqA, seqB),
		Sequence:       seqA,
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if err := f.Success(result); err != nil {
		return err
	}
	if !result.Deterministic {
		return NewExitError(ExitFailure, "replay produced different sequences across reconstructions")
	}
	return nil
}

func reconstructSequence(peer string, persisted [][]byte) ([]string, error) {
	e := engine.New(engine.WithPeerID(ir.PeerID(peer)))

	for _, raw := range persisted {
		op, err := codec.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		if err := executeAndWake(e, op); err != nil {
			return nil, err
		}
	}

	var out []string
	for _, op := range e.VisibleSequence() {
		out = append(out, op.Identity().String())
	}
	return out, nil
}

// executeAndWake runs the same registration-then-execution sequence as
// Engine.submitLocal outside the normal inbox, since replay runs
// single-threaded against an engine whose Run loop was never started. It
// executes the canonical stored operation, not op itself, so that a
// persisted log containing the same identity twice can never double-apply
// that operation's integration effect.
func executeAndWake(e *engine.Engine, op ir.Operation) error {
	stored, woken, _ := e.History().Put(op)
	if err := e.Execute(stored); err != nil && engine.IsFatal(err) {
		return fmt.Errorf("execute %s: %w", stored.Identity(), err)
	}
	for _, w := range woken {
		if err := e.Execute(w); err != nil && engine.IsFatal(err) {
			return fmt.Errorf("execute woken %s: %w", w.Identity(), err)
		}
	}
	return nil
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

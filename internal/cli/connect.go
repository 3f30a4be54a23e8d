package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/repcore/internal/codec"
	"github.com/roach88/repcore/internal/engine"
	"github.com/roach88/repcore/internal/ir"
	"github.com/roach88/repcore/internal/transport"
)

// ConnectOptions holds flags for the connect command.
type ConnectOptions struct {
	*RootOptions
	Peers []string
	Text  []string
}

// ConnectResult reports whether every peer converged to the same
// visible sequence after the demo exchange.
type ConnectResult struct {
	Peers       []string            `json:"peers"`
	Sequences   map[string][]string `json:"sequences"`
	Converged   bool                `json:"converged"`
}

// NewConnectCommand creates the connect command: a demonstration of
// internal/transport.Bus wiring several in-process engines together and
// verifying they converge, since the core's own external wire transport
// is out of scope (spec §1); outside internal/harness's tests, this is
// the only place that dependency gets exercised end to end.
func NewConnectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConnectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Wire several in-process peers together and demonstrate convergence",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnect(opts, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Peers, "peers", []string{"alice", "bob"}, "comma-separated peer ids to spin up")
	cmd.Flags().StringSliceVar(&opts.Text, "insert", []string{"hello", "world"}, "comma-separated immutable-object contents, one insert per peer in order")

	return cmd
}

func runConnect(opts *ConnectOptions, cmd *cobra.Command) error {
	if len(opts.Peers) < 2 {
		return NewExitError(ExitCommandError, "connect requires at least two --peers")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := transport.NewBus()
	engines := make(map[string]*engine.Engine, len(opts.Peers))

	for _, peer := range opts.Peers {
		e := engine.New(engine.WithPeerID(ir.PeerID(peer)))
		go e.Run(ctx)
		engines[peer] = e
		bus.Subscribe(peer, e)
	}

	// The demo bus is a single fully-connected hub: one Publish already
	// reaches every other peer directly, so only locally issued
	// operations need to go out over it. Re-publishing on OnExecute
	// (which also fires for remote-delivered operations) would just
	// relay what every peer already received straight from its origin.
	for i, peer := range opts.Peers {
		e := engines[peer]
		text := ""
		if i < len(opts.Text) {
			text = opts.Text[i]
		}
		head := e.Head()
		tail := e.Tail()
		obj := ir.NewImmutableObject(e.NextIdentifier(), ir.BoundRef(head), ir.BoundRef(head), ir.BoundRef(tail), []byte(fmt.Sprintf("%q", text)))
		if err := e.Submit(obj); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to submit insert for peer %s", peer), err)
		}
		raw, err := codec.EncodeBytes(obj)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to encode insert for peer %s", peer), err)
		}
		bus.Publish(peer, raw)
	}

	result := ConnectResult{Peers: opts.Peers, Sequences: make(map[string][]string)}
	var reference []string
	for i, peer := range opts.Peers {
		var seq []string
		for _, op := range engines[peer].VisibleSequence() {
			seq = append(seq, op.Identity().String())
		}
		result.Sequences[peer] = seq
		if i == 0 {
			reference = seq
		}
	}
	result.Converged = true
	for _, peer := range opts.Peers {
		if !stringSlicesEqual(result.Sequences[peer], reference) {
			result.Converged = false
		}
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		return f.Success(result)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Peers: %s\n", strings.Join(opts.Peers, ", "))
	for _, peer := range opts.Peers {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s: %v\n", peer, result.Sequences[peer])
	}
	if result.Converged {
		fmt.Fprintln(cmd.OutOrStdout(), "Converged: all peers agree on the visible sequence")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "Did NOT converge")
	}
	return nil
}

package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/roach88/repcore/internal/codec"
	"github.com/roach88/repcore/internal/engine"
	"github.com/roach88/repcore/internal/ir"
	"github.com/roach88/repcore/internal/store"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Database string
	PeerID   string
}

// InspectResult is the structured form of an inspect dump.
type InspectResult struct {
	VisibleSequence []string       `json:"visible_sequence"`
	PeersByActivity []PeerActivity `json:"peers_by_activity"`
}

// PeerActivity counts visible operations contributed by one peer.
type PeerActivity struct {
	PeerID string `json:"peer_id"`
	Count  int    `json:"count"`
}

// NewInspectCommand creates the inspect command: reconstruct the CL from
// a persisted operation log and render it as a human-readable table.
// The integration algorithm itself only ever compares creator identifiers
// with a plain Go `<` (spec §4.3); collation here is purely for stable,
// locale-aware display ordering of the per-peer summary table and never
// influences placement.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Dump the reconstructed CL as a human-readable table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the sqlite store (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.PeerID, "peer", "inspect", "peer id to attribute this reconstruction to")

	return cmd
}

func runInspect(opts *InspectOptions, cmd *cobra.Command) error {
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

	e := engine.New(engine.WithPeerID(ir.PeerID(opts.PeerID)))
	for _, raw := range persisted {
		op, err := codec.Decode(raw)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to decode persisted operation", err)
		}
		if err := executeAndWake(e, op); err != nil {
			return WrapExitError(ExitCommandError, "failed to reconstruct CL", err)
		}
	}

	visible := e.VisibleSequence()
	result := InspectResult{}
	counts := make(map[string]int)
	for _, op := range visible {
		result.VisibleSequence = append(result.VisibleSequence, op.Identity().String())
		counts[string(op.Identity().Creator)]++
	}

	peers := make([]string, 0, len(counts))
	for peer := range counts {
		peers = append(peers, peer)
	}
	col := collate.New(language.Und)
	sort.Slice(peers, func(i, j int) bool { return col.CompareString(peers[i], peers[j]) < 0 })

	for _, peer := range peers {
		result.PeersByActivity = append(result.PeersByActivity, PeerActivity{PeerID: peer, Count: counts[peer]})
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		return f.Success(result)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Visible sequence (%d items):\n", len(result.VisibleSequence))
	for i, id := range result.VisibleSequence {
		fmt.Fprintf(cmd.OutOrStdout(), "  %d. %s\n", i+1, id)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "\nOperations by peer:")
	for _, pa := range result.PeersByActivity {
		fmt.Fprintf(cmd.OutOrStdout(), "  %-20s %d\n", pa.PeerID, pa.Count)
	}
	return nil
}

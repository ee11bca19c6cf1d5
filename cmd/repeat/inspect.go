package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/deixis/repeat/internal/report"
)

// inspectOptions selects what inspect prints for a stored batch.
type inspectOptions struct {
	index      *int
	failedOnly bool
	kind       string
	json       bool
}

var (
	inspectIndex  int
	inspectFailed bool
	inspectKind   string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <batch-id>",
	Short: "Show a stored batch or one of its invocations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := inspectOptions{
			failedOnly: inspectFailed,
			kind:       inspectKind,
			json:       jsonOutput,
		}
		if cmd.Flags().Changed("index") {
			opts.index = &inspectIndex
		}
		return inspect(cmd.OutOrStdout(), report.NewDiskStore(storeDir), args[0], opts)
	},
}

func init() {
	inspectCmd.Flags().IntVar(&inspectIndex, "index", 0, "invocation index to show in full")
	inspectCmd.Flags().BoolVar(&inspectFailed, "failed", false, "list only failed invocations")
	inspectCmd.Flags().StringVar(&inspectKind, "kind", "", "fail unless the batch ran as concurrent or sequential")
	rootCmd.AddCommand(inspectCmd)
}

func inspect(w io.Writer, store report.Store, id string, opts inspectOptions) error {
	batch, err := store.Load(id)
	if err != nil {
		return fmt.Errorf("loading batch: %w", err)
	}
	if opts.kind != "" {
		if err := batch.Expect(report.Kind(opts.kind)); err != nil {
			return err
		}
	}

	if opts.index != nil {
		inv, err := batch.Invocation(*opts.index)
		if err != nil {
			return err
		}
		fmt.Fprint(w, report.FormatInvocation(batch, inv))
		return nil
	}
	if opts.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(batch)
	}
	fmt.Fprint(w, report.FormatBatch(batch, opts.failedOnly))
	return nil
}

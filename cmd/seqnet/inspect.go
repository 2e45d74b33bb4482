package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/born-ml/seqnet/network"
)

func newInspectCmd() *cobra.Command {
	var weights bool
	cmd := &cobra.Command{
		Use:   "inspect <model>",
		Short: "Print the header and structure of a model file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			net, header, err := network.Load(args[0])
			if err != nil {
				return errors.Wrapf(err, "failed to load %s", args[0])
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "name:     %s\n", header.Name)
			fmt.Fprintf(out, "type:     %s\n", header.RootType)
			fmt.Fprintf(out, "spec:     %s\n", net.Spec())
			fmt.Fprintf(out, "inputs:   %d\n", net.NumInputs())
			fmt.Fprintf(out, "outputs:  %d\n", net.NumOutputs())
			fmt.Fprintf(out, "weights:  %d\n", net.NumWeights())
			fmt.Fprintf(out, "created:  %s\n", header.CreatedAt.Format("2006-01-02 15:04:05 MST"))

			keys := make([]string, 0, len(header.Metadata))
			for k := range header.Metadata {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "meta:     %s=%s\n", k, header.Metadata[k])
			}

			if weights {
				net.DebugWeights()
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&weights, "weights", false, "log weight statistics of every layer")
	return cmd
}

// composite is implemented by Series and Parallel.
type composite interface {
	network.Network
	EnumerateLayers(prefix string, layers []string) []string
	GetLayer(id string) network.Network
	LayerLearningRatePtr(id string) *float32
}

func newLayersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "layers <model>",
		Short: "List the leaf layers of a model file by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			net, _, err := network.Load(args[0])
			if err != nil {
				return errors.Wrapf(err, "failed to load %s", args[0])
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tTYPE\tSPEC\tIN\tOUT\tWEIGHTS\tTRAINING\tLR")
			root, ok := net.(composite)
			if !ok {
				printLayer(tw, "-", net, nil)
				return tw.Flush()
			}
			for _, id := range root.EnumerateLayers("", nil) {
				printLayer(tw, id, root.GetLayer(id), root.LayerLearningRatePtr(id))
			}
			return tw.Flush()
		},
	}
}

func printLayer(tw *tabwriter.Writer, id string, n network.Network, lr *float32) {
	rate := "-"
	if lr != nil {
		rate = fmt.Sprintf("%g", *lr)
	}
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
		id, n.Name(), n.Type(), n.Spec(), n.NumInputs(), n.NumOutputs(), n.NumWeights(),
		trainingName(n.TrainingState()), rate)
}

func trainingName(state network.TrainingState) string {
	switch state {
	case network.TrainingDisabled:
		return "disabled"
	case network.TrainingEnabled:
		return "enabled"
	case network.TrainingTempDisable:
		return "temp-disabled"
	default:
		return fmt.Sprintf("state(%d)", state)
	}
}

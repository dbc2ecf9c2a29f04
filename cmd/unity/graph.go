package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/born-ml/unity/graph"
	"github.com/born-ml/unity/model"
	"github.com/born-ml/unity/nn"
)

func newGraphCommand() *cobra.Command {
	var (
		seq    int
		causal bool
	)
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the computation graph of one encoder pass",
		Args:  cobra.NoArgs,
	}
	hparams := hparamsFlag(cmd)
	cmd.Flags().IntVarP(&seq, "seq", "n", 4, "Number of tokens")
	cmd.Flags().BoolVar(&causal, "causal", false, "Apply a causal attention mask")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		h, err := hparams()
		if err != nil {
			return err
		}
		m, err := model.Build(h, model.Options{})
		if err != nil {
			return err
		}
		defer m.Close()

		ctx := graph.NewContext(graph.Options{Name: "scratch"})
		m.SetContext(ctx)

		x, err := ctx.Zeros(seq, h.ModelDim)
		if err != nil {
			return err
		}
		var mask *graph.Tensor
		if causal {
			if mask, err = nn.CausalMask(ctx, seq); err != nil {
				return err
			}
		}
		out, err := m.Encode(x, mask)
		if err != nil {
			return err
		}
		g, err := ctx.Graph(out)
		if err != nil {
			return err
		}

		ids := make(map[*graph.Tensor]int, g.Len())
		table := newTable(cmd, "ID", "OP", "SHAPE", "NAME", "SOURCES")
		for i, n := range g.Nodes {
			ids[n] = i
			srcs := make([]string, 0, len(n.Sources()))
			for _, s := range n.Sources() {
				srcs = append(srcs, strconv.Itoa(ids[s]))
			}
			table.Append([]string{strconv.Itoa(i), n.Op().String(), shapeString(n.Shape()), n.Name(), strings.Join(srcs, ",")})
		}
		table.Render()
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d nodes\n", g.Len())
		return nil
	}
	return cmd
}

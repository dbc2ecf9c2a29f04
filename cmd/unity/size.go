package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/born-ml/unity/model"
	"github.com/born-ml/unity/nn"
)

func newSizeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "size",
		Short: "Show the parameter bytes of each module",
		Args:  cobra.NoArgs,
	}
	hparams := hparamsFlag(cmd)

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		h, err := hparams()
		if err != nil {
			return err
		}

		ffn := nn.FeedForwardSize(h.ModelDim, h.InnerDim)
		if !h.FFNInnerLayerNorm {
			ffn -= nn.LayerNormSize(h.InnerDim)
		}
		rows := []struct {
			name  string
			count int
			bytes int
		}{
			{"self_attn", h.NumLayers, nn.MultiheadAttentionSize(h.ModelDim, h.NumHeads)},
			{"self_attn_layer_norm", h.NumLayers, nn.LayerNormSize(h.ModelDim)},
			{"ffn", h.NumLayers, ffn},
			{"ffn_layer_norm", h.NumLayers, nn.LayerNormSize(h.ModelDim)},
		}

		table := newTable(cmd, "MODULE", "COUNT", "EACH", "TOTAL")
		for _, r := range rows {
			table.Append([]string{r.name, strconv.Itoa(r.count), humanBytes(r.bytes), humanBytes(r.count * r.bytes)})
		}
		table.Append([]string{"encoder", "1", "", humanBytes(model.Size(h))})
		table.Render()
		return nil
	}
	return cmd
}

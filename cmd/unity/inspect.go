package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/born-ml/unity/loader"
)

func newInspectCommand() *cobra.Command {
	var showMetadata bool
	cmd := &cobra.Command{
		Use:   "inspect PATH|gs://BUCKET/OBJECT",
		Short: "List the tensors of a SafeTensors weights file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := loader.Fetch(cmd.Context(), args[0], cacheDir())
			if err != nil {
				return err
			}
			r, err := loader.Open(path)
			if err != nil {
				return err
			}
			defer r.Close()

			if showMetadata {
				for k, v := range r.Metadata() {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", k, v)
				}
			}

			table := newTable(cmd, "NAME", "DTYPE", "SHAPE", "SIZE")
			for _, name := range r.TensorNames() {
				info, err := r.TensorInfo(name)
				if err != nil {
					return err
				}
				size := int(info.DataOffsets[1] - info.DataOffsets[0])
				table.Append([]string{name, string(info.DType), shapeString(info.Shape), humanBytes(size)})
			}
			table.Render()
			fmt.Fprintf(cmd.OutOrStdout(), "\n%s tensors\n", strconv.Itoa(len(r.TensorNames())))
			return nil
		},
	}
	cmd.Flags().BoolVar(&showMetadata, "metadata", false, "Print the file metadata")
	return cmd
}

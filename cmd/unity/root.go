package main

import (
	"flag"
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/born-ml/unity/model"
)

// NewRootCommand builds the unity command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "unity",
		Short:         "Assemble and run transformer encoders from named parameters",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addKlogFlags(root.PersistentFlags())

	root.AddCommand(
		newVersionCommand(),
		newSizeCommand(),
		newInspectCommand(),
		newRunCommand(),
		newGraphCommand(),
	)
	return root
}

// addKlogFlags exposes klog's -v, -logtostderr and friends on fs.
func addKlogFlags(fs *pflag.FlagSet) {
	gofs := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(gofs)
	fs.AddGoFlagSet(gofs)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "unity %s\n", version)
		},
	}
}

// hparamsFlag adds --config to cmd and returns a loader for it.
func hparamsFlag(cmd *cobra.Command) func() (model.HParams, error) {
	path := cmd.Flags().StringP("config", "c", "", "YAML hyperparameter file (defaults when empty)")
	return func() (model.HParams, error) {
		if *path == "" {
			return model.DefaultHParams(), nil
		}
		return model.LoadHParams(*path)
	}
}

func newTable(cmd *cobra.Command, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

func humanBytes(b int) string {
	const unit = 1024
	if b < unit {
		return strconv.Itoa(b) + " B"
	}
	div, exp := int64(unit), 0
	for n := int64(b) / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

func shapeString(shape []int) string {
	return fmt.Sprint(shape)
}

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/raaihank/textfix/internal/dataset"
)

func newDatasetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Inspect and manage correction datasets",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show entry counts per category",
		Args:  cobra.NoArgs,
		RunE:  runDatasetStats,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Check a dataset file for duplicate or empty keys",
		Args:  cobra.ExactArgs(1),
		RunE:  runDatasetValidate,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "export <file>",
		Short: "Write the active dataset as YAML",
		Args:  cobra.ExactArgs(1),
		RunE:  runDatasetExport,
	})
	return cmd
}

func runDatasetStats(cmd *cobra.Command, args []string) error {
	d, err := loadDataset(cmd)
	if err != nil {
		return err
	}

	sizes := d.Sizes()
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "version\t%s\n", d.Version())

	total := 0
	for _, c := range dataset.PairCategories {
		fmt.Fprintf(tw, "%s\t%d\n", c, sizes[c])
		total += sizes[c]
	}
	fmt.Fprintf(tw, "%s\t%d\n", dataset.CategoryFillerWords, sizes[dataset.CategoryFillerWords])
	total += sizes[dataset.CategoryFillerWords]
	fmt.Fprintf(tw, "total\t%d\n", total)
	return tw.Flush()
}

func runDatasetValidate(cmd *cobra.Command, args []string) error {
	d, err := dataset.LoadFile(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (version %s)\n", args[0], d.Version())
	return nil
}

func runDatasetExport(cmd *cobra.Command, args []string) error {
	d, err := loadDataset(cmd)
	if err != nil {
		return err
	}
	if err := dataset.WriteFile(args[0], d); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (version %s)\n", args[0], d.Version())
	return nil
}

// Command textfix corrects text locally with the rule-based pipeline.
//
// Usage:
//
//	textfix correct "i recieve it's fine!!" --tone formal
//	echo "teh cat" | textfix correct --compare
//	textfix dataset stats --dataset configs/dataset.yaml
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "textfix",
		Short:         "Rule-based text correction",
		Long:          `Corrects formatting, spelling, grammar and punctuation, with optional tone and editing modes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("dataset", "", "YAML dataset file (defaults to the built-in dataset)")

	root.AddCommand(newCorrectCmd())
	root.AddCommand(newDatasetCmd())
	return root
}

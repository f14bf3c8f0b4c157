package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/raaihank/textfix/internal/corrector"
	"github.com/raaihank/textfix/internal/dataset"
	"github.com/raaihank/textfix/internal/logger"
)

type correctOptions struct {
	tone    string
	mode    string
	compare bool
	html    bool
	trace   bool
}

func newCorrectCmd() *cobra.Command {
	opts := &correctOptions{}

	cmd := &cobra.Command{
		Use:   "correct [text...]",
		Short: "Correct text from the arguments or stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCorrect(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.tone, "tone", "none", "Tone adjustment: none, formal, friendly")
	cmd.Flags().StringVar(&opts.mode, "mode", "none", "Editing mode: none, clarity, shorten")
	cmd.Flags().BoolVar(&opts.compare, "compare", false, "Show the original next to the correction")
	cmd.Flags().BoolVar(&opts.html, "html", false, "Print the result as an HTML block")
	cmd.Flags().BoolVar(&opts.trace, "trace", false, "Print the text after every pass")
	return cmd
}

func runCorrect(cmd *cobra.Command, args []string, opts *correctOptions) error {
	text := strings.Join(args, " ")
	if len(args) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		text = strings.TrimRight(string(data), "\r\n")
	}

	svc, err := loadService(cmd)
	if err != nil {
		return err
	}

	req := corrector.Request{
		Text:    text,
		Tone:    opts.tone,
		Mode:    opts.mode,
		Compare: opts.compare,
		HTML:    opts.html,
	}
	out := cmd.OutOrStdout()

	if opts.trace {
		steps, err := svc.Trace(req)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "input\t%s\n", text)
		for _, step := range steps {
			fmt.Fprintf(tw, "%s\t%s\n", step.Pass, step.Output)
		}
		return tw.Flush()
	}

	result, err := svc.Correct(context.Background(), req)
	if err != nil {
		return err
	}

	switch {
	case opts.html:
		fmt.Fprintln(out, result.HTML)
	case opts.compare:
		fmt.Fprintf(out, "Original:  %s\nCorrected: %s\n", result.Original, result.Corrected)
	default:
		fmt.Fprintln(out, result.Corrected)
	}
	return nil
}

func loadService(cmd *cobra.Command) (*corrector.Service, error) {
	d, err := loadDataset(cmd)
	if err != nil {
		return nil, err
	}
	return corrector.NewService(corrector.Config{}, d, logger.Nop())
}

func loadDataset(cmd *cobra.Command) (*dataset.Dataset, error) {
	path, err := cmd.Flags().GetString("dataset")
	if err != nil {
		return nil, err
	}
	return dataset.LoadFile(path)
}

package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/happyhackingspace/seqlab/classifier"
)

func (c *CLI) newVocabCommand() *cobra.Command {
	var data dataFlags
	var list bool

	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "Report label and feature counts after cutoffs",
		Example: `  seqlab vocab --data-folder data
  seqlab vocab --feature-cutoff 2 --list`,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := c.readRecords(&data)
			if err != nil {
				return err
			}

			counter := classifier.NewCounter()
			for _, r := range records {
				counter.Add(r.Label, r.Vector)
			}
			lc, fc := c.cutoffs(&data)
			vocab := counter.Build(lc, fc)
			slog.Debug("Vocabulary built", "label_cutoff", lc, "feature_cutoff", fc)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Instances: %d\nLabels: %d\nFeatures: %d\n",
				len(records), vocab.NumLabels(), vocab.NumFeatures())
			if !list {
				return nil
			}
			for _, label := range vocab.Labels() {
				fmt.Fprintf(out, "label\t%s\t%d\n", label, counter.LabelCount(label))
			}
			for _, key := range vocab.Features() {
				fmt.Fprintf(out, "feature\t%s\t%d\n", key, counter.FeatureCount(key.Type, key.Value))
			}
			return nil
		},
	}

	data.register(cmd)
	cmd.Flags().BoolVar(&list, "list", false, "Print every kept label and feature with its count")
	return cmd
}

package cli

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/happyhackingspace/seqlab"
	"github.com/happyhackingspace/seqlab/internal/storage"
)

func (c *CLI) newEvaluateCommand() *cobra.Command {
	var data dataFlags
	var cvFolds int

	cmd := &cobra.Command{
		Use:     "evaluate",
		Short:   "Evaluate classifier accuracy via cross-validation",
		Example: `  seqlab evaluate --data-folder data --cv 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := c.readRecords(&data)
			if err != nil {
				return err
			}
			if cvFolds <= 0 {
				cvFolds = c.cfg.Folds
			}

			lc, fc := c.cutoffs(&data)
			slog.Info("Evaluating", "folds", cvFolds, "data-folder", data.folder, "instances", len(records))
			start := time.Now()
			result, err := seqlab.Evaluate(cmd.Context(), storage.Examples(records), &seqlab.EvalConfig{
				Folds:         cvFolds,
				Groups:        storage.Groups(records),
				LabelCutoff:   lc,
				FeatureCutoff: fc,
				Trainer:       c.cfg.Tagger.Trainer,
			})
			if err != nil {
				return err
			}
			slog.Debug("Evaluation completed", "duration", time.Since(start))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Accuracy: %.1f%% (%d/%d)\n", result.Accuracy*100, result.Correct, result.Total)
			for i, f := range result.Folds {
				slog.Debug("Fold", "fold", i, "accuracy", f.Accuracy(), "total", f.Total)
			}
			labels := labelsBySupport(result)
			printConfusionMatrix(out, result.Confusion, labels)
			printLabelReport(out, result, labels)
			return nil
		},
	}

	data.register(cmd)
	cmd.Flags().IntVar(&cvFolds, "cv", 0, "Number of cross-validation folds (default from config)")
	return cmd
}

// labelsBySupport orders gold labels by descending test count, then name.
func labelsBySupport(result *seqlab.EvalResult) []string {
	labels := slices.Sorted(maps.Keys(result.Labels))
	slices.SortStableFunc(labels, func(a, b string) int {
		return result.Labels[b].Total - result.Labels[a].Total
	})
	return labels
}

func printLabelReport(w io.Writer, result *seqlab.EvalResult, labels []string) {
	fmt.Fprintf(w, "\nPer-label metrics:\n")
	fmt.Fprintf(w, "%8s  %6s  %6s  %6s  %7s\n", "label", "prec", "recall", "f1", "support")
	for _, label := range labels {
		tp := result.Confusion[label][label]
		predicted := 0
		for _, row := range result.Confusion {
			predicted += row[label]
		}
		support := result.Labels[label].Total
		prec, recall := ratio(tp, predicted), ratio(tp, support)
		f1 := 0.0
		if prec+recall > 0 {
			f1 = 2 * prec * recall / (prec + recall)
		}
		fmt.Fprintf(w, "%8s  %5.1f%%  %5.1f%%  %5.1f%%  %7d\n",
			label, prec*100, recall*100, f1*100, support)
	}
}

func printConfusionMatrix(w io.Writer, confusion map[string]map[string]int, labels []string) {
	if len(confusion) == 0 {
		return
	}

	fmt.Fprintf(w, "\nConfusion matrix (rows=gold, cols=predicted):\n")
	fmt.Fprintf(w, "%8s", "")
	for _, l := range labels {
		fmt.Fprintf(w, " %5s", l)
	}
	fmt.Fprintf(w, "  total  acc%%\n")

	for _, gold := range labels {
		fmt.Fprintf(w, "%8s", gold)
		total := 0
		for _, predicted := range labels {
			count := confusion[gold][predicted]
			if count == 0 {
				fmt.Fprintf(w, " %5s", ".")
			} else {
				fmt.Fprintf(w, " %5d", count)
			}
		}
		for _, n := range confusion[gold] {
			total += n
		}
		fmt.Fprintf(w, "  %5d %5.1f\n", total, ratio(confusion[gold][gold], total)*100)
	}
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

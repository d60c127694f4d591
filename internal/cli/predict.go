package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/happyhackingspace/seqlab/classifier"
	"github.com/happyhackingspace/seqlab/internal/storage"
)

func (c *CLI) newPredictCommand() *cobra.Command {
	var top int
	var weighted bool
	var normalize string

	cmd := &cobra.Command{
		Use:   "predict <modelfile> [instances]",
		Short: "Classify instances with a trained model",
		Args:  cobra.RangeArgs(1, 2),
		Example: `  seqlab predict model.json test.txt
  cat test.txt | seqlab predict model.json --top 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			norm, err := normalizer(normalize)
			if err != nil {
				return err
			}
			model, err := classifier.Load(args[0])
			if err != nil {
				return err
			}
			slog.Debug("Model loaded", "path", args[0], "labels", model.NumLabels(), "id", model.Meta.ID)

			var examples []classifier.Example
			if len(args) == 2 {
				examples, err = storage.ReadInstanceFile(args[1], weighted)
			} else {
				if isStdinTerminal() {
					return fmt.Errorf("no input: pass an instance file or pipe instances on stdin")
				}
				examples, err = storage.ReadInstances(os.Stdin, weighted)
			}
			if err != nil {
				return err
			}

			return printPredictions(cmd.OutOrStdout(), model, examples, top, norm)
		},
	}

	cmd.Flags().IntVar(&top, "top", 1, "Number of labels to print per instance")
	cmd.Flags().BoolVar(&weighted, "weighted", false, "Features carry weights (name:weight)")
	cmd.Flags().StringVar(&normalize, "normalize", "none", "Score normalization: none, softmax or sigmoid")
	return cmd
}

// normalizer maps a --normalize value to a score transform; nil keeps raw
// scores.
func normalizer(name string) (func([]classifier.Prediction) []classifier.Prediction, error) {
	switch name {
	case "", "none":
		return nil, nil
	case "softmax":
		return classifier.Normalize, nil
	case "sigmoid":
		return classifier.Sigmoid, nil
	}
	return nil, fmt.Errorf("unknown normalization %q", name)
}

func printPredictions(w io.Writer, model *classifier.Model, examples []classifier.Example, top int,
	norm func([]classifier.Prediction) []classifier.Prediction) error {
	if model.NumLabels() == 0 {
		return classifier.ErrNoLabels
	}
	correct, gold := 0, 0
	for _, ex := range examples {
		preds := model.Predict(ex.Vector)
		if norm != nil {
			preds = norm(preds)
		}
		if ex.Label != "" {
			gold++
			if preds[0].Label == ex.Label {
				correct++
			}
		}
		parts := make([]string, 0, top)
		for _, p := range preds[:min(top, len(preds))] {
			parts = append(parts, p.String())
		}
		if _, err := fmt.Fprintln(w, strings.Join(parts, " ")); err != nil {
			return err
		}
	}
	if gold > 0 {
		slog.Info("Accuracy", "correct", correct, "total", gold, "accuracy", ratio(correct, gold))
	}
	return nil
}

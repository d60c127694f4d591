package cli

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/happyhackingspace/seqlab/feature"
	"github.com/happyhackingspace/seqlab/internal/storage"
	"github.com/happyhackingspace/seqlab/internal/textutil"
	"github.com/happyhackingspace/seqlab/tagger"
)

func (c *CLI) newTaggerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tagger",
		Short: "Train and run the part-of-speech tagger",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}
	cmd.AddCommand(c.newTaggerTrainCommand(), c.newTaggerTagCommand(), c.newTaggerEvaluateCommand())
	return cmd
}

// templates returns the configured template set, or nil for the built-in one.
func (c *CLI) templates() (*feature.TemplateSet, error) {
	if c.cfg.Templates == "" {
		return nil, nil
	}
	ts, err := feature.LoadTemplateFile(c.cfg.Templates, feature.LoadOptions{Schema: tagger.Schema})
	if err != nil {
		return nil, fmt.Errorf("templates %s: %w", c.cfg.Templates, err)
	}
	slog.Debug("Templates loaded", "path", c.cfg.Templates, "templates", len(ts.Templates))
	return ts, nil
}

func (c *CLI) newTaggerTrainCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "train <corpus> <modelfile>",
		Short: "Train a tagger on a tagged corpus",
		Args:  cobra.ExactArgs(2),
		Example: `  seqlab tagger train train.conll tagger.json.zst
  seqlab tagger train train.conll tagger.json -c seqlab.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sentences, err := storage.ReadSentenceFile(args[0])
			if err != nil {
				return err
			}
			templates, err := c.templates()
			if err != nil {
				return err
			}

			start := time.Now()
			t, err := tagger.Train(cmd.Context(), sentences, templates, c.cfg.Tagger)
			if err != nil {
				return err
			}
			slog.Debug("Training completed", "duration", time.Since(start))

			if err := t.Save(args[1]); err != nil {
				return err
			}
			slog.Info("Tagger saved", "path", args[1], "tags", t.Model.NumLabels(),
				"features", t.Model.Vocabulary.NumFeatures())
			return nil
		},
	}
}

func (c *CLI) newTaggerTagCommand() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "tag <modelfile> [corpus]",
		Short: "Tag sentences and print them in column format",
		Args:  cobra.RangeArgs(1, 2),
		Example: `  seqlab tagger tag tagger.json.zst test.conll
  echo "The dog sleeps ." | seqlab tagger tag tagger.json.zst --raw`,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := tagger.Load(args[0], c.cfg.Tagger)
			if err != nil {
				return err
			}

			var in io.Reader = os.Stdin
			if len(args) == 2 {
				f, err := os.Open(args[1])
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				in = f
			} else if isStdinTerminal() {
				return fmt.Errorf("no input: pass a corpus file or pipe sentences on stdin")
			}

			var sentences []tagger.Sentence
			if raw {
				sentences, err = readRawSentences(in)
			} else {
				sentences, err = storage.ReadSentences(in)
			}
			if err != nil {
				return err
			}

			start := time.Now()
			tagged, err := t.AnnotateAll(cmd.Context(), sentences, c.cfg.Workers)
			if err != nil {
				return err
			}
			slog.Debug("Tagging completed", "sentences", len(tagged), "duration", time.Since(start))
			return storage.WriteSentences(cmd.OutOrStdout(), tagged)
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Read plain text, one sentence per line")
	return cmd
}

func (c *CLI) newTaggerEvaluateCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "evaluate <modelfile> <corpus>",
		Short:   "Measure tagging accuracy against a gold corpus",
		Args:    cobra.ExactArgs(2),
		Example: `  seqlab tagger evaluate tagger.json.zst test.conll`,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := tagger.Load(args[0], c.cfg.Tagger)
			if err != nil {
				return err
			}
			sentences, err := storage.ReadSentenceFile(args[1])
			if err != nil {
				return err
			}

			slog.Info("Evaluating tagger", "model", args[0], "sentences", len(sentences),
				"beam_width", t.Config().BeamWidth, "pruning", t.Config().Pruning)
			start := time.Now()
			score, err := t.Evaluate(cmd.Context(), sentences, c.cfg.Workers)
			if err != nil {
				return err
			}
			slog.Debug("Evaluation completed", "duration", time.Since(start))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Token accuracy: %.2f%% (%d/%d)\n",
				score.Tokens.Accuracy()*100, score.Tokens.Correct, score.Tokens.Total)
			fmt.Fprintf(out, "Sentence accuracy: %.2f%% (%d/%d)\n",
				score.Sentences.Accuracy()*100, score.Sentences.Correct, score.Sentences.Total)
			return nil
		},
	}
}

// readRawSentences tokenizes each non-blank line into an untagged sentence.
func readRawSentences(r io.Reader) ([]tagger.Sentence, error) {
	var sentences []tagger.Sentence
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		forms := textutil.Tokenize(textutil.NormalizeWhitespaces(sc.Text()))
		if len(forms) == 0 {
			continue
		}
		s := make(tagger.Sentence, len(forms))
		for i, f := range forms {
			s[i].Form = f
		}
		sentences = append(sentences, s)
	}
	return sentences, sc.Err()
}

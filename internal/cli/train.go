package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/happyhackingspace/seqlab/classifier"
	"github.com/happyhackingspace/seqlab/internal/storage"
)

// dataFlags are shared by commands reading an instance data folder.
type dataFlags struct {
	folder         string
	dropDuplicates bool
	labelCutoff    int
	featureCutoff  int
}

func (d *dataFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&d.folder, "data-folder", "data", "Path to instance data folder")
	cmd.Flags().BoolVar(&d.dropDuplicates, "drop-duplicates", false, "Drop repeated instances")
	cmd.Flags().IntVar(&d.labelCutoff, "label-cutoff", -1, "Keep labels seen more than this many times (default from config)")
	cmd.Flags().IntVar(&d.featureCutoff, "feature-cutoff", -1, "Keep features seen more than this many times (default from config)")
}

func (c *CLI) cutoffs(d *dataFlags) (label, feature int) {
	label, feature = c.cfg.Tagger.LabelCutoff, c.cfg.Tagger.FeatureCutoff
	if d.labelCutoff >= 0 {
		label = d.labelCutoff
	}
	if d.featureCutoff >= 0 {
		feature = d.featureCutoff
	}
	return label, feature
}

func (c *CLI) readRecords(d *dataFlags) ([]storage.Record, error) {
	opts := storage.DefaultIterOptions()
	opts.DropDuplicates = d.dropDuplicates
	opts.Verbose = c.verbose
	records, err := storage.NewStorage(d.folder).IterRecords(opts)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no instances found in %s", d.folder)
	}
	slog.Debug("Records loaded", "folder", d.folder, "records", len(records))
	return records, nil
}

func (c *CLI) newTrainCommand() *cobra.Command {
	var data dataFlags

	cmd := &cobra.Command{
		Use:   "train <modelfile>",
		Short: "Train a classifier on labeled instance files",
		Args:  cobra.ExactArgs(1),
		Example: `  seqlab train model.json --data-folder data
  seqlab train model.json.zst --feature-cutoff 1 -v`,
		RunE: func(cmd *cobra.Command, args []string) error {
			modelPath := args[0]
			records, err := c.readRecords(&data)
			if err != nil {
				return err
			}

			lc, fc := c.cutoffs(&data)
			slog.Info("Training classifier", "data-folder", data.folder, "instances", len(records),
				"algorithm", c.cfg.Tagger.Trainer.Algorithm, "output", modelPath)
			start := time.Now()
			model, err := classifier.Train(cmd.Context(), storage.Examples(records), lc, fc, c.cfg.Tagger.Trainer)
			if err != nil {
				return err
			}
			slog.Debug("Training completed", "duration", time.Since(start))

			if err := classifier.Save(model, modelPath); err != nil {
				return err
			}
			slog.Info("Model saved", "path", modelPath, "labels", model.NumLabels(),
				"features", model.Vocabulary.NumFeatures(), "id", model.Meta.ID)
			return nil
		},
	}

	data.register(cmd)
	return cmd
}

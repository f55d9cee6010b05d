// Copyright (C) 2025 NeuroSym Authors (maintainers@neurosym.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/neurosym/neurosym/services/reason/engine"
	"github.com/neurosym/neurosym/services/reason/trainer"
)

var (
	trainExamples string
	trainEpochs   int
	trainOutput   string
)

var trainCmd = &cobra.Command{
	Use:   "train <schema-file>",
	Short: "Fit rule weights from a labeled example file",
	Long: `Loads the schema and a JSON file of labeled examples, fits the
learnable rule weights by finite differences, and writes the trained
schema to --output (or stdout when omitted).

The example file is a JSON array of objects with "inputs" and
"outputs" maps from variable name to truth value:

  [{"inputs": {"raining": 1.0}, "outputs": {"wet_ground": 0.9}}]`,
	Args: cobra.ExactArgs(1),
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().StringVar(&trainExamples, "examples", "", "JSON file of labeled examples (required)")
	trainCmd.Flags().IntVar(&trainEpochs, "epochs", 50, "training epochs")
	trainCmd.Flags().StringVar(&trainOutput, "output", "", "file for the trained schema (stdout when empty)")
	_ = trainCmd.MarkFlagRequired("examples")
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	doc, err := engine.LoadDocument(args[0])
	if err != nil {
		return err
	}
	e, report, err := engine.New(doc, &engine.Config{Logger: logger.Slog()})
	if err != nil {
		printReport(report)
		os.Exit(exitInvalid)
	}

	examples, err := loadExamples(trainExamples)
	if err != nil {
		return err
	}

	result, err := e.Train(cmd.Context(), examples, trainEpochs)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "trained %d epochs, final loss %.6f", result.Epochs, result.FinalLoss)
	if result.EarlyStopped {
		fmt.Fprint(os.Stderr, " (early stop)")
	}
	fmt.Fprintln(os.Stderr)

	trained := e.Export()
	data, err := writeDocument(trained, trainOutput)
	if err != nil {
		return err
	}
	if trainOutput == "" {
		os.Stdout.Write(data)
	}
	return nil
}

// loadExamples reads a JSON array of labeled examples.
func loadExamples(path string) ([]trainer.Example, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading examples: %w", err)
	}
	var examples []trainer.Example
	if err := json.Unmarshal(data, &examples); err != nil {
		return nil, fmt.Errorf("parsing examples: %w", err)
	}
	if len(examples) == 0 {
		return nil, fmt.Errorf("example file %s is empty", path)
	}
	return examples, nil
}

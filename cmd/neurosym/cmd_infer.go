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
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neurosym/neurosym/services/reason/engine"
	"github.com/neurosym/neurosym/services/reason/logic"
)

var (
	inferEvidence []string
	inferQueryVar string
	inferJSON     bool
)

var inferCmd = &cobra.Command{
	Use:   "infer <schema-file>",
	Short: "Run one inference over a schema file",
	Long: `Loads the schema, locks the supplied evidence, runs inference to a
fixed point, and prints the resulting truth values. Evidence is given
as name=value pairs with values in [0,1].`,
	Example: `  neurosym infer weather.yaml --evidence raining=1.0
  neurosym infer weather.yaml --evidence raining=1.0 --query wet_ground --json`,
	Args: cobra.ExactArgs(1),
	RunE: runInfer,
}

func init() {
	inferCmd.Flags().StringArrayVar(&inferEvidence, "evidence", nil, "evidence as name=value (repeatable)")
	inferCmd.Flags().StringVar(&inferQueryVar, "query", "", "print only this variable's value")
	inferCmd.Flags().BoolVar(&inferJSON, "json", false, "output JSON")
	rootCmd.AddCommand(inferCmd)
}

// parseEvidence converts name=value pairs into an evidence map.
func parseEvidence(pairs []string) (map[string]float64, error) {
	evidence := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		name, raw, found := strings.Cut(pair, "=")
		if !found || name == "" {
			return nil, fmt.Errorf("evidence %q must be name=value", pair)
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("evidence %q: %w", pair, err)
		}
		if !logic.IsTruthValue(value) {
			return nil, fmt.Errorf("evidence %q: value must be in [0,1]", pair)
		}
		evidence[name] = value
	}
	return evidence, nil
}

func runInfer(cmd *cobra.Command, args []string) error {
	doc, err := engine.LoadDocument(args[0])
	if err != nil {
		return err
	}
	e, report, err := engine.New(doc, &engine.Config{Logger: logger.Slog()})
	if err != nil {
		printReport(report)
		os.Exit(exitInvalid)
	}

	evidence, err := parseEvidence(inferEvidence)
	if err != nil {
		return err
	}

	if inferQueryVar != "" {
		value, result, err := e.Query(cmd.Context(), inferQueryVar, evidence)
		if err != nil {
			return err
		}
		if inferJSON {
			return json.NewEncoder(os.Stdout).Encode(map[string]any{
				"variable":  inferQueryVar,
				"value":     value,
				"converged": result.Converged,
			})
		}
		fmt.Printf("%s = %.4f (converged=%v, iterations=%d)\n",
			inferQueryVar, value, result.Converged, result.Iterations)
		return nil
	}

	result, err := e.InferWithEvidence(cmd.Context(), evidence)
	if err != nil {
		return err
	}
	if inferJSON {
		return json.NewEncoder(os.Stdout).Encode(result)
	}

	names := make([]string, 0, len(result.Values))
	for name := range result.Values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		marker := ""
		if _, isEvidence := evidence[name]; isEvidence {
			marker = " (evidence)"
		}
		fmt.Printf("%-24s %.4f%s\n", name, result.Values[name], marker)
	}
	fmt.Printf("\nconverged=%v iterations=%d max_delta=%.6f\n",
		result.Converged, result.Iterations, result.MaxDelta)
	return nil
}

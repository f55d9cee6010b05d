// Copyright (C) 2025 NeuroSym Authors (maintainers@neurosym.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/neurosym/neurosym/services/reason/engine"
	"github.com/neurosym/neurosym/services/reason/schema"
)

var validateCmd = &cobra.Command{
	Use:   "validate <schema-file>",
	Short: "Check a schema file without loading it",
	Long: `Parses and validates the schema file, printing every field error
found. Exits 0 when the file is valid and 1 when it is not.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	doc, err := engine.LoadDocument(args[0])
	if err != nil {
		return err
	}
	report := schema.Validate(doc)
	if !report.Valid {
		printReport(report)
		os.Exit(exitInvalid)
	}
	fmt.Printf("%s: valid (%d variables, %d rules, %d constraints)\n",
		args[0], len(doc.Variables), len(doc.Rules), len(doc.Constraints))
	return nil
}

// printReport writes each field error on its own line to stderr.
func printReport(report schema.Report) {
	for _, fieldErr := range report.Errors {
		fmt.Fprintf(os.Stderr, "  %s: %s\n", fieldErr.Path, fieldErr.Message)
	}
	fmt.Fprintf(os.Stderr, "invalid schema: %d error(s)\n", len(report.Errors))
}

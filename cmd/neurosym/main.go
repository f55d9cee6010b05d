// Copyright (C) 2025 NeuroSym Authors (maintainers@neurosym.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// neurosym is the command line entry point for the reasoning engine.
//
// Subcommands:
//
//	serve    - run the HTTP reasoning service
//	infer    - run one inference over a schema file
//	train    - fit rule weights from a labeled example file
//	validate - check a schema file without loading it
//	export   - normalize a schema file to JSON or YAML
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/neurosym/neurosym/pkg/logging"
)

// Exit codes.
const (
	exitSuccess = 0
	exitInvalid = 1
	exitError   = 2
)

var (
	flagLogLevel string
	flagLogDir   string

	logger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "neurosym",
	Short: "Deterministic fuzzy-logic reasoning over logic graphs",
	Long: `neurosym loads logic graph schemas (variables, rules, argumentation
constraints), runs damped fixed-point inference over them, and fits
rule weights from labeled examples.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = logging.New(logging.Config{
			Level:   logging.ParseLevel(flagLogLevel),
			LogDir:  flagLogDir,
			Service: "neurosym",
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "minimum log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&flagLogDir, "log-dir", "", "directory for JSON log files (disabled when empty)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitError)
	}
}

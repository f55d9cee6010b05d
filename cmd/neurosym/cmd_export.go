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
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neurosym/neurosym/services/reason/engine"
	"github.com/neurosym/neurosym/services/reason/schema"
)

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export <schema-file>",
	Short: "Normalize a schema file to JSON or YAML",
	Long: `Loads and validates the schema, then re-emits it with defaults
applied in the requested format. Useful for converting between JSON
and YAML and for canonicalizing hand-edited files.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "output format, json or yaml (inferred from --output when empty)")
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "output file (stdout when empty)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	doc, err := engine.LoadDocument(args[0])
	if err != nil {
		return err
	}
	e, report, err := engine.New(doc, &engine.Config{Logger: logger.Slog()})
	if err != nil {
		printReport(report)
		os.Exit(exitInvalid)
	}

	data, err := writeDocument(e.Export(), exportOutput)
	if err != nil {
		return err
	}
	if exportOutput == "" {
		os.Stdout.Write(data)
	}
	return nil
}

// writeDocument encodes doc and, when path is non-empty, writes it
// there. The format comes from --format when set, otherwise from the
// path's extension, defaulting to JSON.
func writeDocument(doc *schema.Document, path string) ([]byte, error) {
	format := exportFormat
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			format = "yaml"
		default:
			format = "json"
		}
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case "json":
		data, err = doc.JSON()
	case "yaml":
		data, err = doc.YAML()
	default:
		return nil, fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
	if err != nil {
		return nil, err
	}

	if path != "" {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, err
		}
	}
	return data, nil
}

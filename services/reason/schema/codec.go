// Copyright (C) 2025 NeuroSym Authors (maintainers@neurosym.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package schema

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseJSON decodes a JSON document. The result is decoded only, not
// validated; callers run Validate before loading it into a graph.
func ParseJSON(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode schema json: %w", err)
	}
	return &doc, nil
}

// ParseYAML decodes a YAML document. Like ParseJSON, decoding and
// validation are separate steps.
func ParseYAML(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode schema yaml: %w", err)
	}
	return &doc, nil
}

// JSON encodes the document as indented JSON.
func (d *Document) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode schema json: %w", err)
	}
	return data, nil
}

// YAML encodes the document as YAML.
func (d *Document) YAML() ([]byte, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode schema yaml: %w", err)
	}
	return data, nil
}

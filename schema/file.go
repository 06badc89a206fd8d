package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a schema override. Files ending in .yaml or .yml are YAML,
// everything else is JSON. Field names follow the JSON tags in both cases.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}
	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}
	cfg, err := Unmarshal(data, format)
	if err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", path, err)
	}
	return cfg, nil
}

// Unmarshal decodes a schema in "json" or "yaml" format.
func Unmarshal(data []byte, format string) (*Config, error) {
	if format == "yaml" {
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		var err error
		if data, err = json.Marshal(doc); err != nil {
			return nil, err
		}
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	if len(cfg.Dimensions) == 0 && len(cfg.Measures) == 0 {
		return nil, fmt.Errorf("schema declares no dimensions or measures")
	}
	if _, ok := cfg.Measure(RecordCountKey); !ok {
		cfg.Measures = append(cfg.Measures, MeasureMeta{
			Key:                RecordCountKey,
			DisplayName:        "Record Count",
			IsSynthetic:        true,
			Aggregations:       []string{"count"},
			DefaultAggregation: "count",
		})
	}
	return &cfg, nil
}

// Marshal encodes a schema as indented "json" or block-style "yaml",
// keeping field order.
func Marshal(cfg *Config, format string) ([]byte, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, err
	}
	if format != "yaml" {
		return data, nil
	}

	// JSON is valid YAML; decoding into a node keeps key order
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	blockStyle(&node)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func blockStyle(n *yaml.Node) {
	n.Style &^= yaml.FlowStyle
	if n.Kind == yaml.ScalarNode && n.Style&yaml.DoubleQuotedStyle != 0 && n.Tag == "!!str" {
		n.Style = 0
	}
	for _, c := range n.Content {
		blockStyle(c)
	}
}

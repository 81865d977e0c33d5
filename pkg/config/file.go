package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"
)

// codec is one on-disk configuration format
type codec struct {
	name   string
	decode func(data []byte, target interface{}) error
	encode func(config interface{}) ([]byte, error)
}

var (
	yamlCodec = codec{
		name: "YAML",
		decode: func(data []byte, target interface{}) error {
			dec := yaml.NewDecoder(bytes.NewReader(data))
			// A misspelt key would otherwise silently keep its default.
			dec.KnownFields(true)
			if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			return nil
		},
		encode: yaml.Marshal,
	}
	jsonCodec = codec{
		name:   "JSON",
		decode: sonic.Unmarshal,
		encode: func(config interface{}) ([]byte, error) {
			return sonic.ConfigStd.MarshalIndent(config, "", "  ")
		},
	}
)

func codecFor(path string) codec {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return jsonCodec
	}
	return yamlCodec
}

func loadFile(c codec, path string, target interface{}) error {
	// #nosec G304 -- path comes from the operator's command line.
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s file %s: %w", c.name, path, err)
	}
	if err := c.decode(data, target); err != nil {
		return fmt.Errorf("failed to decode %s file %s: %w", c.name, path, err)
	}
	return nil
}

// saveFile writes with 0600: configs carry the SendGrid key
func saveFile(c codec, path string, config interface{}) error {
	data, err := c.encode(config)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", c.name, err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s file %s: %w", c.name, path, err)
	}
	return nil
}

// LoadYAML decodes a YAML file into target, rejecting unknown keys
func LoadYAML(path string, target interface{}) error { return loadFile(yamlCodec, path, target) }

// LoadJSON decodes a JSON file into target
func LoadJSON(path string, target interface{}) error { return loadFile(jsonCodec, path, target) }

// SaveYAML writes config as YAML
func SaveYAML(path string, config interface{}) error { return saveFile(yamlCodec, path, config) }

// SaveJSON writes config as indented JSON
func SaveJSON(path string, config interface{}) error { return saveFile(jsonCodec, path, config) }

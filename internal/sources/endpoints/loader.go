package endpoints

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader handles loading and parsing of services.yaml
type Loader struct {
	filePath string
}

// NewLoader creates a new endpoints loader
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Load reads and parses the services file.
// ${VAR} references are expanded from the environment before parsing.
func (l *Loader) Load() (ServicesConfig, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return ServicesConfig{}, fmt.Errorf("failed to read services file: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	var config ServicesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return ServicesConfig{}, fmt.Errorf("failed to parse services yaml: %w", err)
	}

	return config, nil
}

package endpoints

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/MrSnakeDoc/portico/internal/domain"
)

// Mapper validates services.yaml content and converts it to domain endpoints
type Mapper struct {
	validate *validator.Validate
}

// NewMapper creates a new mapper instance
func NewMapper() *Mapper {
	return &Mapper{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MapEndpoints converts ServicesConfig to []domain.ServiceEndpoint.
// Names must be unique; a missing timeout falls back to domain.DefaultProbeTimeout.
func (m *Mapper) MapEndpoints(config ServicesConfig) ([]domain.ServiceEndpoint, error) {
	if err := m.validate.Struct(config); err != nil {
		return nil, fmt.Errorf("invalid services config: %w", err)
	}

	seen := make(map[string]bool, len(config.Services))
	endpoints := make([]domain.ServiceEndpoint, 0, len(config.Services))

	for _, props := range config.Services {
		if seen[props.Name] {
			return nil, fmt.Errorf("duplicate service name %q", props.Name)
		}
		seen[props.Name] = true

		timeout := time.Duration(props.TimeoutMs) * time.Millisecond
		if timeout == 0 {
			timeout = domain.DefaultProbeTimeout
		}

		endpoints = append(endpoints, domain.ServiceEndpoint{
			Name:       props.Name,
			URL:        props.URL,
			Timeout:    timeout,
			MaxRetries: props.MaxRetries,
		})
	}

	return endpoints, nil
}

// Load is a convenience wrapper: read, parse and map in one call.
func Load(filePath string) ([]domain.ServiceEndpoint, error) {
	config, err := NewLoader(filePath).Load()
	if err != nil {
		return nil, err
	}
	return NewMapper().MapEndpoints(config)
}

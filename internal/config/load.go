package config

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/svcbuilder/internal/foundation/errors"
)

// ParseResult is the outcome of reading a project file.
// Exactly one of Data or Errors is populated.
type ParseResult struct {
	Success bool
	Data    *Project
	Errors  []string
}

// Parse reads, expands, normalizes, defaults and validates the project file at path.
// Every validation failure is collected rather than stopping at the first.
func Parse(path string) ParseResult {
	if _, err := LoadEnvFiles(filepath.Dir(path)); err != nil {
		slog.Warn("Failed to load environment file", "error", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ParseResult{Errors: []string{fmt.Sprintf("failed to read config file: %v", err)}}
	}
	return ParseBytes(data)
}

// ParseBytes is Parse for in-memory content; ${VAR} references are expanded first.
func ParseBytes(data []byte) ParseResult {
	expanded := os.ExpandEnv(string(data))

	var p Project
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	if err := dec.Decode(&p); err != nil {
		if err == io.EOF {
			return ParseResult{Errors: []string{"configuration file is empty"}}
		}
		return ParseResult{Errors: []string{fmt.Sprintf("failed to parse config: %v", err)}}
	}

	normalize(&p)
	ApplyDefaults(&p)

	if res := Validate(&p); !res.Valid {
		return ParseResult{Errors: res.Messages()}
	}
	return ParseResult{Success: true, Data: &p}
}

// Load parses the project file and converts failures into a classified config error.
func Load(path string) (*Project, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.ConfigError(fmt.Sprintf("configuration file not found: %s", path)).
			WithContext("path", path).
			Build()
	}
	res := Parse(path)
	if !res.Success {
		return nil, errors.ConfigError("configuration file contains errors").
			WithCause(&ParseError{Path: path, Problems: res.Errors}).
			WithContext("path", path).
			Build()
	}
	return res.Data, nil
}

// ParseError lists every problem found in one project file.
type ParseError struct {
	Path     string
	Problems []string
}

func (e *ParseError) Error() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s:", e.Path)
	for _, p := range e.Problems {
		b.WriteString("\n  - ")
		b.WriteString(p)
	}
	return b.String()
}

package config

import (
	"time"
)

// DefaultConfigFile is the project file looked up when --config is not given.
const DefaultConfigFile = "project.config.yaml"

// Project is the declarative description of a multi-service project.
// It is immutable once returned by Parse or Load.
type Project struct {
	Name         string       `yaml:"name"`
	Version      string       `yaml:"version"`
	Aliases      Aliases      `yaml:"aliases,omitempty"`
	Services     []Service    `yaml:"services"`
	Orchestrator Orchestrator `yaml:"orchestrator,omitempty"`
}

// Service is one independently buildable and runnable unit.
type Service struct {
	Name string      `yaml:"name"`
	Kind ServiceKind `yaml:"service_kind"`
	// BuildVariant restricts the service to builds of one variant. Empty means every variant.
	BuildVariant BuildVariant `yaml:"build_variant,omitempty"`
	Subdomain    string       `yaml:"subdomain"`
}

// Orchestrator groups the settings that drive artifact generation, builds and watch mode.
type Orchestrator struct {
	AliasMode        AliasMode       `yaml:"alias_mode,omitempty"`
	PathMappingFile  string          `yaml:"path_mapping_file,omitempty"`
	DeclarationsFile string          `yaml:"declarations_file,omitempty"`
	Build            BuildSettings   `yaml:"build,omitempty"`
	Watch            WatchSettings   `yaml:"watch,omitempty"`
	Install          CommandSettings `yaml:"install,omitempty"`
	Test             CommandSettings `yaml:"test,omitempty"`
	Prepare          PrepareSettings `yaml:"prepare,omitempty"`
	MetricsAddr      string          `yaml:"metrics_addr,omitempty"`
}

// BuildSettings configures the external compiler invocation for one build unit.
// Command elements are text/template strings rendered with the unit's fields.
type BuildSettings struct {
	Command     []string `yaml:"command,omitempty"`
	Concurrency int      `yaml:"concurrency,omitempty"`
}

// WatchSettings configures the watch supervisor.
type WatchSettings struct {
	Paths        []string `yaml:"paths,omitempty"`
	Ignore       []string `yaml:"ignore,omitempty"`
	UseGitignore *bool    `yaml:"use_gitignore,omitempty"`
	Debounce     string   `yaml:"debounce,omitempty"`
	MaxDelay     string   `yaml:"max_delay,omitempty"`
	// Server is the server entry point, rendered with {{.Variant}}.
	Server    string `yaml:"server,omitempty"`
	Runtime   string `yaml:"runtime,omitempty"`
	StopGrace string `yaml:"stop_grace,omitempty"`
}

// CommandSettings holds an argv for a one-shot external step.
type CommandSettings struct {
	Command []string `yaml:"command,omitempty"`
}

// PrepareSettings configures the container preparation helper.
type PrepareSettings struct {
	ServiceConfig string   `yaml:"service_config,omitempty"`
	Sections      []string `yaml:"sections,omitempty"`
	Output        string   `yaml:"output,omitempty"`
	// Build is the one-shot build run by "prepare --build <env>". Elements
	// are templates over .Variant and .Config.
	Build []string `yaml:"build,omitempty"`
}

// GitignoreEnabled reports whether repository .gitignore files filter watch events.
func (w WatchSettings) GitignoreEnabled() bool {
	return w.UseGitignore == nil || *w.UseGitignore
}

// DebounceDuration returns the parsed debounce window (validated at load time).
func (w WatchSettings) DebounceDuration() time.Duration {
	return mustDuration(w.Debounce, defaultDebounce)
}

// MaxDelayDuration returns the parsed upper bound on debounce deferral.
func (w WatchSettings) MaxDelayDuration() time.Duration {
	return mustDuration(w.MaxDelay, defaultMaxDelay)
}

// StopGraceDuration returns how long a stopping child gets before it is killed.
func (w WatchSettings) StopGraceDuration() time.Duration {
	return mustDuration(w.StopGrace, defaultStopGrace)
}

func mustDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

// ServiceNames returns the configured service names in project order.
func (p *Project) ServiceNames() []string {
	names := make([]string, 0, len(p.Services))
	for _, s := range p.Services {
		names = append(names, s.Name)
	}
	return names
}

// Service looks up a service by name.
func (p *Project) Service(name string) (Service, bool) {
	for _, s := range p.Services {
		if s.Name == name {
			return s, true
		}
	}
	return Service{}, false
}

// ServicesOfKind returns the names of services with the given kind, in project order.
func (p *Project) ServicesOfKind(kind ServiceKind) []string {
	var names []string
	for _, s := range p.Services {
		if s.Kind == kind {
			names = append(names, s.Name)
		}
	}
	return names
}

// UnknownServices returns the requested names that are not configured.
func (p *Project) UnknownServices(names []string) []string {
	var unknown []string
	for _, n := range names {
		if _, ok := p.Service(n); !ok {
			unknown = append(unknown, n)
		}
	}
	return unknown
}

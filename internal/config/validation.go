package config

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"git.home.luguber.info/inful/svcbuilder/internal/foundation"
)

// normalize rewrites enum spellings to their canonical form. Unknown values are
// left untouched so validation can report them verbatim.
func normalize(p *Project) {
	for i := range p.Services {
		s := &p.Services[i]
		s.Name = strings.TrimSpace(s.Name)
		if k, err := ParseServiceKind(string(s.Kind)); err == nil {
			s.Kind = k
		}
		if s.BuildVariant != "" {
			if v, err := ParseBuildVariant(string(s.BuildVariant)); err == nil {
				s.BuildVariant = v
			}
		}
	}
	for i := range p.Aliases {
		if k, err := ParseServiceKind(string(p.Aliases[i].Kind)); err == nil {
			p.Aliases[i].Kind = k
		}
	}
	if p.Orchestrator.AliasMode != "" {
		if m, err := ParseAliasMode(string(p.Orchestrator.AliasMode)); err == nil {
			p.Orchestrator.AliasMode = m
		}
	}
}

// Validate checks a normalized project and collects every failure.
func Validate(p *Project) foundation.ValidationResult {
	return foundation.NewValidatorChain[*Project](
		validateServices,
		validateAliases,
		validateOrchestrator,
	).Validate(p)
}

func validateServices(p *Project) foundation.ValidationResult {
	var errs []foundation.FieldError
	seen := make(map[string]bool, len(p.Services))
	for i, s := range p.Services {
		field := fmt.Sprintf("services[%d]", i)
		if s.Name == "" {
			errs = append(errs, foundation.NewValidationError(field+".name", "required", "service name is required"))
		} else if seen[s.Name] {
			errs = append(errs, foundation.NewValidationError(field+".name", "duplicate", fmt.Sprintf("duplicate service name %q", s.Name)))
		}
		seen[s.Name] = true
		if _, err := ParseServiceKind(string(s.Kind)); err != nil {
			errs = append(errs, foundation.NewValidationError(field+".service_kind", "invalid", err.Error()))
		}
		if s.BuildVariant != "" {
			if _, err := ParseBuildVariant(string(s.BuildVariant)); err != nil {
				errs = append(errs, foundation.NewValidationError(field+".build_variant", "invalid", err.Error()))
			}
		}
	}
	if len(errs) > 0 {
		return foundation.Invalid(errs...)
	}
	return foundation.Valid()
}

func validateAliases(p *Project) foundation.ValidationResult {
	var errs []foundation.FieldError
	kinds := make(map[ServiceKind]bool, len(p.Aliases))
	for _, ka := range p.Aliases {
		field := "aliases." + string(ka.Kind)
		if _, err := ParseServiceKind(string(ka.Kind)); err != nil {
			errs = append(errs, foundation.NewValidationError(field, "invalid", err.Error()))
		}
		if kinds[ka.Kind] {
			errs = append(errs, foundation.NewValidationError(field, "duplicate", "service kind listed twice"))
		}
		kinds[ka.Kind] = true
		names := make(map[string]bool, len(ka.Entries))
		for _, e := range ka.Entries {
			switch {
			case strings.TrimSpace(e.Name) == "":
				errs = append(errs, foundation.NewValidationError(field, "required", "alias name is required"))
			case names[e.Name]:
				errs = append(errs, foundation.NewValidationError(field+"."+e.Name, "duplicate", "alias defined twice"))
			case strings.TrimSpace(e.Path) == "":
				errs = append(errs, foundation.NewValidationError(field+"."+e.Name, "required", "alias path is required"))
			}
			names[e.Name] = true
		}
	}
	if len(errs) > 0 {
		return foundation.Invalid(errs...)
	}
	return foundation.Valid()
}

func validateOrchestrator(p *Project) foundation.ValidationResult {
	o := p.Orchestrator
	var errs []foundation.FieldError
	if _, err := ParseAliasMode(string(o.AliasMode)); err != nil {
		errs = append(errs, foundation.NewValidationError("orchestrator.alias_mode", "invalid", err.Error()))
	}
	for i, arg := range o.Build.Command {
		if _, err := template.New("arg").Option("missingkey=error").Parse(arg); err != nil {
			errs = append(errs, foundation.NewValidationError(fmt.Sprintf("orchestrator.build.command[%d]", i), "template", err.Error()))
		}
	}
	for i, arg := range o.Prepare.Build {
		if _, err := template.New("arg").Option("missingkey=error").Parse(arg); err != nil {
			errs = append(errs, foundation.NewValidationError(fmt.Sprintf("orchestrator.prepare.build[%d]", i), "template", err.Error()))
		}
	}
	if _, err := template.New("server").Parse(o.Watch.Server); err != nil {
		errs = append(errs, foundation.NewValidationError("orchestrator.watch.server", "template", err.Error()))
	}
	// A zero stop grace kills the server right away; the debounce windows must
	// be positive or the watcher cannot be constructed.
	for _, f := range []struct {
		name, raw string
		positive  bool
	}{
		{"orchestrator.watch.debounce", o.Watch.Debounce, true},
		{"orchestrator.watch.max_delay", o.Watch.MaxDelay, true},
		{"orchestrator.watch.stop_grace", o.Watch.StopGrace, false},
	} {
		name, raw := f.name, f.raw
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, foundation.NewValidationError(name, "duration", fmt.Sprintf("invalid duration %q", raw)))
			continue
		}
		switch {
		case d < 0:
			errs = append(errs, foundation.NewValidationError(name, "duration", "duration must not be negative"))
		case d == 0 && f.positive:
			errs = append(errs, foundation.NewValidationError(name, "duration", "duration must be positive"))
		}
	}
	if len(errs) > 0 {
		return foundation.Invalid(errs...)
	}
	return foundation.Valid()
}

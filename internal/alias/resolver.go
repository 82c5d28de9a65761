// Package alias turns per-kind alias tables into ordered path-mapping rules.
package alias

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"git.home.luguber.info/inful/svcbuilder/internal/config"
	"git.home.luguber.info/inful/svcbuilder/internal/foundation/errors"
)

var (
	// ErrTargetMissing is returned when an alias points at a path that does not exist.
	ErrTargetMissing = stderrors.New("alias target does not exist")
	// ErrCollision is returned when one alias name maps to different targets across kinds.
	ErrCollision = stderrors.New("alias collision")
)

// StatFunc reports file information for a project-relative path.
type StatFunc func(path string) (fs.FileInfo, error)

// DirStat returns a StatFunc resolving paths against root.
func DirStat(root string) StatFunc {
	return func(p string) (fs.FileInfo, error) {
		return os.Stat(filepath.Join(root, filepath.FromSlash(p)))
	}
}

// Entry is one source alias with the kind of its target.
type Entry struct {
	Name  string
	Path  string
	IsDir bool
}

// Rule maps an alias pattern to its target patterns.
type Rule struct {
	Pattern string
	Targets []string
}

// Table is the resolved form of one or more alias tables. Rules and Entries
// keep input order.
type Table struct {
	Entries []Entry
	Rules   []Rule
}

// Len reports the number of rules.
func (t *Table) Len() int { return len(t.Rules) }

// Lookup returns the targets for pattern.
func (t *Table) Lookup(pattern string) ([]string, bool) {
	for _, r := range t.Rules {
		if r.Pattern == pattern {
			return r.Targets, true
		}
	}
	return nil, false
}

// Resolve expands aliases into rules. Directory targets produce alias/* -> path/*
// (plus alias -> path/index in wildcard_index mode); file targets produce a single
// alias -> path rule.
func Resolve(aliases config.AliasMap, stat StatFunc, mode config.AliasMode) (*Table, error) {
	t := &Table{
		Entries: make([]Entry, 0, len(aliases)),
		Rules:   make([]Rule, 0, len(aliases)),
	}
	for _, a := range aliases {
		name := strings.TrimSuffix(a.Name, "/")
		target := strings.TrimSuffix(filepath.ToSlash(a.Path), "/")

		info, err := stat(target)
		if err != nil {
			if os.IsNotExist(err) {
				err = fmt.Errorf("%w: %s", ErrTargetMissing, target)
			}
			return nil, errors.FileSystemError("cannot resolve alias").WithCause(err).
				WithContext("alias", a.Name).
				WithContext("path", a.Path).
				Build()
		}

		entry := Entry{Name: name, Path: target, IsDir: info.IsDir()}
		t.Entries = append(t.Entries, entry)
		if !entry.IsDir {
			t.Rules = append(t.Rules, Rule{Pattern: name, Targets: []string{target}})
			continue
		}
		t.Rules = append(t.Rules, Rule{Pattern: name + "/*", Targets: []string{target + "/*"}})
		if mode == config.AliasModeWildcardIndex {
			t.Rules = append(t.Rules, Rule{Pattern: name, Targets: []string{target + "/index"}})
		}
	}
	return t, nil
}

// ResolveKind resolves the alias table of one service kind. A kind without
// aliases yields an empty table.
func ResolveKind(p *config.Project, kind config.ServiceKind, stat StatFunc) (*Table, error) {
	return Resolve(p.Aliases.For(kind), stat, p.Orchestrator.AliasMode)
}

// ResolveAll resolves every kind's table and merges them in document order.
// An alias name repeated with the same target and kind is kept once; a name
// repeated with a different target, or as a file in one kind and a directory
// in another, is a validation error. Rule patterns are checked the same way.
func ResolveAll(p *config.Project, stat StatFunc) (*Table, error) {
	merged := &Table{}
	type seenEntry struct {
		entry Entry
		kind  config.ServiceKind
	}
	entries := make(map[string]seenEntry)
	owner := make(map[string]config.ServiceKind)

	for _, ka := range p.Aliases {
		t, err := Resolve(ka.Entries, stat, p.Orchestrator.AliasMode)
		if err != nil {
			return nil, err
		}
		for _, e := range t.Entries {
			prev, ok := entries[e.Name]
			if !ok {
				entries[e.Name] = seenEntry{entry: e, kind: ka.Kind}
				merged.Entries = append(merged.Entries, e)
				continue
			}
			if prev.entry == e {
				continue
			}
			return nil, errors.ValidationError("conflicting aliases across service kinds").
				WithCause(fmt.Errorf("%w: %q is %s in %s and %s in %s",
					ErrCollision, e.Name, describe(prev.entry), prev.kind, describe(e), ka.Kind)).
				WithContext("alias", e.Name).
				Build()
		}
		for _, r := range t.Rules {
			existing, ok := merged.Lookup(r.Pattern)
			if !ok {
				merged.Rules = append(merged.Rules, r)
				owner[r.Pattern] = ka.Kind
				continue
			}
			if slices.Equal(existing, r.Targets) {
				continue
			}
			return nil, errors.ValidationError("conflicting aliases across service kinds").
				WithCause(fmt.Errorf("%w: %q maps to %v in %s and %v in %s",
					ErrCollision, r.Pattern, existing, owner[r.Pattern], r.Targets, ka.Kind)).
				WithContext("pattern", r.Pattern).
				Build()
		}
	}
	return merged, nil
}

func describe(e Entry) string {
	if e.IsDir {
		return "directory " + e.Path
	}
	return "file " + e.Path
}

package watch

import (
	"bufio"
	"bytes"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"git.home.luguber.info/inful/svcbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/svcbuilder/internal/foundation/errors"
)

// Directories that never hold watched sources.
var builtinIgnores = []string{".git/", "node_modules/"}

// Filter decides which paths below the watch root are relevant.
//
// Include and ignore patterns use gitignore syntax, including "**" and "!"
// negation. Paths are slash separated and relative to the root.
type Filter struct {
	include gitignore.Matcher
	ignore  gitignore.Matcher
	roots   []string
}

// NewFilter builds a filter from the watch settings. When gitignore support
// is enabled the root .gitignore is added to the ignore patterns.
func NewFilter(root string, settings config.WatchSettings) (*Filter, error) {
	if len(settings.Paths) == 0 {
		return nil, ferrors.ConfigError("no watch paths configured").Build()
	}

	include := make([]gitignore.Pattern, 0, len(settings.Paths))
	for _, p := range settings.Paths {
		include = append(include, gitignore.ParsePattern(p, nil))
	}

	ignoreLines := slices.Clone(builtinIgnores)
	ignoreLines = append(ignoreLines, settings.Ignore...)
	if settings.GitignoreEnabled() {
		lines, err := readGitignore(filepath.Join(root, ".gitignore"))
		if err != nil {
			return nil, ferrors.FileSystemError("failed to read .gitignore").WithCause(err).Build()
		}
		ignoreLines = append(ignoreLines, lines...)
	}
	ignore := make([]gitignore.Pattern, 0, len(ignoreLines))
	for _, l := range ignoreLines {
		ignore = append(ignore, gitignore.ParsePattern(l, nil))
	}

	return &Filter{
		include: gitignore.NewMatcher(include),
		ignore:  gitignore.NewMatcher(ignore),
		roots:   watchRoots(settings.Paths),
	}, nil
}

func readGitignore(name string) ([]string, error) {
	data, err := os.ReadFile(name) // #nosec G304 -- fixed name below the project root
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, sc.Err()
}

// Roots returns the directories to watch recursively, relative to the root.
func (f *Filter) Roots() []string { return f.roots }

// Match reports whether a change to the file at rel should trigger a rebuild.
func (f *Filter) Match(rel string) bool {
	parts := split(rel)
	if len(parts) == 0 {
		return false
	}
	if f.ignored(parts, false) {
		return false
	}
	return f.include.Match(parts, false)
}

// SkipDir reports whether the directory at rel should not be watched.
func (f *Filter) SkipDir(rel string) bool {
	parts := split(rel)
	if len(parts) == 0 {
		return false
	}
	return f.ignored(parts, true)
}

// ignored also checks every parent directory, since an ignored directory
// hides everything below it.
func (f *Filter) ignored(parts []string, isDir bool) bool {
	for i := 1; i < len(parts); i++ {
		if f.ignore.Match(parts[:i], true) {
			return true
		}
	}
	return f.ignore.Match(parts, isDir)
}

func split(rel string) []string {
	rel = path.Clean(filepath.ToSlash(rel))
	if rel == "." || rel == "/" || strings.HasPrefix(rel, "../") || rel == ".." {
		return nil
	}
	return strings.Split(strings.TrimPrefix(rel, "/"), "/")
}

// watchRoots returns the literal directory prefix of each pattern with
// nested roots removed.
func watchRoots(patterns []string) []string {
	var roots []string
	for _, p := range patterns {
		if strings.HasPrefix(p, "!") {
			continue
		}
		segs := strings.Split(strings.Trim(filepath.ToSlash(p), "/"), "/")
		var lit []string
		for _, s := range segs[:len(segs)-1] {
			if strings.ContainsAny(s, "*?[") {
				break
			}
			lit = append(lit, s)
		}
		root := "."
		if len(lit) > 0 {
			root = strings.Join(lit, "/")
		}
		roots = append(roots, root)
	}
	slices.Sort(roots)
	roots = slices.Compact(roots)

	out := roots[:0]
	for _, r := range roots {
		nested := false
		for _, kept := range out {
			if kept == "." || strings.HasPrefix(r, kept+"/") {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, r)
		}
	}
	return out
}

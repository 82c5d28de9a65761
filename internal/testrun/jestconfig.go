package testrun

import (
	"bytes"
	"encoding/json"
	"path"
	"regexp"

	"git.home.luguber.info/inful/svcbuilder/internal/config"
)

// NamePattern selects the tests of one type by their name prefix.
func NamePattern(tt config.TestType) string {
	return `^\[` + string(tt) + `\]`
}

type kindSettings struct {
	environment string
	testMatch   []string
}

var byKind = map[config.ServiceKind]kindSettings{
	config.KindFrontend: {environment: "jsdom", testMatch: []string{"/**/__tests__/**/*.spec.(ts|tsx)"}},
	config.KindBackend:  {environment: "node", testMatch: []string{"/**/__tests__/**/*.spec.ts"}},
}

type pair struct {
	key   string
	value any
}

// orderedObject marshals its members in insertion order.
type orderedObject []pair

func (o orderedObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := marshal(m.key)
		if err != nil {
			return nil, err
		}
		v, err := marshal(m.value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshal encodes v without HTML escaping so "<rootDir>" stays readable.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// moduleNameMapper maps every alias of kind to its target below <rootDir>,
// keeping the configured alias order.
func moduleNameMapper(p *config.Project, kind config.ServiceKind) orderedObject {
	entries := p.Aliases.For(kind)
	mapper := make(orderedObject, 0, len(entries))
	for _, e := range entries {
		target := path.Clean(e.Path)
		mapper = append(mapper, pair{
			key:   "^" + regexp.QuoteMeta(e.Name) + "(.*)$",
			value: "<rootDir>/" + target + "/$1",
		})
	}
	return mapper
}

// RunnerConfig renders the test runner configuration for one service kind as
// compact JSON suitable for the runner's --config flag.
func RunnerConfig(p *config.Project, kind config.ServiceKind, rootDir string) ([]byte, error) {
	ks, ok := byKind[kind]
	if !ok {
		ks = byKind[config.KindBackend]
	}
	cfg := orderedObject{
		{"globals", orderedObject{
			{"__DEVELOPMENT__", false},
			{"__PRODUCTION__", false},
			{"__TEST__", true},
			{"__TEST_JEST__", true},
		}},
		{"clearMocks", true},
		{"coverageDirectory", "coverage"},
		{"coveragePathIgnorePatterns", []string{"/node_modules/", "/dist/"}},
		{"moduleDirectories", []string{"node_modules"}},
		{"moduleFileExtensions", []string{"js", "ts", "tsx", "json", "node"}},
		{"rootDir", rootDir},
		{"testMatch", ks.testMatch},
		{"transform", orderedObject{
			{`^.+\.ts$`, "ts-jest"},
			{`^.+\.tsx$`, "ts-jest"},
		}},
		{"moduleNameMapper", moduleNameMapper(p, kind)},
		{"testEnvironment", ks.environment},
		{"testPathIgnorePatterns", []string{"<rootDir>/node_modules/", "<rootDir>/dist/"}},
	}

	return marshal(cfg)
}

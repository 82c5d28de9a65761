package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/svcbuilder/internal/foundation/errors"
)

const sampleProject = `name: shop
version: 1.2.0
aliases:
  backend:
    "@server": src/backend/server
    "@db": src/backend/db/index.ts
  frontend:
    "@ui": src/frontend/ui
    "@common": src/common
services:
  - name: api
    service_kind: backend
    subdomain: api.local
  - name: web
    service_kind: Frontend
    build_variant: prod
    subdomain: www.local
`

func writeProject(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParse_ValidProject(t *testing.T) {
	res := Parse(writeProject(t, sampleProject))
	require.True(t, res.Success, "errors: %v", res.Errors)
	p := res.Data

	assert.Equal(t, "shop", p.Name)
	assert.Equal(t, "1.2.0", p.Version)
	require.Len(t, p.Services, 2)
	assert.Equal(t, KindBackend, p.Services[0].Kind)
	assert.Equal(t, KindFrontend, p.Services[1].Kind)
	assert.Equal(t, VariantProduction, p.Services[1].BuildVariant)
	assert.Equal(t, []string{"api", "web"}, p.ServiceNames())
}

func TestParse_AliasOrderPreserved(t *testing.T) {
	res := Parse(writeProject(t, sampleProject))
	require.True(t, res.Success)

	require.Len(t, res.Data.Aliases, 2)
	assert.Equal(t, KindBackend, res.Data.Aliases[0].Kind)
	assert.Equal(t, AliasMap{
		{Name: "@server", Path: "src/backend/server"},
		{Name: "@db", Path: "src/backend/db/index.ts"},
	}, res.Data.Aliases.For(KindBackend))
	assert.Equal(t, "@ui", res.Data.Aliases.For(KindFrontend)[0].Name)
}

func TestParse_DefaultsApplied(t *testing.T) {
	res := Parse(writeProject(t, sampleProject))
	require.True(t, res.Success)
	o := res.Data.Orchestrator

	assert.Equal(t, AliasModeWildcard, o.AliasMode)
	assert.Equal(t, "tsconfig.json", o.PathMappingFile)
	assert.Equal(t, "dist/generated/index.ts", o.DeclarationsFile)
	assert.Equal(t, "node", o.Watch.Runtime)
	assert.Equal(t, "dist/{{.Variant}}/server/main.cjs", o.Watch.Server)
	assert.Equal(t, 300*time.Millisecond, o.Watch.DebounceDuration())
	assert.Equal(t, 5*time.Second, o.Watch.StopGraceDuration())
	assert.True(t, o.Watch.GitignoreEnabled())
	assert.NotEmpty(t, o.Build.Command)
	assert.Equal(t, 2, o.Build.Concurrency)
	assert.Equal(t, []string{"npm", "install", "--omit=dev"}, o.Install.Command)
}

func TestParse_CollectsAllErrors(t *testing.T) {
	content := `name: broken
services:
  - name: api
    service_kind: backend
  - name: api
    service_kind: worker
  - service_kind: frontend
aliases:
  backend:
    "@x": ""
orchestrator:
  alias_mode: everything
  watch:
    debounce: soon
`
	res := Parse(writeProject(t, content))
	require.False(t, res.Success)
	require.Nil(t, res.Data)

	joined := strings.Join(res.Errors, "\n")
	assert.Contains(t, joined, `duplicate service name "api"`)
	assert.Contains(t, joined, "services[1].service_kind")
	assert.Contains(t, joined, "service name is required")
	assert.Contains(t, joined, "alias path is required")
	assert.Contains(t, joined, "orchestrator.alias_mode")
	assert.Contains(t, joined, `invalid duration "soon"`)
}

func TestParse_RejectsZeroDebounceWindows(t *testing.T) {
	res := Parse(writeProject(t, `name: shop
services:
  - name: api
    service_kind: backend
orchestrator:
  watch:
    debounce: 0s
    max_delay: 0ms
    stop_grace: 0s
`))
	require.False(t, res.Success)

	joined := strings.Join(res.Errors, "\n")
	assert.Contains(t, joined, "orchestrator.watch.debounce")
	assert.Contains(t, joined, "orchestrator.watch.max_delay")
	assert.Contains(t, joined, "duration must be positive")
	assert.NotContains(t, joined, "orchestrator.watch.stop_grace")
}

func TestParse_MalformedYAML(t *testing.T) {
	res := Parse(writeProject(t, "services: [\n"))
	require.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "failed to parse config")
}

func TestParse_ExpandsEnvironment(t *testing.T) {
	t.Setenv("SHOP_API_DOMAIN", "api.example.test")
	res := Parse(writeProject(t, `name: shop
services:
  - name: api
    service_kind: backend
    subdomain: ${SHOP_API_DOMAIN}
`))
	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.Equal(t, "api.example.test", res.Data.Services[0].Subdomain)
}

func TestParse_LoadsDotEnvWithoutOverriding(t *testing.T) {
	t.Setenv("SHOP_KEEP", "from-env")
	path := writeProject(t, `name: shop
services:
  - name: api
    service_kind: backend
    subdomain: ${SHOP_DOTENV_ONLY}-${SHOP_KEEP}
`)
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), ".env"),
		[]byte("SHOP_DOTENV_ONLY=dotenv\nSHOP_KEEP=from-file\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("SHOP_DOTENV_ONLY") })

	res := Parse(path)
	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.Equal(t, "dotenv-from-env", res.Data.Services[0].Subdomain)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.CategoryConfig, errors.GetCategory(err))
	assert.Contains(t, err.Error(), "configuration file not found")
}

func TestLoad_InvalidFileCarriesProblems(t *testing.T) {
	_, err := Load(writeProject(t, "services:\n  - name: x\n    service_kind: robot\n"))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	require.NotEmpty(t, pe.Problems)
	assert.Contains(t, pe.Error(), "service_kind")
}

func TestProjectLookups(t *testing.T) {
	p := &Project{Services: []Service{
		{Name: "api", Kind: KindBackend},
		{Name: "web", Kind: KindFrontend},
		{Name: "worker", Kind: KindBackend},
	}}
	assert.Equal(t, []string{"api", "worker"}, p.ServicesOfKind(KindBackend))
	assert.Equal(t, []string{"nope"}, p.UnknownServices([]string{"web", "nope"}))
	_, ok := p.Service("web")
	assert.True(t, ok)
}

func TestAliasesMarshalRoundTripKeepsOrder(t *testing.T) {
	in := Aliases{{Kind: KindFrontend, Entries: AliasMap{{"@z", "src/z"}, {"@a", "src/a"}}}}
	out, err := yaml.Marshal(in)
	require.NoError(t, err)
	assert.Less(t, strings.Index(string(out), "@z"), strings.Index(string(out), "@a"))

	var back Aliases
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, in, back)
}

func TestEnumParsing(t *testing.T) {
	v, err := ParseBuildVariant(" DEV ")
	require.NoError(t, err)
	assert.Equal(t, VariantDevelopment, v)

	_, err = ParseBuildVariant("staging")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "development, production, test")

	m, err := ParseAliasMode("wildcard-index")
	require.NoError(t, err)
	assert.Equal(t, AliasModeWildcardIndex, m)

	tt, err := ParseTestType("Integration")
	require.NoError(t, err)
	assert.Equal(t, TestIntegration, tt)
}

package config

import "time"

const (
	defaultPathMappingFile  = "tsconfig.json"
	defaultDeclarationsFile = "dist/generated/index.ts"
	defaultServerEntry      = "dist/{{.Variant}}/server/main.cjs"
	defaultRuntime          = "node"
	defaultPrepareSource    = "service.config.yaml"
	defaultPrepareOutput    = "dist/service.config.yaml"

	defaultDebounce  = 300 * time.Millisecond
	defaultMaxDelay  = 2 * time.Second
	defaultStopGrace = 5 * time.Second
)

var (
	defaultBuildCommand = []string{
		"npx", "webpack",
		"--config", "webpack.config.cjs",
		"--env", "variant={{.Variant}}",
		"--env", "service={{.Service}}",
	}
	defaultWatchPaths   = []string{"src/backend/**/*.ts", "src/backend/**/*.js"}
	defaultWatchIgnore  = []string{"src/**/*.test.ts"}
	defaultInstallCmd   = []string{"npm", "install", "--omit=dev"}
	defaultTestCmd      = []string{"npx", "jest"}
	defaultPrepareBuild = []string{"svcbuilder", "build", "{{.Variant}}", "--config", "{{.Config}}"}
)

// DefaultApplier applies defaults for one configuration domain.
type DefaultApplier interface {
	ApplyDefaults(p *Project)
	Domain() string
}

type artifactDefaults struct{}

func (artifactDefaults) Domain() string { return "artifacts" }

func (artifactDefaults) ApplyDefaults(p *Project) {
	o := &p.Orchestrator
	if o.AliasMode == "" {
		o.AliasMode = AliasModeWildcard
	}
	if o.PathMappingFile == "" {
		o.PathMappingFile = defaultPathMappingFile
	}
	if o.DeclarationsFile == "" {
		o.DeclarationsFile = defaultDeclarationsFile
	}
}

type buildDefaults struct{}

func (buildDefaults) Domain() string { return "build" }

func (buildDefaults) ApplyDefaults(p *Project) {
	b := &p.Orchestrator.Build
	if len(b.Command) == 0 {
		b.Command = append([]string(nil), defaultBuildCommand...)
	}
	if b.Concurrency <= 0 {
		b.Concurrency = 2
	}
	if len(p.Orchestrator.Install.Command) == 0 {
		p.Orchestrator.Install.Command = append([]string(nil), defaultInstallCmd...)
	}
	if len(p.Orchestrator.Test.Command) == 0 {
		p.Orchestrator.Test.Command = append([]string(nil), defaultTestCmd...)
	}
}

type watchDefaults struct{}

func (watchDefaults) Domain() string { return "watch" }

func (watchDefaults) ApplyDefaults(p *Project) {
	w := &p.Orchestrator.Watch
	if len(w.Paths) == 0 {
		w.Paths = append([]string(nil), defaultWatchPaths...)
	}
	if w.Ignore == nil {
		w.Ignore = append([]string(nil), defaultWatchIgnore...)
	}
	if w.Debounce == "" {
		w.Debounce = defaultDebounce.String()
	}
	if w.MaxDelay == "" {
		w.MaxDelay = defaultMaxDelay.String()
	}
	if w.StopGrace == "" {
		w.StopGrace = defaultStopGrace.String()
	}
	if w.Server == "" {
		w.Server = defaultServerEntry
	}
	if w.Runtime == "" {
		w.Runtime = defaultRuntime
	}
}

type prepareDefaults struct{}

func (prepareDefaults) Domain() string { return "prepare" }

func (prepareDefaults) ApplyDefaults(p *Project) {
	pr := &p.Orchestrator.Prepare
	if pr.ServiceConfig == "" {
		pr.ServiceConfig = defaultPrepareSource
	}
	if pr.Output == "" {
		pr.Output = defaultPrepareOutput
	}
	if len(pr.Build) == 0 {
		pr.Build = append([]string(nil), defaultPrepareBuild...)
	}
}

// defaultAppliers runs in declaration order.
var defaultAppliers = []DefaultApplier{
	artifactDefaults{},
	buildDefaults{},
	watchDefaults{},
	prepareDefaults{},
}

// ApplyDefaults fills every unset orchestrator setting.
func ApplyDefaults(p *Project) {
	for _, a := range defaultAppliers {
		a.ApplyDefaults(p)
	}
}

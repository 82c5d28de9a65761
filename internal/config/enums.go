package config

import (
	"git.home.luguber.info/inful/svcbuilder/internal/foundation"
)

// ServiceKind is the deployment role of a service.
type ServiceKind string

const (
	KindFrontend ServiceKind = "frontend"
	KindBackend  ServiceKind = "backend"
)

// BuildVariant is the target environment profile for a build.
type BuildVariant string

const (
	VariantDevelopment BuildVariant = "development"
	VariantProduction  BuildVariant = "production"
	VariantTest        BuildVariant = "test"
)

// AliasMode selects how directory aliases are expanded into path-mapping rules.
type AliasMode string

const (
	// AliasModeWildcard maps only alias/* to path/*.
	AliasModeWildcard AliasMode = "wildcard"
	// AliasModeWildcardIndex additionally maps the bare alias to path/index.
	AliasModeWildcardIndex AliasMode = "wildcard_index"
)

// TestType selects the test suite run by the test command.
type TestType string

const (
	TestUnit        TestType = "unit"
	TestIntegration TestType = "integration"
)

var (
	serviceKindNormalizer = foundation.NewNormalizer(map[string]ServiceKind{
		"frontend": KindFrontend,
		"backend":  KindBackend,
	}, "", "frontend", "backend")

	buildVariantNormalizer = foundation.NewNormalizer(map[string]BuildVariant{
		"development": VariantDevelopment,
		"dev":         VariantDevelopment,
		"production":  VariantProduction,
		"prod":        VariantProduction,
		"test":        VariantTest,
	}, "", "development", "production", "test")

	aliasModeNormalizer = foundation.NewNormalizer(map[string]AliasMode{
		"wildcard":       AliasModeWildcard,
		"wildcard_index": AliasModeWildcardIndex,
		"wildcard-index": AliasModeWildcardIndex,
	}, AliasModeWildcard, "wildcard", "wildcard_index")

	testTypeNormalizer = foundation.NewNormalizer(map[string]TestType{
		"unit":        TestUnit,
		"integration": TestIntegration,
	}, "", "unit", "integration")
)

// ParseServiceKind normalizes raw into a known service kind.
func ParseServiceKind(raw string) (ServiceKind, error) {
	return serviceKindNormalizer.NormalizeWithError(raw)
}

// ParseBuildVariant normalizes raw into a known build variant ("prod" and "dev" are accepted).
func ParseBuildVariant(raw string) (BuildVariant, error) {
	return buildVariantNormalizer.NormalizeWithError(raw)
}

// ParseAliasMode normalizes raw into an alias mode.
func ParseAliasMode(raw string) (AliasMode, error) {
	return aliasModeNormalizer.NormalizeWithError(raw)
}

// ParseTestType normalizes raw into a test type.
func ParseTestType(raw string) (TestType, error) {
	return testTypeNormalizer.NormalizeWithError(raw)
}

// BuildVariants lists the canonical variant names.
func BuildVariants() []string { return buildVariantNormalizer.Options() }

// TestTypes lists the canonical test type names.
func TestTypes() []string { return testTypeNormalizer.Options() }

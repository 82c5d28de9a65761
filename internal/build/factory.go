package build

import (
	"git.home.luguber.info/inful/svcbuilder/internal/config"
)

// ConfigUnitFactory derives units from the project's service list. A service
// pinned to a build variant only yields a unit for that variant.
type ConfigUnitFactory struct{}

// CreateUnits implements UnitFactory. Units follow project order.
func (ConfigUnitFactory) CreateUnits(p *config.Project, variant config.BuildVariant, names []string) ([]Unit, error) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	var units []Unit
	for _, s := range p.Services {
		if len(want) > 0 && !want[s.Name] {
			continue
		}
		if s.BuildVariant != "" && s.BuildVariant != variant {
			continue
		}
		units = append(units, Unit{
			Service:   s.Name,
			Kind:      s.Kind,
			Variant:   variant,
			Subdomain: s.Subdomain,
		})
	}
	return units, nil
}

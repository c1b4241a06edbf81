package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	pkgconfig "github.com/vanityline/vanityline/pkg/config"
	"github.com/vanityline/vanityline/services/numbers-service/internal/models"
)

type Config struct {
	*pkgconfig.Config
	Plans models.PlanCatalog
}

type plansFile struct {
	Plans []models.Plan `yaml:"plans"`
}

func Load() (*Config, error) {
	base, err := pkgconfig.LoadConfig()
	if err != nil {
		return nil, err
	}

	plans, err := LoadPlans(base.App.PlansPath)
	if err != nil {
		return nil, err
	}

	return &Config{Config: base, Plans: plans}, nil
}

// LoadPlans overlays the plans in path on the default catalog. A missing file keeps the defaults.
func LoadPlans(path string) (models.PlanCatalog, error) {
	catalog := models.DefaultPlanCatalog()
	if path == "" {
		return catalog, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return catalog, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read plans file: %w", err)
	}

	return ParsePlans(data, catalog)
}

func ParsePlans(data []byte, catalog models.PlanCatalog) (models.PlanCatalog, error) {
	var file plansFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse plans file: %w", err)
	}

	for _, p := range file.Plans {
		if p.Name == "" {
			return nil, fmt.Errorf("%w: plan without a name", models.ErrInvalidPlan)
		}
		if base, ok := catalog[p.Name]; ok {
			if p.Currency == "" {
				p.Currency = base.Currency
			}
			if p.Description == "" {
				p.Description = base.Description
			}
		}
		catalog[p.Name] = p
	}

	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	return catalog, nil
}

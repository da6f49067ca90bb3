package services

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/adcraft-ai/adcraft-backend/internal/pkg/logger"
	"github.com/adcraft-ai/adcraft-backend/internal/platform/envutil"
	"github.com/adcraft-ai/adcraft-backend/internal/repos"
	"github.com/adcraft-ai/adcraft-backend/internal/types"
)

// seedTemplate is the YAML shape of one catalog entry.
type seedTemplate struct {
	Title               string   `yaml:"title"`
	Category            string   `yaml:"category"`
	Tags                []string `yaml:"tags"`
	Mood                string   `yaml:"mood"`
	Environment         string   `yaml:"environment"`
	BestForProductTypes []string `yaml:"best_for_product_types"`
	Blueprint           string   `yaml:"blueprint"`
	PlacementHint       string   `yaml:"placement_hint"`
	AspectRatio         string   `yaml:"aspect_ratio"`
	Platform            string   `yaml:"platform"`
}

type seedCatalog struct {
	Templates []seedTemplate `yaml:"templates"`
}

// TemplateCatalog loads the seed template file into the catalog table at
// boot. Upserts by title, so editing the file and restarting updates rows in
// place without duplicating them.
type TemplateCatalog struct {
	log       *logger.Logger
	templates repos.TemplateRepo
}

func NewTemplateCatalog(log *logger.Logger, templates repos.TemplateRepo) *TemplateCatalog {
	return &TemplateCatalog{
		log:       log.With("service", "TemplateCatalog"),
		templates: templates,
	}
}

// LoadSeed reads the configured seed file and upserts every entry. A missing
// file is not an error; deployments may manage the catalog directly.
func (c *TemplateCatalog) LoadSeed(ctx context.Context) error {
	path := envutil.Str("TEMPLATE_SEED_PATH", "config/templates.yaml")
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		c.log.Info("no template seed file, skipping", "path", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read template seed %q: %w", path, err)
	}

	var catalog seedCatalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return fmt.Errorf("parse template seed %q: %w", path, err)
	}

	loaded := 0
	for i, seed := range catalog.Templates {
		if seed.Title == "" || seed.Blueprint == "" {
			return fmt.Errorf("template seed %q entry %d: title and blueprint required", path, i)
		}
		tmpl := &types.AdTemplate{
			Title:               seed.Title,
			Category:            seed.Category,
			Tags:                types.StringsToJSON(seed.Tags),
			Mood:                seed.Mood,
			Environment:         seed.Environment,
			BestForProductTypes: types.StringsToJSON(seed.BestForProductTypes),
			Blueprint:           seed.Blueprint,
			PlacementHint:       seed.PlacementHint,
			AspectRatio:         seed.AspectRatio,
			Platform:            seed.Platform,
		}
		if err := c.templates.UpsertByTitle(ctx, nil, tmpl); err != nil {
			return fmt.Errorf("upsert template %q: %w", seed.Title, err)
		}
		loaded++
	}

	c.log.Info("template seed loaded", "path", path, "templates", loaded)
	return nil
}

package factcheck

import (
	"context"
	"slices"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/factcheck-gateway/internal/models"
	"github.com/feichai0017/factcheck-gateway/pkg/logger"
)

// ModelLister lists the model ids a provider serves.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// Catalog answers which models each provider offers. A provider that
// cannot be reached is reported with its fallback list.
type Catalog struct {
	listers   map[models.ProviderKind]ModelLister
	fallbacks map[models.ProviderKind][]string
	logger    logger.Logger
}

func NewCatalog(listers map[models.ProviderKind]ModelLister, fallbacks map[models.ProviderKind][]string, log logger.Logger) *Catalog {
	return &Catalog{listers: listers, fallbacks: fallbacks, logger: log.Named("catalog")}
}

// Models queries every provider concurrently. It never fails: errors are
// logged and replaced by the fallback list.
func (c *Catalog) Models(ctx context.Context) map[models.ProviderKind][]string {
	result := make(map[models.ProviderKind][]string, len(c.listers))
	found := make([][]string, len(c.listers))
	kinds := lo.Keys(c.listers)
	slices.Sort(kinds)

	var g errgroup.Group
	for i, kind := range kinds {
		g.Go(func() error {
			ids, err := c.listers[kind].ListModels(ctx)
			if err != nil {
				c.logger.Warn("Failed to list models, using fallback",
					logger.String("provider", string(kind)),
					logger.Error(err),
				)
				ids = c.fallbacks[kind]
			}
			found[i] = ids
			return nil
		})
	}
	_ = g.Wait()

	for i, kind := range kinds {
		result[kind] = lo.Uniq(found[i])
	}
	return result
}

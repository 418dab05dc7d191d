package application

import (
	"fmt"

	"github.com/bnema/qr-session-keeper/internal/domain"
)

// Catalog is the ordered set of platform accounts this process tracks.
type Catalog struct {
	order []domain.PlatformID
	byID  map[domain.PlatformID]domain.Platform
}

func NewCatalog(platforms ...domain.Platform) (*Catalog, error) {
	if len(platforms) == 0 {
		platforms = []domain.Platform{domain.DefaultPlatform()}
	}

	catalog := &Catalog{byID: make(map[domain.PlatformID]domain.Platform, len(platforms))}
	for _, platform := range platforms {
		platform.Normalize()
		if err := platform.Validate(); err != nil {
			return nil, fmt.Errorf("platform %q: %w", platform.ID, err)
		}
		if _, exists := catalog.byID[platform.ID]; exists {
			return nil, fmt.Errorf("platform %q is declared twice", platform.ID)
		}

		catalog.order = append(catalog.order, platform.ID)
		catalog.byID[platform.ID] = platform
	}

	return catalog, nil
}

func (c *Catalog) Get(id domain.PlatformID) (domain.Platform, error) {
	platform, ok := c.byID[id]
	if !ok {
		return domain.Platform{}, fmt.Errorf("%w: %q", domain.ErrUnknownPlatform, id)
	}

	return platform, nil
}

// Default is the first declared platform; routes without a platform segment
// resolve to it.
func (c *Catalog) Default() domain.Platform {
	return c.byID[c.order[0]]
}

func (c *Catalog) All() []domain.Platform {
	platforms := make([]domain.Platform, 0, len(c.order))
	for _, id := range c.order {
		platforms = append(platforms, c.byID[id])
	}

	return platforms
}

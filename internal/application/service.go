package application

import (
	"context"
	"fmt"

	"github.com/bnema/qr-session-keeper/internal/domain"
)

// Service answers local status and credential queries without touching a
// browser.
type Service struct {
	catalog *Catalog
	store   *SessionStore
}

func NewService(catalog *Catalog, store *SessionStore) *Service {
	return &Service{catalog: catalog, store: store}
}

func (s *Service) Catalog() *Catalog {
	return s.catalog
}

func (s *Service) GetStatus(ctx context.Context, id domain.PlatformID) (StatusReport, error) {
	if _, err := s.catalog.Get(id); err != nil {
		return StatusReport{}, err
	}

	report, err := s.store.Report(ctx, id)
	if err != nil {
		return StatusReport{}, fmt.Errorf("get status: %w", err)
	}

	return report, nil
}

func (s *Service) GetStatusAll(ctx context.Context) ([]StatusReport, error) {
	platforms := s.catalog.All()
	reports := make([]StatusReport, 0, len(platforms))
	for _, platform := range platforms {
		report, err := s.store.Report(ctx, platform.ID)
		if err != nil {
			return nil, fmt.Errorf("get status for %s: %w", platform.ID, err)
		}
		reports = append(reports, report)
	}

	return reports, nil
}

// GetCookies returns the stored token set as last written by a completed
// login, whatever the record status is now.
func (s *Service) GetCookies(ctx context.Context, id domain.PlatformID) ([]domain.Token, error) {
	if _, err := s.catalog.Get(id); err != nil {
		return nil, err
	}

	tokens, err := s.store.Tokens(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, domain.ErrNoTokens
	}

	return tokens, nil
}

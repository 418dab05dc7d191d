package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/qr-session-keeper/internal/domain"
	"github.com/bnema/qr-session-keeper/internal/ports"
)

// ExtractionStrategy captures a challenge image from a settled login page.
// Attempt returns ErrNoChallengeImage when the strategy found nothing, so the
// next strategy in the chain gets its turn.
type ExtractionStrategy interface {
	Name() string
	Attempt(ctx context.Context, page ports.BrowserSession) ([]byte, error)
}

// DefaultStrategies is the ordered fallback chain for a platform: precise
// selectors, then a scan of inline images, then a fixed region of the page.
func DefaultStrategies(platform domain.Platform) []ExtractionStrategy {
	return []ExtractionStrategy{
		SelectorStrategy{Selectors: platform.QRSelectors},
		HeuristicStrategy{MinSize: 150, Labels: []string{"二维码", "qrcode", "qr code"}},
		RegionStrategy{Width: 300, Height: 300},
	}
}

// ExtractChallenge tries strategies in order and returns the first image
// along with the name of the strategy that produced it.
func ExtractChallenge(ctx context.Context, page ports.BrowserSession, strategies []ExtractionStrategy) ([]byte, string, error) {
	var attemptErrs []error
	for _, strategy := range strategies {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		image, err := strategy.Attempt(ctx, page)
		if err == nil && len(image) > 0 {
			return image, strategy.Name(), nil
		}
		if err != nil && !errors.Is(err, ErrNoChallengeImage) {
			attemptErrs = append(attemptErrs, fmt.Errorf("%s: %w", strategy.Name(), err))
		}
	}

	if len(attemptErrs) > 0 {
		return nil, "", fmt.Errorf("%w: %w", ErrNoChallengeImage, errors.Join(attemptErrs...))
	}

	return nil, "", ErrNoChallengeImage
}

type SelectorStrategy struct {
	Selectors []string
}

func (SelectorStrategy) Name() string { return "selector" }

func (s SelectorStrategy) Attempt(ctx context.Context, page ports.BrowserSession) ([]byte, error) {
	for _, selector := range s.Selectors {
		elements, err := page.QueryAll(ctx, selector)
		if err != nil {
			continue
		}
		for _, element := range elements {
			if image := visibleScreenshot(ctx, element); image != nil {
				return image, nil
			}
		}
	}

	return nil, ErrNoChallengeImage
}

// HeuristicStrategy scans inline data-URL images for one that is labeled as
// a QR code or large enough to be one.
type HeuristicStrategy struct {
	MinSize float64
	Labels  []string
}

func (HeuristicStrategy) Name() string { return "heuristic" }

func (s HeuristicStrategy) Attempt(ctx context.Context, page ports.BrowserSession) ([]byte, error) {
	elements, err := page.QueryAll(ctx, `img[src^="data:image"]`)
	if err != nil {
		return nil, fmt.Errorf("query inline images: %w", err)
	}

	for _, element := range elements {
		if !s.looksLikeChallenge(ctx, element) {
			continue
		}
		if image := visibleScreenshot(ctx, element); image != nil {
			return image, nil
		}
	}

	return nil, ErrNoChallengeImage
}

func (s HeuristicStrategy) looksLikeChallenge(ctx context.Context, element ports.Element) bool {
	if label, err := element.Attribute(ctx, "aria-label"); err == nil && label != "" {
		lowered := strings.ToLower(label)
		for _, want := range s.Labels {
			if strings.Contains(lowered, strings.ToLower(want)) {
				return true
			}
		}
	}

	box, err := element.BoundingBox(ctx)
	if err != nil || box == nil {
		return false
	}

	return box.Width > s.MinSize && box.Height > s.MinSize
}

// RegionStrategy screenshots a fixed box centred in the viewport. It only
// fails when the page cannot be captured at all.
type RegionStrategy struct {
	Width  float64
	Height float64
}

func (RegionStrategy) Name() string { return "region" }

func (s RegionStrategy) Attempt(ctx context.Context, page ports.BrowserSession) ([]byte, error) {
	viewport := page.Viewport()
	if viewport.Width <= 0 || viewport.Height <= 0 {
		return nil, ErrNoChallengeImage
	}

	clip := ports.Rect{
		X:      viewport.Width/2 - s.Width/2,
		Y:      viewport.Height/2 - s.Height/2,
		Width:  s.Width,
		Height: s.Height,
	}

	image, err := page.Screenshot(ctx, clip)
	if err != nil {
		return nil, fmt.Errorf("capture region: %w", err)
	}
	if len(image) == 0 {
		return nil, ErrNoChallengeImage
	}

	return image, nil
}

func visibleScreenshot(ctx context.Context, element ports.Element) []byte {
	visible, err := element.Visible(ctx)
	if err != nil || !visible {
		return nil
	}

	image, err := element.Screenshot(ctx)
	if err != nil || len(image) == 0 {
		return nil
	}

	return image
}

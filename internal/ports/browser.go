package ports

import (
	"context"

	"github.com/bnema/qr-session-keeper/internal/domain"
)

// Profile is the fingerprint a browser session is opened with.
type Profile struct {
	Locale         string
	TimezoneID     string
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
}

type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

type Browser interface {
	Open(ctx context.Context, profile Profile) (BrowserSession, error)
}

// BrowserSession is one isolated browser context with a single page. Every
// blocking method is bounded by the context deadline.
type BrowserSession interface {
	Navigate(ctx context.Context, url string) error
	URL() string
	Cookies(ctx context.Context) ([]domain.Token, error)
	AddCookies(ctx context.Context, tokens []domain.Token) error
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	Screenshot(ctx context.Context, clip Rect) ([]byte, error)
	Viewport() Rect
	Close() error
}

type Element interface {
	Visible(ctx context.Context) (bool, error)
	Attribute(ctx context.Context, name string) (string, error)
	BoundingBox(ctx context.Context) (*Rect, error)
	Screenshot(ctx context.Context) ([]byte, error)
}

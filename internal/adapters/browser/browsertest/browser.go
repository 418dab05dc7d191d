// Package browsertest provides a scripted in-memory browser for tests.
package browsertest

import (
	"context"
	"errors"
	"sync"

	"github.com/bnema/qr-session-keeper/internal/domain"
	"github.com/bnema/qr-session-keeper/internal/ports"
)

var ErrClosed = errors.New("browsertest: page closed")

// Browser hands out a new scripted Page on every Open.
type Browser struct {
	mu      sync.Mutex
	script  func(page *Page)
	OpenErr error
	pages   []*Page
}

var _ ports.Browser = (*Browser)(nil)

// New returns a browser whose pages are prepared by script before they are
// handed out.
func New(script func(page *Page)) *Browser {
	return &Browser{script: script}
}

func (b *Browser) Open(ctx context.Context, profile ports.Profile) (ports.BrowserSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.OpenErr != nil {
		return nil, b.OpenErr
	}

	page := &Page{Profile: profile, Elements: map[string][]*Element{}}
	if b.script != nil {
		b.script(page)
	}
	b.pages = append(b.pages, page)

	return page, nil
}

// Opens counts Open calls that returned a page.
func (b *Browser) Opens() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.pages)
}

func (b *Browser) Pages() []*Page {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]*Page(nil), b.pages...)
}

// Page is one scripted browser session. Exported fields may be set by the
// script before the page is used; afterwards use the hooks.
type Page struct {
	mu sync.Mutex

	Profile  ports.Profile
	Location string
	Jar      []domain.Token
	Elements map[string][]*Element
	// Region is returned for clipped page screenshots.
	Region       []byte
	ViewportRect ports.Rect

	NavigateErr error
	CookiesErr  error
	CloseErr    error

	// Route decides where a navigation lands given the injected tokens.
	// Without it the page lands on the requested URL.
	Route func(url string, injected []domain.Token) string
	// OnPoll runs with the page lock held before each Cookies call returns,
	// with the 1-based call number. It may mutate exported fields directly.
	OnPoll func(page *Page, call int)

	injected    []domain.Token
	navigations []string
	clips       []ports.Rect
	cookieCalls int
	closed      int
}

var _ ports.BrowserSession = (*Page)(nil)

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed > 0 {
		return ErrClosed
	}
	p.navigations = append(p.navigations, url)
	if p.NavigateErr != nil {
		return p.NavigateErr
	}

	p.Location = url
	if p.Route != nil {
		p.Location = p.Route(url, p.injected)
	}

	return nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.Location
}

func (p *Page) Cookies(ctx context.Context) ([]domain.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed > 0 {
		return nil, ErrClosed
	}
	p.cookieCalls++
	if p.OnPoll != nil {
		p.OnPoll(p, p.cookieCalls)
	}
	if p.CookiesErr != nil {
		return nil, p.CookiesErr
	}

	return append([]domain.Token(nil), p.Jar...), nil
}

func (p *Page) AddCookies(ctx context.Context, tokens []domain.Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed > 0 {
		return ErrClosed
	}
	p.injected = append(p.injected, tokens...)
	p.Jar = append(p.Jar, tokens...)

	return nil
}

func (p *Page) QueryAll(ctx context.Context, selector string) ([]ports.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed > 0 {
		return nil, ErrClosed
	}

	elements := make([]ports.Element, 0, len(p.Elements[selector]))
	for _, element := range p.Elements[selector] {
		elements = append(elements, element)
	}

	return elements, nil
}

func (p *Page) Screenshot(ctx context.Context, clip ports.Rect) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed > 0 {
		return nil, ErrClosed
	}
	p.clips = append(p.clips, clip)

	return p.Region, nil
}

func (p *Page) Viewport() ports.Rect {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ViewportRect.Width == 0 && p.ViewportRect.Height == 0 {
		return ports.Rect{Width: float64(p.Profile.ViewportWidth), Height: float64(p.Profile.ViewportHeight)}
	}

	return p.ViewportRect
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed++
	return p.CloseErr
}

// Closed counts Close calls.
func (p *Page) Closed() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.closed
}

func (p *Page) Polls() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.cookieCalls
}

func (p *Page) Injected() []domain.Token {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]domain.Token(nil), p.injected...)
}

func (p *Page) Navigations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]string(nil), p.navigations...)
}

func (p *Page) Clips() []ports.Rect {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]ports.Rect(nil), p.clips...)
}

// Element is a scripted DOM element.
type Element struct {
	Hidden bool
	Label  string
	Box    *ports.Rect
	Image  []byte
}

var _ ports.Element = (*Element)(nil)

func (e *Element) Visible(ctx context.Context) (bool, error) {
	return !e.Hidden, ctx.Err()
}

func (e *Element) Attribute(ctx context.Context, name string) (string, error) {
	if name == "aria-label" {
		return e.Label, ctx.Err()
	}

	return "", ctx.Err()
}

func (e *Element) BoundingBox(ctx context.Context) (*ports.Rect, error) {
	return e.Box, ctx.Err()
}

func (e *Element) Screenshot(ctx context.Context) ([]byte, error) {
	return e.Image, ctx.Err()
}

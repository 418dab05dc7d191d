// Package playwright drives Chromium through playwright-go.
package playwright

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bnema/qr-session-keeper/internal/domain"
	"github.com/bnema/qr-session-keeper/internal/ports"
	pw "github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog"
)

const defaultCallTimeout = 30 * time.Second

var launchArgs = []string{
	"--disable-blink-features=AutomationControlled",
	"--no-sandbox",
	"--disable-setuid-sandbox",
	"--disable-dev-shm-usage",
}

type Options struct {
	Headless bool
	// Install downloads the driver and Chromium on first use.
	Install bool
	// ExecutablePath overrides the bundled Chromium.
	ExecutablePath string
}

// Browser launches Chromium lazily and hands out one isolated browser
// context per Open.
type Browser struct {
	opts   Options
	logger zerolog.Logger

	mu      sync.Mutex
	runtime *pw.Playwright
	browser pw.Browser
}

var _ ports.Browser = (*Browser)(nil)

func New(opts Options, logger zerolog.Logger) *Browser {
	return &Browser{opts: opts, logger: logger}
}

func (b *Browser) Open(ctx context.Context, profile ports.Profile) (ports.BrowserSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	browser, err := b.launch()
	if err != nil {
		return nil, err
	}

	contextOpts := pw.BrowserNewContextOptions{
		Viewport: &pw.Size{Width: profile.ViewportWidth, Height: profile.ViewportHeight},
	}
	if profile.Locale != "" {
		contextOpts.Locale = pw.String(profile.Locale)
	}
	if profile.TimezoneID != "" {
		contextOpts.TimezoneId = pw.String(profile.TimezoneID)
	}
	if profile.UserAgent != "" {
		contextOpts.UserAgent = pw.String(profile.UserAgent)
	}

	browserContext, err := browser.NewContext(contextOpts)
	if err != nil {
		return nil, fmt.Errorf("create browser context: %w", err)
	}

	page, err := browserContext.NewPage()
	if err != nil {
		_ = browserContext.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}
	page.SetDefaultTimeout(timeoutMillis(ctx, defaultCallTimeout))

	return &Session{context: browserContext, page: page}, nil
}

// Close shuts down Chromium and the driver.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var closeErr error
	if b.browser != nil {
		closeErr = b.browser.Close()
		b.browser = nil
	}
	if b.runtime != nil {
		if err := b.runtime.Stop(); err != nil && closeErr == nil {
			closeErr = err
		}
		b.runtime = nil
	}

	return closeErr
}

func (b *Browser) launch() (pw.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil && b.browser.IsConnected() {
		return b.browser, nil
	}

	if b.runtime == nil {
		runOpts := &pw.RunOptions{
			Browsers: []string{"chromium"},
			Verbose:  false,
			Stdout:   io.Discard,
			Stderr:   io.Discard,
		}
		if b.opts.Install {
			if err := pw.Install(runOpts); err != nil {
				return nil, fmt.Errorf("install playwright: %w", err)
			}
		}

		runtime, err := pw.Run(runOpts)
		if err != nil {
			return nil, fmt.Errorf("start playwright: %w", err)
		}
		b.runtime = runtime
	}

	launchOpts := pw.BrowserTypeLaunchOptions{
		Headless: pw.Bool(b.opts.Headless),
		Args:     launchArgs,
	}
	if b.opts.ExecutablePath != "" {
		launchOpts.ExecutablePath = pw.String(b.opts.ExecutablePath)
	}

	browser, err := b.runtime.Chromium.Launch(launchOpts)
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	b.browser = browser
	b.logger.Debug().Bool("headless", b.opts.Headless).Msg("chromium launched")

	return browser, nil
}

// Session is one browser context with a single page.
type Session struct {
	context pw.BrowserContext
	page    pw.Page
}

var _ ports.BrowserSession = (*Session)(nil)

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.page.Goto(url, pw.PageGotoOptions{
		WaitUntil: pw.WaitUntilStateDomcontentloaded,
		Timeout:   pw.Float(timeoutMillis(ctx, defaultCallTimeout)),
	})
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}

	return nil
}

func (s *Session) URL() string {
	return s.page.URL()
}

func (s *Session) Cookies(ctx context.Context) ([]domain.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cookies, err := s.context.Cookies()
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}

	return toTokens(cookies), nil
}

func (s *Session) AddCookies(ctx context.Context, tokens []domain.Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.context.AddCookies(fromTokens(tokens)); err != nil {
		return fmt.Errorf("add cookies: %w", err)
	}

	return nil
}

func (s *Session) QueryAll(ctx context.Context, selector string) ([]ports.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	handles, err := s.page.QuerySelectorAll(selector)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", selector, err)
	}

	elements := make([]ports.Element, 0, len(handles))
	for _, handle := range handles {
		elements = append(elements, &Element{handle: handle})
	}

	return elements, nil
}

func (s *Session) Screenshot(ctx context.Context, clip ports.Rect) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	image, err := s.page.Screenshot(pw.PageScreenshotOptions{
		Clip:    &pw.Rect{X: clip.X, Y: clip.Y, Width: clip.Width, Height: clip.Height},
		Timeout: pw.Float(timeoutMillis(ctx, defaultCallTimeout)),
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot region: %w", err)
	}

	return image, nil
}

func (s *Session) Viewport() ports.Rect {
	size := s.page.ViewportSize()
	if size == nil {
		return ports.Rect{}
	}

	return ports.Rect{Width: float64(size.Width), Height: float64(size.Height)}
}

// Close closes the browser context and with it the page.
func (s *Session) Close() error {
	return s.context.Close()
}

type Element struct {
	handle pw.ElementHandle
}

var _ ports.Element = (*Element)(nil)

func (e *Element) Visible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	return e.handle.IsVisible()
}

func (e *Element) Attribute(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	return e.handle.GetAttribute(name)
}

func (e *Element) BoundingBox(ctx context.Context) (*ports.Rect, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	box, err := e.handle.BoundingBox()
	if err != nil || box == nil {
		return nil, err
	}

	return &ports.Rect{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height}, nil
}

func (e *Element) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return e.handle.Screenshot(pw.ElementHandleScreenshotOptions{
		Timeout: pw.Float(timeoutMillis(ctx, defaultCallTimeout)),
	})
}

func toTokens(cookies []pw.Cookie) []domain.Token {
	tokens := make([]domain.Token, 0, len(cookies))
	for _, cookie := range cookies {
		token := domain.Token{
			Name:     cookie.Name,
			Value:    cookie.Value,
			Domain:   cookie.Domain,
			Path:     cookie.Path,
			Expires:  cookie.Expires,
			HTTPOnly: cookie.HttpOnly,
			Secure:   cookie.Secure,
		}
		if cookie.SameSite != nil {
			token.SameSite = string(*cookie.SameSite)
		}
		tokens = append(tokens, token)
	}

	return tokens
}

func fromTokens(tokens []domain.Token) []pw.OptionalCookie {
	cookies := make([]pw.OptionalCookie, 0, len(tokens))
	for _, token := range tokens {
		path := token.Path
		if path == "" {
			path = "/"
		}

		cookie := pw.OptionalCookie{
			Name:     token.Name,
			Value:    token.Value,
			Domain:   pw.String(token.Domain),
			Path:     pw.String(path),
			HttpOnly: pw.Bool(token.HTTPOnly),
			Secure:   pw.Bool(token.Secure),
		}
		if token.Expires > 0 {
			cookie.Expires = pw.Float(token.Expires)
		}
		if token.SameSite != "" {
			sameSite := pw.SameSiteAttribute(token.SameSite)
			cookie.SameSite = &sameSite
		}
		cookies = append(cookies, cookie)
	}

	return cookies
}

// timeoutMillis converts the time left on ctx into a playwright timeout.
// Without a deadline fallback is used.
func timeoutMillis(ctx context.Context, fallback time.Duration) float64 {
	deadline, ok := ctx.Deadline()
	if !ok {
		return float64(fallback.Milliseconds())
	}

	remaining := time.Until(deadline)
	if remaining < time.Millisecond {
		remaining = time.Millisecond
	}

	return float64(remaining.Milliseconds())
}

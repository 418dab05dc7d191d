package application

import (
	"context"
	"sync"
	"time"

	"github.com/bnema/qr-session-keeper/internal/domain"
	"github.com/bnema/qr-session-keeper/internal/ports"
)

const DefaultPageProbeTimeout = 5 * time.Second

// PageProbe classifies the tab a long-lived browser shows right now. It is
// a read-only look at the remote-debugging endpoint.
type PageProbe struct {
	catalog  *Catalog
	devtools ports.DevTools
	clock    ports.Clock
	timeout  time.Duration

	mu        sync.RWMutex
	cache     map[domain.PlatformID]ProbeResult
	lastSweep time.Time
}

func NewPageProbe(catalog *Catalog, devtools ports.DevTools, clock ports.Clock) *PageProbe {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &PageProbe{
		catalog:  catalog,
		devtools: devtools,
		clock:    clock,
		timeout:  DefaultPageProbeTimeout,
		cache:    map[domain.PlatformID]ProbeResult{},
	}
}

func (p *PageProbe) Check(ctx context.Context, id domain.PlatformID) (ProbeResult, error) {
	platform, err := p.catalog.Get(id)
	if err != nil {
		return ProbeResult{}, err
	}

	result := p.check(ctx, platform)
	p.mu.Lock()
	p.cache[id] = result
	p.mu.Unlock()

	return result, nil
}

func (p *PageProbe) CheckAll(ctx context.Context) []ProbeResult {
	platforms := p.catalog.All()
	results := make([]ProbeResult, len(platforms))

	var wg sync.WaitGroup
	for i, platform := range platforms {
		wg.Add(1)
		go func(i int, platform domain.Platform) {
			defer wg.Done()
			results[i] = p.check(ctx, platform)
		}(i, platform)
	}
	wg.Wait()

	p.mu.Lock()
	for _, result := range results {
		p.cache[result.Platform] = result
	}
	p.lastSweep = p.clock.Now()
	p.mu.Unlock()

	return results
}

// Cached returns the last results and when the last full sweep ran.
func (p *PageProbe) Cached() ([]ProbeResult, time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	results := make([]ProbeResult, 0, len(p.cache))
	for _, platform := range p.catalog.All() {
		if result, ok := p.cache[platform.ID]; ok {
			results = append(results, result)
		}
	}

	return results, p.lastSweep
}

func (p *PageProbe) check(ctx context.Context, platform domain.Platform) ProbeResult {
	result := ProbeResult{Platform: platform.ID, Name: platform.Name, State: PageUnknown}
	if platform.CDPURL == "" {
		result.Message = ErrNoDebugEndpoint.Error()
		return result
	}

	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	pages, err := p.devtools.ListPages(probeCtx, platform.CDPURL)
	if err != nil {
		result.State = PageOffline
		result.Message = err.Error()
		return result
	}
	if len(pages) == 0 {
		result.State = PageOffline
		result.Message = "browser is not running"
		return result
	}

	page, ok := FirstPage(pages)
	if !ok {
		result.Message = ErrNoOpenPage.Error()
		return result
	}

	result.PageURL = page.URL
	result.Title = page.Title
	switch {
	case platform.IsAuthGateway(page.URL):
		result.State = PageOffline
	case platform.IsHomePage(page.URL):
		result.State = PageOnline
	}

	return result
}

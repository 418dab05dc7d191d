package ports

import "context"

type PageTarget struct {
	ID    string
	Type  string
	URL   string
	Title string
}

// DevTools talks to an already running browser over its remote-debugging
// endpoint.
type DevTools interface {
	ListPages(ctx context.Context, endpoint string) ([]PageTarget, error)
	Reload(ctx context.Context, endpoint string, pageID string) error
}

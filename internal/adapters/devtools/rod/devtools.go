// Package rod talks to already running Chromium instances over the Chrome
// DevTools Protocol.
package rod

import (
	"context"
	"fmt"

	"github.com/bnema/qr-session-keeper/internal/ports"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// DevTools connects per call and never closes the remote browser; the
// connection is dropped by cancelling its context.
type DevTools struct {
	resolve func(endpoint string) (string, error)
}

var _ ports.DevTools = (*DevTools)(nil)

func New() *DevTools {
	return &DevTools{resolve: launcher.ResolveURL}
}

func (d *DevTools) ListPages(ctx context.Context, endpoint string) ([]ports.PageTarget, error) {
	browser, disconnect, err := d.connect(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer disconnect()

	result, err := proto.TargetGetTargets{}.Call(browser)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}

	return toPageTargets(result.TargetInfos), nil
}

func (d *DevTools) Reload(ctx context.Context, endpoint string, pageID string) error {
	browser, disconnect, err := d.connect(ctx, endpoint)
	if err != nil {
		return err
	}
	defer disconnect()

	page, err := browser.PageFromTarget(proto.TargetTargetID(pageID))
	if err != nil {
		return fmt.Errorf("attach to page %s: %w", pageID, err)
	}

	if err := (proto.PageReload{}).Call(page); err != nil {
		return fmt.Errorf("reload page %s: %w", pageID, err)
	}

	return nil
}

func (d *DevTools) connect(ctx context.Context, endpoint string) (*rod.Browser, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	controlURL, err := d.resolve(endpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve debugging endpoint %s: %w", endpoint, err)
	}

	connCtx, cancel := context.WithCancel(ctx)
	browser := rod.New().ControlURL(controlURL).NoDefaultDevice().Context(connCtx)
	if err := browser.Connect(); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("connect to %s: %w", endpoint, err)
	}

	return browser, cancel, nil
}

func toPageTargets(infos []*proto.TargetTargetInfo) []ports.PageTarget {
	targets := make([]ports.PageTarget, 0, len(infos))
	for _, info := range infos {
		if info == nil {
			continue
		}
		targets = append(targets, ports.PageTarget{
			ID:    string(info.TargetID),
			Type:  string(info.Type),
			URL:   info.URL,
			Title: info.Title,
		})
	}

	return targets
}

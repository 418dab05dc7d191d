package application

import (
	"context"
	"errors"
	"testing"

	"github.com/bnema/qr-session-keeper/internal/domain"
	"github.com/bnema/qr-session-keeper/internal/ports"
	"github.com/bnema/qr-session-keeper/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageProbeClassifiesOpenTab(t *testing.T) {
	t.Parallel()

	platform := domain.DefaultPlatform()

	testCases := []struct {
		name    string
		pages   []ports.PageTarget
		listErr error
		want    PageState
	}{
		{name: "home page", pages: []ports.PageTarget{{ID: "1", Type: "page", URL: testHomeURL, Title: "Creator"}}, want: PageOnline},
		{name: "login gateway", pages: []ports.PageTarget{{ID: "1", Type: "page", URL: testGateURL}}, want: PageOffline},
		{name: "unrelated page", pages: []ports.PageTarget{{ID: "1", Type: "page", URL: "https://example.com/"}}, want: PageUnknown},
		{name: "no tabs", pages: nil, want: PageOffline},
		{name: "endpoint down", listErr: errors.New("connection refused"), want: PageOffline},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			catalog, err := NewCatalog(platform)
			require.NoError(t, err)

			devtools := mocks.NewMockDevTools(t)
			devtools.EXPECT().ListPages(mockAnyContext(), platform.CDPURL).Return(tc.pages, tc.listErr)

			result, err := NewPageProbe(catalog, devtools, newFixedClock()).Check(context.Background(), platform.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, result.State)
			assert.Equal(t, platform.Name, result.Name)
		})
	}
}

func TestPageProbeCheckAllCachesResults(t *testing.T) {
	t.Parallel()

	noEndpoint := secondPlatform()
	noEndpoint.CDPURL = ""
	catalog, err := NewCatalog(domain.DefaultPlatform(), noEndpoint)
	require.NoError(t, err)

	devtools := mocks.NewMockDevTools(t)
	devtools.EXPECT().ListPages(mockAnyContext(), "http://127.0.0.1:19222").
		Return([]ports.PageTarget{{ID: "1", Type: "page", URL: testHomeURL}}, nil).
		Once()

	clock := newFixedClock()
	probe := NewPageProbe(catalog, devtools, clock)

	cached, last := probe.Cached()
	assert.Empty(t, cached)
	assert.True(t, last.IsZero())

	results := probe.CheckAll(context.Background())
	require.Len(t, results, 2)
	assert.Equal(t, PageOnline, results[0].State)
	assert.Equal(t, PageUnknown, results[1].State)
	assert.Equal(t, ErrNoDebugEndpoint.Error(), results[1].Message)

	cached, last = probe.Cached()
	assert.Equal(t, results, cached)
	assert.Equal(t, clock.Now(), last)
}

func TestPageProbeUnknownPlatform(t *testing.T) {
	t.Parallel()

	catalog, err := NewCatalog()
	require.NoError(t, err)

	_, err = NewPageProbe(catalog, mocks.NewMockDevTools(t), nil).Check(context.Background(), "weibo")
	require.ErrorIs(t, err, domain.ErrUnknownPlatform)
}

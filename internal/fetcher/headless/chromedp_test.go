package headless

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/multisource-scraper/internal/fetcher"
	"github.com/JakeFAU/multisource-scraper/internal/scrape"
)

func TestNewChromedpLimiterValidation(t *testing.T) {
	t.Parallel()

	_, err := NewChromedp(Config{MaxParallel: -1})
	require.Error(t, err)

	renderer, err := NewChromedp(Config{MaxParallel: 2})
	require.NoError(t, err)
	defer renderer.Close()
	require.Equal(t, 2, cap(renderer.limiter))
	require.Equal(t, defaultNavigationTimeout, renderer.cfg.NavigationTimeout)
}

func TestRendererNavTimeoutDefault(t *testing.T) {
	t.Parallel()

	renderer := &Renderer{}
	require.Equal(t, 45*time.Second, renderer.navTimeout())
	renderer.cfg.NavigationTimeout = time.Second
	require.Equal(t, time.Second, renderer.navTimeout())
}

func TestWaitTimeoutDefault(t *testing.T) {
	t.Parallel()

	require.Equal(t, fetcher.DefaultRenderWait, waitTimeout(fetcher.RenderOptions{WaitFor: ".price"}))
	require.Equal(t, 3*time.Second, waitTimeout(fetcher.RenderOptions{Timeout: 3 * time.Second}))
}

func TestAcquireHonorsContext(t *testing.T) {
	t.Parallel()

	renderer := &Renderer{limiter: make(chan struct{}, 1)}
	require.NoError(t, renderer.acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, renderer.acquire(ctx), context.Canceled)

	renderer.release()
	require.NoError(t, renderer.acquire(context.Background()))
}

func TestToNetworkHeaders(t *testing.T) {
	t.Parallel()

	netHeaders := toNetworkHeaders(http.Header{
		"X-Test":  {"a", "b"},
		"X-Token": {"t"},
		"X-Empty": {},
	})
	require.Equal(t, []string{"a", "b"}, netHeaders["X-Test"])
	require.Equal(t, "t", netHeaders["X-Token"])
	require.NotContains(t, netHeaders, "X-Empty")
}

func TestResponseMetaCaptureAndFallbacks(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.captureEvent(&network.EventResponseReceived{
		Type: network.ResourceTypeDocument,
		Response: &network.Response{
			Status:  204,
			URL:     "https://example.com/rendered",
			Headers: network.Headers{"X-Request-ID": "abc"},
		},
	})
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeScript,
		Response: &network.Response{Status: 500, URL: "https://example.com/app.js"},
	})
	status, headers, url := meta.snapshotWithFallbacks("https://req", "")
	require.Equal(t, 204, status)
	require.Equal(t, "abc", headers.Get("X-Request-ID"))
	require.Equal(t, "https://example.com/rendered", url)

	meta = newResponseMeta()
	status, _, url = meta.snapshotWithFallbacks("https://req", "https://final")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "https://final", url)
}

func TestNoopRendererError(t *testing.T) {
	t.Parallel()

	_, err := NewNoop().Render(context.Background(), "https://example.com", fetcher.RenderOptions{})
	require.ErrorIs(t, err, ErrUnavailable)
	var fetchErr *scrape.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, scrape.FetchRender, fetchErr.Kind)
}

package headless

import (
	"context"
	"errors"

	"github.com/JakeFAU/multisource-scraper/internal/fetcher"
)

// ErrUnavailable is wrapped by Noop renders.
var ErrUnavailable = errors.New("headless renderer not configured")

// Noop implements fetcher.Renderer for deployments without Chrome. Every
// render fails.
type Noop struct{}

// NewNoop creates a new Noop renderer.
func NewNoop() *Noop {
	return &Noop{}
}

// Render always fails with a render error wrapping ErrUnavailable.
func (Noop) Render(_ context.Context, url string, _ fetcher.RenderOptions) (fetcher.Response, error) {
	return fetcher.Response{}, renderError(url, ErrUnavailable)
}

package app

import (
	"context"

	"github.com/llehouerou/adspeed/internal/background"
	"github.com/llehouerou/adspeed/internal/cdp"
	"github.com/llehouerou/adspeed/internal/dom"
)

// Host is the attached browser tab.
type Host interface {
	background.Tab
	// Document returns the document currently loaded.
	Document() dom.Document
	// OnNavigate registers fn to run on the loop after a main-frame
	// navigation.
	OnNavigate(fn func())
	Close()
}

// AttachFunc attaches to the browser. post hands page callbacks to the loop.
type AttachFunc func(ctx context.Context, post func(func())) (Host, error)

// Compile-time assertion that the cdp adapter satisfies Host.
var _ Host = cdpHost{}

type cdpHost struct {
	*cdp.Tab
	browser *cdp.Browser
}

func (h cdpHost) Document() dom.Document {
	return h.Tab.Document()
}

func (h cdpHost) Close() {
	h.Tab.Close()
	h.browser.Close()
}

// ChromeAttach launches or connects to Chromium and attaches to the
// configured tab.
func ChromeAttach(opts cdp.Options) AttachFunc {
	return func(ctx context.Context, post func(func())) (Host, error) {
		b, err := cdp.Launch(ctx, opts)
		if err != nil {
			return nil, err
		}
		tab, err := b.Attach(post)
		if err != nil {
			b.Close()
			return nil, err
		}
		return cdpHost{Tab: tab, browser: b}, nil
	}
}

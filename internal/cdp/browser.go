package cdp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/llehouerou/adspeed/internal/log"
)

// Options selects the browser and tab to attach to.
type Options struct {
	// RemoteURL is a DevTools websocket URL of a running browser. When empty
	// a browser is launched.
	RemoteURL string
	// ExecPath overrides the browser binary used when launching.
	ExecPath string
	Headless bool
	// TabMatch selects the first page whose URL contains it.
	TabMatch string
	// StartURL is opened in a new tab when no tab matches.
	StartURL string
	// CallTimeout bounds every page evaluation.
	CallTimeout time.Duration
	// ClickStagger separates the events of a trusted click. Zero uses
	// DefaultClickStagger.
	ClickStagger time.Duration
}

// Browser owns the allocator and browser contexts.
type Browser struct {
	ctx         context.Context
	cancelAlloc context.CancelFunc
	cancel      context.CancelFunc
	opts        Options
}

// Launch starts or connects to the browser.
func Launch(ctx context.Context, opts Options) (*Browser, error) {
	var allocCtx context.Context
	var cancelAlloc context.CancelFunc
	if opts.RemoteURL != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(ctx, opts.RemoteURL)
	} else {
		flags := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.Flag("autoplay-policy", "no-user-gesture-required"),
		)
		if opts.ExecPath != "" {
			flags = append(flags, chromedp.ExecPath(opts.ExecPath))
		}
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(ctx, flags...)
	}

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return &Browser{ctx: browserCtx, cancelAlloc: cancelAlloc, cancel: cancel, opts: opts}, nil
}

// Attach attaches to the tab selected by the options. post receives every
// callback produced by page events.
func (b *Browser) Attach(post func(func())) (*Tab, error) {
	l := log.WithComponent("cdp")
	own := chromedp.FromContext(b.ctx).Target.TargetID

	infos, err := chromedp.Targets(b.ctx)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}

	info := selectTarget(infos, b.opts.TabMatch, own)
	if info == nil && b.opts.StartURL == "" {
		return nil, ErrNoTab
	}

	var tab *Tab
	if info != nil {
		ctx, cancel := chromedp.NewContext(b.ctx, chromedp.WithTargetID(info.TargetID))
		tab = newTab(ctx, cancel, post, b.opts.CallTimeout, b.opts.ClickStagger)
		l.Info().Str(log.FieldTarget, string(info.TargetID)).Str(log.FieldURL, info.URL).Msg("attaching to tab")
	} else {
		ctx, cancel := chromedp.NewContext(b.ctx)
		tab = newTab(ctx, cancel, post, b.opts.CallTimeout, b.opts.ClickStagger)
	}

	if err := tab.install(); err != nil {
		tab.Close()
		return nil, err
	}
	if info == nil {
		l.Info().Str(log.FieldURL, b.opts.StartURL).Msg("opening tab")
		if err := chromedp.Run(tab.ctx, chromedp.Navigate(b.opts.StartURL)); err != nil {
			tab.Close()
			return nil, fmt.Errorf("open %s: %w", b.opts.StartURL, err)
		}
	}
	return tab, nil
}

// Close shuts the browser connection down. A launched browser exits.
func (b *Browser) Close() {
	b.cancel()
	b.cancelAlloc()
}

// selectTarget returns the first page target whose URL contains match,
// skipping the browser's own blank target.
func selectTarget(infos []*target.Info, match string, exclude target.ID) *target.Info {
	for _, info := range infos {
		if info == nil || info.Type != "page" || info.TargetID == exclude {
			continue
		}
		if matches(match, info.URL) {
			return info
		}
	}
	return nil
}

func matches(match, url string) bool {
	return match != "" && strings.Contains(url, match)
}

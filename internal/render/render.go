package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/cardsum/cardsum_service/internal/telemetry"
)

var ErrRenderTimeout = errors.New("render timed out waiting for content")

// RenderError wraps any lower-level browser failure.
type RenderError struct {
	Cause error
}

func (e *RenderError) Error() string { return fmt.Sprintf("render failed: %v", e.Cause) }
func (e *RenderError) Unwrap() error { return e.Cause }

// Renderer rasterizes HTML to PNG with headless Chrome. The browser
// process is shared; every Render call gets its own tab context which is
// torn down on every exit path.
type Renderer struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	timeout     time.Duration
}

func NewRenderer(timeout time.Duration, noSandbox bool) *Renderer {
	opts := chromedp.DefaultExecAllocatorOptions[:]
	if noSandbox {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-setuid-sandbox", true),
		)
	}
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Renderer{allocCtx: allocCtx, allocCancel: cancel, timeout: timeout}
}

func (r *Renderer) Close() {
	r.allocCancel()
}

// Render loads the wrapped HTML into a fresh tab sized to
// {width, heightHint}, waits for content and font readiness, resizes the
// viewport to the measured content height so nothing is clipped or padded,
// and captures a full-page screenshot with a transparent background.
func (r *Renderer) Render(ctx context.Context, html string, width, heightHint int, extraCSS string) ([]byte, error) {
	doc := BuildDocument(html, extraCSS)

	tabCtx, cancelTab := chromedp.NewContext(r.allocCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, r.timeout)
	defer cancelTimeout()

	// the caller's ctx does not own the tab; propagate its cancellation only
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			cancelTab()
		case <-done:
		}
	}()

	log := telemetry.L().With().Str("module", "render").Int("width", width).Logger()
	t0 := time.Now()

	var (
		fontsReady bool
		bodyHeight int
		shot       []byte
	)
	err := chromedp.Run(tabCtx,
		chromedp.EmulateViewport(int64(width), int64(heightHint)),
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, doc).Do(ctx)
		}),
		chromedp.Evaluate(`document.fonts.ready.then(() => true)`, &fontsReady,
			func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
				return p.WithAwaitPromise(true)
			}),
		chromedp.Evaluate(`document.body.scrollHeight`, &bodyHeight),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return chromedp.EmulateViewport(int64(width), int64(bodyHeight)).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			// transparent background so the PNG composes on any surface
			return emulation.SetDefaultBackgroundColorOverride().
				WithColor(&cdp.RGBA{R: 0, G: 0, B: 0, A: 0}).Do(ctx)
		}),
		chromedp.FullScreenshot(&shot, 100),
	)
	if err != nil {
		log.Error().Err(err).Msg("render_failed")
		return nil, mapRenderErr(err)
	}

	log.Info().Int("height", bodyHeight).Int("bytes", len(shot)).
		Int("latency_ms", int(time.Since(t0)/time.Millisecond)).Msg("render_done")
	return shot, nil
}

func mapRenderErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrRenderTimeout
	}
	return &RenderError{Cause: err}
}

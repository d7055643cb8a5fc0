package sleepscreen

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/chromedp/chromedp"

	"github.com/inkfeed/inkfeed/internal/ports"
)

// ChromeEngine rasterizes HTML with a headless Chrome instance driven over
// the DevTools protocol. Chrome availability is only checked when Capture
// runs, so configuring the format on a machine without Chrome fails that
// renderer alone.
type ChromeEngine struct{}

var _ ports.RenderEngine = (*ChromeEngine)(nil)

func NewChromeEngine() *ChromeEngine { return &ChromeEngine{} }

func (e *ChromeEngine) Capture(ctx context.Context, html string, width, height int) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	url := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(html))

	var shot []byte
	err := chromedp.Run(browserCtx,
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.CaptureScreenshot(&shot),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome capture: %w", err)
	}
	return shot, nil
}

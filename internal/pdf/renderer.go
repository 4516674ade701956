// Package pdf prints the invoice page to PDF with headless Chrome.
package pdf

import (
	"context"
	"fmt"
	"html"
	"time"

	"asset-service/internal/models"
	"asset-service/internal/service"
	"asset-service/internal/util"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// A4 page and margins, in inches
const (
	paperWidth   = 8.27
	paperHeight  = 11.69
	marginTop    = 0.98
	marginBottom = 0.71
	marginSide   = 0.71
)

const footerTemplate = `<div style="font-size:10px;color:#999;width:100%;text-align:center;font-family:sans-serif;">` +
	`Page <span class="pageNumber"></span> of <span class="totalPages"></span></div>`

type Renderer struct {
	baseURL    string
	chromePath string
	timeout    time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// NewRenderer creates a renderer for pages served under baseURL.
// chromePath may be empty to let chromedp find the browser.
func NewRenderer(baseURL, chromePath string, timeout time.Duration) *Renderer {
	return &Renderer{
		baseURL:    baseURL,
		chromePath: chromePath,
		timeout:    timeout,
		now:        time.Now,
		logger:     util.GetLogger(),
	}
}

// PageURL is the print view of an invoice
func (r *Renderer) PageURL(invoice *models.Invoice) string {
	return fmt.Sprintf("%s/invoices/%s?print=1", r.baseURL, invoice.ID)
}

func (r *Renderer) headerTemplate(invoice *models.Invoice) string {
	return fmt.Sprintf(`<div style="font-size:10px;color:#666;width:100%%;text-align:right;padding:5px 20px;font-family:sans-serif;">%s — Generated %s</div>`,
		html.EscapeString(invoice.InvoiceNumber), r.now().Format("2006-01-02"))
}

// Render prints the invoice page. The browser process is torn down on
// every return path, including timeout.
func (r *Renderer) Render(ctx context.Context, invoice *models.Invoice) ([]byte, error) {
	ctx, span := util.StartSpan(ctx, "pdf.Render")
	defer span.End()

	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.DisableGPU, chromedp.NoSandbox)
	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var buf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(r.PageURL(invoice)),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			buf, _, err = page.PrintToPDF().
				WithPaperWidth(paperWidth).
				WithPaperHeight(paperHeight).
				WithMarginTop(marginTop).
				WithMarginBottom(marginBottom).
				WithMarginLeft(marginSide).
				WithMarginRight(marginSide).
				WithPrintBackground(true).
				WithDisplayHeaderFooter(true).
				WithHeaderTemplate(r.headerTemplate(invoice)).
				WithFooterTemplate(footerTemplate).
				Do(ctx)
			return err
		}),
	)
	util.PDFRenderDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		util.PDFRenderFailuresTotal.Inc()
		util.RecordError(span, err)
		r.logger.Error("PDF render failed",
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, &service.DependencyError{Op: "render pdf", Err: err}
	}

	r.logger.Info("PDF rendered",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.Int("bytes", len(buf)),
		zap.Duration("elapsed", time.Since(start)))
	return buf, nil
}

package api

import (
	"fmt"
	"net/http"
	"time"

	"asset-service/internal/models"
	"asset-service/internal/service"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func attachment(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}

func (h *Handler) listInvoices(c *gin.Context) {
	invoices, err := h.invoices.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoices)
}

// createInvoice handles invoice creation. A repeated Idempotency-Key
// replays the first invoice with 200 instead of 201.
func (h *Handler) createInvoice(c *gin.Context) {
	var req service.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}
	req.IdempotencyKey = c.GetHeader("Idempotency-Key")

	invoice, replayed, err := h.invoices.Create(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if replayed {
		c.Header("Idempotent-Replayed", "true")
		c.JSON(http.StatusOK, invoice)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

func (h *Handler) getInvoice(c *gin.Context) {
	id, ok := pathID(c, "invoice")
	if !ok {
		return
	}

	invoice, err := h.invoices.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (h *Handler) invoicePDF(c *gin.Context) {
	id, ok := pathID(c, "invoice")
	if !ok {
		return
	}

	invoice, err := h.invoices.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	doc, err := h.renderer.Render(c.Request.Context(), invoice)
	if err != nil {
		h.respondError(c, err)
		return
	}
	attachment(c, invoice.InvoiceNumber+".pdf", "application/pdf", doc)
}

func movementFilter(c *gin.Context) (models.MovementFilter, bool) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return models.MovementFilter{}, false
	}
	return models.MovementFilter{
		Type:   c.Query("type"),
		Action: c.Query("action"),
		Limit:  limit,
	}, true
}

func (h *Handler) listMovements(c *gin.Context) {
	filter, ok := movementFilter(c)
	if !ok {
		return
	}

	movements, err := h.ledger.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, movements)
}

func (h *Handler) exportMovements(c *gin.Context) {
	filter, ok := movementFilter(c)
	if !ok {
		return
	}

	data, err := h.ledger.Export(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	attachment(c, "movements-"+time.Now().UTC().Format("20060102")+".xlsx", xlsxContentType, data)
}

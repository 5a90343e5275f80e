package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/triloka-construction-api/middleware"
	"github.com/kendall-kelly/triloka-construction-api/services"
	"github.com/shopspring/decimal"
)

// InvoiceItemRequest is one line of a manual invoice
type InvoiceItemRequest struct {
	ItemID      *uint           `json:"item_id"`
	ItemName    string          `json:"item_name" binding:"max=255"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit" binding:"max=50"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// CreateInvoiceRequest represents the request body for a manual invoice
type CreateInvoiceRequest struct {
	ClientID         uint                 `json:"client_id" binding:"required"`
	ProjectRequestID *uint                `json:"project_request_id"`
	InvoiceDate      string               `json:"invoice_date" binding:"required"`
	DueDate          string               `json:"due_date" binding:"required"`
	TaxRate          decimal.Decimal      `json:"tax_rate"`
	Discount         decimal.Decimal      `json:"discount"`
	Notes            string               `json:"notes"`
	Items            []InvoiceItemRequest `json:"items" binding:"required,min=1,dive"`
}

// UpdateInvoiceRequest represents the request body for editing an unpaid invoice
type UpdateInvoiceRequest struct {
	InvoiceDate *string `json:"invoice_date"`
	DueDate     *string `json:"due_date"`
	Notes       *string `json:"notes"`
	Status      *string `json:"status" binding:"omitempty,oneof=draft unpaid cancelled"`
}

// FromQuotationRequest names the approved quotation to invoice
type FromQuotationRequest struct {
	QuotationID uint `json:"quotation_id" binding:"required"`
}

// SurveyInvoiceRequest names the project request to bill a survey fee for
type SurveyInvoiceRequest struct {
	ProjectRequestID uint `json:"project_request_id" binding:"required"`
}

// ApplySurveyDiscountRequest optionally names the survey invoice to deduct
type ApplySurveyDiscountRequest struct {
	SurveyInvoiceID uint `json:"survey_invoice_id"`
}

// invoiceFilter reads the invoice listing query parameters, writing a 422 on bad dates
func invoiceFilter(c *gin.Context) (services.InvoiceFilter, bool) {
	fields := map[string]string{}
	filter := services.InvoiceFilter{
		Status:   c.Query("status"),
		Type:     c.Query("invoice_type"),
		Search:   c.Query("search"),
		ClientID: queryUint(c, "client_id"),
		From:     queryDate(c, "date_from", fields),
		To:       queryDate(c, "date_to", fields),
	}
	if respondFieldErrors(c, fields) {
		return filter, false
	}
	return filter, true
}

// ListInvoices handles GET /api/v1/invoices and GET /api/v1/admin/invoices
func ListInvoices(c *gin.Context) {
	filter, ok := invoiceFilter(c)
	if !ok {
		return
	}

	invoices, err := invoiceService().List(middleware.ActorFrom(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, invoices)
}

// ListOverdueInvoices handles GET /api/v1/invoices/status/overdue
func ListOverdueInvoices(c *gin.Context) {
	invoices, err := invoiceService().ListOverdue(middleware.ActorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, invoices)
}

// GetInvoice handles GET /api/v1/invoices/:id
func GetInvoice(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	inv, err := invoiceService().Get(middleware.ActorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, inv)
}

// CreateInvoice handles POST /api/v1/admin/invoices
func CreateInvoice(c *gin.Context) {
	var req CreateInvoiceRequest
	if !bindJSON(c, &req) {
		return
	}

	fields := map[string]string{}
	invoiceDate := parseOptionalDate(&req.InvoiceDate, "invoice_date", fields)
	dueDate := parseOptionalDate(&req.DueDate, "due_date", fields)
	if respondFieldErrors(c, fields) {
		return
	}

	in := services.ManualInvoiceInput{
		ClientID:         req.ClientID,
		ProjectRequestID: req.ProjectRequestID,
		InvoiceDate:      *invoiceDate,
		DueDate:          *dueDate,
		TaxRate:          req.TaxRate,
		Discount:         req.Discount,
		Notes:            req.Notes,
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, services.InvoiceItemInput{
			ItemLine:    services.ItemLine{Quantity: item.Quantity, UnitPrice: item.UnitPrice},
			ItemID:      item.ItemID,
			ItemName:    item.ItemName,
			Description: item.Description,
			Unit:        item.Unit,
		})
	}

	inv, err := invoiceService().CreateManual(middleware.ActorFrom(c), in)
	if err != nil {
		respondError(c, err)
		return
	}

	invalidateDashboard(c)
	respondOK(c, http.StatusCreated, inv)
}

// CreateInvoiceFromQuotation handles POST /api/v1/admin/invoices/from-quotation
func CreateInvoiceFromQuotation(c *gin.Context) {
	var req FromQuotationRequest
	if !bindJSON(c, &req) {
		return
	}

	inv, err := invoiceService().CreateFromQuotation(middleware.ActorFrom(c), req.QuotationID)
	if err != nil {
		respondError(c, err)
		return
	}

	invalidateDashboard(c)
	respondOK(c, http.StatusCreated, inv)
}

// CreateSurveyInvoice handles POST /api/v1/admin/invoices/survey
func CreateSurveyInvoice(c *gin.Context) {
	var req SurveyInvoiceRequest
	if !bindJSON(c, &req) {
		return
	}

	inv, err := invoiceService().CreateSurveyInvoice(middleware.ActorFrom(c), req.ProjectRequestID)
	if err != nil {
		respondError(c, err)
		return
	}

	invalidateDashboard(c)
	respondOK(c, http.StatusCreated, inv)
}

// GetSurveyFeeStatus handles GET /api/v1/admin/project-requests/:id/survey-status
func GetSurveyFeeStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	status, err := invoiceService().SurveyFeeStatus(middleware.ActorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, status)
}

// ApplySurveyDiscount handles POST /api/v1/admin/invoices/:id/apply-survey-discount
func ApplySurveyDiscount(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req ApplySurveyDiscountRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	inv, applied, err := invoiceService().ApplySurveyDiscount(middleware.ActorFrom(c), id, req.SurveyInvoiceID)
	if err != nil {
		respondError(c, err)
		return
	}

	message := "Survey fee discount was already applied or is not applicable"
	if applied {
		message = "Survey fee discount applied"
		invalidateDashboard(c)
	}
	respondMessage(c, message, gin.H{"invoice": inv, "applied": applied})
}

// UpdateInvoice handles PUT /api/v1/admin/invoices/:id
func UpdateInvoice(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req UpdateInvoiceRequest
	if !bindJSON(c, &req) {
		return
	}

	fields := map[string]string{}
	in := services.InvoiceUpdateInput{
		InvoiceDate: parseOptionalDate(req.InvoiceDate, "invoice_date", fields),
		DueDate:     parseOptionalDate(req.DueDate, "due_date", fields),
		Notes:       req.Notes,
		Status:      req.Status,
	}
	if respondFieldErrors(c, fields) {
		return
	}

	inv, err := invoiceService().Update(middleware.ActorFrom(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}

	invalidateDashboard(c)
	respondOK(c, http.StatusOK, inv)
}

// DeleteInvoice handles DELETE /api/v1/admin/invoices/:id
func DeleteInvoice(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := invoiceService().Delete(middleware.ActorFrom(c), id); err != nil {
		respondError(c, err)
		return
	}

	invalidateDashboard(c)
	respondMessage(c, "Invoice deleted successfully", nil)
}

// GetInvoicePayments handles GET /api/v1/invoices/:id/payments
func GetInvoicePayments(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	result, err := paymentService().ByInvoice(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, result)
}

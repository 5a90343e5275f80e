package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/triloka-construction-api/config"
	"github.com/kendall-kelly/triloka-construction-api/middleware"
	"github.com/kendall-kelly/triloka-construction-api/services"
	"github.com/shopspring/decimal"
)

// QuotationItemRequest is one line of a quotation
type QuotationItemRequest struct {
	ItemName    string          `json:"item_name" binding:"required,max=255"`
	Category    string          `json:"category" binding:"max=100"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit" binding:"required,max=50"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Description string          `json:"description"`
}

func (r QuotationItemRequest) input() services.QuotationItemInput {
	return services.QuotationItemInput{
		ItemLine:    services.ItemLine{Quantity: r.Quantity, UnitPrice: r.UnitPrice},
		ItemName:    r.ItemName,
		Category:    r.Category,
		Unit:        r.Unit,
		Description: r.Description,
	}
}

// CreateQuotationRequest represents the request body for drafting a quotation
type CreateQuotationRequest struct {
	ProjectRequestID uint                   `json:"project_request_id" binding:"required"`
	TaxRate          decimal.Decimal        `json:"tax_rate"`
	Discount         decimal.Decimal        `json:"discount"`
	Notes            string                 `json:"notes"`
	ValidUntil       *string                `json:"valid_until"`
	Items            []QuotationItemRequest `json:"items" binding:"required,min=1,dive"`
}

// UpdateQuotationTermsRequest represents the request body for changing quotation terms
type UpdateQuotationTermsRequest struct {
	TaxRate    *decimal.Decimal `json:"tax_rate"`
	Discount   *decimal.Decimal `json:"discount"`
	Notes      *string          `json:"notes"`
	ValidUntil *string          `json:"valid_until"`
}

func quotationService() *services.QuotationService {
	return services.NewQuotationService(config.GetDB())
}

// ListQuotations handles GET /api/v1/quotations and GET /api/v1/admin/quotations
func ListQuotations(c *gin.Context) {
	quotations, err := quotationService().List(middleware.ActorFrom(c), services.QuotationFilter{
		Status:           c.Query("status"),
		ProjectRequestID: queryUint(c, "project_request_id"),
		Search:           c.Query("search"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, quotations)
}

// GetQuotation handles GET /api/v1/quotations/:id
func GetQuotation(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	q, err := quotationService().Get(middleware.ActorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, q)
}

// CreateQuotation handles POST /api/v1/admin/quotations
func CreateQuotation(c *gin.Context) {
	var req CreateQuotationRequest
	if !bindJSON(c, &req) {
		return
	}

	fields := map[string]string{}
	validUntil := parseOptionalDate(req.ValidUntil, "valid_until", fields)
	if respondFieldErrors(c, fields) {
		return
	}

	in := services.QuotationInput{
		ProjectRequestID: req.ProjectRequestID,
		TaxRate:          req.TaxRate,
		Discount:         req.Discount,
		Notes:            req.Notes,
		ValidUntil:       validUntil,
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, item.input())
	}

	q, err := quotationService().Create(middleware.ActorFrom(c), in)
	if err != nil {
		respondError(c, err)
		return
	}

	invalidateDashboard(c)
	respondOK(c, http.StatusCreated, q)
}

// UpdateQuotationTerms handles PUT /api/v1/admin/quotations/:id
func UpdateQuotationTerms(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req UpdateQuotationTermsRequest
	if !bindJSON(c, &req) {
		return
	}

	fields := map[string]string{}
	validUntil := parseOptionalDate(req.ValidUntil, "valid_until", fields)
	if respondFieldErrors(c, fields) {
		return
	}

	q, err := quotationService().UpdateTerms(middleware.ActorFrom(c), id, services.QuotationTermsInput{
		TaxRate:    req.TaxRate,
		Discount:   req.Discount,
		Notes:      req.Notes,
		ValidUntil: validUntil,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, q)
}

// AddQuotationItem handles POST /api/v1/admin/quotations/:id/items
func AddQuotationItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req QuotationItemRequest
	if !bindJSON(c, &req) {
		return
	}

	q, err := quotationService().AddItem(middleware.ActorFrom(c), id, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, q)
}

// UpdateQuotationItem handles PUT /api/v1/admin/quotations/:id/items/:itemId
func UpdateQuotationItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	itemID, ok := parseID(c, "itemId")
	if !ok {
		return
	}

	var req QuotationItemRequest
	if !bindJSON(c, &req) {
		return
	}

	q, err := quotationService().UpdateItem(middleware.ActorFrom(c), id, itemID, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, q)
}

// DeleteQuotationItem handles DELETE /api/v1/admin/quotations/:id/items/:itemId
func DeleteQuotationItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	itemID, ok := parseID(c, "itemId")
	if !ok {
		return
	}

	q, err := quotationService().DeleteItem(middleware.ActorFrom(c), id, itemID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, q)
}

// SendQuotation handles POST /api/v1/admin/quotations/:id/send
func SendQuotation(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	q, err := quotationService().Send(middleware.ActorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	invalidateDashboard(c)
	respondMessage(c, "Quotation sent to client", q)
}

// ApproveQuotation handles POST /api/v1/quotations/:id/approve
func ApproveQuotation(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	q, err := quotationService().Approve(middleware.ActorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	invalidateDashboard(c)
	respondMessage(c, "Quotation approved", q)
}

// RejectQuotation handles POST /api/v1/quotations/:id/reject
func RejectQuotation(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	q, err := quotationService().Reject(middleware.ActorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	invalidateDashboard(c)
	respondMessage(c, "Quotation rejected", q)
}

// DeleteQuotation handles DELETE /api/v1/admin/quotations/:id
func DeleteQuotation(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := quotationService().Delete(middleware.ActorFrom(c), id); err != nil {
		respondError(c, err)
		return
	}

	invalidateDashboard(c)
	respondMessage(c, "Quotation deleted successfully", nil)
}

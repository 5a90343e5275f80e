package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/triloka-construction-api/config"
	"github.com/kendall-kelly/triloka-construction-api/middleware"
	"github.com/kendall-kelly/triloka-construction-api/services"
	"github.com/shopspring/decimal"
)

// CreateNegotiationRequest represents the request body for a counter offer
type CreateNegotiationRequest struct {
	QuotationID   uint            `json:"quotation_id" binding:"required"`
	Message       string          `json:"message" binding:"required"`
	CounterAmount decimal.Decimal `json:"counter_amount"`
}

// ProcessNegotiationRequest carries the admin's notes when answering a counter offer
type ProcessNegotiationRequest struct {
	AdminNotes string `json:"admin_notes"`
}

func negotiationService() *services.NegotiationService {
	return services.NewNegotiationService(config.GetDB())
}

// ListNegotiations handles GET /api/v1/negotiations and GET /api/v1/admin/negotiations
func ListNegotiations(c *gin.Context) {
	negotiations, err := negotiationService().List(middleware.ActorFrom(c), services.NegotiationFilter{
		QuotationID: queryUint(c, "quotation_id"),
		Status:      c.Query("status"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, negotiations)
}

// CreateNegotiation handles POST /api/v1/negotiations
func CreateNegotiation(c *gin.Context) {
	var req CreateNegotiationRequest
	if !bindJSON(c, &req) {
		return
	}

	n, err := negotiationService().Submit(middleware.ActorFrom(c), req.QuotationID, req.Message, req.CounterAmount)
	if err != nil {
		respondError(c, err)
		return
	}

	invalidateDashboard(c)
	respondOK(c, http.StatusCreated, n)
}

// processNegotiation binds the optional notes body; an empty body is allowed
func processNegotiation(c *gin.Context, process func(services.Actor, uint, string) (interface{}, error), message string) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req ProcessNegotiationRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	result, err := process(middleware.ActorFrom(c), id, req.AdminNotes)
	if err != nil {
		respondError(c, err)
		return
	}

	invalidateDashboard(c)
	respondMessage(c, message, result)
}

// AcceptNegotiation handles POST /api/v1/admin/negotiations/:id/accept
func AcceptNegotiation(c *gin.Context) {
	processNegotiation(c, func(actor services.Actor, id uint, notes string) (interface{}, error) {
		return negotiationService().Accept(actor, id, notes)
	}, "Negotiation accepted and quotation revised")
}

// RejectNegotiation handles POST /api/v1/admin/negotiations/:id/reject
func RejectNegotiation(c *gin.Context) {
	processNegotiation(c, func(actor services.Actor, id uint, notes string) (interface{}, error) {
		return negotiationService().Reject(actor, id, notes)
	}, "Negotiation rejected")
}

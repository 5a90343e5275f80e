package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/triloka-construction-api/middleware"
	"github.com/kendall-kelly/triloka-construction-api/services"
	"github.com/shopspring/decimal"
)

// SubmitPaymentRequest holds the form fields of a payment submission (multipart, proof_image optional)
type SubmitPaymentRequest struct {
	InvoiceID     uint   `form:"invoice_id" binding:"required"`
	Amount        string `form:"amount" binding:"required"`
	PaymentDate   string `form:"payment_date" binding:"required"`
	PaymentMethod string `form:"payment_method" binding:"required"`
	Notes         string `form:"notes"`
}

// RejectPaymentRequest carries an optional reason shown to the client
type RejectPaymentRequest struct {
	AdminNotes string `json:"admin_notes" binding:"max=1000"`
}

// ListPayments handles GET /api/v1/payments and GET /api/v1/admin/payments
func ListPayments(c *gin.Context) {
	payments, err := paymentService().List(c.Request.Context(), middleware.ActorFrom(c), services.PaymentFilter{
		Status:        c.Query("status"),
		InvoiceID:     queryUint(c, "invoice_id"),
		PaymentMethod: c.Query("payment_method"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, payments)
}

// GetPayment handles GET /api/v1/payments/:id
func GetPayment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	p, err := paymentService().Get(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, p)
}

// SubmitPayment handles POST /api/v1/payments
func SubmitPayment(c *gin.Context) {
	var req SubmitPaymentRequest
	if !bindForm(c, &req) {
		return
	}

	fields := map[string]string{}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		fields["amount"] = "must be a number"
	}
	paymentDate := parseOptionalDate(&req.PaymentDate, "payment_date", fields)
	if respondFieldErrors(c, fields) {
		return
	}

	proof, err := c.FormFile("proof_image")
	if err != nil {
		if !errors.Is(err, http.ErrMissingFile) {
			respondErrorCode(c, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid request data",
				map[string]string{"proof_image": "could not be read"})
			return
		}
		proof = nil
	}

	p, err := paymentService().Submit(c.Request.Context(), middleware.ActorFrom(c), services.PaymentInput{
		InvoiceID:     req.InvoiceID,
		Amount:        amount,
		PaymentDate:   *paymentDate,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	}, proof)
	if err != nil {
		respondError(c, err)
		return
	}

	invalidateDashboard(c)
	respondOK(c, http.StatusCreated, p)
}

// VerifyPayment handles POST /api/v1/admin/payments/:id/verify
func VerifyPayment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	p, err := paymentService().Verify(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	invalidateDashboard(c)
	respondMessage(c, "Payment verified", p)
}

// RejectPayment handles POST /api/v1/admin/payments/:id/reject
func RejectPayment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req RejectPaymentRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	p, err := paymentService().Reject(c.Request.Context(), middleware.ActorFrom(c), id, req.AdminNotes)
	if err != nil {
		respondError(c, err)
		return
	}

	invalidateDashboard(c)
	respondMessage(c, "Payment rejected", p)
}

// DeletePayment handles DELETE /api/v1/admin/payments/:id?force=true
func DeletePayment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	force, _ := strconv.ParseBool(c.Query("force"))

	if err := paymentService().Delete(c.Request.Context(), middleware.ActorFrom(c), id, force); err != nil {
		respondError(c, err)
		return
	}

	invalidateDashboard(c)
	respondMessage(c, "Payment deleted successfully", nil)
}

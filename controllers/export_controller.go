package controllers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/triloka-construction-api/config"
	"github.com/kendall-kelly/triloka-construction-api/middleware"
	"github.com/kendall-kelly/triloka-construction-api/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func exportService() *services.ExportService {
	return services.NewExportService(config.GetDB())
}

func exportFilename(name, ext string) string {
	return fmt.Sprintf("%s_%s.%s", name, time.Now().Format("2006-01-02_150405"), ext)
}

// sendAttachment writes a fully rendered export so failures can still return a JSON error
func sendAttachment(c *gin.Context, contentType, filename string, body []byte) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, body)
}

// ExportProjectRequestsCSV handles GET /api/v1/admin/exports/project-requests.csv
func ExportProjectRequestsCSV(c *gin.Context) {
	var buf bytes.Buffer
	if err := exportService().WriteRequestsCSV(&buf, middleware.ActorFrom(c), requestFilter(c)); err != nil {
		respondError(c, err)
		return
	}
	sendAttachment(c, "text/csv; charset=utf-8", exportFilename("project_requests", "csv"), buf.Bytes())
}

// ExportInvoicesCSV handles GET /api/v1/admin/exports/invoices.csv
func ExportInvoicesCSV(c *gin.Context) {
	filter, ok := invoiceFilter(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := exportService().WriteInvoicesCSV(&buf, middleware.ActorFrom(c), filter); err != nil {
		respondError(c, err)
		return
	}
	sendAttachment(c, "text/csv; charset=utf-8", exportFilename("invoices", "csv"), buf.Bytes())
}

// ExportInvoicesXLSX handles GET /api/v1/admin/exports/invoices.xlsx
func ExportInvoicesXLSX(c *gin.Context) {
	filter, ok := invoiceFilter(c)
	if !ok {
		return
	}

	f, err := exportService().InvoicesWorkbook(middleware.ActorFrom(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		respondError(c, services.Internal("Failed to write workbook", err))
		return
	}
	sendAttachment(c, xlsxContentType, exportFilename("invoices", "xlsx"), buf.Bytes())
}

// ExportPaymentsCSV handles GET /api/v1/admin/exports/payments.csv
func ExportPaymentsCSV(c *gin.Context) {
	var buf bytes.Buffer
	err := exportService().WritePaymentsCSV(&buf, middleware.ActorFrom(c), services.PaymentFilter{
		Status:        c.Query("status"),
		InvoiceID:     queryUint(c, "invoice_id"),
		PaymentMethod: c.Query("payment_method"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	sendAttachment(c, "text/csv; charset=utf-8", exportFilename("payments", "csv"), buf.Bytes())
}

// PrintInvoice handles GET /api/v1/admin/exports/invoices/:id/print
func PrintInvoice(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := exportService().RenderInvoicePrint(&buf, middleware.ActorFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

package services

import (
	"encoding/csv"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/kendall-kelly/triloka-construction-api/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

var (
	requestCSVHeaders = []string{"Request Number", "Client", "Title", "Type", "Status", "Location", "Budget", "Timeline", "Date Created"}
	invoiceCSVHeaders = []string{"Invoice Number", "Invoice Type", "Client", "Invoice Date", "Due Date", "Subtotal", "Tax", "Discount", "Total", "Status", "Paid At"}
	paymentCSVHeaders = []string{"Payment Number", "Invoice Number", "Client", "Payment Date", "Amount", "Method", "Status", "Verified At"}
)

const invoiceSheet = "Invoices"

// ExportService renders admin exports
type ExportService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewExportService creates an export service
func NewExportService(db *gorm.DB) *ExportService {
	return &ExportService{db: db, now: time.Now}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func clientName(u *models.User) string {
	if u == nil {
		return "-"
	}
	return u.Name
}

func formatOptionalTime(t *time.Time, layout string) string {
	if t == nil {
		return "-"
	}
	return t.Format(layout)
}

func (s *ExportService) requests(filter ProjectRequestFilter) ([]models.ProjectRequest, error) {
	query := s.db.Preload("Client")
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	var requests []models.ProjectRequest
	err := query.Order("created_at DESC, id DESC").Find(&requests).Error
	return requests, err
}

func (s *ExportService) invoices(filter InvoiceFilter) ([]models.Invoice, error) {
	query := s.db.Preload("Client")
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		query = query.Where("invoice_type = ?", filter.Type)
	}
	if filter.From != nil {
		query = query.Where("invoice_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("invoice_date < ?", filter.To.AddDate(0, 0, 1))
	}
	var invoices []models.Invoice
	err := query.Order("invoice_date DESC, id DESC").Find(&invoices).Error
	return invoices, err
}

func invoiceRecord(inv models.Invoice) []string {
	invoiceType := inv.InvoiceType
	if invoiceType == "" {
		invoiceType = models.InvoiceTypeProject
	}
	return []string{
		inv.InvoiceNumber,
		strings.ToUpper(invoiceType[:1]) + invoiceType[1:],
		clientName(inv.Client),
		inv.InvoiceDate.Format("2006-01-02"),
		inv.DueDate.Format("2006-01-02"),
		inv.Subtotal.StringFixed(2),
		inv.Tax.StringFixed(2),
		inv.Discount.StringFixed(2),
		inv.Total.StringFixed(2),
		inv.Status,
		formatOptionalTime(inv.PaidAt, "2006-01-02 15:04:05"),
	}
}

func writeCSV(w io.Writer, headers []string, rows [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(headers); err != nil {
		return err
	}
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return writer.Error()
}

// WriteRequestsCSV writes project requests as CSV
func (s *ExportService) WriteRequestsCSV(w io.Writer, actor Actor, filter ProjectRequestFilter) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	requests, err := s.requests(filter)
	if err != nil {
		return Internal("Failed to load project requests", err)
	}

	rows := make([][]string, 0, len(requests))
	for _, req := range requests {
		budget := "0"
		if req.ExpectedBudget.Valid {
			budget = req.ExpectedBudget.Decimal.StringFixed(2)
		}
		rows = append(rows, []string{
			req.RequestNumber,
			clientName(req.Client),
			req.Title,
			req.Type,
			req.Status,
			orDash(req.Location),
			budget,
			orDash(req.ExpectedTimeline),
			req.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return writeCSV(w, requestCSVHeaders, rows)
}

// WriteInvoicesCSV writes invoices as CSV
func (s *ExportService) WriteInvoicesCSV(w io.Writer, actor Actor, filter InvoiceFilter) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	invoices, err := s.invoices(filter)
	if err != nil {
		return Internal("Failed to load invoices", err)
	}

	rows := make([][]string, 0, len(invoices))
	for _, inv := range invoices {
		rows = append(rows, invoiceRecord(inv))
	}
	return writeCSV(w, invoiceCSVHeaders, rows)
}

// WritePaymentsCSV writes payments as CSV
func (s *ExportService) WritePaymentsCSV(w io.Writer, actor Actor, filter PaymentFilter) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	query := s.db.Preload("Invoice").Preload("Invoice.Client")
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.InvoiceID != 0 {
		query = query.Where("invoice_id = ?", filter.InvoiceID)
	}
	if filter.PaymentMethod != "" {
		query = query.Where("payment_method = ?", filter.PaymentMethod)
	}
	var payments []models.Payment
	if err := query.Order("payment_date DESC, id DESC").Find(&payments).Error; err != nil {
		return Internal("Failed to load payments", err)
	}

	rows := make([][]string, 0, len(payments))
	for _, p := range payments {
		invoiceNumber, client := "-", "-"
		if p.Invoice != nil {
			invoiceNumber = p.Invoice.InvoiceNumber
			client = clientName(p.Invoice.Client)
		}
		rows = append(rows, []string{
			p.PaymentNumber,
			invoiceNumber,
			client,
			p.PaymentDate.Format("2006-01-02"),
			p.Amount.StringFixed(2),
			p.PaymentMethod,
			p.Status,
			formatOptionalTime(p.VerifiedAt, "2006-01-02 15:04:05"),
		})
	}
	return writeCSV(w, paymentCSVHeaders, rows)
}

// InvoicesWorkbook builds an XLSX workbook with the same rows as the invoice CSV
func (s *ExportService) InvoicesWorkbook(actor Actor, filter InvoiceFilter) (*excelize.File, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	invoices, err := s.invoices(filter)
	if err != nil {
		return nil, Internal("Failed to load invoices", err)
	}

	f := excelize.NewFile()
	if _, err := f.NewSheet(invoiceSheet); err != nil {
		return nil, Internal("Failed to build workbook", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, Internal("Failed to build workbook", err)
	}
	if index, err := f.GetSheetIndex(invoiceSheet); err == nil {
		f.SetActiveSheet(index)
	}

	titleStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	_ = f.SetCellValue(invoiceSheet, "A1", "Invoices")
	_ = f.SetCellStyle(invoiceSheet, "A1", "A1", titleStyle)
	_ = f.SetCellValue(invoiceSheet, "A2", "Generated: "+s.now().Format("2006-01-02 15:04:05"))

	const headerRow = 4
	for col, header := range invoiceCSVHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, headerRow)
		_ = f.SetCellValue(invoiceSheet, cell, header)
		_ = f.SetCellStyle(invoiceSheet, cell, cell, headerStyle)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(invoiceCSVHeaders))
	_ = f.SetColWidth(invoiceSheet, "A", lastCol, 18)

	for i, inv := range invoices {
		record := invoiceRecord(inv)
		row := make([]interface{}, len(record))
		for j, v := range record {
			row[j] = v
		}
		// money columns as numbers so the sheet can sum them
		row[5], _ = inv.Subtotal.Float64()
		row[6], _ = inv.Tax.Float64()
		row[7], _ = inv.Discount.Float64()
		row[8], _ = inv.Total.Float64()

		cell, _ := excelize.CoordinatesToCellName(1, headerRow+1+i)
		if err := f.SetSheetRow(invoiceSheet, cell, &row); err != nil {
			return nil, Internal("Failed to build workbook", err)
		}
	}
	return f, nil
}

var invoicePrintTemplate = template.Must(template.New("invoice").Funcs(template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"date":  func(t time.Time) string { return t.Format("02 Jan 2006") },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Invoice {{.InvoiceNumber}}</title>
<style>
body { font-family: Arial, sans-serif; margin: 40px; color: #222; }
table { width: 100%; border-collapse: collapse; margin-top: 16px; }
th, td { border: 1px solid #ccc; padding: 6px 8px; text-align: left; }
td.num, th.num { text-align: right; }
.totals td { border: none; }
.status { text-transform: uppercase; font-weight: bold; }
</style>
</head>
<body>
<h1>INVOICE</h1>
<p><strong>{{.InvoiceNumber}}</strong> <span class="status">{{.Status}}</span></p>
<p>Invoice date: {{date .InvoiceDate}}<br>Due date: {{date .DueDate}}</p>
{{with .Client}}<p>Bill to:<br><strong>{{.Name}}</strong>{{if .CompanyName}}<br>{{.CompanyName}}{{end}}<br>{{.Email}}{{if .Phone}}<br>{{.Phone}}{{end}}{{if .Address}}<br>{{.Address}}{{end}}</p>{{end}}
<table>
<thead><tr><th>Item</th><th class="num">Qty</th><th>Unit</th><th class="num">Unit price</th><th class="num">Subtotal</th></tr></thead>
<tbody>
{{range .Items}}<tr><td>{{.ItemName}}{{if .Description}}<br><small>{{.Description}}</small>{{end}}</td><td class="num">{{.Quantity.String}}</td><td>{{.Unit}}</td><td class="num">{{money .UnitPrice}}</td><td class="num">{{money .Subtotal}}</td></tr>
{{end}}</tbody>
</table>
<table class="totals">
<tr><td class="num">Subtotal</td><td class="num">{{money .Subtotal}}</td></tr>
<tr><td class="num">Tax</td><td class="num">{{money .Tax}}</td></tr>
<tr><td class="num">Discount{{if .SurveyFeeApplied}} (survey fee){{end}}</td><td class="num">-{{money .Discount}}</td></tr>
<tr><td class="num"><strong>Total</strong></td><td class="num"><strong>{{money .Total}}</strong></td></tr>
</table>
{{if .VANumber}}<h3>Payment</h3><p>Virtual account {{.VABank}} {{.VANumber}}{{with .VAExpiresAt}}<br>Valid until {{date .}}{{end}}</p>{{end}}
{{if .Payments}}<h3>Payments</h3>
<table>
<thead><tr><th>Number</th><th>Date</th><th>Method</th><th>Status</th><th class="num">Amount</th></tr></thead>
<tbody>
{{range .Payments}}<tr><td>{{.PaymentNumber}}</td><td>{{date .PaymentDate}}</td><td>{{.PaymentMethod}}</td><td>{{.Status}}</td><td class="num">{{money .Amount}}</td></tr>
{{end}}</tbody>
</table>{{end}}
{{if .Notes}}<p>Notes: {{.Notes}}</p>{{end}}
</body>
</html>
`))

// RenderInvoicePrint writes a printable HTML invoice
func (s *ExportService) RenderInvoicePrint(w io.Writer, actor Actor, invoiceID uint) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	var inv models.Invoice
	err := s.db.Preload("Client").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("payment_date ASC, id ASC") }).
		First(&inv, invoiceID).Error
	if err != nil {
		return notFoundOr(err, "INVOICE_NOT_FOUND", "Invoice not found")
	}

	if err := invoicePrintTemplate.Execute(w, &inv); err != nil {
		return Internal("Failed to render invoice", err)
	}
	return nil
}

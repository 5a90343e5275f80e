package services

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/kendall-kelly/triloka-construction-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	dashboardRecentLimit = 5
	upcomingDueWindow    = 7 * 24 * time.Hour
)

// InvoiceStats counts invoices by status
type InvoiceStats struct {
	Total     int64 `json:"total"`
	Draft     int64 `json:"draft"`
	Unpaid    int64 `json:"unpaid"`
	Paid      int64 `json:"paid"`
	Overdue   int64 `json:"overdue"`
	Cancelled int64 `json:"cancelled"`
}

// PaymentStats counts payments by status
type PaymentStats struct {
	Pending  int64 `json:"pending"`
	Verified int64 `json:"verified"`
	Rejected int64 `json:"rejected"`
}

// RevenueStats sums invoice totals
type RevenueStats struct {
	Paid      decimal.Decimal `json:"paid"`
	Pending   decimal.Decimal `json:"pending"`
	ThisMonth decimal.Decimal `json:"this_month"`
}

// InventoryStats summarises stock
type InventoryStats struct {
	TotalItems  int64 `json:"total_items"`
	ActiveItems int64 `json:"active_items"`
	LowStock    int64 `json:"low_stock"`
}

// AdminSummary is the admin dashboard
type AdminSummary struct {
	Invoices            InvoiceStats     `json:"invoices"`
	Revenue             RevenueStats     `json:"revenue"`
	Payments            PaymentStats     `json:"payments"`
	Inventory           InventoryStats   `json:"inventory"`
	PendingRequests     int64            `json:"pending_requests"`
	PendingNegotiations int64            `json:"pending_negotiations"`
	PendingDocuments    int64            `json:"pending_documents"`
	RecentInvoices      []models.Invoice `json:"recent_invoices"`
	RecentPayments      []models.Payment `json:"recent_payments"`
	UpcomingDue         []models.Invoice `json:"upcoming_due"`
	LowStockItems       []models.Item    `json:"low_stock_items"`
}

// ClientSummary is a client's dashboard
type ClientSummary struct {
	Invoices       InvoiceStats       `json:"invoices"`
	TotalPaid      decimal.Decimal    `json:"total_paid"`
	Outstanding    decimal.Decimal    `json:"outstanding"`
	Payments       PaymentStats       `json:"payments"`
	UpcomingDue    []models.Invoice   `json:"upcoming_due"`
	RecentInvoices []models.Invoice   `json:"recent_invoices"`
	RecentPayments []models.Payment   `json:"recent_payments"`
	OpenQuotations []models.Quotation `json:"open_quotations"`
}

// DashboardService builds cached dashboard summaries
type DashboardService struct {
	db    *gorm.DB
	cache *DashboardCache
	now   func() time.Time
}

// NewDashboardService creates a dashboard service; cache may be nil
func NewDashboardService(db *gorm.DB, cache *DashboardCache) *DashboardService {
	return &DashboardService{db: db, cache: cache, now: time.Now}
}

// Summary returns the admin or client dashboard for user
func (s *DashboardService) Summary(ctx context.Context, user *models.User) (interface{}, error) {
	if user.IsAdmin() {
		var out AdminSummary
		err := s.fetch(ctx, &out, func(context.Context) (interface{}, error) { return s.adminSummary() }, "admin", strconv.FormatUint(uint64(user.ID), 10))
		return &out, err
	}
	var out ClientSummary
	err := s.fetch(ctx, &out, func(context.Context) (interface{}, error) { return s.clientSummary(user.ID) }, "client", strconv.FormatUint(uint64(user.ID), 10))
	return &out, err
}

func (s *DashboardService) fetch(ctx context.Context, dest interface{}, loader func(context.Context) (interface{}, error), parts ...string) error {
	key, err := s.cache.BuildKey(ctx, parts...)
	if err == nil {
		err = s.cache.FetchJSON(ctx, key, dest, loader)
		if err == nil || IsKind(err, KindInternal) {
			return err
		}
	}

	// Cache unavailable: serve straight from the database.
	log.Printf("warning: dashboard cache unavailable: %v", err)
	return NewDashboardCache(nil, 0).FetchJSON(ctx, "", dest, loader)
}

func (s *DashboardService) invoiceStats(scope *gorm.DB) (InvoiceStats, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	if err := scope.Model(&models.Invoice{}).Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return InvoiceStats{}, err
	}

	var stats InvoiceStats
	for _, r := range rows {
		stats.Total += r.Count
		switch r.Status {
		case models.InvoiceStatusDraft:
			stats.Draft = r.Count
		case models.InvoiceStatusUnpaid:
			stats.Unpaid = r.Count
		case models.InvoiceStatusPaid:
			stats.Paid = r.Count
		case models.InvoiceStatusOverdue:
			stats.Overdue = r.Count
		case models.InvoiceStatusCancelled:
			stats.Cancelled = r.Count
		}
	}
	return stats, nil
}

func (s *DashboardService) paymentStats(scope *gorm.DB) (PaymentStats, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	if err := scope.Model(&models.Payment{}).Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return PaymentStats{}, err
	}

	var stats PaymentStats
	for _, r := range rows {
		switch r.Status {
		case models.PaymentStatusPending:
			stats.Pending = r.Count
		case models.PaymentStatusVerified:
			stats.Verified = r.Count
		case models.PaymentStatusRejected:
			stats.Rejected = r.Count
		}
	}
	return stats, nil
}

func sumColumn(query *gorm.DB, column string) (decimal.Decimal, error) {
	var values []decimal.Decimal
	if err := query.Pluck(column, &values).Error; err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum, nil
}

var outstandingStatuses = []string{models.InvoiceStatusUnpaid, models.InvoiceStatusOverdue}

func (s *DashboardService) upcomingDue(scope *gorm.DB, now time.Time) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := scope.Preload("Client").
		Where("status IN ? AND due_date BETWEEN ? AND ?", outstandingStatuses, now, now.Add(upcomingDueWindow)).
		Order("due_date ASC").Limit(dashboardRecentLimit).Find(&invoices).Error
	return invoices, err
}

func (s *DashboardService) adminSummary() (*AdminSummary, error) {
	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	out := &AdminSummary{}

	var err error
	if out.Invoices, err = s.invoiceStats(s.db); err != nil {
		return nil, Internal("Failed to load invoice stats", err)
	}
	if out.Payments, err = s.paymentStats(s.db); err != nil {
		return nil, Internal("Failed to load payment stats", err)
	}

	invoices := func() *gorm.DB { return s.db.Model(&models.Invoice{}) }
	if out.Revenue.Paid, err = sumColumn(invoices().Where("status = ?", models.InvoiceStatusPaid), "total"); err != nil {
		return nil, Internal("Failed to load revenue", err)
	}
	if out.Revenue.Pending, err = sumColumn(invoices().Where("status IN ?", outstandingStatuses), "total"); err != nil {
		return nil, Internal("Failed to load revenue", err)
	}
	if out.Revenue.ThisMonth, err = sumColumn(invoices().Where("status = ? AND paid_at >= ?", models.InvoiceStatusPaid, monthStart), "total"); err != nil {
		return nil, Internal("Failed to load revenue", err)
	}

	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&out.Inventory.TotalItems, s.db.Model(&models.Item{})},
		{&out.Inventory.ActiveItems, s.db.Model(&models.Item{}).Where("is_active = ?", true)},
		{&out.Inventory.LowStock, s.db.Model(&models.Item{}).Where("is_active = ? AND stock_quantity <= min_stock_threshold", true)},
		{&out.PendingRequests, s.db.Model(&models.ProjectRequest{}).Where("status = ?", models.RequestStatusPending)},
		{&out.PendingNegotiations, s.db.Model(&models.Negotiation{}).Where("status = ?", models.NegotiationStatusPending)},
		{&out.PendingDocuments, s.db.Model(&models.RequestDocument{}).Where("verification_status = ?", models.VerificationPending)},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return nil, Internal("Failed to load dashboard counts", err)
		}
	}

	if err := s.db.Preload("Client").Order("created_at DESC, id DESC").Limit(dashboardRecentLimit).Find(&out.RecentInvoices).Error; err != nil {
		return nil, Internal("Failed to load recent invoices", err)
	}
	if err := s.db.Preload("Invoice").Order("created_at DESC, id DESC").Limit(dashboardRecentLimit).Find(&out.RecentPayments).Error; err != nil {
		return nil, Internal("Failed to load recent payments", err)
	}
	if out.UpcomingDue, err = s.upcomingDue(s.db, now); err != nil {
		return nil, Internal("Failed to load upcoming invoices", err)
	}
	if err := s.db.Where("is_active = ? AND stock_quantity <= min_stock_threshold", true).
		Order("stock_quantity ASC").Limit(dashboardRecentLimit).Find(&out.LowStockItems).Error; err != nil {
		return nil, Internal("Failed to load low stock items", err)
	}
	return out, nil
}

func (s *DashboardService) clientSummary(clientID uint) (*ClientSummary, error) {
	now := s.now()
	out := &ClientSummary{}
	own := func() *gorm.DB { return s.db.Where("client_id = ?", clientID) }
	ownInvoiceIDs := s.db.Model(&models.Invoice{}).Select("id").Where("client_id = ?", clientID)
	ownPayments := func() *gorm.DB { return s.db.Where("invoice_id IN (?)", ownInvoiceIDs) }

	var err error
	if out.Invoices, err = s.invoiceStats(own()); err != nil {
		return nil, Internal("Failed to load invoice stats", err)
	}
	if out.Payments, err = s.paymentStats(ownPayments()); err != nil {
		return nil, Internal("Failed to load payment stats", err)
	}
	if out.TotalPaid, err = sumColumn(ownPayments().Model(&models.Payment{}).Where("status = ?", models.PaymentStatusVerified), "amount"); err != nil {
		return nil, Internal("Failed to load payment totals", err)
	}
	if out.Outstanding, err = sumColumn(own().Model(&models.Invoice{}).Where("status IN ?", outstandingStatuses), "total"); err != nil {
		return nil, Internal("Failed to load outstanding balance", err)
	}

	if out.UpcomingDue, err = s.upcomingDue(own(), now); err != nil {
		return nil, Internal("Failed to load upcoming invoices", err)
	}
	if err := own().Order("created_at DESC, id DESC").Limit(dashboardRecentLimit).Find(&out.RecentInvoices).Error; err != nil {
		return nil, Internal("Failed to load recent invoices", err)
	}
	if err := ownPayments().Preload("Invoice").Order("created_at DESC, id DESC").Limit(dashboardRecentLimit).Find(&out.RecentPayments).Error; err != nil {
		return nil, Internal("Failed to load recent payments", err)
	}

	ownRequests := s.db.Model(&models.ProjectRequest{}).Select("id").Where("client_id = ?", clientID)
	if err := s.db.Where("project_request_id IN (?) AND status IN ?", ownRequests,
		[]string{models.QuotationStatusSent, models.QuotationStatusRevised}).
		Order("valid_until ASC").Find(&out.OpenQuotations).Error; err != nil {
		return nil, Internal("Failed to load open quotations", err)
	}
	return out, nil
}

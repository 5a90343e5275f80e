package services

import (
	"testing"
	"time"

	"github.com/kendall-kelly/triloka-construction-api/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoiceCreateFromQuotation(t *testing.T) {
	db := setupTestDB(t)
	admin := createUser(t, db, models.RoleAdmin, "admin@example.com")
	client := createUser(t, db, models.RoleClient, "client@example.com")

	inv := projectInvoice(t, db, admin, client)

	assert.Equal(t, models.InvoiceTypeProject, inv.InvoiceType)
	assert.Equal(t, models.InvoiceStatusUnpaid, inv.Status)
	assert.Equal(t, client.ID, inv.ClientID)
	assert.Regexp(t, `^INV-\d{8}-001$`, inv.InvoiceNumber)
	assertDecimal(t, "250000", inv.Subtotal)
	assertDecimal(t, "25000", inv.Tax)
	assertDecimal(t, "275000", inv.Total)
	assert.Len(t, inv.Items, 2)
	assert.Equal(t, "BCA", inv.VABank)
	assert.Regexp(t, `^BCA\d{10}$`, inv.VANumber)
	require.NotNil(t, inv.VAExpiresAt)
	assert.WithinDuration(t, inv.DueDate, inv.InvoiceDate.Add(ProjectInvoiceTerm), time.Second)
	assert.Equal(t, int64(1), countNotifications(t, db, client.ID, models.NotificationInvoiceIssued))

	// A quotation is billed once
	_, err := NewInvoiceService(db, testInvoiceOptions).CreateFromQuotation(actorOf(admin), *inv.QuotationID)
	requireKind(t, err, KindConflict, "INVOICE_EXISTS")
}

func TestInvoiceCreateFromQuotation_RequiresApproval(t *testing.T) {
	db := setupTestDB(t)
	admin := createUser(t, db, models.RoleAdmin, "admin@example.com")
	client := createUser(t, db, models.RoleClient, "client@example.com")
	q := sendQuotation(t, db, admin, createRequest(t, db, client).ID)

	_, err := NewInvoiceService(db, testInvoiceOptions).CreateFromQuotation(actorOf(admin), q.ID)
	requireKind(t, err, KindRule, "QUOTATION_NOT_APPROVED")

	_, err = NewInvoiceService(db, testInvoiceOptions).CreateFromQuotation(actorOf(client), q.ID)
	requireKind(t, err, KindForbidden, "")
}

func TestInvoiceCreateManual(t *testing.T) {
	db := setupTestDB(t)
	admin := createUser(t, db, models.RoleAdmin, "admin@example.com")
	client := createUser(t, db, models.RoleClient, "client@example.com")
	svc := NewInvoiceService(db, testInvoiceOptions)
	now := time.Now()

	item, err := NewInventoryService(db).Create(actorOf(admin), ItemInput{
		ItemCode: "CEM-01", Name: "Cement 50kg", Unit: "sack",
		StockQuantity: 100, MinStockThreshold: 10, UnitPrice: dec("65000"), IsActive: true,
	})
	require.NoError(t, err)

	inv, err := svc.CreateManual(actorOf(admin), ManualInvoiceInput{
		ClientID:    client.ID,
		InvoiceDate: now,
		DueDate:     now.Add(14 * 24 * time.Hour),
		TaxRate:     dec("11"),
		Discount:    dec("1000"),
		Items: []InvoiceItemInput{
			{ItemLine: ItemLine{Quantity: dec("3"), UnitPrice: dec("65000")}, ItemID: &item.ID},
			{ItemLine: ItemLine{Quantity: dec("1.5"), UnitPrice: dec("10000")}, ItemName: "Delivery", Unit: "trip"},
		},
	})
	require.NoError(t, err)
	assertDecimal(t, "210000", inv.Subtotal)
	assertDecimal(t, "23100", inv.Tax)
	assertDecimal(t, "232100", inv.Total)
	require.Len(t, inv.Items, 2)
	assert.Equal(t, "Cement 50kg", inv.Items[0].ItemName, "name falls back to the inventory item")
	assert.Equal(t, "sack", inv.Items[0].Unit)
	assertDecimal(t, "15000", inv.Items[1].Subtotal)

	tests := []struct {
		name  string
		input ManualInvoiceInput
		field string
	}{
		{"missing client", ManualInvoiceInput{InvoiceDate: now, DueDate: now, Items: []InvoiceItemInput{{ItemLine: ItemLine{Quantity: dec("1"), UnitPrice: dec("1")}, ItemName: "x"}}}, "client_id"},
		{"due before invoice date", ManualInvoiceInput{ClientID: client.ID, InvoiceDate: now, DueDate: now.Add(-time.Hour), Items: []InvoiceItemInput{{ItemLine: ItemLine{Quantity: dec("1"), UnitPrice: dec("1")}, ItemName: "x"}}}, "due_date"},
		{"no items", ManualInvoiceInput{ClientID: client.ID, InvoiceDate: now, DueDate: now}, "items"},
		{"unknown inventory item", ManualInvoiceInput{ClientID: client.ID, InvoiceDate: now, DueDate: now, Items: []InvoiceItemInput{{ItemLine: ItemLine{Quantity: dec("1"), UnitPrice: dec("1")}, ItemID: ptr(uint(999))}}}, "items[0].item_id"},
		{"admin as client", ManualInvoiceInput{ClientID: admin.ID, InvoiceDate: now, DueDate: now, Items: []InvoiceItemInput{{ItemLine: ItemLine{Quantity: dec("1"), UnitPrice: dec("1")}, ItemName: "x"}}}, "client_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateManual(actorOf(admin), tt.input)
			var se *ServiceError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, KindValidation, se.Kind)
			assert.Contains(t, se.Fields, tt.field)
		})
	}
}

func TestInvoiceSurveyFee(t *testing.T) {
	db := setupTestDB(t)
	admin := createUser(t, db, models.RoleAdmin, "admin@example.com")
	client := createUser(t, db, models.RoleClient, "client@example.com")
	req := createRequest(t, db, client)
	svc := NewInvoiceService(db, testInvoiceOptions)

	status, err := svc.SurveyFeeStatus(actorOf(admin), req.ID)
	require.NoError(t, err)
	assert.False(t, status.HasSurveyInvoice)

	survey, err := svc.CreateSurveyInvoice(actorOf(admin), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceTypeSurvey, survey.InvoiceType)
	assertDecimal(t, "50000", survey.Total)
	require.Len(t, survey.Items, 1)
	assert.Equal(t, SurveyItemName, survey.Items[0].ItemName)
	assert.WithinDuration(t, survey.DueDate, survey.InvoiceDate.Add(SurveyInvoiceTerm), time.Second)

	_, err = svc.CreateSurveyInvoice(actorOf(admin), req.ID)
	requireKind(t, err, KindConflict, "SURVEY_INVOICE_EXISTS")

	status, err = svc.SurveyFeeStatus(actorOf(admin), req.ID)
	require.NoError(t, err)
	assert.True(t, status.HasSurveyInvoice)
	assert.False(t, status.IsPaid)
	assert.False(t, status.IsApplied)

	verifyPayment(t, db, admin, submitPayment(t, db, client, survey.ID, "50000").ID)

	status, err = svc.SurveyFeeStatus(actorOf(admin), req.ID)
	require.NoError(t, err)
	assert.True(t, status.IsPaid)

	// Paying a survey invoice does not lock the request
	var stored models.ProjectRequest
	require.NoError(t, db.First(&stored, req.ID).Error)
	assert.Nil(t, stored.LockedAt)
}

func TestInvoiceSurveyDiscount_AppliedOnceFromQuotation(t *testing.T) {
	db := setupTestDB(t)
	admin := createUser(t, db, models.RoleAdmin, "admin@example.com")
	client := createUser(t, db, models.RoleClient, "client@example.com")
	req := createRequest(t, db, client)
	svc := NewInvoiceService(db, testInvoiceOptions)

	survey, err := svc.CreateSurveyInvoice(actorOf(admin), req.ID)
	require.NoError(t, err)
	verifyPayment(t, db, admin, submitPayment(t, db, client, survey.ID, "50000").ID)

	q := sendQuotation(t, db, admin, req.ID)
	_, err = NewQuotationService(db).Approve(actorOf(client), q.ID)
	require.NoError(t, err)

	inv, err := svc.CreateFromQuotation(actorOf(admin), q.ID)
	require.NoError(t, err)
	assert.True(t, inv.SurveyFeeApplied)
	require.NotNil(t, inv.ParentInvoiceID)
	assert.Equal(t, survey.ID, *inv.ParentInvoiceID)
	assertDecimal(t, "50000", inv.Discount)
	assertDecimal(t, "225000", inv.Total)

	// Applying again changes nothing
	again, applied, err := svc.ApplySurveyDiscount(actorOf(admin), inv.ID, 0)
	require.NoError(t, err)
	assert.False(t, applied)
	assertDecimal(t, "225000", again.Total)
	assertDecimal(t, "50000", again.Discount)

	status, err := svc.SurveyFeeStatus(actorOf(admin), req.ID)
	require.NoError(t, err)
	assert.True(t, status.IsApplied)

	err = svc.Delete(actorOf(admin), survey.ID)
	requireKind(t, err, KindRule, "INVOICE_HAS_PAYMENTS")
}

func TestApplySurveyFeeDiscount_NoOps(t *testing.T) {
	db := setupTestDB(t)
	admin := createUser(t, db, models.RoleAdmin, "admin@example.com")
	client := createUser(t, db, models.RoleClient, "client@example.com")
	req := createRequest(t, db, client)
	svc := NewInvoiceService(db, testInvoiceOptions)

	survey, err := svc.CreateSurveyInvoice(actorOf(admin), req.ID)
	require.NoError(t, err)
	target := manualInvoice(t, db, admin, client, time.Now(), time.Now().Add(24*time.Hour))

	applied, err := ApplySurveyFeeDiscount(db, target, survey)
	require.NoError(t, err)
	assert.False(t, applied, "unpaid survey invoice")

	verifyPayment(t, db, admin, submitPayment(t, db, client, survey.ID, "50000").ID)
	paidSurvey := reloadInvoice(t, db, survey.ID)

	applied, err = ApplySurveyFeeDiscount(db, &paidSurvey, &paidSurvey)
	require.NoError(t, err)
	assert.False(t, applied, "survey invoice onto itself")

	applied, err = ApplySurveyFeeDiscount(db, target, &paidSurvey)
	require.NoError(t, err)
	assert.True(t, applied)
	assertDecimal(t, "50000", target.Total)

	applied, err = ApplySurveyFeeDiscount(db, target, &paidSurvey)
	require.NoError(t, err)
	assert.False(t, applied, "already applied")
	assertDecimal(t, "50000", reloadInvoice(t, db, target.ID).Total)
}

func TestApplySurveyDiscount_ClientMismatch(t *testing.T) {
	db := setupTestDB(t)
	admin := createUser(t, db, models.RoleAdmin, "admin@example.com")
	client := createUser(t, db, models.RoleClient, "client@example.com")
	other := createUser(t, db, models.RoleClient, "other@example.com")
	svc := NewInvoiceService(db, testInvoiceOptions)

	survey, err := svc.CreateSurveyInvoice(actorOf(admin), createRequest(t, db, client).ID)
	require.NoError(t, err)
	verifyPayment(t, db, admin, submitPayment(t, db, client, survey.ID, "50000").ID)

	target := manualInvoice(t, db, admin, other, time.Now(), time.Now().Add(24*time.Hour))
	_, _, err = svc.ApplySurveyDiscount(actorOf(admin), target.ID, survey.ID)
	requireKind(t, err, KindRule, "SURVEY_CLIENT_MISMATCH")

	assertDecimal(t, "100000", reloadInvoice(t, db, target.ID).Total)
}

func TestInvoiceMarkOverdue_NotifiesOnce(t *testing.T) {
	db := setupTestDB(t)
	admin := createUser(t, db, models.RoleAdmin, "admin@example.com")
	client := createUser(t, db, models.RoleClient, "client@example.com")
	svc := NewInvoiceService(db, testInvoiceOptions)
	now := time.Now()

	late := manualInvoice(t, db, admin, client, now.Add(-10*24*time.Hour), now.Add(-24*time.Hour))
	manualInvoice(t, db, admin, client, now, now.Add(7*24*time.Hour))

	marked, err := svc.MarkOverdue()
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	marked, err = svc.MarkOverdue()
	require.NoError(t, err)
	assert.Equal(t, 0, marked)

	assert.Equal(t, models.InvoiceStatusOverdue, reloadInvoice(t, db, late.ID).Status)
	assert.Equal(t, int64(1), countNotifications(t, db, client.ID, models.NotificationOverdueAlert))

	overdue, err := svc.ListOverdue(actorOf(client))
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, late.ID, overdue[0].ID)
}

func TestInvoiceUpdateAndDelete(t *testing.T) {
	db := setupTestDB(t)
	admin := createUser(t, db, models.RoleAdmin, "admin@example.com")
	client := createUser(t, db, models.RoleClient, "client@example.com")
	svc := NewInvoiceService(db, testInvoiceOptions)
	now := time.Now()
	inv := manualInvoice(t, db, admin, client, now, now.Add(24*time.Hour))

	notes := "Pay before delivery"
	updated, err := svc.Update(actorOf(admin), inv.ID, InvoiceUpdateInput{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, updated.Notes)

	early := now.Add(-48 * time.Hour)
	_, err = svc.Update(actorOf(admin), inv.ID, InvoiceUpdateInput{DueDate: &early})
	requireKind(t, err, KindValidation, "")

	bad := "paid"
	_, err = svc.Update(actorOf(admin), inv.ID, InvoiceUpdateInput{Status: &bad})
	requireKind(t, err, KindValidation, "")

	verifyPayment(t, db, admin, submitPayment(t, db, client, inv.ID, "100000").ID)
	assert.Equal(t, models.InvoiceStatusPaid, reloadInvoice(t, db, inv.ID).Status)

	_, err = svc.Update(actorOf(admin), inv.ID, InvoiceUpdateInput{Notes: &notes})
	requireKind(t, err, KindRule, "INVOICE_PAID")

	err = svc.Delete(actorOf(admin), inv.ID)
	requireKind(t, err, KindRule, "INVOICE_HAS_PAYMENTS")

	fresh := manualInvoice(t, db, admin, client, now, now.Add(24*time.Hour))
	require.NoError(t, svc.Delete(actorOf(admin), fresh.ID))
	_, err = svc.Get(actorOf(admin), fresh.ID)
	requireKind(t, err, KindNotFound, "INVOICE_NOT_FOUND")
}

func TestInvoiceList_Filters(t *testing.T) {
	db := setupTestDB(t)
	admin := createUser(t, db, models.RoleAdmin, "admin@example.com")
	client := createUser(t, db, models.RoleClient, "client@example.com")
	other := createUser(t, db, models.RoleClient, "other@example.com")
	svc := NewInvoiceService(db, testInvoiceOptions)
	now := time.Now()

	mine := manualInvoice(t, db, admin, client, now, now.Add(24*time.Hour))
	manualInvoice(t, db, admin, other, now.Add(-40*24*time.Hour), now.Add(24*time.Hour))

	list, err := svc.List(actorOf(client), InvoiceFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)

	_, err = svc.Get(actorOf(other), mine.ID)
	requireKind(t, err, KindForbidden, "")

	from := now.Add(-24 * time.Hour)
	list, err = svc.List(actorOf(admin), InvoiceFilter{From: &from})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = svc.List(actorOf(admin), InvoiceFilter{Search: mine.InvoiceNumber})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = svc.List(actorOf(admin), InvoiceFilter{ClientID: other.ID})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestGenerateVANumber(t *testing.T) {
	va := GenerateVANumber("BNI", 12345)
	assert.Regexp(t, `^BNI2345\d{6}$`, va)
	assert.Len(t, GenerateVANumber("BCA", 7), len("BCA")+10)
}

func TestNextNumber_ContinuesDailySequence(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

	first, err := NextNumber(db, &models.Invoice{}, "invoice_number", PrefixInvoice, now)
	require.NoError(t, err)
	assert.Equal(t, "INV-20260309-001", first)

	client := createUser(t, db, models.RoleClient, "client@example.com")
	require.NoError(t, db.Create(&models.Invoice{
		InvoiceNumber: "INV-20260309-041", ClientID: client.ID, InvoiceDate: now, DueDate: now,
		Subtotal: decimal.Zero, Tax: decimal.Zero, Discount: decimal.Zero, Total: decimal.Zero,
		Status: models.InvoiceStatusDraft, InvoiceType: models.InvoiceTypeProject,
	}).Error)

	next, err := NextNumber(db, &models.Invoice{}, "invoice_number", PrefixInvoice, now)
	require.NoError(t, err)
	assert.Equal(t, "INV-20260309-042", next)

	tomorrow, err := NextNumber(db, &models.Invoice{}, "invoice_number", PrefixInvoice, now.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, "INV-20260310-001", tomorrow)
}

func TestNextNumber_PastThreeDigits(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	client := createUser(t, db, models.RoleClient, "client@example.com")

	for _, number := range []string{"INV-20260309-999", "INV-20260309-1000", "INV-20260309-998"} {
		require.NoError(t, db.Create(&models.Invoice{
			InvoiceNumber: number, ClientID: client.ID, InvoiceDate: now, DueDate: now,
			Subtotal: decimal.Zero, Tax: decimal.Zero, Discount: decimal.Zero, Total: decimal.Zero,
			Status: models.InvoiceStatusDraft, InvoiceType: models.InvoiceTypeProject,
		}).Error)
	}

	next, err := NextNumber(db, &models.Invoice{}, "invoice_number", PrefixInvoice, now)
	require.NoError(t, err)
	assert.Equal(t, "INV-20260309-1001", next)
}

func ptr[T any](v T) *T {
	return &v
}

package services

import (
	"testing"
	"time"

	"github.com/kendall-kelly/triloka-construction-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNegotiationSubmit(t *testing.T) {
	db := setupTestDB(t)
	admin := createUser(t, db, models.RoleAdmin, "admin@example.com")
	client := createUser(t, db, models.RoleClient, "client@example.com")
	other := createUser(t, db, models.RoleClient, "other@example.com")
	req := createRequest(t, db, client)
	svc := NewNegotiationService(db)

	draft := createQuotation(t, db, admin, req.ID)
	_, err := svc.Submit(actorOf(client), draft.ID, "Too expensive", dec("200000"))
	requireKind(t, err, KindRule, "QUOTATION_NOT_OPEN")

	q, err := NewQuotationService(db).Send(actorOf(admin), draft.ID)
	require.NoError(t, err)

	_, err = svc.Submit(actorOf(client), q.ID, "", dec("0"))
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, KindValidation, se.Kind)
	assert.Contains(t, se.Fields, "message")
	assert.Contains(t, se.Fields, "counter_amount")

	_, err = svc.Submit(actorOf(other), q.ID, "Can I have it?", dec("1"))
	requireKind(t, err, KindForbidden, "")

	n, err := svc.Submit(actorOf(client), q.ID, "Can we do 250k?", dec("250000"))
	require.NoError(t, err)
	assert.Equal(t, models.NegotiationStatusPending, n.Status)
	assert.Equal(t, models.RoleClient, n.SenderType)
	assert.Equal(t, int64(1), countNotifications(t, db, admin.ID, models.NotificationNewNegotiation))

	var stored models.ProjectRequest
	require.NoError(t, db.First(&stored, req.ID).Error)
	assert.Equal(t, models.RequestStatusNegotiating, stored.Status)
}

func TestNegotiationAccept_RevisesQuotation(t *testing.T) {
	db := setupTestDB(t)
	admin := createUser(t, db, models.RoleAdmin, "admin@example.com")
	client := createUser(t, db, models.RoleClient, "client@example.com")
	req := createRequest(t, db, client)
	q := sendQuotation(t, db, admin, req.ID)
	svc := NewNegotiationService(db)

	n, err := svc.Submit(actorOf(client), q.ID, "Can we do 250k?", dec("250000"))
	require.NoError(t, err)

	_, err = svc.Accept(actorOf(client), n.ID, "")
	requireKind(t, err, KindForbidden, "")

	accepted, err := svc.Accept(actorOf(admin), n.ID, "Agreed")
	require.NoError(t, err)
	assert.Equal(t, models.NegotiationStatusAccepted, accepted.Status)
	assert.Equal(t, "Agreed", accepted.AdminNotes)
	require.NotNil(t, accepted.ProcessedBy)
	assert.Equal(t, admin.ID, *accepted.ProcessedBy)

	revised, err := NewQuotationService(db).Get(actorOf(admin), q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuotationStatusRevised, revised.Status)
	assert.Equal(t, 2, revised.Version)
	assertDecimal(t, "250000", revised.Total)
	assert.True(t, revised.Total.Equal(revised.Subtotal.Add(revised.Tax).Sub(revised.Discount)))
	assert.Equal(t, int64(1), countNotifications(t, db, client.ID, models.NotificationNegotiationAccepted))

	// A negotiation can only be processed once
	_, err = svc.Accept(actorOf(admin), n.ID, "")
	requireKind(t, err, KindRule, "NEGOTIATION_ALREADY_PROCESSED")
	_, err = svc.Reject(actorOf(admin), n.ID, "")
	requireKind(t, err, KindRule, "NEGOTIATION_ALREADY_PROCESSED")

	// The revised quotation can still be approved by the client
	approved, err := NewQuotationService(db).Approve(actorOf(client), q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuotationStatusApproved, approved.Status)
}

func TestNegotiationReject_LeavesQuotation(t *testing.T) {
	db := setupTestDB(t)
	admin := createUser(t, db, models.RoleAdmin, "admin@example.com")
	client := createUser(t, db, models.RoleClient, "client@example.com")
	req := createRequest(t, db, client)
	q := sendQuotation(t, db, admin, req.ID)
	svc := NewNegotiationService(db)

	n, err := svc.Submit(actorOf(client), q.ID, "Half price?", dec("137500"))
	require.NoError(t, err)

	rejected, err := svc.Reject(actorOf(admin), n.ID, "Materials went up")
	require.NoError(t, err)
	assert.Equal(t, models.NegotiationStatusRejected, rejected.Status)

	stored, err := NewQuotationService(db).Get(actorOf(admin), q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuotationStatusSent, stored.Status)
	assert.Equal(t, 1, stored.Version)
	assertDecimal(t, "275000", stored.Total)
	assert.Equal(t, int64(1), countNotifications(t, db, client.ID, models.NotificationNegotiationRejected))
}

func TestNegotiationList_ScopedToClient(t *testing.T) {
	db := setupTestDB(t)
	admin := createUser(t, db, models.RoleAdmin, "admin@example.com")
	client := createUser(t, db, models.RoleClient, "client@example.com")
	other := createUser(t, db, models.RoleClient, "other@example.com")
	q := sendQuotation(t, db, admin, createRequest(t, db, client).ID)
	svc := NewNegotiationService(db)

	_, err := svc.Submit(actorOf(client), q.ID, "Counter", dec("260000"))
	require.NoError(t, err)

	mine, err := svc.List(actorOf(client), NegotiationFilter{})
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	theirs, err := svc.List(actorOf(other), NegotiationFilter{})
	require.NoError(t, err)
	assert.Empty(t, theirs)

	pending, err := svc.List(actorOf(admin), NegotiationFilter{QuotationID: q.ID, Status: models.NegotiationStatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestNegotiationSubmit_LapsedQuotationExpires(t *testing.T) {
	db := setupTestDB(t)
	admin := createUser(t, db, models.RoleAdmin, "admin@example.com")
	client := createUser(t, db, models.RoleClient, "client@example.com")
	req := createRequest(t, db, client)
	q := sendQuotation(t, db, admin, req.ID)
	svc := NewNegotiationService(db)

	require.NoError(t, db.Model(&models.Quotation{}).Where("id = ?", q.ID).
		Update("valid_until", time.Now().Add(-time.Minute)).Error)

	_, err := svc.Submit(actorOf(client), q.ID, "Still interested", dec("200000"))
	requireKind(t, err, KindRule, "QUOTATION_EXPIRED")

	var stored models.Quotation
	require.NoError(t, db.First(&stored, q.ID).Error)
	assert.Equal(t, models.QuotationStatusExpired, stored.Status)

	_, err = svc.Submit(actorOf(client), q.ID, "Still interested", dec("200000"))
	requireKind(t, err, KindRule, "QUOTATION_NOT_OPEN")
}

package models

// EntityKind names the record type an EntityRef points at
type EntityKind string

const (
	EntityUser            EntityKind = "user"
	EntityProjectRequest  EntityKind = "project_request"
	EntityRequestDocument EntityKind = "request_document"
	EntityQuotation       EntityKind = "quotation"
	EntityNegotiation     EntityKind = "negotiation"
	EntityInvoice         EntityKind = "invoice"
	EntityPayment         EntityKind = "payment"
	EntityItem            EntityKind = "item"
)

// EntityRef is a typed reference to another record, stored as entity_kind + entity_id
type EntityRef struct {
	EntityKind EntityKind `gorm:"size:40;index" json:"kind,omitempty"`
	EntityID   *uint      `gorm:"index" json:"id,omitempty"`
}

// Ref builds a reference to the record of the given kind
func Ref(kind EntityKind, id uint) EntityRef {
	return EntityRef{EntityKind: kind, EntityID: &id}
}

// IsZero reports whether the reference points at nothing
func (r EntityRef) IsZero() bool {
	return r.EntityKind == "" || r.EntityID == nil
}

package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// OriginType tags what a payment order pays for.
type OriginType string

// Origin types.
const (
	OriginIndividual OriginType = "INDIVIDUAL"
	OriginList       OriginType = "LIST"
)

// Origin identifies the enrollment or list a payment order settles.
// Build it with IndividualOrigin or ListOrigin.
type Origin struct {
	Type OriginType `json:"type"`
	ID   string     `json:"id"`
}

// IndividualOrigin references a single enrollment.
func IndividualOrigin(enrollmentID string) Origin {
	return Origin{Type: OriginIndividual, ID: enrollmentID}
}

// ListOrigin references an enrollment list.
func ListOrigin(listID string) Origin {
	return Origin{Type: OriginList, ID: listID}
}

// ParseOrigin builds an origin from its wire representation.
func ParseOrigin(originType, id string) (Origin, error) {
	o := Origin{Type: OriginType(originType), ID: id}
	return o, o.Validate()
}

// Validate checks the tag and identifier.
func (o Origin) Validate() error {
	if o.Type != OriginIndividual && o.Type != OriginList {
		return errors.New("origin type must be INDIVIDUAL or LIST")
	}
	if o.ID == "" {
		return errors.New("origin id is required")
	}
	return nil
}

// Columns returns the (enrollment_id, list_id) pair persisted for the origin.
func (o Origin) Columns() (enrollmentID, listID *string) {
	id := o.ID
	if o.Type == OriginList {
		return nil, &id
	}
	return &id, nil
}

// OrderState is the payment order lifecycle.
type OrderState string

// Order states.
const (
	OrderStatePending  OrderState = "PENDING"
	OrderStatePaid     OrderState = "PAID"
	OrderStateVerified OrderState = "VERIFIED"
	OrderStateExpired  OrderState = "EXPIRED"
)

// PaymentOrder is a monetary claim over one origin.
type PaymentOrder struct {
	ID           string          `db:"id" json:"id"`
	Code         string          `db:"code" json:"code"`
	OriginType   OriginType      `db:"origin_type" json:"originType"`
	EnrollmentID *string         `db:"enrollment_id" json:"enrollmentId,omitempty"`
	ListID       *string         `db:"list_id" json:"listId,omitempty"`
	Total        decimal.Decimal `db:"total" json:"total"`
	IssuedAt     time.Time       `db:"issued_at" json:"issuedAt"`
	DueDate      time.Time       `db:"due_date" json:"dueDate"`
	State        OrderState      `db:"state" json:"state"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updatedAt"`
}

// Origin rebuilds the tagged origin from the persisted columns.
func (o PaymentOrder) Origin() Origin {
	if o.OriginType == OriginList && o.ListID != nil {
		return ListOrigin(*o.ListID)
	}
	if o.EnrollmentID != nil {
		return IndividualOrigin(*o.EnrollmentID)
	}
	return Origin{Type: o.OriginType}
}

// PastDue reports whether the due date has passed at t.
func (o PaymentOrder) PastDue(t time.Time) bool {
	return t.After(o.DueDate)
}

// EffectiveState reports a pending order past its due date as expired.
func (o PaymentOrder) EffectiveState(t time.Time) OrderState {
	if o.State == OrderStatePending && o.PastDue(t) {
		return OrderStateExpired
	}
	return o.State
}

// Live reports whether the order still blocks changes to what it covers.
func (o PaymentOrder) Live(t time.Time) bool {
	switch o.EffectiveState(t) {
	case OrderStatePending, OrderStatePaid, OrderStateVerified:
		return true
	default:
		return false
	}
}

// ReceiptState is the verification state of a payment receipt.
type ReceiptState string

// Receipt states.
const (
	ReceiptStatePending  ReceiptState = "PENDING"
	ReceiptStateVerified ReceiptState = "VERIFIED"
	ReceiptStateRejected ReceiptState = "REJECTED"
)

// PaymentReceipt is a submitted proof of payment.
type PaymentReceipt struct {
	ID            string          `db:"id" json:"id"`
	OrderID       string          `db:"order_id" json:"orderId"`
	ReceiptNumber string          `db:"receipt_number" json:"receiptNumber"`
	PayerName     string          `db:"payer_name" json:"payerName"`
	PaymentDate   time.Time       `db:"payment_date" json:"paymentDate"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	DocumentRef   string          `db:"document_ref" json:"-"`
	State         ReceiptState    `db:"state" json:"state"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
	ReviewedAt    *time.Time      `db:"reviewed_at" json:"reviewedAt,omitempty"`
}

// PaymentOrderDetail is an order with its effective state and receipts.
type PaymentOrderDetail struct {
	PaymentOrder
	EnrollmentIDs []string         `json:"enrollmentIds,omitempty"`
	Receipts      []PaymentReceipt `json:"receipts"`
}

package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/olimpiada-registration-api/internal/models"
)

// OpenOrderRequest opens a payment order for an origin.
type OpenOrderRequest struct {
	OriginType string     `json:"originType" validate:"required,oneof=INDIVIDUAL LIST"`
	OriginID   string     `json:"originId" validate:"required"`
	DueDate    *time.Time `json:"dueDate"`
}

// QuoteResponse reports the amount an order for the origin would carry.
type QuoteResponse struct {
	Origin models.Origin   `json:"origin"`
	Total  decimal.Decimal `json:"total"`
}

// SubmitReceiptRequest carries the receipt form fields sent with the document.
type SubmitReceiptRequest struct {
	OrderID       string `form:"orderId" json:"orderId" validate:"required"`
	ReceiptNumber string `form:"receiptNumber" json:"receiptNumber" validate:"required,max=64"`
	PayerName     string `form:"payerName" json:"payerName" validate:"required,max=200"`
	PaymentDate   string `form:"paymentDate" json:"paymentDate" validate:"required,datetime=2006-01-02"`
	Amount        string `form:"amount" json:"amount" validate:"required"`
}

// VerifyReceiptRequest records the reviewer decision.
type VerifyReceiptRequest struct {
	Decision string `json:"decision" validate:"required,oneof=VERIFIED REJECTED"`
}

// ReceiptResponse is a receipt together with its order after a transition.
type ReceiptResponse struct {
	Receipt models.PaymentReceipt `json:"receipt"`
	Order   models.PaymentOrder   `json:"order"`
}

// DocumentURLResponse carries a signed, expiring download link.
type DocumentURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/olimpiada-registration-api/internal/dto"
	"github.com/noah-isme/olimpiada-registration-api/internal/models"
	appErrors "github.com/noah-isme/olimpiada-registration-api/pkg/errors"
	"github.com/noah-isme/olimpiada-registration-api/pkg/response"
)

type paymentOrderService interface {
	Quote(ctx context.Context, origin models.Origin) (*dto.QuoteResponse, error)
	Open(ctx context.Context, req dto.OpenOrderRequest) (*models.PaymentOrder, error)
	Get(ctx context.Context, id string) (*models.PaymentOrderDetail, error)
}

// PaymentOrderHandler exposes the payment order ledger.
type PaymentOrderHandler struct {
	orders paymentOrderService
}

// NewPaymentOrderHandler constructs PaymentOrderHandler.
func NewPaymentOrderHandler(orders paymentOrderService) *PaymentOrderHandler {
	return &PaymentOrderHandler{orders: orders}
}

// Quote godoc
// @Summary Quote the amount an order would carry
// @Tags PaymentOrders
// @Produce json
// @Param originType query string true "INDIVIDUAL or LIST"
// @Param originId query string true "Enrollment or list ID"
// @Success 200 {object} response.Envelope
// @Router /payment-orders/quote [get]
func (h *PaymentOrderHandler) Quote(c *gin.Context) {
	origin, err := models.ParseOrigin(strings.ToUpper(c.Query("originType")), strings.TrimSpace(c.Query("originId")))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error()))
		return
	}
	if _, err := uuid.Parse(origin.ID); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "originId must be a UUID"))
		return
	}
	quote, err := h.orders.Quote(c.Request.Context(), origin)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, quote)
}

// Open godoc
// @Summary Open a payment order
// @Tags PaymentOrders
// @Accept json
// @Produce json
// @Param payload body dto.OpenOrderRequest true "Order payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payment-orders [post]
func (h *PaymentOrderHandler) Open(c *gin.Context) {
	var req dto.OpenOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	req.OriginType = strings.ToUpper(strings.TrimSpace(req.OriginType))
	order, err := h.orders.Open(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusCreated, order)
}

// Get godoc
// @Summary Get payment order with coverage and receipts
// @Tags PaymentOrders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} response.Envelope
// @Router /payment-orders/{id} [get]
func (h *PaymentOrderHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.orders.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, order)
}

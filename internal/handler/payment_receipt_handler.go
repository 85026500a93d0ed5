package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/olimpiada-registration-api/internal/dto"
	"github.com/noah-isme/olimpiada-registration-api/internal/service"
	appErrors "github.com/noah-isme/olimpiada-registration-api/pkg/errors"
	"github.com/noah-isme/olimpiada-registration-api/pkg/logger"
	"github.com/noah-isme/olimpiada-registration-api/pkg/response"
)

type paymentReceiptService interface {
	Submit(ctx context.Context, req dto.SubmitReceiptRequest, upload service.ReceiptUpload) (*dto.ReceiptResponse, error)
	Verify(ctx context.Context, receiptID string, req dto.VerifyReceiptRequest) (*dto.ReceiptResponse, error)
	Delete(ctx context.Context, receiptID string) error
	DocumentURL(ctx context.Context, receiptID string) (*dto.DocumentURLResponse, error)
	OpenDocument(ctx context.Context, receiptID, token string) (*service.ReceiptDocument, error)
}

// PaymentReceiptHandler exposes receipt submission, review and document download.
type PaymentReceiptHandler struct {
	receipts paymentReceiptService
	logger   *zap.Logger
}

// NewPaymentReceiptHandler constructs PaymentReceiptHandler.
func NewPaymentReceiptHandler(receipts paymentReceiptService, log *zap.Logger) *PaymentReceiptHandler {
	return &PaymentReceiptHandler{receipts: receipts, logger: log}
}

// Submit godoc
// @Summary Submit a payment receipt with its document
// @Tags PaymentReceipts
// @Accept mpfd
// @Produce json
// @Param orderId formData string true "Payment order ID"
// @Param receiptNumber formData string true "Bank receipt number"
// @Param payerName formData string true "Payer name"
// @Param paymentDate formData string true "Payment date (YYYY-MM-DD)"
// @Param amount formData string true "Amount paid"
// @Param file formData file true "Receipt document (pdf, jpeg, png)"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /payment-receipts [post]
func (h *PaymentReceiptHandler) Submit(c *gin.Context) {
	var req dto.SubmitReceiptRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to read uploaded file"))
		return
	}
	defer file.Close()

	result, err := h.receipts.Submit(c.Request.Context(), req, service.ReceiptUpload{
		Filename: header.Filename,
		Size:     header.Size,
		MimeType: header.Header.Get("Content-Type"),
		Content:  file,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusCreated, result)
}

// Verify godoc
// @Summary Verify or reject a pending receipt
// @Tags PaymentReceipts
// @Accept json
// @Produce json
// @Param id path string true "Receipt ID"
// @Param payload body dto.VerifyReceiptRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payment-receipts/{id}/verify [post]
func (h *PaymentReceiptHandler) Verify(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.VerifyReceiptRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.receipts.Verify(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, result)
}

// Delete godoc
// @Summary Delete a receipt that is not verified
// @Tags PaymentReceipts
// @Param id path string true "Receipt ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /payment-receipts/{id} [delete]
func (h *PaymentReceiptHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.receipts.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DocumentURL godoc
// @Summary Issue a signed download link for the receipt document
// @Tags PaymentReceipts
// @Produce json
// @Param id path string true "Receipt ID"
// @Success 200 {object} response.Envelope
// @Router /payment-receipts/{id}/document-url [get]
func (h *PaymentReceiptHandler) DocumentURL(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	link, err := h.receipts.DocumentURL(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, link)
}

// Document godoc
// @Summary Download the receipt document
// @Tags PaymentReceipts
// @Produce octet-stream
// @Param id path string true "Receipt ID"
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /payment-receipts/{id}/document [get]
func (h *PaymentReceiptHandler) Document(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	doc, err := h.receipts.OpenDocument(c.Request.Context(), id, c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer func() {
		if cerr := doc.File.Close(); cerr != nil {
			logger.FromGin(c, h.logger).Warn("close receipt document", zap.Error(cerr))
		}
	}()
	c.DataFromReader(http.StatusOK, doc.SizeBytes, doc.MimeType, doc.File, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", doc.Filename),
		"Cache-Control":       "no-store",
	})
}

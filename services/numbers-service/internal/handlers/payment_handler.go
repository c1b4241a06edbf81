package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vanityline/vanityline/services/numbers-service/internal/models"
)

type PaymentHandler struct {
	responder
	payments Payments
}

func NewPaymentHandler(payments Payments, opts Options) *PaymentHandler {
	return &PaymentHandler{responder: newResponder(opts), payments: payments}
}

func (h *PaymentHandler) CreatePaymentLink(c *gin.Context) {
	req, err := requester(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	var body models.CreatePaymentLinkRequest
	if err := bindJSON(c, &body); err != nil {
		h.fail(c, err)
		return
	}

	link, err := h.payments.CreatePaymentLink(c.Request.Context(), req, body)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, "Payment link created", link)
}

func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	req, err := requester(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	tx, err := h.payments.VerifyPayment(c.Request.Context(), c.Param("referenceId"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, "Payment verified", tx)
}

func (h *PaymentHandler) HandleSuccess(c *gin.Context) {
	req, err := requester(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	var body models.PaymentSuccessRequest
	if err := bindJSON(c, &body); err != nil {
		h.fail(c, err)
		return
	}
	numberID, err := primitive.ObjectIDFromHex(body.NumberID)
	if err != nil {
		h.fail(c, fmt.Errorf("%w: invalid numberId", models.ErrValidation))
		return
	}

	result, err := h.payments.HandleSuccess(c.Request.Context(), c.Param("referenceId"), numberID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.created(c, "Payment processed and subscription created", result)
}

func (h *PaymentHandler) ListTransactions(c *gin.Context) {
	filter := models.TransactionFilter{
		Status: c.Query("status"),
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 20),
	}

	txs, page, err := h.payments.ListTransactions(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.page(c, txs, page)
}

func (h *PaymentHandler) ReviewTransaction(c *gin.Context) {
	req, err := requester(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	var body models.ReviewTransactionRequest
	if err := bindJSON(c, &body); err != nil {
		h.fail(c, err)
		return
	}

	tx, err := h.payments.ReviewTransaction(c.Request.Context(), c.Param("reference"), req, body.Notes)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, "Transaction updated", tx)
}

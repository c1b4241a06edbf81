package handlers

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vanityline/vanityline/services/numbers-service/internal/models"
)

type PhoneHandler struct {
	responder
	phones PhoneNumbers
}

func NewPhoneHandler(phones PhoneNumbers, opts Options) *PhoneHandler {
	return &PhoneHandler{responder: newResponder(opts), phones: phones}
}

type bulkCreateRequest struct {
	Numbers []models.CreatePhoneNumberRequest `json:"numbers" binding:"required,min=1,max=1000"`
}

// List serves the public catalog. Query: status, type, search, minPrice, maxPrice, sortBy, order, page, limit.
func (h *PhoneHandler) List(c *gin.Context) {
	minPrice, err := queryFloat(c, "minPrice")
	if err != nil {
		h.fail(c, err)
		return
	}
	maxPrice, err := queryFloat(c, "maxPrice")
	if err != nil {
		h.fail(c, err)
		return
	}

	filter := models.PhoneNumberFilter{
		Status:   models.PhoneNumberStatus(c.Query("status")),
		Type:     models.PhoneNumberType(c.Query("type")),
		Search:   strings.TrimSpace(c.Query("search")),
		MinPrice: minPrice,
		MaxPrice: maxPrice,
		SortBy:   c.Query("sortBy"),
		SortDesc: strings.EqualFold(c.Query("order"), "desc"),
		Page:     queryInt(c, "page", 1),
		Limit:    queryInt(c, "limit", 20),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		h.fail(c, fmt.Errorf("%w: unknown status %q", models.ErrValidation, filter.Status))
		return
	}

	numbers, page, err := h.phones.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.page(c, numbers, page)
}

func (h *PhoneHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}

	number, err := h.phones.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, "", number)
}

func (h *PhoneHandler) Mine(c *gin.Context) {
	req, err := requester(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	numbers, err := h.phones.Mine(c.Request.Context(), req.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, "", numbers)
}

func (h *PhoneHandler) Reserve(c *gin.Context) {
	req, err := requester(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}

	number, err := h.phones.Reserve(c.Request.Context(), id, req.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, "Phone number reserved", number)
}

func (h *PhoneHandler) Create(c *gin.Context) {
	var req models.CreatePhoneNumberRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}

	number, err := h.phones.Create(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.created(c, "Phone number created", number)
}

func (h *PhoneHandler) BulkCreate(c *gin.Context) {
	var req bulkCreateRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}

	result, err := h.phones.BulkCreate(c.Request.Context(), req.Numbers)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.created(c, fmt.Sprintf("%d phone numbers created", len(result.Created)), result)
}

func (h *PhoneHandler) UpdateStatus(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	var req models.UpdateStatusRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}

	var userID *primitive.ObjectID
	if req.UserID != "" {
		uid, err := primitive.ObjectIDFromHex(req.UserID)
		if err != nil {
			h.fail(c, fmt.Errorf("%w: invalid userId", models.ErrValidation))
			return
		}
		userID = &uid
	}

	number, err := h.phones.UpdateStatus(c.Request.Context(), id, req.Status, userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, "Phone number status updated", number)
}

func (h *PhoneHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}

	if err := h.phones.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, "Phone number deleted", nil)
}

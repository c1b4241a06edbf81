package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vanityline/vanityline/services/numbers-service/internal/models"
	"github.com/vanityline/vanityline/services/numbers-service/internal/service"
)

type SubscriptionHandler struct {
	responder
	subscriptions Subscriptions
}

func NewSubscriptionHandler(subscriptions Subscriptions, opts Options) *SubscriptionHandler {
	return &SubscriptionHandler{responder: newResponder(opts), subscriptions: subscriptions}
}

func (h *SubscriptionHandler) Plans(c *gin.Context) {
	h.ok(c, "", h.subscriptions.Plans())
}

func (h *SubscriptionHandler) Create(c *gin.Context) {
	req, err := requester(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	var body models.CreateSubscriptionRequest
	if err := bindJSON(c, &body); err != nil {
		h.fail(c, err)
		return
	}

	sub, err := h.subscriptions.Create(c.Request.Context(), req.ID, body)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.created(c, "Subscription created", sub)
}

func (h *SubscriptionHandler) Mine(c *gin.Context) {
	req, err := requester(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	subs, err := h.subscriptions.GetMine(c.Request.Context(), req.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, "", subs)
}

func (h *SubscriptionHandler) Get(c *gin.Context) {
	h.withSubscription(c, "", func(id primitive.ObjectID, req service.Requester) (*models.Subscription, error) {
		return h.subscriptions.GetByID(c.Request.Context(), id, req)
	})
}

func (h *SubscriptionHandler) Renew(c *gin.Context) {
	h.withSubscription(c, "Subscription renewed", func(id primitive.ObjectID, req service.Requester) (*models.Subscription, error) {
		return h.subscriptions.Renew(c.Request.Context(), id, req)
	})
}

func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	h.withSubscription(c, "Subscription cancelled", func(id primitive.ObjectID, req service.Requester) (*models.Subscription, error) {
		return h.subscriptions.Cancel(c.Request.Context(), id, req)
	})
}

func (h *SubscriptionHandler) ToggleAutoRenew(c *gin.Context) {
	var body models.ToggleAutoRenewRequest
	if err := bindJSON(c, &body); err != nil {
		h.fail(c, err)
		return
	}

	message := "Auto-renew disabled"
	if *body.AutoRenew {
		message = "Auto-renew enabled"
	}
	h.withSubscription(c, message, func(id primitive.ObjectID, req service.Requester) (*models.Subscription, error) {
		return h.subscriptions.ToggleAutoRenew(c.Request.Context(), id, req, *body.AutoRenew)
	})
}

// withSubscription resolves the caller and the :id parameter, then runs fn.
func (h *SubscriptionHandler) withSubscription(c *gin.Context, message string, fn func(primitive.ObjectID, service.Requester) (*models.Subscription, error)) {
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

	sub, err := fn(id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, message, sub)
}

func (h *SubscriptionHandler) GetAll(c *gin.Context) {
	filter := models.SubscriptionFilter{
		Status: models.SubscriptionStatus(c.Query("status")),
		Plan:   models.PlanName(c.Query("plan")),
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 20),
	}
	if raw := c.Query("user"); raw != "" {
		uid, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			h.fail(c, fmt.Errorf("%w: invalid user", models.ErrValidation))
			return
		}
		filter.User = &uid
	}

	subs, page, err := h.subscriptions.GetAll(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.page(c, subs, page)
}

func (h *SubscriptionHandler) AdminUpdate(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	var body models.AdminUpdateSubscriptionRequest
	if err := bindJSON(c, &body); err != nil {
		h.fail(c, err)
		return
	}

	sub, err := h.subscriptions.AdminUpdate(c.Request.Context(), id, body)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, "Subscription updated", sub)
}

func (h *SubscriptionHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}

	if err := h.subscriptions.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, "Subscription deleted", nil)
}

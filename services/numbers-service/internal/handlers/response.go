package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vanityline/vanityline/pkg/logger"
	"github.com/vanityline/vanityline/pkg/middleware"
	pkgmodels "github.com/vanityline/vanityline/pkg/models"
	"github.com/vanityline/vanityline/services/numbers-service/internal/models"
	"github.com/vanityline/vanityline/services/numbers-service/internal/service"
)

const internalErrorMessage = "Something went wrong, please try again later"

type Response struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    interface{}  `json:"data,omitempty"`
	Page    *models.Page `json:"pagination,omitempty"`
}

// errorStatuses is checked in order; the first sentinel matched by errors.Is wins.
var errorStatuses = []struct {
	err    error
	status int
}{
	{models.ErrValidation, http.StatusBadRequest},
	{models.ErrUnauthenticated, http.StatusUnauthorized},
	{models.ErrForbidden, http.StatusForbidden},

	{models.ErrNumberNotFound, http.StatusNotFound},
	{models.ErrSubscriptionNotFound, http.StatusNotFound},
	{models.ErrPaymentNotFound, http.StatusNotFound},
	{models.ErrUserNotFound, http.StatusNotFound},
	{models.ErrNotificationNotFound, http.StatusNotFound},
	{pkgmodels.ErrUserNotFound, http.StatusNotFound},

	{models.ErrNumberNotAvailable, http.StatusBadRequest},
	{models.ErrNotReservedByUser, http.StatusBadRequest},
	{models.ErrAlreadySubscribed, http.StatusBadRequest},
	{models.ErrPaymentNotSuccess, http.StatusBadRequest},
	{models.ErrInvalidStatus, http.StatusBadRequest},
	{models.ErrInvalidPlan, http.StatusBadRequest},
	{pkgmodels.ErrEmailTaken, http.StatusBadRequest},

	{models.ErrAlreadyAssigned, http.StatusConflict},
	{models.ErrConcurrentUpdate, http.StatusConflict},
	{models.ErrNumberInUse, http.StatusConflict},
	{models.ErrDuplicateNumber, http.StatusConflict},

	{pkgmodels.ErrInvalidCredentials, http.StatusUnauthorized},
	{pkgmodels.ErrAccountDisabled, http.StatusForbidden},

	{models.ErrGatewayTimeout, http.StatusGatewayTimeout},
	{models.ErrGateway, http.StatusInternalServerError},
}

// StatusFor maps a service error to its HTTP status. Unknown errors are 500.
func StatusFor(err error) int {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// responder writes the JSON envelope shared by every handler.
type responder struct {
	production bool
	logger     logger.Logger
}

func newResponder(opts Options) responder {
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return responder{production: opts.Production, logger: log}
}

func (r responder) ok(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Message: message, Data: data})
}

func (r responder) created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Response{Success: true, Message: message, Data: data})
}

func (r responder) page(c *gin.Context, data interface{}, page models.Page) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data, Page: &page})
}

func (r responder) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	message := err.Error()

	if status >= http.StatusInternalServerError {
		r.logger.WithContext(c.Request.Context()).Error("Request failed",
			logger.F("method", c.Request.Method),
			logger.F("path", c.FullPath()),
			logger.F("status", status),
			logger.Err(err),
		)
		if r.production {
			message = internalErrorMessage
		}
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, Response{Success: false, Message: message})
}

// requester builds the service caller from the identity Authenticate stored on the context.
func requester(c *gin.Context) (service.Requester, error) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return service.Requester{}, models.ErrUnauthenticated
	}
	id, err := primitive.ObjectIDFromHex(identity.UserID)
	if err != nil {
		return service.Requester{}, fmt.Errorf("%w: malformed token subject", models.ErrUnauthenticated)
	}
	return service.Requester{ID: id, Email: identity.Email, Admin: identity.IsAdmin()}, nil
}

func pathID(c *gin.Context, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: invalid %s", models.ErrValidation, name)
	}
	return id, nil
}

func bindJSON(c *gin.Context, dest interface{}) error {
	if err := c.ShouldBindJSON(dest); err != nil {
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	return nil
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return fallback
	}
	return v
}

func queryFloat(c *gin.Context, key string) (*float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", models.ErrValidation, key)
	}
	return &v, nil
}

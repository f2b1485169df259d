package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
)

const (
	msgUnauthenticated     = "Unauthenticated."
	msgOrderNotFound       = "Order not found"
	msgOrderHasPayments    = "Cannot delete order with associated payments"
	msgOrderDeleted        = "Order deleted successfully"
	msgInternal            = "Internal server error"
	msgMalformedBody       = "Malformed JSON body"
	msgStatusInvalid       = "Invalid order status"
	msgProductNameRequired = "Product name is required"
	msgQuantityRequired    = "Quantity is required"
	msgUnitPriceRequired   = "Unit price is required"
	msgAmountRequired      = "Payment amount is required"
	msgGatewayRequired     = "Payment gateway is required"
)

type messageResponse struct {
	Message string `json:"message"`
}

type validationResponse struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

func writeMessage(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(messageResponse{Message: message})
}

func writeValidation(c *fiber.Ctx, verr *domain.ValidationError) error {
	return c.Status(fiber.StatusUnprocessableEntity).JSON(validationResponse{
		Message: verr.First(),
		Errors:  verr.Fields,
	})
}

// writeError переводит ошибки сервисов в HTTP-ответы. Внутренние детали наружу не отдаются.
func writeError(c *fiber.Ctx, logger *log.Entry, err error) error {
	if verr, ok := domain.AsValidation(err); ok {
		return writeValidation(c, verr)
	}
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		return writeMessage(c, fiber.StatusNotFound, msgOrderNotFound)
	case errors.Is(err, domain.ErrOrderHasPayments):
		return writeMessage(c, fiber.StatusConflict, msgOrderHasPayments)
	case errors.Is(err, domain.ErrOwnerRequired):
		return writeMessage(c, fiber.StatusUnauthorized, msgUnauthenticated)
	}

	logger.WithError(err).WithFields(log.Fields{
		"method": c.Method(),
		"path":   c.Path(),
	}).Error("request failed")
	return writeMessage(c, fiber.StatusInternalServerError, msgInternal)
}

// errorHandler обрабатывает ошибки, не перехваченные обработчиками (404 маршрута, 405, паники).
func errorHandler(logger *log.Entry) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return writeMessage(c, fe.Code, fe.Message)
		}
		return writeError(c, logger, err)
	}
}

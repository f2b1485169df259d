package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
	"github.com/vladislavdragonenkov/orderpay/internal/service/payment"
)

func (h *Handler) listPayments(c *fiber.Ctx) error {
	ownerID, err := ownerFromCtx(c)
	if err != nil {
		return writeMessage(c, fiber.StatusUnauthorized, msgUnauthenticated)
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	page, err := h.payments.List(ctx, ownerID, domain.PaymentFilter{
		OrderID:     c.Query("order_id"),
		PageRequest: pageRequest(c),
	})
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(toPageResponse(page, toPaymentResponse))
}

// processPayment возвращает 201 и для неуспешного платежа: запись создана в любом случае.
func (h *Handler) processPayment(c *fiber.Ctx) error {
	ownerID, err := ownerFromCtx(c)
	if err != nil {
		return writeMessage(c, fiber.StatusUnauthorized, msgUnauthenticated)
	}

	payload := new(processPaymentRequest)
	if err := c.BodyParser(payload); err != nil {
		return writeMessage(c, fiber.StatusBadRequest, msgMalformedBody)
	}

	verr := domain.NewValidationError()
	if payload.Amount == nil {
		verr.Add("amount", msgAmountRequired)
	}
	if payload.Gateway == nil {
		verr.Add("gateway", msgGatewayRequired)
	}
	if !verr.Empty() {
		return writeValidation(c, verr)
	}

	req := payment.ProcessRequest{
		Amount:  *payload.Amount,
		Gateway: domain.PaymentGateway(*payload.Gateway),
	}
	if payload.OrderID != nil {
		req.OrderID = *payload.OrderID
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	recorded, err := h.payments.Process(ctx, ownerID, req)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toPaymentResponse(recorded))
}

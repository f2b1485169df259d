package httpapi

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/vladislavdragonenkov/orderpay/internal/domain"
	"github.com/vladislavdragonenkov/orderpay/internal/service/order"
)

func (h *Handler) listOrders(c *fiber.Ctx) error {
	ownerID, err := ownerFromCtx(c)
	if err != nil {
		return writeMessage(c, fiber.StatusUnauthorized, msgUnauthenticated)
	}

	filter := domain.OrderFilter{PageRequest: pageRequest(c)}
	if raw := c.Query("status"); raw != "" {
		value, convErr := strconv.Atoi(raw)
		status := domain.OrderStatus(value)
		if convErr != nil || !status.Valid() {
			verr := domain.NewValidationError()
			verr.Add("status", msgStatusInvalid)
			return writeValidation(c, verr)
		}
		filter.Status = &status
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	page, err := h.orders.List(ctx, ownerID, filter)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(toPageResponse(page, toOrderResponse))
}

func (h *Handler) createOrder(c *fiber.Ctx) error {
	ownerID, err := ownerFromCtx(c)
	if err != nil {
		return writeMessage(c, fiber.StatusUnauthorized, msgUnauthenticated)
	}

	payload := new(createOrderRequest)
	if err := c.BodyParser(payload); err != nil {
		return writeMessage(c, fiber.StatusBadRequest, msgMalformedBody)
	}
	items, verr := toItemInputs(payload.Items)
	if !verr.Empty() {
		return writeValidation(c, verr)
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	created, err := h.orders.Create(ctx, ownerID, items)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toOrderResponse(created))
}

func (h *Handler) getOrder(c *fiber.Ctx) error {
	ownerID, err := ownerFromCtx(c)
	if err != nil {
		return writeMessage(c, fiber.StatusUnauthorized, msgUnauthenticated)
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	found, err := h.orders.Get(ctx, ownerID, c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(toOrderResponse(found))
}

func (h *Handler) updateOrder(c *fiber.Ctx) error {
	ownerID, err := ownerFromCtx(c)
	if err != nil {
		return writeMessage(c, fiber.StatusUnauthorized, msgUnauthenticated)
	}

	payload := new(updateOrderRequest)
	if err := c.BodyParser(payload); err != nil {
		return writeMessage(c, fiber.StatusBadRequest, msgMalformedBody)
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	orderID := c.Params("id")
	var patch order.OrderPatch
	if payload.Status != nil {
		status := domain.OrderStatus(*payload.Status)
		patch.Status = &status
	}
	if payload.Items != nil {
		items, verr := toItemInputs(*payload.Items)
		if !verr.Empty() {
			// Для чужого заказа 404 важнее ошибок в теле.
			if _, err := h.orders.Get(ctx, ownerID, orderID); err != nil {
				return writeError(c, h.logger, err)
			}
			return writeValidation(c, verr)
		}
		patch.Items = &items
	}

	updated, err := h.orders.Update(ctx, ownerID, orderID, patch)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(toOrderResponse(updated))
}

func (h *Handler) deleteOrder(c *fiber.Ctx) error {
	ownerID, err := ownerFromCtx(c)
	if err != nil {
		return writeMessage(c, fiber.StatusUnauthorized, msgUnauthenticated)
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	deleted, err := h.orders.Delete(ctx, ownerID, c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	if !deleted {
		return writeError(c, h.logger, domain.ErrOrderHasPayments)
	}
	return writeMessage(c, fiber.StatusOK, msgOrderDeleted)
}

func (h *Handler) orderTimeline(c *fiber.Ctx) error {
	ownerID, err := ownerFromCtx(c)
	if err != nil {
		return writeMessage(c, fiber.StatusUnauthorized, msgUnauthenticated)
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	history, err := h.orders.Timeline(ctx, ownerID, c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, err)
	}

	data := make([]timelineResponse, 0, len(history))
	for _, event := range history {
		data = append(data, timelineResponse{Type: event.Type, Reason: event.Reason, OccurredAt: event.Occurred})
	}
	return c.JSON(fiber.Map{"data": data})
}

// toItemInputs проверяет наличие обязательных полей; диапазоны значений проверяет сервис.
func toItemInputs(items []itemRequest) ([]order.ItemInput, *domain.ValidationError) {
	verr := domain.NewValidationError()
	inputs := make([]order.ItemInput, 0, len(items))
	for i, item := range items {
		prefix := "items." + strconv.Itoa(i) + "."
		if item.ProductName == nil {
			verr.Add(prefix+"product_name", msgProductNameRequired)
		}
		if item.Quantity == nil {
			verr.Add(prefix+"quantity", msgQuantityRequired)
		}
		if item.UnitPrice == nil {
			verr.Add(prefix+"unit_price", msgUnitPriceRequired)
		}
		if item.ProductName == nil || item.Quantity == nil || item.UnitPrice == nil {
			continue
		}
		inputs = append(inputs, order.ItemInput{
			ProductName: *item.ProductName,
			Quantity:    *item.Quantity,
			UnitPrice:   *item.UnitPrice,
		})
	}
	return inputs, verr
}

func pageRequest(c *fiber.Ctx) domain.PageRequest {
	return domain.PageRequest{
		Page:    c.QueryInt("page", 1),
		PerPage: c.QueryInt("per_page", domain.DefaultPerPage),
	}
}

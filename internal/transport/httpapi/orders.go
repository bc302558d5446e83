package httpapi

import (
	"math"

	"github.com/gofiber/fiber/v2"

	"github.com/vladislavdragonenkov/queueapp/internal/domain"
	"github.com/vladislavdragonenkov/queueapp/internal/service/queue"
)

const successMessage = "Success"

type ordersResponse struct {
	Message string               `json:"message"`
	Orders  []domain.OrderRecord `json:"orders"`
}

type removedResponse struct {
	Message      string `json:"message"`
	RemovedCount int    `json:"removed_count"`
}

type processRequest struct {
	NotFoundMessage string `json:"resp_fail1"`
	ConflictMessage string `json:"resp_fail2"`
}

type processResponse struct {
	Message string `json:"message"`
	OrderID int64  `json:"orderId"`
}

func (s *server) appInfo(c *fiber.Ctx) error {
	var value *string
	if q := c.Query("q"); q != "" {
		value = &q
	} else if cookie := c.Cookies("ads_id"); cookie != "" {
		value = &cookie
	}
	if value != nil {
		s.logger.WithField("query_or_ads_id", *value).Info("app info requested")
	}

	count, err := s.svc.Info(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message":         successMessage,
		"query_or_ads_id": value,
		"tasks_count":     count,
	})
}

func (s *server) swapOrderOwner(c *fiber.Ctx) error {
	orderID, err := int64Param(c, "order_id")
	if err != nil {
		return err
	}
	clientID, err := optionalInt64Query(c, "client_id")
	if err != nil {
		return err
	}
	if _, err := s.svc.SwapOrderOwner(c.UserContext(), orderID, clientID); err != nil {
		return err
	}
	return message(c, fiber.StatusCreated, successMessage)
}

func (s *server) deleteOrdersInRange(c *fiber.Ctx) error {
	first, err := int64QueryOr(c, "first", 0)
	if err != nil {
		return err
	}
	last, err := int64QueryOr(c, "last", math.MaxInt64)
	if err != nil {
		return err
	}
	removed, err := s.svc.DeleteOrdersInRange(c.UserContext(), first, last)
	if err != nil {
		return err
	}
	return c.JSON(removedResponse{Message: successMessage, RemovedCount: removed})
}

func (s *server) ordersByStatus(c *fiber.Ctx) error {
	status, err := domain.ParseOrderStatus(c.Params("status_name"))
	if err != nil {
		return err
	}
	orders, err := s.svc.OrdersByStatus(c.UserContext(), status)
	if err != nil {
		return err
	}
	return c.JSON(ordersResponse{Message: successMessage, Orders: orders})
}

func (s *server) ordersCountsFromHeader(c *fiber.Ctx) error {
	ids, err := parseIDList(c.Get("clients_ids"))
	if err != nil {
		return message(c, fiber.StatusNotFound, "Incorrect header values")
	}
	counts, err := s.svc.OrdersCountsForClients(c.UserContext(), ids)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": successMessage, "clients_orders_count": counts})
}

func (s *server) allOrders(c *fiber.Ctx) error {
	orders, err := s.svc.AllOrders(c.UserContext())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(orders)
}

func (s *server) ordersOfCurrentClient(c *fiber.Ctx) error {
	name, _ := c.Locals(localClientName).(string)
	orders, err := s.svc.OrdersOfClientNamed(c.UserContext(), name)
	if err != nil {
		return err
	}
	return c.JSON(ordersResponse{Message: successMessage, Orders: orders})
}

func (s *server) ordersOfClient(c *fiber.Ctx) error {
	clientID, err := int64Param(c, "client_id")
	if err != nil {
		return err
	}
	orders, err := s.svc.OrdersOfClient(c.UserContext(), clientID)
	if err != nil {
		return err
	}
	return c.JSON(ordersResponse{Message: successMessage, Orders: orders})
}

func (s *server) processOrder(c *fiber.Ctx) error {
	orderID, err := int64Param(c, "order_id")
	if err != nil {
		return err
	}
	var req processRequest
	if len(c.Body()) > 0 {
		if err := c.App().Config().JSONDecoder(c.Body(), &req); err != nil {
			return unprocessable("invalid request body")
		}
	}

	order, err := s.svc.ProcessOrder(c.UserContext(), orderID, queue.ProcessOptions{
		NotFoundMessage: req.NotFoundMessage,
		ConflictMessage: req.ConflictMessage,
	})
	if domain.IsConflict(err) {
		return withDetail(fiber.StatusConflict, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(processResponse{Message: c.Query("resp_success", successMessage), OrderID: order.ID})
}

func (s *server) processNext(c *fiber.Ctx) error {
	order, err := s.svc.ProcessNext(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(processResponse{Message: successMessage, OrderID: order.ID})
}

func (s *server) createOrder(c *fiber.Ctx) error {
	clientID, err := int64Param(c, "client_id")
	if err != nil {
		return err
	}
	if len(c.Body()) == 0 {
		return &domain.NotFoundError{Kind: domain.EntityOrder, ID: domain.ID(clientID)}
	}
	var input queue.OrderInput
	if err := c.App().Config().JSONDecoder(c.Body(), &input); err != nil {
		return unprocessable("invalid order body")
	}
	if _, err := s.svc.CreateOrder(c.UserContext(), clientID, input); err != nil {
		return err
	}
	return message(c, fiber.StatusCreated, successMessage)
}

func (s *server) deleteOrder(c *fiber.Ctx) error {
	orderID, err := int64Param(c, "order_id")
	if err != nil {
		return err
	}
	if err := s.svc.DeleteOrder(c.UserContext(), orderID); err != nil {
		return err
	}
	return message(c, fiber.StatusOK, successMessage)
}

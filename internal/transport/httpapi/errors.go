package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/vladislavdragonenkov/queueapp/internal/domain"
	"github.com/vladislavdragonenkov/queueapp/internal/service/queue"
)

// messageResponse - тело большинства ответов.
type messageResponse struct {
	Message string `json:"message"`
}

// detailResponse повторяет формат ошибок вида {"detail": ...}.
type detailResponse struct {
	Detail interface{} `json:"detail"`
}

func message(c *fiber.Ctx, code int, msg string) error {
	return c.Status(code).JSON(messageResponse{Message: msg})
}

// handleError переводит доменные ошибки в HTTP-ответы.
func (s *server) handleError(c *fiber.Ctx, err error) error {
	var (
		fiberErr   *fiber.Error
		notFound   *domain.NotFoundError
		conflict   *domain.ConflictError
		requestErr *requestError
	)

	switch {
	case errors.As(err, &requestErr):
		return c.Status(requestErr.code).JSON(requestErr.body)
	case errors.As(err, &fiberErr):
		return c.Status(fiberErr.Code).JSON(detailResponse{Detail: fiberErr.Message})
	case errors.As(err, &notFound):
		return message(c, fiber.StatusNotFound, notFound.Error())
	case errors.As(err, &conflict):
		return message(c, fiber.StatusConflict, conflict.Error())
	case errors.Is(err, domain.ErrInvalidRange):
		return message(c, fiber.StatusPreconditionFailed, "First id greater than last id")
	case errors.Is(err, domain.ErrWrongPassword):
		return message(c, fiber.StatusUnauthorized, "Wrong password")
	case errors.Is(err, domain.ErrDescriptionRequired),
		errors.Is(err, domain.ErrTimeOutOfRange),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrUnknownBackend):
		return message(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, queue.ErrServiceClosed):
		return message(c, fiber.StatusServiceUnavailable, err.Error())
	}

	s.logger.WithError(err).WithField("request_id", c.Locals(localRequestID)).Error("unhandled request error")
	return message(c, fiber.StatusInternalServerError, "Internal server error")
}

// requestError несёт готовый код и тело ответа.
type requestError struct {
	code int
	body interface{}
}

func (e *requestError) Error() string {
	return "request error"
}

func unprocessable(msg string) error {
	return &requestError{code: fiber.StatusUnprocessableEntity, body: detailResponse{Detail: msg}}
}

func withDetail(code int, msg string) error {
	return &requestError{code: code, body: detailResponse{Detail: messageResponse{Message: msg}}}
}

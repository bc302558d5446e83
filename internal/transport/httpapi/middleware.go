package httpapi

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/queueapp/internal/auth"
	"github.com/vladislavdragonenkov/queueapp/internal/domain"
	"github.com/vladislavdragonenkov/queueapp/internal/service/queue"
)

const (
	localRequestID  = "request_id"
	localClientName = "client_name"
)

// requestID берёт X-Request-ID из запроса или генерирует новый.
func (s *server) requestID(c *fiber.Ctx) error {
	id := c.Get(headerRequestID)
	if id == "" {
		id = uuid.NewString()
	}
	c.Locals(localRequestID, id)
	c.Set(headerRequestID, id)
	return c.Next()
}

func (s *server) accessLog(c *fiber.Ctx) error {
	started := time.Now()
	err := c.Next()
	if err != nil {
		// итоговый код ответа нужен метрикам
		if handleErr := s.handleError(c, err); handleErr != nil {
			return handleErr
		}
	}

	duration := time.Since(started)
	route := c.Route().Path
	code := c.Response().StatusCode()
	s.metrics.RecordHTTPRequest(route, c.Method(), code, duration)

	entry := s.logger.WithFields(log.Fields{
		"request_id": c.Locals(localRequestID),
		"method":     c.Method(),
		"path":       c.Path(),
		"status":     code,
		"duration":   duration,
	})
	if code >= fiber.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request handled")
	}
	return nil
}

// callsCount проставляет заголовок calls_count после обработки запроса.
func (s *server) callsCount(c *fiber.Ctx) error {
	err := c.Next()
	if c.Path() == "/favicon.ico" {
		return err
	}
	n, countErr := s.counter.Increment(c.UserContext())
	if countErr != nil {
		s.logger.WithError(countErr).Warn("failed to increment calls counter")
		return err
	}
	c.Set(headerCallsCount, strconv.FormatInt(n, 10))
	return err
}

func (s *server) globalKey(c *fiber.Ctx) error {
	if c.Get("key") == rejectedGlobalKey {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid key from global dependency")
	}
	return c.Next()
}

// session открывает хранилище на время запроса.
func (s *server) session(c *fiber.Ctx) error {
	release := s.svc.Acquire(c.UserContext())
	defer release()
	return c.Next()
}

func (s *server) verifyKey(c *fiber.Ctx) error {
	if c.Get(headerVerificationKey) != s.verificationKey {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid key")
	}
	return c.Next()
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func (s *server) requireBearer(c *fiber.Ctx) error {
	if bearerToken(c) == "" {
		c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		return fiber.NewError(fiber.StatusUnauthorized, "Not authenticated")
	}
	return c.Next()
}

// currentClient проверяет токен и кладёт имя клиента в Locals.
func (s *server) currentClient(c *fiber.Ctx) error {
	token := bearerToken(c)
	if token == "" {
		c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		return fiber.NewError(fiber.StatusUnauthorized, "Not authenticated")
	}
	name, err := s.tokens.Parse(token)
	if err != nil {
		c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		if errors.Is(err, auth.ErrNoSubject) {
			return fiber.NewError(fiber.StatusBadRequest, "No username in token")
		}
		return fiber.NewError(fiber.StatusNotAcceptable, "Invalid token error")
	}
	if _, err := s.svc.ClientByName(c.UserContext(), name); err != nil {
		if domain.IsNotFound(err) {
			c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
			return fiber.NewError(fiber.StatusNotFound, queue.NoClientWithNameMessage)
		}
		return err
	}
	c.Locals(localClientName, name)
	return c.Next()
}

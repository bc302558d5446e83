package httpapi

import (
	"errors"
	"io"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"

	"github.com/vladislavdragonenkov/queueapp/internal/domain"
	"github.com/vladislavdragonenkov/queueapp/internal/service/queue"
)

const (
	minClientNameLen = 3
	maxClientNameLen = 30
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// login выдаёт bearer-токен по форме username/password.
func (s *server) login(c *fiber.Ctx) error {
	name := c.FormValue("username")
	client, err := s.svc.Login(c.UserContext(), name, c.FormValue("password"))
	switch {
	case domain.IsNotFound(err):
		return fiber.NewError(fiber.StatusNotFound, "Incorrect username")
	case errors.Is(err, domain.ErrWrongPassword):
		return fiber.NewError(fiber.StatusUnauthorized, "Incorrect password")
	case err != nil:
		return err
	}

	token, err := s.tokens.Issue(client.Name)
	if err != nil {
		return err
	}
	return c.JSON(tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *server) changeClientPassword(c *fiber.Ctx) error {
	out, err := s.svc.ChangeClientPassword(c.UserContext(), c.Params("client_name"), c.Query("password"))
	if domain.IsNotFound(err) {
		return withDetail(fiber.StatusNotFound, queue.WrongNameMessage)
	}
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (s *server) updateClient(c *fiber.Ctx) error {
	args := c.Context().QueryArgs()
	var newName, newPassword *string
	if args.Has("name") {
		v := c.Query("name")
		newName = &v
	}
	if args.Has("password") {
		v := c.Query("password")
		newPassword = &v
	}

	out, err := s.svc.UpdateClient(c.UserContext(), c.Params("client_name"), newName, newPassword)
	if domain.IsNotFound(err) {
		return withDetail(fiber.StatusNotFound, queue.WrongNameMessage)
	}
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (s *server) fakeLogin(c *fiber.Ctx) error {
	client, err := s.svc.Login(c.UserContext(), c.FormValue("name"), c.FormValue("password"))
	if err != nil {
		return err
	}
	return c.JSON(domain.MapClient(client))
}

// loginAndSetPhoto проверяет логин и сохраняет загруженный файл как фото клиента.
func (s *server) loginAndSetPhoto(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return message(c, fiber.StatusNotFound, "Wrong photo")
	}
	file, err := header.Open()
	if err != nil {
		return err
	}
	defer file.Close()
	photo, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	out, err := s.svc.SetClientPhoto(c.UserContext(), c.FormValue("name"), c.FormValue("password"), photo)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (s *server) deleteClientsInRange(c *fiber.Ctx) error {
	first, err := int64QueryOr(c, "first", 0)
	if err != nil {
		return err
	}
	last, err := int64QueryOr(c, "last", math.MaxInt64)
	if err != nil {
		return err
	}
	removed, err := s.svc.DeleteClientsInRange(c.UserContext(), first, last)
	if err != nil {
		return err
	}
	return c.JSON(removedResponse{Message: successMessage, RemovedCount: removed})
}

func (s *server) listClients(c *fiber.Ctx) error {
	count, err := optionalInt64Query(c, "count")
	if err != nil {
		return err
	}
	limit := 0
	if count != nil {
		if *count <= 0 {
			return unprocessable("count must be greater than 0")
		}
		limit = int(*count)
	}
	clients, err := s.svc.Clients(c.UserContext(), limit)
	if err != nil {
		return err
	}
	return c.JSON(clients)
}

func validClientName(name string) bool {
	n := utf8.RuneCountInString(name)
	return n >= minClientNameLen && n <= maxClientNameLen
}

// addClient собирает имя из client_name1 и client_name2, пароль из всех passes.
func (s *server) addClient(c *fiber.Ctx) error {
	name := c.Query("client_name1")
	if !validClientName(name) {
		return unprocessable("client_name1 must be 3 to 30 characters long")
	}
	if suffix := c.Query("client_name2"); suffix != "" {
		if !validClientName(suffix) {
			return unprocessable("client_name2 must be 3 to 30 characters long")
		}
		name += suffix
	}
	password := strings.Join(queryValues(c, "passes"), "")

	out, err := s.svc.AddClient(c.UserContext(), name, password)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (s *server) resetStorage(c *fiber.Ctx) error {
	kind, err := domain.ParseBackendKind(c.Query("backend", string(domain.BackendMemory)))
	if err != nil {
		return err
	}
	if err := s.svc.ResetStorage(c.UserContext(), kind); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": successMessage, "backend": kind})
}

package httpapi

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// int64Param разбирает неотрицательный целый параметр пути.
func int64Param(c *fiber.Ctx, name string) (int64, error) {
	v, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || v < 0 {
		return 0, unprocessable(name + " must be a non-negative integer")
	}
	return v, nil
}

// optionalInt64Query возвращает nil, если параметр не передан.
func optionalInt64Query(c *fiber.Ctx, name string) (*int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, unprocessable(name + " must be an integer")
	}
	return &v, nil
}

func int64QueryOr(c *fiber.Ctx, name string, fallback int64) (int64, error) {
	v, err := optionalInt64Query(c, name)
	if err != nil || v == nil {
		return fallback, err
	}
	return *v, nil
}

// parseIDList разбирает список вида "1,2, 3".
func parseIDList(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, v)
	}
	return ids, nil
}

// queryValues возвращает все значения повторяющегося query-параметра.
func queryValues(c *fiber.Ctx, name string) []string {
	var out []string
	c.Context().QueryArgs().VisitAll(func(key, value []byte) {
		if string(key) == name {
			out = append(out, string(value))
		}
	})
	return out
}

package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"estate-commission/internal/core/domain"
	"estate-commission/internal/core/services"
	"estate-commission/internal/pkg/pagination"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// parseBody decodes and validates a JSON request body. Failures wrap
// domain.ErrValidation.
func parseBody(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return domain.Validationf("invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return domain.Validationf("%s", strings.Join(msgs, ", "))
		}
		return domain.Validationf("%v", err)
	}
	return nil
}

func parseID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || id == 0 {
		return 0, domain.Validationf("invalid %s", name)
	}
	return uint(id), nil
}

// queryID reads an optional numeric query parameter
func queryID(c *fiber.Ctx, name string) (*uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil, domain.Validationf("invalid %s", name)
	}
	v := uint(id)
	return &v, nil
}

func pageParams(c *fiber.Ctx) (*pagination.Params, services.Page) {
	params := pagination.GetParams(c)
	return params, services.Page{Offset: params.Offset, Limit: params.Limit}
}

package response

import (
	"errors"
	"fmt"
	"testing"

	"estate-commission/internal/core/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidPrice, fiber.StatusBadRequest},
		{domain.ErrInvalidCredentials, fiber.StatusUnauthorized},
		{domain.ErrForbidden, fiber.StatusForbidden},
		{domain.ErrSubmissionNotFound, fiber.StatusNotFound},
		{domain.InvalidStatef("payable record 1 is paid"), fiber.StatusUnprocessableEntity},
		{domain.ErrAlreadyDistributed, fiber.StatusConflict},
		{fmt.Errorf("%w: deadlock", domain.ErrTransientStorage), fiber.StatusServiceUnavailable},
		{fmt.Errorf("%w: smtp down", domain.ErrDelivery), fiber.StatusBadGateway},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}

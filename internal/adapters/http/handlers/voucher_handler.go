package handlers

import (
	"estate-commission/internal/adapters/http/middleware"
	"estate-commission/internal/core/services"
	"estate-commission/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// VoucherHandler handles voucher endpoints
type VoucherHandler struct {
	voucherService *services.VoucherService
}

// NewVoucherHandler creates a new voucher handler
func NewVoucherHandler(voucherService *services.VoucherService) *VoucherHandler {
	return &VoucherHandler{voucherService: voucherService}
}

// GetVoucher returns a voucher by ID
func (h *VoucherHandler) GetVoucher(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	voucher, err := h.voucherService.Get(c.Context(), middleware.Actor(c), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Voucher retrieved successfully", voucher)
}

// Resend emails a voucher again (Admin only)
// @Summary Resend voucher email
// @Tags Vouchers
// @Produce json
// @Security BearerAuth
// @Param id path int true "Voucher ID"
// @Success 200 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /vouchers/{id}/resend [post]
func (h *VoucherHandler) Resend(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	voucher, err := h.voucherService.Resend(c.Context(), middleware.Actor(c), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Voucher email sent", voucher)
}

// EmailLogs lists delivery attempts for a voucher
func (h *VoucherHandler) EmailLogs(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	logs, err := h.voucherService.EmailLogs(c.Context(), middleware.Actor(c), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Email logs retrieved successfully", logs)
}

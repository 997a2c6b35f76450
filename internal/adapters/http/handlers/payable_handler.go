package handlers

import (
	"estate-commission/internal/adapters/http/middleware"
	"estate-commission/internal/core/domain"
	"estate-commission/internal/core/services"
	"estate-commission/internal/pkg/pagination"
	"estate-commission/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// PayableHandler handles the payment lifecycle endpoints
type PayableHandler struct {
	paymentService *services.PaymentService
	voucherService *services.VoucherService
}

// NewPayableHandler creates a new payable handler
func NewPayableHandler(paymentService *services.PaymentService, voucherService *services.VoucherService) *PayableHandler {
	return &PayableHandler{
		paymentService: paymentService,
		voucherService: voucherService,
	}
}

// BatchMarkPaidRequest pays several pending records with one payment description
type BatchMarkPaidRequest struct {
	IDs []uint `json:"ids" validate:"required,min=1,max=500"`
	services.MarkPaidInput
}

// ListPayables lists payable records
// @Summary List payable records
// @Description Admins may filter freely; agents only see records they are the beneficiary of
// @Tags Payables
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, processing, paid or rejected"
// @Param beneficiary_id query int false "Beneficiary agent ID"
// @Param submission_id query int false "Submission ID"
// @Param share_type query string false "self, direct_upline or indirect_upline"
// @Success 200 {object} response.Response
// @Router /payables [get]
func (h *PayableHandler) ListPayables(c *fiber.Ctx) error {
	params, page := pageParams(c)

	var filter services.PayableListFilter
	var err error
	if filter.BeneficiaryID, err = queryID(c, "beneficiary_id"); err != nil {
		return response.FromError(c, err)
	}
	if filter.SubmissionID, err = queryID(c, "submission_id"); err != nil {
		return response.FromError(c, err)
	}
	if status := c.Query("status"); status != "" {
		s := domain.PayableStatus(status)
		filter.Status = &s
	}
	if share := c.Query("share_type"); share != "" {
		s := domain.ShareType(share)
		filter.ShareType = &s
	}

	items, total, err := h.paymentService.List(c.Context(), middleware.Actor(c), filter, page)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Payable records retrieved successfully", pagination.NewResponse(items, params, total))
}

// GetPayable returns one payable record
func (h *PayableHandler) GetPayable(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	record, err := h.paymentService.Get(c.Context(), middleware.Actor(c), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Payable record retrieved successfully", record)
}

// MarkProcessing moves a pending record to processing (Admin only)
func (h *PayableHandler) MarkProcessing(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	record, err := h.paymentService.MarkProcessing(c.Context(), middleware.Actor(c), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Payable record is processing", record)
}

// MarkPaid pays a record and issues its voucher (Admin only)
// @Summary Mark payable as paid
// @Description Voucher email problems are returned as warnings; the payment stands
// @Tags Payables
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Payable record ID"
// @Param body body services.MarkPaidInput true "Payment details"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /payables/{id}/mark-paid [post]
func (h *PayableHandler) MarkPaid(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var req services.MarkPaidInput
	if err := parseBody(c, &req); err != nil {
		return response.FromError(c, err)
	}

	result, err := h.paymentService.MarkPaid(c.Context(), middleware.Actor(c), id, &req)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Payable record paid", result)
}

// BatchMarkPaid pays pending records in bulk (Admin only)
func (h *PayableHandler) BatchMarkPaid(c *fiber.Ctx) error {
	var req BatchMarkPaidRequest
	if err := parseBody(c, &req); err != nil {
		return response.FromError(c, err)
	}

	result, err := h.paymentService.BatchMarkPaid(c.Context(), middleware.Actor(c), req.IDs, &req.MarkPaidInput)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Batch payment completed", result)
}

// Reject rejects a pending record (Admin only)
func (h *PayableHandler) Reject(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var req ReasonRequest
	if err := parseBody(c, &req); err != nil {
		return response.FromError(c, err)
	}

	record, err := h.paymentService.Reject(c.Context(), middleware.Actor(c), id, req.Reason)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Payable record rejected", record)
}

// Voucher returns the voucher of a paid record
func (h *PayableHandler) Voucher(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	voucher, err := h.voucherService.GetByPayable(c.Context(), middleware.Actor(c), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Voucher retrieved successfully", voucher)
}

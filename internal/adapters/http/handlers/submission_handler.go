package handlers

import (
	"errors"

	"estate-commission/internal/adapters/http/middleware"
	"estate-commission/internal/core/domain"
	"estate-commission/internal/core/services"
	"estate-commission/internal/pkg/pagination"
	"estate-commission/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// SubmissionHandler handles the listing workflow
type SubmissionHandler struct {
	submissionService   *services.SubmissionService
	distributionService *services.DistributionService
	paymentService      *services.PaymentService
}

// NewSubmissionHandler creates a new submission handler
func NewSubmissionHandler(submissionService *services.SubmissionService, distributionService *services.DistributionService, paymentService *services.PaymentService) *SubmissionHandler {
	return &SubmissionHandler{
		submissionService:   submissionService,
		distributionService: distributionService,
		paymentService:      paymentService,
	}
}

// ReasonRequest carries a rejection reason
type ReasonRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// CreateSubmission handles listing creation
// @Summary Create submission
// @Description Record a sale or rental as a draft submission
// @Tags Submissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreateSubmissionInput true "Submission data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /submissions [post]
func (h *SubmissionHandler) CreateSubmission(c *fiber.Ctx) error {
	var req services.CreateSubmissionInput
	if err := parseBody(c, &req); err != nil {
		return response.FromError(c, err)
	}

	sub, err := h.submissionService.Create(c.Context(), middleware.Actor(c), &req)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, "Submission created successfully", sub)
}

// ListSubmissions lists submissions; agents only see their own
// @Summary List submissions
// @Tags Submissions
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Param status query string false "draft, submitted, approved or rejected"
// @Param agent_id query int false "Agent ID (admin only)"
// @Success 200 {object} response.Response
// @Router /submissions [get]
func (h *SubmissionHandler) ListSubmissions(c *fiber.Ctx) error {
	params, page := pageParams(c)

	var filter services.SubmissionListFilter
	agentID, err := queryID(c, "agent_id")
	if err != nil {
		return response.FromError(c, err)
	}
	filter.AgentID = agentID
	if status := c.Query("status"); status != "" {
		s := domain.SubmissionStatus(status)
		filter.Status = &s
	}

	items, total, err := h.submissionService.List(c.Context(), middleware.Actor(c), filter, page)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Submissions retrieved successfully", pagination.NewResponse(items, params, total))
}

// GetSubmission returns one submission
func (h *SubmissionHandler) GetSubmission(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	sub, err := h.submissionService.Get(c.Context(), middleware.Actor(c), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Submission retrieved successfully", sub)
}

// Submit moves a draft to submitted
func (h *SubmissionHandler) Submit(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	sub, err := h.submissionService.Submit(c.Context(), middleware.Actor(c), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Submission submitted", sub)
}

// Approve approves a submission and distributes its commission (Admin only)
// @Summary Approve submission
// @Description Approve and distribute commission in one step. Repeating the call returns the existing distribution.
// @Tags Submissions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Submission ID"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /submissions/{id}/approve [post]
func (h *SubmissionHandler) Approve(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	result, err := h.submissionService.Approve(c.Context(), middleware.Actor(c), id)
	if err != nil {
		return response.FromError(c, err)
	}
	if result.AlreadyApproved {
		return response.Success(c, "Submission already approved", result)
	}
	return response.Success(c, "Submission approved", result)
}

// Distribute records the commission split of an approved submission (Admin only).
// A repeated call answers 200 with the rows recorded the first time.
func (h *SubmissionHandler) Distribute(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	result, err := h.distributionService.Distribute(c.Context(), middleware.Actor(c), id)
	if errors.Is(err, domain.ErrAlreadyDistributed) && result != nil {
		return response.Success(c, "Commission already distributed", result)
	}
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Commission distributed", result)
}

// Reject rejects a submitted listing (Admin only)
func (h *SubmissionHandler) Reject(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var req ReasonRequest
	if err := parseBody(c, &req); err != nil {
		return response.FromError(c, err)
	}

	sub, err := h.submissionService.Reject(c.Context(), middleware.Actor(c), id, req.Reason)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Submission rejected", sub)
}

// ReturnToDraft reopens a rejected submission
func (h *SubmissionHandler) ReturnToDraft(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	sub, err := h.submissionService.ReturnToDraft(c.Context(), middleware.Actor(c), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Submission returned to draft", sub)
}

// AddDocument records a document reference against a submission
func (h *SubmissionHandler) AddDocument(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var req services.AddDocumentInput
	if err := parseBody(c, &req); err != nil {
		return response.FromError(c, err)
	}

	doc, err := h.submissionService.AddDocument(c.Context(), middleware.Actor(c), id, &req)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, "Document recorded", doc)
}

// Documents lists a submission's document references
func (h *SubmissionHandler) Documents(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	docs, err := h.submissionService.Documents(c.Context(), middleware.Actor(c), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Documents retrieved successfully", docs)
}

// Recompute rebuilds a submission's commission and paid totals (Admin only)
func (h *SubmissionHandler) Recompute(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	sub, err := h.paymentService.RecomputeSubmissionCounters(c.Context(), middleware.Actor(c), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Submission counters recomputed", sub)
}

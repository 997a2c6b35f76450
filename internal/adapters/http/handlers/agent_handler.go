package handlers

import (
	"estate-commission/internal/adapters/http/middleware"
	"estate-commission/internal/core/services"
	"estate-commission/internal/pkg/pagination"
	"estate-commission/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AgentHandler handles agent and hierarchy endpoints
type AgentHandler struct {
	agentService   *services.AgentService
	summaryService *services.SummaryService
	paymentService *services.PaymentService
}

// NewAgentHandler creates a new agent handler
func NewAgentHandler(agentService *services.AgentService, summaryService *services.SummaryService, paymentService *services.PaymentService) *AgentHandler {
	return &AgentHandler{
		agentService:   agentService,
		summaryService: summaryService,
		paymentService: paymentService,
	}
}

// AssignUplineRequest sets or clears (null) the direct upline
type AssignUplineRequest struct {
	DirectUplineID *uint `json:"direct_upline_id"`
}

// CreateAgent handles agent creation (Admin only)
// @Summary Create agent
// @Description Create an agent, optionally under an upline and with a login
// @Tags Agents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreateAgentInput true "Agent data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /agents [post]
func (h *AgentHandler) CreateAgent(c *fiber.Ctx) error {
	var req services.CreateAgentInput
	if err := parseBody(c, &req); err != nil {
		return response.FromError(c, err)
	}

	result, err := h.agentService.Create(c.Context(), middleware.Actor(c), &req)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, "Agent created successfully", result)
}

// ListAgents handles listing agents (Admin only)
func (h *AgentHandler) ListAgents(c *fiber.Ctx) error {
	params, page := pageParams(c)
	agents, total, err := h.agentService.List(c.Context(), middleware.Actor(c), page)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Agents retrieved successfully", pagination.NewResponse(agents, params, total))
}

// GetAgent handles getting an agent by ID
// @Summary Get agent
// @Tags Agents
// @Produce json
// @Security BearerAuth
// @Param id path int true "Agent ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /agents/{id} [get]
func (h *AgentHandler) GetAgent(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	agent, err := h.agentService.Get(c.Context(), middleware.Actor(c), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Agent retrieved successfully", agent)
}

// UpdateRates replaces an agent's commission rates (Admin only)
// @Summary Update agent rates
// @Tags Agents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Agent ID"
// @Param body body services.UpdateRatesInput true "Rates in percent"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /agents/{id}/rates [put]
func (h *AgentHandler) UpdateRates(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var req services.UpdateRatesInput
	if err := parseBody(c, &req); err != nil {
		return response.FromError(c, err)
	}

	result, err := h.agentService.UpdateRates(c.Context(), middleware.Actor(c), id, &req)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Agent rates updated", result)
}

// AssignUpline sets or clears an agent's direct upline (Admin only)
func (h *AgentHandler) AssignUpline(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var req AssignUplineRequest
	if err := parseBody(c, &req); err != nil {
		return response.FromError(c, err)
	}

	agent, err := h.agentService.AssignUpline(c.Context(), middleware.Actor(c), id, req.DirectUplineID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Upline updated", agent)
}

// Downlines lists the agents under an agent
func (h *AgentHandler) Downlines(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	downlines, err := h.agentService.Downlines(c.Context(), middleware.Actor(c), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Downlines retrieved successfully", downlines)
}

// UplineCommissions lists shares earned from downline sales
func (h *AgentHandler) UplineCommissions(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	items, err := h.agentService.UplineCommissions(c.Context(), middleware.Actor(c), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Upline commissions retrieved successfully", items)
}

// Summary returns an agent's commission totals
// @Summary Commission summary
// @Tags Agents
// @Produce json
// @Security BearerAuth
// @Param id path int true "Agent ID"
// @Success 200 {object} response.Response
// @Router /agents/{id}/summary [get]
func (h *AgentHandler) Summary(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	summary, err := h.summaryService.CommissionSummary(c.Context(), middleware.Actor(c), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Commission summary retrieved successfully", summary)
}

// Recompute rebuilds an agent's totals from the ledger (Admin only)
func (h *AgentHandler) Recompute(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	agent, err := h.paymentService.RecomputeAgentCounters(c.Context(), middleware.Actor(c), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Agent counters recomputed", agent)
}

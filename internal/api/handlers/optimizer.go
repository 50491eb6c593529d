package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/dfs-lineup/internal/services"
	"github.com/stitts-dev/dfs-lineup/pkg/utils"
)

type OptimizerHandler struct {
	service *services.LineupService
	logger  *logrus.Logger
}

func NewOptimizerHandler(service *services.LineupService, logger *logrus.Logger) *OptimizerHandler {
	return &OptimizerHandler{
		service: service,
		logger:  logger,
	}
}

// OptimizeLineups generates a batch of distinct lineups
func (h *OptimizerHandler) OptimizeLineups(c *gin.Context) {
	var req services.OptimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	res, err := h.service.Optimize(c.Request.Context(), req)
	if err != nil {
		h.logger.WithError(err).WithField("num_lineups", req.NumLineups).Warn("Optimization request failed")
		utils.SendDomainError(c, err)
		return
	}

	batch := res.Batch
	c.Set("batch_id", batch.BatchID)
	utils.SendSuccessWithMeta(c, batch, &utils.Meta{
		Requested:  batch.Requested,
		Produced:   batch.Produced,
		Shortfall:  batch.Shortfall,
		StopReason: batch.StopReason,
		Cached:     res.Cached,
		Warning:    batch.Warning,
	})
}

type validateRequest struct {
	Players   []string `json:"players" binding:"required,min=1"`
	SalaryCap int      `json:"salary_cap"`
}

// ValidateLineup checks a hand-built lineup against the roster rules
func (h *OptimizerHandler) ValidateLineup(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	res, err := h.service.ValidateLineup(req.Players, req.SalaryCap)
	if err != nil {
		utils.SendDomainError(c, err)
		return
	}
	utils.SendSuccess(c, res)
}

// GetPool returns the current player pool snapshot
func (h *OptimizerHandler) GetPool(c *gin.Context) {
	if h.service.Pool() == nil {
		utils.SendNotFound(c, "No player pool loaded")
		return
	}
	summary, err := h.service.Summary()
	if err != nil {
		utils.SendDomainError(c, err)
		return
	}
	utils.SendSuccess(c, summary)
}

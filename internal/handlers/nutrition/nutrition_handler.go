// internal/handlers/nutrition/nutrition_handler.go
package nutrition

import (
	"net/http"
	"strconv"

	nutritionDomain "fitbridge-service/internal/domain/nutrition"
	"fitbridge-service/internal/middleware"
	xerrors "fitbridge-service/internal/pkg/errors"
	"fitbridge-service/internal/pkg/response"
	nutritionUsecase "fitbridge-service/internal/service/nutrition"

	"github.com/gin-gonic/gin"
)

type NutritionHandler struct {
	nutritionService *nutritionUsecase.NutritionService
}

func NewNutritionHandler(nutritionService *nutritionUsecase.NutritionService) *NutritionHandler {
	return &NutritionHandler{nutritionService: nutritionService}
}

// CreateLog records a food entry
func (h *NutritionHandler) CreateLog(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	var req nutritionDomain.CreateLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	log, err := h.nutritionService.CreateLog(c.Request.Context(), identityID, &req)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrInvalidInput) {
			response.ValidationError(c, "invalid date", err)
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to create log", err)
		return
	}

	response.Success(c, http.StatusCreated, "log created", log)
}

// ListLogs returns entries for a day (?date=YYYY-MM-DD)
func (h *NutritionHandler) ListLogs(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	logs, err := h.nutritionService.ListLogs(c.Request.Context(), identityID, c.Query("date"))
	if err != nil {
		if xerrors.Is(err, xerrors.ErrInvalidInput) {
			response.ValidationError(c, "invalid date", err)
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to list logs", err)
		return
	}

	response.Success(c, http.StatusOK, "logs retrieved", logs)
}

// GetSummary returns the daily calorie overview (?date=YYYY-MM-DD)
func (h *NutritionHandler) GetSummary(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	summary, err := h.nutritionService.DailySummary(c.Request.Context(), identityID, c.Query("date"))
	if err != nil {
		if xerrors.Is(err, xerrors.ErrInvalidInput) {
			response.ValidationError(c, "invalid date", err)
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to compute summary", err)
		return
	}

	response.Success(c, http.StatusOK, "summary computed", summary)
}

// DeleteLog removes an entry
func (h *NutritionHandler) DeleteLog(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ValidationError(c, "invalid id", err)
		return
	}

	if err := h.nutritionService.DeleteLog(c.Request.Context(), identityID, id); err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "log not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to delete log", err)
		return
	}

	response.Success(c, http.StatusOK, "log deleted", nil)
}

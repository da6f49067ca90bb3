package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/adcraft-ai/adcraft-backend/internal/http/response"
	"github.com/adcraft-ai/adcraft-backend/internal/services"
	"github.com/adcraft-ai/adcraft-backend/internal/types"
)

type SuggestionHandler struct {
	suggestions services.SuggestionService
}

func NewSuggestionHandler(suggestions services.SuggestionService) *SuggestionHandler {
	return &SuggestionHandler{suggestions: suggestions}
}

type suggestReq struct {
	ProductID          *uuid.UUID `json:"product_id"`
	UploadDescriptions []string   `json:"upload_descriptions"`
	Goal               string     `json:"goal"`
	Mode               string     `json:"mode"`
	TemplateID         *uuid.UUID `json:"template_id"`
	Count              int        `json:"count"`
	Debug              bool       `json:"debug"`
}

// POST /api/v1/suggestions
func (h *SuggestionHandler) Generate(c *gin.Context) {
	userID, err := userIDFromHeader(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_user", err)
		return
	}

	var req suggestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	outcome, err := h.suggestions.GenerateSuggestions(c.Request.Context(), types.SuggestRequest{
		UserID:             userID,
		ProductID:          req.ProductID,
		UploadDescriptions: req.UploadDescriptions,
		Goal:               req.Goal,
		Mode:               types.SuggestionMode(req.Mode),
		TemplateID:         req.TemplateID,
		Count:              req.Count,
		Debug:              req.Debug,
	})
	if err != nil {
		response.RespondTypedError(c, err)
		return
	}

	if outcome.Template != nil {
		response.RespondOK(c, outcome.Template)
		return
	}
	response.RespondOK(c, outcome.Freestyle)
}

// GET /api/v1/products/:id/templates
func (h *SuggestionHandler) MatchedTemplates(c *gin.Context) {
	userID, err := userIDFromHeader(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_user", err)
		return
	}

	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_product_id", err)
		return
	}

	result, err := h.suggestions.GetMatchedTemplates(c.Request.Context(), productID, userID)
	if err != nil {
		response.RespondTypedError(c, err)
		return
	}
	response.RespondOK(c, result)
}

type invalidateReq struct {
	ProductIDs []uuid.UUID `json:"product_ids"`
}

// DELETE /api/v1/suggestions/cache
func (h *SuggestionHandler) InvalidateCache(c *gin.Context) {
	userID, err := userIDFromHeader(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_user", err)
		return
	}

	var req invalidateReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}

	h.suggestions.InvalidateSuggestionCache(c.Request.Context(), userID, req.ProductIDs)
	response.RespondOK(c, gin.H{"invalidated": true})
}

func userIDFromHeader(c *gin.Context) (uuid.UUID, error) {
	raw := c.GetHeader("X-User-ID")
	if raw == "" {
		return uuid.Nil, fmt.Errorf("missing X-User-ID header")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid X-User-ID header")
	}
	return userID, nil
}

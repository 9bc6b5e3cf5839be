package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"peopleflow/internal/model"
	"peopleflow/internal/repository"
)

type RuleHandler struct {
	rules *repository.RuleRepository
}

func NewRuleHandler(rules *repository.RuleRepository) *RuleHandler {
	return &RuleHandler{rules: rules}
}

// List handles GET /api/rules
func (h *RuleHandler) List(c *gin.Context) {
	rules, err := h.rules.ListActive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list rules"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

// Get handles GET /api/rules/:id
func (h *RuleHandler) Get(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule id"})
		return
	}

	rule, err := h.rules.GetByID(c.Request.Context(), id)
	if errors.Is(err, repository.ErrRuleNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rule"})
		return
	}
	c.JSON(http.StatusOK, rule)
}

// Create handles POST /api/rules
func (h *RuleHandler) Create(c *gin.Context) {
	var rule model.NotificationRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if len(rule.Chain) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "escalation chain must have at least one step"})
		return
	}

	id, err := h.rules.Create(c.Request.Context(), &rule)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create rule"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"rule_id": id})
}

// Update handles PUT /api/rules/:id
func (h *RuleHandler) Update(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule id"})
		return
	}

	var rule model.NotificationRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	rule.ID = id

	err = h.rules.Update(c.Request.Context(), &rule)
	if errors.Is(err, repository.ErrRuleNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update rule"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rule_id": id})
}

// Delete handles DELETE /api/rules/:id
func (h *RuleHandler) Delete(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule id"})
		return
	}

	err = h.rules.Delete(c.Request.Context(), id)
	if errors.Is(err, repository.ErrRuleNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete rule"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"peopleflow/internal/model"
	"peopleflow/internal/service/router"
)

type PreferenceHandler struct {
	router *router.Router
}

func NewPreferenceHandler(r *router.Router) *PreferenceHandler {
	return &PreferenceHandler{router: r}
}

// Get handles GET /api/preferences
func (h *PreferenceHandler) Get(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	prefs, err := h.router.GetPreferences(c.Request.Context(), userID.(int))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load preferences"})
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// Update handles PUT /api/preferences. The body is a partial update:
// omitted fields keep their current value.
func (h *PreferenceHandler) Update(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var upd model.PreferencesUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	prefs, err := h.router.UpdatePreferences(c.Request.Context(), userID.(int), upd)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update preferences"})
		return
	}
	c.JSON(http.StatusOK, prefs)
}

package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"peopleflow/internal/handler"
)

type Router struct {
	Engine *gin.Engine
}

func NewRouter(
	ruleHandler *handler.RuleHandler,
	preferenceHandler *handler.PreferenceHandler,
	notificationHandler *handler.NotificationHandler,
	jwtSecret string,
	db *pgxpool.Pool,
) *Router {
	r := gin.Default()

	// Public
	r.GET("/healthz", func(c *gin.Context) {
		if err := db.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected
	api := r.Group("/api")
	api.Use(AuthMiddleware(jwtSecret))
	{
		api.GET("/rules", ruleHandler.List)
		api.POST("/rules", ruleHandler.Create)
		api.GET("/rules/:id", ruleHandler.Get)
		api.PUT("/rules/:id", ruleHandler.Update)
		api.DELETE("/rules/:id", ruleHandler.Delete)

		api.GET("/preferences", preferenceHandler.Get)
		api.PUT("/preferences", preferenceHandler.Update)

		api.GET("/notifications", notificationHandler.List)
		api.POST("/notifications/:id/read", notificationHandler.MarkRead)
		api.POST("/notifications/:id/acted", notificationHandler.MarkActed)
		api.POST("/notifications/read_all", notificationHandler.MarkAllRead)
	}

	return &Router{Engine: r}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}

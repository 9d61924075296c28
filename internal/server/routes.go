package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the API under /api/v1 plus a health check on /
func RegisterRoutes(router *gin.Engine, h *Handler) {
	api := router.Group("/api/v1")
	{
		api.GET("/schema", h.GetSchema)
		api.PUT("/schema", h.PutSchema)

		api.GET("/sql", h.GetSQL)
		api.POST("/sql", h.ApplySQL)

		api.GET("/dialects", h.ListDialects)
		api.PUT("/dialect", h.SetDialect)

		api.POST("/tables", h.CreateTable)
		api.PATCH("/tables/:id", h.UpdateTable)
		api.DELETE("/tables/:id", h.DeleteTable)

		api.POST("/tables/:id/columns", h.CreateColumn)
		api.PATCH("/tables/:id/columns/:colId", h.UpdateColumn)
		api.DELETE("/tables/:id/columns/:colId", h.DeleteColumn)

		api.POST("/relations", h.CreateRelation)
		api.DELETE("/relations/:id", h.DeleteRelation)

		api.GET("/projects", h.ListProjects)
		api.PUT("/projects/:name", h.SaveProject)
		api.POST("/projects/:name/load", h.LoadProject)
	}

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})
}

package handlers_projects

import (
	"littlefolio/internal/models/clprojects"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type ProjectsHandler struct {
	projects *clprojects.Repository
}

func NewProjectsHandler(projects *clprojects.Repository) *ProjectsHandler {
	return &ProjectsHandler{projects: projects}
}

// List: projets mis en avant d'abord, puis sort_order
func (ph *ProjectsHandler) List(c *gin.Context) {
	projects, err := ph.projects.List(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("liste projets")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur interne du serveur"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

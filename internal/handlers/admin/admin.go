package handlers_admin

import (
	"errors"
	"fmt"
	"littlefolio/internal/models/clfolio"
	"littlefolio/internal/models/climages"
	"littlefolio/internal/models/clposts"
	"littlefolio/internal/models/clprojects"
	"net/http"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

type AdminHandler struct {
	lf *clfolio.Littlefolio
}

func NewAdminHandler(lf *clfolio.Littlefolio) *AdminHandler {
	return &AdminHandler{lf: lf}
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID invalide"})
		return 0, false
	}
	return uint(id), true
}

func internalError(c *gin.Context, err error, msg string) {
	log.Error().Err(err).Msg(msg)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur interne du serveur"})
}

// ============= PROJETS =============

func (ah *AdminHandler) ListProjects(c *gin.Context) {
	projects, err := ah.lf.Projects.List(c.Request.Context())
	if err != nil {
		internalError(c, err, "liste projets")
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (ah *AdminHandler) CreateProject(c *gin.Context) {
	var in clprojects.ProjectInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}

	project, err := ah.lf.Projects.Create(c.Request.Context(), in)
	if err != nil {
		internalError(c, err, "création projet")
		return
	}
	c.JSON(http.StatusCreated, project)
}

func (ah *AdminHandler) UpdateProject(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var in clprojects.ProjectInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}

	project, err := ah.lf.Projects.Update(c.Request.Context(), id, in)
	if errors.Is(err, clprojects.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Projet non trouvé"})
		return
	}
	if err != nil {
		internalError(c, err, "mise à jour projet")
		return
	}
	c.JSON(http.StatusOK, project)
}

func (ah *AdminHandler) DeleteProject(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	err := ah.lf.Projects.Delete(c.Request.Context(), id)
	if errors.Is(err, clprojects.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Projet non trouvé"})
		return
	}
	if err != nil {
		internalError(c, err, "suppression projet")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ============= ARTICLES =============

func (ah *AdminHandler) ListPosts(c *gin.Context) {
	posts, err := ah.lf.Posts.List(c.Request.Context())
	if err != nil {
		internalError(c, err, "liste articles")
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (ah *AdminHandler) GetPost(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	post, err := ah.lf.Posts.Get(c.Request.Context(), id)
	if errors.Is(err, clposts.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article non trouvé"})
		return
	}
	if err != nil {
		internalError(c, err, "lecture article")
		return
	}
	post.Render(ah.lf.Markdown)
	c.JSON(http.StatusOK, post)
}

func (ah *AdminHandler) CreatePost(c *gin.Context) {
	var in clposts.PostInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}

	post, err := ah.lf.Posts.Create(c.Request.Context(), in)
	if err != nil {
		internalError(c, err, "création article")
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (ah *AdminHandler) UpdatePost(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var in clposts.PostInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}

	post, err := ah.lf.Posts.Update(c.Request.Context(), id, in)
	if errors.Is(err, clposts.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article non trouvé"})
		return
	}
	if err != nil {
		internalError(c, err, "mise à jour article")
		return
	}
	c.JSON(http.StatusOK, post)
}

func (ah *AdminHandler) DeletePost(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	err := ah.lf.Posts.Delete(c.Request.Context(), id)
	if errors.Is(err, clposts.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article non trouvé"})
		return
	}
	if err != nil {
		internalError(c, err, "suppression article")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ============= UPLOAD =============

func (ah *AdminHandler) UploadImage(c *gin.Context) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Fichier non trouvé"})
		return
	}
	defer file.Close()

	dir := filepath.Join(ah.lf.Configuration.StaticPath, "uploads")
	upload, err := climages.Save(file, header.Size, dir)
	switch {
	case errors.Is(err, climages.ErrNotImage), errors.Is(err, climages.ErrUnsupported), errors.Is(err, climages.ErrTooLarge),
		errors.Is(err, climages.ErrTooManyPx):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		internalError(c, err, "upload image")
		return
	}

	c.JSON(http.StatusOK, upload)
}

// ============= DASHBOARD =============

func memUsage() gin.H {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	stats := gin.H{
		"allocMb":    m.Alloc / 1024 / 1024,
		"sysMb":      m.Sys / 1024 / 1024,
		"numGc":      m.NumGC,
		"goroutines": runtime.NumGoroutine(),
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		stats["hostUsedPercent"] = fmt.Sprintf("%.1f", vm.UsedPercent)
		stats["hostTotalMb"] = vm.Total / 1024 / 1024
	}
	if uptime, err := host.Uptime(); err == nil {
		stats["hostUptime"] = (time.Duration(uptime) * time.Second).String()
	}
	return stats
}

func (ah *AdminHandler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()

	totalPosts, publishedPosts, err := ah.lf.Posts.Count(ctx)
	if err != nil {
		internalError(c, err, "comptage articles")
		return
	}
	totalProjects, err := ah.lf.Projects.Count(ctx)
	if err != nil {
		internalError(c, err, "comptage projets")
		return
	}
	recent, err := ah.lf.Posts.LatestPublished(ctx, 5)
	if err != nil {
		internalError(c, err, "articles récents")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats": gin.H{
			"totalPosts":     totalPosts,
			"publishedPosts": publishedPosts,
			"totalProjects":  totalProjects,
		},
		"recentPosts": recent,
		"analytics":   ah.lf.Tracker != nil,
		"memories":    memUsage(),
		"version":     ah.lf.Version,
		"buildId":     ah.lf.BuildID,
	})
}

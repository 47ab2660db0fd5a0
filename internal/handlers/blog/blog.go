package handlers_blog

import (
	"errors"
	"littlefolio/internal/models/clmarkdown"
	"littlefolio/internal/models/clposts"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type BlogHandler struct {
	posts    *clposts.Repository
	markdown *clmarkdown.Renderer
}

func NewBlogHandler(posts *clposts.Repository, markdown *clmarkdown.Renderer) *BlogHandler {
	return &BlogHandler{posts: posts, markdown: markdown}
}

// List: GET /api/blog?page=1&limit=10&category=go
func (bh *BlogHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	category := clposts.Slugify(c.Query("category"))

	posts, total, err := bh.posts.ListPublished(c.Request.Context(), page, limit, category)
	if err != nil {
		log.Error().Err(err).Msg("liste articles")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur interne du serveur"})
		return
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 10
	}

	c.JSON(http.StatusOK, gin.H{
		"posts": posts,
		"pagination": gin.H{
			"page":       page,
			"limit":      limit,
			"total":      total,
			"totalPages": int(math.Ceil(float64(total) / float64(limit))),
		},
	})
}

// Get: GET /api/blog/:slug, incrémente les vues de l'article publié
func (bh *BlogHandler) Get(c *gin.Context) {
	post, err := bh.posts.ViewBySlug(c.Request.Context(), c.Param("slug"))
	if errors.Is(err, clposts.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article non trouvé"})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("slug", c.Param("slug")).Msg("lecture article")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur interne du serveur"})
		return
	}

	post.Render(bh.markdown)
	c.JSON(http.StatusOK, post)
}

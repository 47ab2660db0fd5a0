package handlers_admin

import (
	"errors"
	"littlefolio/internal/clmiddleware"
	"littlefolio/internal/models/clauth"
	"littlefolio/internal/models/clcaptchas"
	"littlefolio/internal/models/clclient"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const captchaSessionKey = "captcha_id"

type LoginRequest struct {
	Username      string `json:"username" binding:"required,max=100"`
	Password      string `json:"password" binding:"required,max=200"`
	CaptchaID     string `json:"captchaId"`
	CaptchaAnswer string `json:"captchaAnswer"`
}

// Captcha: GET /api/captcha, l'identifiant est gardé dans la session cookie
func (ah *AdminHandler) Captcha(c *gin.Context) {
	ch, err := ah.lf.Captcha.Generate(ah.lf.Configuration.Production)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	session := sessions.Default(c)
	session.Set(captchaSessionKey, ch.ID)
	if err := session.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur session"})
		return
	}

	c.JSON(http.StatusOK, ch)
}

func (ah *AdminHandler) verifyCaptcha(c *gin.Context, req LoginRequest) error {
	session := sessions.Default(c)
	id, _ := session.Get(captchaSessionKey).(string)
	if id == "" {
		id = req.CaptchaID
	} else if req.CaptchaID != "" && req.CaptchaID != id {
		return clcaptchas.ErrInvalid
	}
	session.Delete(captchaSessionKey)
	_ = session.Save()

	return ah.lf.Captcha.Verify(id, req.CaptchaAnswer)
}

// Login: POST /api/admin/auth/login
func (ah *AdminHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}

	if ah.lf.Configuration.Auth.Captcha {
		if err := ah.verifyCaptcha(c, req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	ip := clclient.ClientIP(c.Request.Header)
	res, err := ah.lf.Auth.Login(c.Request.Context(), strings.TrimSpace(req.Username), req.Password, ip, clclient.Truncate(c.Request.UserAgent(), clclient.MaxUserAgentLength))
	if errors.Is(err, clauth.ErrUnauthorized) {
		log.Warn().Str("user", req.Username).Str("ip", ip).Msg("Tentative de connexion échouée")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Identifiants incorrects"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("connexion administrateur")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur interne du serveur"})
		return
	}

	ah.setTokenCookie(c, res.Token, int(ah.lf.Configuration.Auth.SessionTTL.Seconds()))
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"user":      res.User.Public(),
		"expiresAt": res.ExpiresAt,
	})
}

// Verify: GET /api/admin/auth/verify, derrière AdminRequired
func (ah *AdminHandler) Verify(c *gin.Context) {
	user := clmiddleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Non autorisé"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user.Public()})
}

// Logout supprime la session même si le token est déjà invalide
func (ah *AdminHandler) Logout(c *gin.Context) {
	if err := ah.lf.Auth.Logout(c.Request.Context(), clmiddleware.AdminToken(c)); err != nil {
		log.Error().Err(err).Msg("déconnexion administrateur")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur interne du serveur"})
		return
	}

	ah.setTokenCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (ah *AdminHandler) setTokenCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(clmiddleware.AdminCookie, token, maxAge, "/", "", ah.lf.Configuration.Production, true)
}

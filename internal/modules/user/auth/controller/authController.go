package controller

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"bloodlink/config"
	"bloodlink/internal/modules/user/auth"
)

const refreshCookieName = "refresh_token"

type AuthController struct {
	log      *slog.Logger
	uc       auth.UseCase
	validate *validator.Validate
	jwtCfg   config.JWTConfig
	secure   bool
}

func NewAuthController(log *slog.Logger, uc auth.UseCase, jwtCfg config.JWTConfig, secureCookies bool) *AuthController {
	return &AuthController{
		log:      log,
		uc:       uc,
		jwtCfg:   jwtCfg,
		secure:   secureCookies,
		validate: validator.New(),
	}
}

func (c *AuthController) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Expires:  time.Now().Add(c.jwtCfg.RefreshExpire),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
	})
}

func (c *AuthController) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		Path:     "/",
	})
}

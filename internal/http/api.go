package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"user-auth/internal/credential"
	"user-auth/internal/service"
)

// CookieOptions controls the session cookie handed to clients.
type CookieOptions struct {
	Name   string
	Secure bool
}

// Handler wires HTTP routes to the auth service.
type Handler struct {
	auth   service.AuthService
	cookie CookieOptions
	log    logrus.FieldLogger
}

func NewHandler(auth service.AuthService, cookie CookieOptions, logger logrus.FieldLogger) *Handler {
	if cookie.Name == "" {
		cookie.Name = "session_id"
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		auth:   auth,
		cookie: cookie,
		log:    logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestLogger(h.log))

	router.GET("/", h.welcome)
	handle(router, http.MethodGet, "/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	handle(router, http.MethodPost, "/users", h.registerUser)
	handle(router, http.MethodPost, "/sessions", h.login)
	handle(router, http.MethodDelete, "/sessions", h.logout)
	handle(router, http.MethodGet, "/profile", h.profile)
	handle(router, http.MethodPost, "/reset_password", h.resetPasswordToken)
	handle(router, http.MethodPut, "/reset_password", h.updatePassword)
}

// handle registers path with and without a trailing slash so both are
// served in place instead of redirected.
func handle(router *gin.Engine, method, path string, fn gin.HandlerFunc) {
	router.Handle(method, path, fn)
	router.Handle(method, path+"/", fn)
}

func (h *Handler) welcome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Bienvenue"})
}

func (h *Handler) registerUser(c *gin.Context) {
	email := c.PostForm("email")
	password := c.PostForm("password")
	if email == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "email and password are required"})
		return
	}

	user, err := h.auth.Register(c.Request.Context(), email, password)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyExists) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "email already registered"})
			return
		}
		if errors.Is(err, credential.ErrPasswordTooLong) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "password is too long"})
			return
		}
		h.internalError(c, "register user", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"email": user.Email, "message": "user created"})
}

func (h *Handler) login(c *gin.Context) {
	email := c.PostForm("email")
	password := c.PostForm("password")

	ok, err := h.auth.ValidateLogin(c.Request.Context(), email, password)
	if err != nil {
		h.internalError(c, "validate login", err)
		return
	}
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid email or password"})
		return
	}

	sessionID, err := h.auth.CreateSession(c.Request.Context(), email)
	if err != nil {
		h.internalError(c, "create session", err)
		return
	}
	if sessionID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid email or password"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, sessionID, 0, "/", "", h.cookie.Secure, true)
	c.JSON(http.StatusOK, gin.H{"email": email, "message": "logged in"})
}

func (h *Handler) logout(c *gin.Context) {
	sessionID, _ := c.Cookie(h.cookie.Name)
	user, err := h.auth.GetUserBySession(c.Request.Context(), sessionID)
	if err != nil {
		h.internalError(c, "lookup session", err)
		return
	}
	if user == nil {
		c.JSON(http.StatusForbidden, gin.H{"message": "forbidden"})
		return
	}

	if err := h.auth.DestroySession(c.Request.Context(), user.ID); err != nil {
		h.internalError(c, "destroy session", err)
		return
	}
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) profile(c *gin.Context) {
	sessionID, _ := c.Cookie(h.cookie.Name)
	user, err := h.auth.GetUserBySession(c.Request.Context(), sessionID)
	if err != nil {
		h.internalError(c, "lookup session", err)
		return
	}
	if user == nil {
		c.JSON(http.StatusForbidden, gin.H{"message": "forbidden"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"email": user.Email, "message": "logged in"})
}

func (h *Handler) resetPasswordToken(c *gin.Context) {
	email := c.PostForm("email")

	resetToken, err := h.auth.RequestPasswordReset(c.Request.Context(), email)
	if err != nil {
		if errors.Is(err, service.ErrNotRegistered) {
			c.JSON(http.StatusForbidden, gin.H{"message": "email not registered"})
			return
		}
		h.internalError(c, "reset password token", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"email": email, "reset_token": resetToken})
}

func (h *Handler) updatePassword(c *gin.Context) {
	email := c.PostForm("email")
	resetToken := c.PostForm("reset_token")
	newPassword := c.PostForm("new_password")
	if newPassword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "new_password is required"})
		return
	}

	if err := h.auth.CompletePasswordReset(c.Request.Context(), resetToken, newPassword); err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			c.JSON(http.StatusForbidden, gin.H{"message": "invalid reset token"})
			return
		}
		if errors.Is(err, credential.ErrPasswordTooLong) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "password is too long"})
			return
		}
		h.internalError(c, "update password", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"email": email, "message": "Password updated"})
}

func (h *Handler) internalError(c *gin.Context, op string, err error) {
	entryFor(c, h.log).WithError(err).Error(op)
	c.JSON(http.StatusInternalServerError, gin.H{"message": "internal server error"})
}

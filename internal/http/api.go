package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"identity-service/internal/auth"
	"identity-service/internal/domain"
	"identity-service/internal/service"
)

// Handler wires HTTP routes to the account service.
type Handler struct {
	users      service.UserService
	extractor  *auth.Extractor
	logger     *logrus.Logger
	corsOrigin string
}

func NewHandler(users service.UserService, extractor *auth.Extractor, logger *logrus.Logger, corsOrigin string) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	if corsOrigin == "" {
		corsOrigin = "*"
	}
	return &Handler{
		users:      users,
		extractor:  extractor,
		logger:     logger,
		corsOrigin: corsOrigin,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestLogger(h.logger), corsMiddleware(h.corsOrigin))

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)
	}

	protected := router.Group("/", h.requireIdentity())
	{
		protected.GET("/users", h.listUsers)
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type registerResponse struct {
	User UserResponse `json:"user"`
}

// UserResponse is the JSON rendering of a public profile.
type UserResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, &domain.ValidationError{Reason: "malformed request body"})
		return
	}

	profile, err := h.users.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, registerResponse{User: profileToResponse(*profile)})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, &domain.ValidationError{Reason: "malformed request body"})
		return
	}

	signed, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{Token: signed})
}

func (h *Handler) listUsers(c *gin.Context) {
	identity, ok := IdentityFrom(c)
	if !ok {
		h.respondError(c, domain.NewAuthError(domain.ReasonMissingHeader, nil))
		return
	}

	profiles, err := h.users.ListUsers(c.Request.Context(), identity)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]UserResponse, len(profiles))
	for i := range profiles {
		resp[i] = profileToResponse(profiles[i])
	}
	c.JSON(http.StatusOK, resp)
}

func profileToResponse(p domain.PublicProfile) UserResponse {
	return UserResponse{
		ID:        p.ID.String(),
		Username:  p.Username,
		Email:     p.Email,
		CreatedAt: p.CreatedAt.In(time.UTC).Format(domain.TimestampLayout),
	}
}

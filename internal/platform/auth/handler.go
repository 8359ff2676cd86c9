package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/apperr"
)

type AuthHandler struct{ svc AuthService }

func RegisterRoutes(r gin.IRoutes, svc AuthService) {
	h := &AuthHandler{svc: svc}
	r.POST("/auth/login", h.Login)
	r.POST("/auth/register", h.Register)
}

type LoginRequest struct {
	ID       string `json:"id" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token   string `json:"token"`
	Message string `json:"message"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// Login godoc
// @Summary  Log in and receive a bearer token
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body body LoginRequest true "credentials"
// @Success  200 {object} LoginResponse
// @Failure  400 {object} apperr.APIError
// @Failure  401 {object} apperr.APIError
// @Failure  403 {object} apperr.APIError
// @Router   /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Invalid(c, "id and password are required")
		return
	}

	token, err := h.svc.Login(c.Request.Context(), req.ID, req.Password)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{Token: token, Message: "Login successful"})
}

type RegisterRequest struct {
	ID       string  `json:"id" binding:"required"`
	Password string  `json:"password" binding:"required"`
	Role     *string `json:"role,omitempty"` // 未指定なら librarian
}

// Register godoc
// @Summary  Register a librarian account
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body body RegisterRequest true "account"
// @Success  201 {object} MessageResponse
// @Failure  400 {object} apperr.APIError
// @Router   /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Invalid(c, "id and password are required")
		return
	}

	role := ""
	if req.Role != nil {
		role = *req.Role
	}
	if err := h.svc.Register(c.Request.Context(), req.ID, req.Password, role); err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, MessageResponse{Message: "registered"})
}

package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/RSO-2024-25-skupina-03/authentication/internal/service"
)

// AuthHandler exposes the authentication endpoints.
type AuthHandler struct {
	Auth *service.AuthService
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

// Register handles POST /:tenant/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Name       string `form:"name" json:"name"`
		Email      string `form:"email" json:"email"`
		Password   string `form:"password" json:"password"`
		Role       string `form:"role" json:"role"`
		AdminKey   string `form:"adminKey" json:"adminKey"`
		ExternalID string `form:"externalId" json:"externalId"`
	}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "All fields required."})
		return
	}

	resp, err := h.Auth.Register(c.Request.Context(), c.Param("tenant"), service.RegisterRequest{
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		Role:       req.Role,
		AdminKey:   req.AdminKey,
		ExternalID: req.ExternalID,
	})
	if err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Login handles POST /:tenant/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `form:"email" json:"email"`
		Password string `form:"password" json:"password"`
	}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "All fields required."})
		return
	}

	resp, err := h.Auth.Login(c.Request.Context(), c.Param("tenant"), service.Credentials{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// VerifyToken handles POST /jwt. The token is accepted from the request
// body, the query string, or the X-Auth-Token header.
func (h *AuthHandler) VerifyToken(c *gin.Context) {
	raw := extractToken(c)
	if err := h.Auth.VerifyToken(c.Request.Context(), raw); err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// UserName handles GET /:tenant/users/:user_id.
func (h *AuthHandler) UserName(c *gin.Context) {
	name, err := h.Auth.UserName(c.Request.Context(), c.Param("tenant"), c.Param("user_id"))
	if err != nil {
		respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name})
}

// Health answers liveness probes.
func (h *AuthHandler) Health(c *gin.Context) {
	c.Status(http.StatusOK)
}

// Root greets visitors of the bare URL.
func (h *AuthHandler) Root(c *gin.Context) {
	c.String(http.StatusOK, "Hello, this is the root URL of the microservice Authentication.")
}

func extractToken(c *gin.Context) string {
	var req struct {
		Token string `form:"token" json:"token"`
	}
	if err := c.ShouldBind(&req); err == nil && strings.TrimSpace(req.Token) != "" {
		return req.Token
	}
	if token := strings.TrimSpace(c.Query("token")); token != "" {
		return token
	}
	return strings.TrimSpace(c.GetHeader("X-Auth-Token"))
}

func respondAuthError(c *gin.Context, err error) {
	if authErr, ok := err.(*service.AuthError); ok {
		c.JSON(authErr.Status, gin.H{"message": authErr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal Server Error"})
}

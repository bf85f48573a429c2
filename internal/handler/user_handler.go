package handler

import (
	"net/http"

	"indi-radio-go/internal/middleware"
	"indi-radio-go/internal/service"
	"indi-radio-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// UserHandler 负责注册、登录、注销和当前用户信息
type UserHandler struct {
	userService service.UserService
}

func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Register: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}

	user, err := h.userService.Register(c.Request.Context(), req.Username, req.Password, req.Name)
	if err != nil {
		respondError(c, "Register", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"data":    user,
	})
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}

	accessToken, err := h.userService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, "Login", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"data":    gin.H{"token": accessToken},
	})
}

func (h *UserHandler) Logout(c *gin.Context) {
	tokenString := c.GetString(middleware.TokenKey)
	if err := h.userService.Logout(c.Request.Context(), tokenString); err != nil {
		respondError(c, "Logout", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

// Me 返回当前调用者的资料
func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	user, err := h.userService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "Me", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "User retrieved successfully",
		"data":    user,
	})
}

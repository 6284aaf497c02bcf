package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/qaboard/models"
	"github.com/cppla/qaboard/store"
	"github.com/cppla/qaboard/utils"
)

// tokenTTL is how long an issued session token stays valid.
const tokenTTL = 7 * 24 * time.Hour

// AuthController is the auth gate: local registration and login with
// bcrypt hashing, JWT issuance and revocation. Everything past this gate
// receives the actor identity as an explicit argument.
type AuthController struct {
	users store.Users
}

// NewAuthController creates an AuthController.
func NewAuthController(users store.Users) *AuthController {
	return &AuthController{users: users}
}

// Register handles local account registration.
func (a *AuthController) Register(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required,min=2,max=64"`
		Password string `json:"password" binding:"required,min=6,max=64"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		utils.Error(ctx, http.StatusBadRequest, 40002, "username cannot be empty")
		return
	}

	if _, err := a.users.ByUsername(ctx, username); err == nil {
		utils.Error(ctx, http.StatusConflict, 40901, "username already exists")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to check username")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to hash password")
		return
	}

	user := models.User{Username: username, PasswordHash: hash}
	if err := a.users.Create(ctx, &user); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to create user")
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Username, tokenTTL)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to issue token")
		return
	}

	utils.Success(ctx, gin.H{"token": token, "user": user.Public()})
}

// Login verifies credentials and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	user, err := a.users.ByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid credentials")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50005, "failed to load user")
		return
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid credentials")
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Username, tokenTTL)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50006, "failed to issue token")
		return
	}

	utils.Success(ctx, gin.H{"token": token, "user": user.Public()})
}

// Logout revokes the presented token until its natural expiry.
func (a *AuthController) Logout(ctx *gin.Context) {
	authHeader := ctx.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 {
		token := strings.TrimSpace(parts[1])
		if claims, err := utils.ParseToken(token); err == nil {
			utils.BlacklistToken(token, claims.ExpiresAt.Time)
		}
	}
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the authenticated user's public profile.
func (a *AuthController) Me(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	user, err := a.users.ByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40402, "user not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50007, "failed to load user")
		return
	}
	utils.Success(ctx, gin.H{"user": user.Public()})
}

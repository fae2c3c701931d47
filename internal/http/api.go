package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"nutritrack/internal/auth"
	"nutritrack/internal/domain"
	"nutritrack/internal/nutrition"
	"nutritrack/internal/repository"
	"nutritrack/internal/service"
	"nutritrack/internal/storage"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	users        service.UserService
	meals        service.MealService
	analyzer     *nutrition.Chain
	storage      storage.Service
	logger       *logrus.Logger
	secret       []byte
	tokenTTL     time.Duration
	cookieName   string
	cookieSecure bool
	keyPrefix    string
}

// Options carries the session and storage settings the handler needs.
type Options struct {
	JWTSecret    string
	TokenTTL     time.Duration
	CookieName   string
	CookieSecure bool
	KeyPrefix    string
}

func NewHandler(users service.UserService, meals service.MealService, analyzer *nutrition.Chain, store storage.Service, logger *logrus.Logger, opts Options) *Handler {
	cookieName := opts.CookieName
	if cookieName == "" {
		cookieName = "nutritrack_token"
	}
	tokenTTL := opts.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = 7 * 24 * time.Hour
	}
	return &Handler{
		users:        users,
		meals:        meals,
		analyzer:     analyzer,
		storage:      store,
		logger:       logger,
		secret:       []byte(opts.JWTSecret),
		tokenTTL:     tokenTTL,
		cookieName:   cookieName,
		cookieSecure: opts.CookieSecure,
		keyPrefix:    opts.KeyPrefix,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine, allowedOrigin string) {
	router.Use(corsMiddleware(allowedOrigin))

	api := router.Group("/api")
	{
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})

		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", h.register)
			authGroup.POST("/login", h.login)
			authGroup.POST("/logout", h.logout)
			authGroup.GET("/me", h.requireAuth(), h.me)
		}

		userGroup := api.Group("/user", h.requireAuth())
		{
			userGroup.GET("/profile", h.me)
			userGroup.PUT("/profile", h.updateProfile)
			userGroup.POST("/avatar", h.uploadAvatar)
			userGroup.GET("/stats", h.userStats)
			userGroup.DELETE("/account", h.deleteAccount)
		}

		mealGroup := api.Group("/meals", h.requireAuth())
		{
			mealGroup.POST("", h.createMeal)
			mealGroup.GET("", h.listMeals)
			mealGroup.GET("/stats", h.mealStats)
			mealGroup.POST("/photo", h.uploadMealPhoto)
			mealGroup.GET("/:id/photo", h.mealPhotoLink)
			mealGroup.PUT("/:id", h.updateMeal)
			mealGroup.DELETE("/:id", h.deleteMeal)
		}
	}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		var vErr *service.ValidationError
		switch {
		case errors.As(err, &vErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
		case errors.Is(err, service.ErrEmailTaken):
			c.JSON(http.StatusBadRequest, gin.H{"error": "email already registered"})
		default:
			h.logger.Errorf("register: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		}
		return
	}

	if !h.startSession(c, user.ID) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": userToResponse(user)})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.logger.Errorf("login: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	if !h.startSession(c, user.ID) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userToResponse(user)})
}

// logout only clears the client-held cookie; tokens stay cryptographically
// valid until expiry. Calling it without a session still succeeds.
func (h *Handler) logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, "", -1, "/", "", h.cookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) me(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), currentUserID(c))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// valid token for a deleted account
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		h.logger.Errorf("fetch current user: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userToResponse(user)})
}

type goalsRequest struct {
	GoalType *string  `json:"goalType"`
	Calories *float64 `json:"calories"`
	Protein  *float64 `json:"protein"`
	Carbs    *float64 `json:"carbs"`
	Fat      *float64 `json:"fat"`
}

// updateProfileRequest whitelists the editable fields; anything else in the
// body is dropped by the binding, not rejected.
type updateProfileRequest struct {
	Name          *string       `json:"name"`
	Age           *int          `json:"age"`
	Gender        *string       `json:"gender"`
	HeightCm      *float64      `json:"height"`
	WeightKg      *float64      `json:"weight"`
	ActivityLevel *string       `json:"activityLevel"`
	Timezone      *string       `json:"timezone"`
	Goals         *goalsRequest `json:"goals"`
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	update := service.ProfileUpdate{
		Name:          req.Name,
		Age:           req.Age,
		Gender:        req.Gender,
		HeightCm:      req.HeightCm,
		WeightKg:      req.WeightKg,
		ActivityLevel: req.ActivityLevel,
		Timezone:      req.Timezone,
	}
	if req.Goals != nil {
		update.Goals = &service.GoalsUpdate{
			GoalType: req.Goals.GoalType,
			Calories: req.Goals.Calories,
			Protein:  req.Goals.Protein,
			Carbs:    req.Goals.Carbs,
			Fat:      req.Goals.Fat,
		}
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), currentUserID(c), update)
	if err != nil {
		var vErr *service.ValidationError
		switch {
		case errors.As(err, &vErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		default:
			h.logger.Errorf("update profile: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update profile"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userToResponse(user)})
}

func (h *Handler) uploadAvatar(c *gin.Context) {
	url, _, ok := h.storeUpload(c, "avatar", "avatars")
	if !ok {
		return
	}

	user, err := h.users.UpdateAvatar(c.Request.Context(), currentUserID(c), url)
	if err != nil {
		h.logger.Errorf("update avatar: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update avatar"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"avatarUrl": user.AvatarURL})
}

func (h *Handler) userStats(c *gin.Context) {
	userID := currentUserID(c)

	breakdown, err := h.meals.DailyBreakdown(c.Request.Context(), userID)
	if err != nil {
		h.logger.Errorf("user stats: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		h.logger.Errorf("user stats goals: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"today": breakdown.Today,
		"week":  breakdown.Week,
		"month": breakdown.Month,
		"goals": user.Goals,
	})
}

type deleteAccountRequest struct {
	Password string `json:"password" binding:"required"`
}

func (h *Handler) deleteAccount(c *gin.Context) {
	var req deleteAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.users.DeleteAccount(c.Request.Context(), currentUserID(c), req.Password); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid password"})
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		default:
			h.logger.Errorf("delete account: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete account"})
		}
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, "", -1, "/", "", h.cookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// startSession issues a token and sets the session cookie. Returns false after
// writing an error response.
func (h *Handler) startSession(c *gin.Context, userID string) bool {
	token, err := auth.Issue(userID, h.secret, h.tokenTTL)
	if err != nil {
		h.logger.Errorf("issue token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return false
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, token, int(h.tokenTTL.Seconds()), "/", "", h.cookieSecure, true)
	c.Header("X-Auth-Token", token)
	return true
}

// UserResponse is the serialized account shape. The password hash has no field
// here on purpose.
type UserResponse struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Email         string       `json:"email"`
	AvatarURL     string       `json:"avatarUrl,omitempty"`
	Age           int          `json:"age,omitempty"`
	Gender        string       `json:"gender"`
	HeightCm      float64      `json:"height,omitempty"`
	WeightKg      float64      `json:"weight,omitempty"`
	ActivityLevel string       `json:"activityLevel"`
	Timezone      string       `json:"timezone"`
	Goals         domain.Goals `json:"goals"`
	CreatedAt     string       `json:"created_at"`
	LastLoginAt   *string      `json:"last_login_at,omitempty"`
}

func userToResponse(user *domain.User) UserResponse {
	resp := UserResponse{
		ID:            user.ID,
		Name:          user.Name,
		Email:         user.Email,
		AvatarURL:     user.AvatarURL,
		Age:           user.Age,
		Gender:        user.Gender,
		HeightCm:      user.HeightCm,
		WeightKg:      user.WeightKg,
		ActivityLevel: user.ActivityLevel,
		Timezone:      user.Timezone,
		Goals:         user.Goals,
		CreatedAt:     user.CreatedAt.Format(time.RFC3339),
	}
	if user.LastLoginAt != nil {
		v := user.LastLoginAt.Format(time.RFC3339)
		resp.LastLoginAt = &v
	}
	return resp
}

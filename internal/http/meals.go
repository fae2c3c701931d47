package http

import (
	"errors"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"nutritrack/internal/domain"
	"nutritrack/internal/repository"
	"nutritrack/internal/service"
)

const maxUploadBytes = 10 << 20 // 10 MiB

type mealRequest struct {
	Name           string  `json:"name"`
	MealType       string  `json:"mealType"`
	Calories       float64 `json:"calories"`
	Protein        float64 `json:"protein"`
	Carbs          float64 `json:"carbs"`
	Fat            float64 `json:"fat"`
	Fiber          float64 `json:"fiber"`
	Sugar          float64 `json:"sugar"`
	Sodium         float64 `json:"sodium"`
	ServingWeightG float64 `json:"servingWeight"`
	ServingUnit    string  `json:"servingUnit"`
	ServingQty     float64 `json:"servingQty"`
}

func (req mealRequest) toInput() service.MealInput {
	return service.MealInput{
		Name:           req.Name,
		MealType:       req.MealType,
		Calories:       req.Calories,
		Protein:        req.Protein,
		Carbs:          req.Carbs,
		Fat:            req.Fat,
		Fiber:          req.Fiber,
		Sugar:          req.Sugar,
		Sodium:         req.Sodium,
		ServingWeightG: req.ServingWeightG,
		ServingUnit:    req.ServingUnit,
		ServingQty:     req.ServingQty,
	}
}

func (h *Handler) createMeal(c *gin.Context) {
	var req mealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input := req.toInput()
	// a manual entry is taken at face value
	input.Confidence = 1
	input.Verified = true

	meal, err := h.meals.Create(c.Request.Context(), currentUserID(c), input)
	if err != nil {
		h.logger.Errorf("create meal: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create meal"})
		return
	}
	c.JSON(http.StatusOK, mealToResponse(*meal))
}

func (h *Handler) listMeals(c *gin.Context) {
	query, ok := h.parseListQuery(c)
	if !ok {
		return
	}

	meals, pagination, err := h.meals.List(c.Request.Context(), currentUserID(c), query)
	if err != nil {
		h.logger.Errorf("list meals: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list meals"})
		return
	}

	resp := make([]MealResponse, len(meals))
	for i := range meals {
		resp[i] = mealToResponse(meals[i])
	}
	c.JSON(http.StatusOK, gin.H{
		"meals":      resp,
		"pagination": pagination,
	})
}

func (h *Handler) mealStats(c *gin.Context) {
	userID := currentUserID(c)

	report, err := h.meals.Summarize(c.Request.Context(), userID, c.DefaultQuery("period", "week"))
	if err != nil {
		h.logger.Errorf("meal stats: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		h.logger.Errorf("meal stats goals: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"period":    report.Period,
		"startDate": report.StartDate.Format(time.RFC3339),
		"endDate":   report.EndDate.Format(time.RFC3339),
		"stats":     report.Stats,
		"goals":     user.Goals,
	})
}

// uploadMealPhoto stores the image, runs the analyzer chain on the provided
// label (or filename) and logs a meal from the estimate. Analysis failures
// degrade to the built-in fallback; they never fail the request.
func (h *Handler) uploadMealPhoto(c *gin.Context) {
	url, key, ok := h.storeUpload(c, "photo", "meals")
	if !ok {
		return
	}

	label := strings.TrimSpace(c.PostForm("name"))
	if label == "" {
		if file, err := c.FormFile("photo"); err == nil {
			base := filepath.Base(file.Filename)
			label = strings.TrimSuffix(base, filepath.Ext(base))
		}
	}

	estimate := h.analyzer.Analyze(c.Request.Context(), label)

	input := service.MealInput{
		Name:           estimate.Name,
		MealType:       c.DefaultPostForm("mealType", "meal"),
		Calories:       estimate.Calories,
		Protein:        estimate.Protein,
		Carbs:          estimate.Carbs,
		Fat:            estimate.Fat,
		Fiber:          estimate.Fiber,
		Sugar:          estimate.Sugar,
		Sodium:         estimate.Sodium,
		ServingWeightG: estimate.ServingWeightG,
		ServingUnit:    estimate.ServingUnit,
		ServingQty:     estimate.ServingQty,
		PhotoURL:       url,
		PhotoKey:       key,
		Confidence:     estimate.Confidence,
	}

	meal, err := h.meals.Create(c.Request.Context(), currentUserID(c), input)
	if err != nil {
		h.logger.Errorf("create meal from photo: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create meal"})
		return
	}

	message := "Image uploaded successfully! Please manually enter the food details."
	if meal.Confidence > 0.7 {
		message = "Food analyzed successfully! Please verify the details below."
	}

	c.JSON(http.StatusOK, gin.H{
		"meal": mealToResponse(*meal),
		"analysis": gin.H{
			"confidence": meal.Confidence,
			"source":     estimate.Source,
			"message":    message,
		},
	})
}

// mealPatchRequest whitelists the editable fields of an existing meal. Absent
// fields stay untouched, mirroring updateProfileRequest.
type mealPatchRequest struct {
	Name           *string  `json:"name"`
	MealType       *string  `json:"mealType"`
	Calories       *float64 `json:"calories"`
	Protein        *float64 `json:"protein"`
	Carbs          *float64 `json:"carbs"`
	Fat            *float64 `json:"fat"`
	Fiber          *float64 `json:"fiber"`
	Sugar          *float64 `json:"sugar"`
	Sodium         *float64 `json:"sodium"`
	ServingWeightG *float64 `json:"servingWeight"`
	ServingUnit    *string  `json:"servingUnit"`
	ServingQty     *float64 `json:"servingQty"`
}

func (req mealPatchRequest) toPatch() service.MealPatch {
	return service.MealPatch{
		Name:           req.Name,
		MealType:       req.MealType,
		Calories:       req.Calories,
		Protein:        req.Protein,
		Carbs:          req.Carbs,
		Fat:            req.Fat,
		Fiber:          req.Fiber,
		Sugar:          req.Sugar,
		Sodium:         req.Sodium,
		ServingWeightG: req.ServingWeightG,
		ServingUnit:    req.ServingUnit,
		ServingQty:     req.ServingQty,
	}
}

func (h *Handler) updateMeal(c *gin.Context) {
	var req mealPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	meal, err := h.meals.Update(c.Request.Context(), currentUserID(c), c.Param("id"), req.toPatch())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "meal not found"})
			return
		}
		h.logger.Errorf("update meal: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update meal"})
		return
	}
	c.JSON(http.StatusOK, mealToResponse(*meal))
}

// mealPhotoLink returns a short-lived presigned download URL for the meal's
// stored photo, ownership-checked like every other meal read.
func (h *Handler) mealPhotoLink(c *gin.Context) {
	if h.storage == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage service not configured"})
		return
	}

	meal, err := h.meals.Get(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "meal not found"})
			return
		}
		h.logger.Errorf("fetch meal photo: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load photo"})
		return
	}
	if meal.PhotoKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "meal has no stored photo"})
		return
	}

	url, err := h.storage.PresignGet(c.Request.Context(), meal.PhotoKey, 15*time.Minute)
	if err != nil {
		h.logger.Errorf("presign meal photo: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load photo"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *Handler) deleteMeal(c *gin.Context) {
	if err := h.meals.Delete(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "meal not found"})
			return
		}
		h.logger.Errorf("delete meal: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete meal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "meal deleted"})
}

func (h *Handler) parseListQuery(c *gin.Context) (service.ListQuery, bool) {
	query := service.ListQuery{MealType: c.Query("mealType")}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
		return service.ListQuery{}, false
	}
	query.Page = page

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return service.ListQuery{}, false
	}
	query.Limit = limit

	if raw := c.Query("startDate"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid startDate"})
			return service.ListQuery{}, false
		}
		query.StartDate = &t
	}
	if raw := c.Query("endDate"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid endDate"})
			return service.ListQuery{}, false
		}
		query.EndDate = &t
	}
	return query, true
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

// storeUpload validates and stores a multipart image, returning its public URL
// and object key.
func (h *Handler) storeUpload(c *gin.Context, field, folder string) (string, string, bool) {
	if h.storage == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage service not configured"})
		return "", "", false
	}

	file, err := c.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no image file provided"})
		return "", "", false
	}
	if file.Size > maxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file exceeds 10MB limit"})
		return "", "", false
	}
	contentType := file.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only image files are allowed"})
		return "", "", false
	}

	src, err := file.Open()
	if err != nil {
		h.logger.Errorf("open upload: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "file upload failed"})
		return "", "", false
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(file.Filename))
	key := path.Join(h.keyPrefix, folder, uuid.NewString()+ext)

	url, err := h.storage.UploadObject(c.Request.Context(), key, contentType, src)
	if err != nil {
		h.logger.Errorf("upload to storage: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "file upload failed"})
		return "", "", false
	}
	return url, key, true
}

type MealResponse struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	MealType       string  `json:"mealType"`
	Calories       float64 `json:"calories"`
	Protein        float64 `json:"protein"`
	Carbs          float64 `json:"carbs"`
	Fat            float64 `json:"fat"`
	Fiber          float64 `json:"fiber"`
	Sugar          float64 `json:"sugar"`
	Sodium         float64 `json:"sodium"`
	ServingWeightG float64 `json:"servingWeight"`
	ServingUnit    string  `json:"servingUnit"`
	ServingQty     float64 `json:"servingQty"`
	PhotoURL       string  `json:"photoUrl,omitempty"`
	Confidence     float64 `json:"confidence"`
	Verified       bool    `json:"verified"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

func mealToResponse(meal domain.Meal) MealResponse {
	return MealResponse{
		ID:             meal.ID,
		Name:           meal.Name,
		MealType:       meal.MealType,
		Calories:       meal.Calories,
		Protein:        meal.Protein,
		Carbs:          meal.Carbs,
		Fat:            meal.Fat,
		Fiber:          meal.Fiber,
		Sugar:          meal.Sugar,
		Sodium:         meal.Sodium,
		ServingWeightG: meal.ServingWeightG,
		ServingUnit:    meal.ServingUnit,
		ServingQty:     meal.ServingQty,
		PhotoURL:       meal.PhotoURL,
		Confidence:     meal.Confidence,
		Verified:       meal.Verified,
		CreatedAt:      meal.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      meal.UpdatedAt.Format(time.RFC3339),
	}
}

package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mkhall/go-hazard-alerts/internal/auth"
	"github.com/mkhall/go-hazard-alerts/internal/models"
	"github.com/mkhall/go-hazard-alerts/internal/repository"
)

type Handler struct {
	users             repository.UserRepository
	alerts            repository.AlertRepository
	sessions          *auth.SessionManager
	allowedCategories map[string]bool
	cookieSecure      bool
}

type HandlerOptions struct {
	AllowedCategories []string
	CookieSecure      bool
}

func NewHandler(users repository.UserRepository, alerts repository.AlertRepository, sessions *auth.SessionManager, opts HandlerOptions) *Handler {
	allowed := make(map[string]bool, len(opts.AllowedCategories))
	for _, cat := range opts.AllowedCategories {
		allowed[cat] = true
	}
	return &Handler{
		users:             users,
		alerts:            alerts,
		sessions:          sessions,
		allowedCategories: allowed,
		cookieSecure:      opts.CookieSecure,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)

	api := r.Group("/api")
	api.Use(h.resolveSession)

	api.POST("/register", h.register)
	api.POST("/login", h.login)
	api.POST("/logout", h.logout)
	api.GET("/user", h.getCurrentUser)
	api.GET("/alerts", h.getActiveAlerts)

	authed := api.Group("")
	authed.Use(h.requireAuth)
	authed.GET("/admin/alerts", h.getOwnAlerts)
	authed.POST("/alerts", h.createAlert)
	authed.PUT("/alerts/:id", h.updateAlert)
	authed.DELETE("/alerts/:id", h.deleteAlert)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- auth endpoints ---

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

func userSummary(u *models.User) gin.H {
	return gin.H{"id": u.ID, "username": u.Username}
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and a password of at least 8 characters are required"})
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username must not be blank"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		slog.Error("error hashing password", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	user := &models.User{
		Username:     strings.TrimSpace(req.Username),
		PasswordHash: hash,
	}
	if err := h.users.CreateUser(c.Request.Context(), user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
			return
		}
		slog.Error("error creating user", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	c.JSON(http.StatusOK, userSummary(user))
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// One generic failure message for both unknown username and wrong password,
// so the endpoint cannot be used to enumerate accounts.
const invalidCredentials = "invalid username or password"

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": invalidCredentials})
		return
	}

	user, err := h.users.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("error looking up user", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
			return
		}
		auth.BurnPassword(req.Password)
		c.JSON(http.StatusBadRequest, gin.H{"error": invalidCredentials})
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusBadRequest, gin.H{"error": invalidCredentials})
		return
	}

	sess, err := h.sessions.Create(c.Request.Context(), user.ID)
	if err != nil {
		slog.Error("error creating session", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	h.setSessionCookie(c, sess.Token)
	c.JSON(http.StatusOK, userSummary(user))
}

func (h *Handler) logout(c *gin.Context) {
	token, _ := c.Cookie(sessionCookie)
	if err := h.sessions.Destroy(c.Request.Context(), token); err != nil {
		slog.Error("error destroying session", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}
	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *Handler) getCurrentUser(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not logged in"})
		return
	}
	c.JSON(http.StatusOK, userSummary(user))
}

// --- alert endpoints ---

func (h *Handler) getActiveAlerts(c *gin.Context) {
	alerts, err := h.alerts.GetActiveAlerts(c.Request.Context())
	if err != nil {
		slog.Error("error fetching active alerts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch alerts"})
		return
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	c.JSON(http.StatusOK, alerts)
}

func (h *Handler) getOwnAlerts(c *gin.Context) {
	user, _ := currentUser(c)
	alerts, err := h.alerts.GetAlertsByUser(c.Request.Context(), user.ID)
	if err != nil {
		slog.Error("error fetching user alerts", "error", err, "user", user.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch alerts"})
		return
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	c.JSON(http.StatusOK, alerts)
}

type createAlertRequest struct {
	Title             string   `json:"title" binding:"required"`
	Description       string   `json:"description" binding:"required"`
	Category          string   `json:"category" binding:"required"`
	Severity          string   `json:"severity" binding:"required"`
	XPosition         *float64 `json:"xPosition" binding:"required"`
	YPosition         *float64 `json:"yPosition" binding:"required"`
	Icon              string   `json:"icon"`
	AlternativeRoute  string   `json:"alternativeRoute"`
	AlternativeRoutes string   `json:"alternativeRoutes"`
	ExpirationMinutes int      `json:"expirationMinutes"`
}

func (h *Handler) createAlert(c *gin.Context) {
	user, _ := currentUser(c)

	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or malformed alert fields"})
		return
	}

	fields, routes := h.validateCreate(&req)
	if len(fields) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
		return
	}

	now := time.Now().UTC()
	var expiresAt *time.Time
	if req.ExpirationMinutes > 0 {
		t := now.Add(time.Duration(req.ExpirationMinutes) * time.Minute)
		expiresAt = &t
	}

	alert := &models.Alert{
		Title:             strings.TrimSpace(req.Title),
		Description:       strings.TrimSpace(req.Description),
		Category:          req.Category,
		Severity:          models.Severity(req.Severity),
		XPosition:         *req.XPosition,
		YPosition:         *req.YPosition,
		Icon:              req.Icon,
		AlternativeRoute:  req.AlternativeRoute,
		AlternativeRoutes: canonicalRoutes(routes),
		CreatedBy:         user.ID,
		CreatedAt:         now,
		ExpiresAt:         expiresAt,
	}
	if err := h.alerts.CreateAlert(c.Request.Context(), alert); err != nil {
		slog.Error("error creating alert", "error", err, "user", user.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create alert"})
		return
	}

	c.JSON(http.StatusCreated, alert)
}

// validateCreate also returns the decoded route geometry so the handler can
// store the canonical encoding rather than the client's raw blob.
func (h *Handler) validateCreate(req *createAlertRequest) (map[string]string, []models.RoutePolyline) {
	fields := map[string]string{}

	if strings.TrimSpace(req.Title) == "" {
		fields["title"] = "must not be blank"
	}
	if strings.TrimSpace(req.Description) == "" {
		fields["description"] = "must not be blank"
	}
	if !h.allowedCategories[req.Category] {
		fields["category"] = "unknown category"
	}
	if !models.Severity(req.Severity).Valid() {
		fields["severity"] = "must be one of low, medium, high, critical"
	}
	if *req.XPosition < 0 || *req.XPosition > 100 {
		fields["xPosition"] = "must be between 0 and 100"
	}
	if *req.YPosition < 0 || *req.YPosition > 100 {
		fields["yPosition"] = "must be between 0 and 100"
	}
	if req.ExpirationMinutes < 0 {
		fields["expirationMinutes"] = "must not be negative"
	}
	var routes []models.RoutePolyline
	if req.AlternativeRoutes != "" {
		var err error
		routes, err = models.DecodeRoutes(req.AlternativeRoutes)
		if err != nil {
			fields["alternativeRoutes"] = err.Error()
		}
	}

	return fields, routes
}

// canonicalRoutes re-encodes already-validated geometry so the store only
// ever holds the shape DecodeRoutes produces.
func canonicalRoutes(routes []models.RoutePolyline) string {
	blob, err := models.EncodeRoutes(routes)
	if err != nil {
		return ""
	}
	return blob
}

type updateAlertRequest struct {
	Title             *string `json:"title"`
	Description       *string `json:"description"`
	Severity          *string `json:"severity"`
	Icon              *string `json:"icon"`
	AlternativeRoute  *string `json:"alternativeRoute"`
	AlternativeRoutes *string `json:"alternativeRoutes"`
}

func (h *Handler) updateAlert(c *gin.Context) {
	user, _ := currentUser(c)
	id := c.Param("id")

	var req updateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed update body"})
		return
	}

	fields := map[string]string{}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		fields["title"] = "must not be blank"
	}
	if req.Description != nil && strings.TrimSpace(*req.Description) == "" {
		fields["description"] = "must not be blank"
	}
	if req.Severity != nil && !models.Severity(*req.Severity).Valid() {
		fields["severity"] = "must be one of low, medium, high, critical"
	}
	var updRoutes []models.RoutePolyline
	if req.AlternativeRoutes != nil && *req.AlternativeRoutes != "" {
		var err error
		updRoutes, err = models.DecodeRoutes(*req.AlternativeRoutes)
		if err != nil {
			fields["alternativeRoutes"] = err.Error()
		}
	}
	if len(fields) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
		return
	}

	existing, err := h.alerts.GetAlert(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}
		slog.Error("error loading alert", "error", err, "id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update alert"})
		return
	}
	if existing.CreatedBy != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "you can only modify your own alerts"})
		return
	}

	update := repository.UpdateAlertFields{
		Title:            req.Title,
		Description:      req.Description,
		Icon:             req.Icon,
		AlternativeRoute: req.AlternativeRoute,
	}
	if req.Severity != nil {
		sev := models.Severity(*req.Severity)
		update.Severity = &sev
	}
	if req.AlternativeRoutes != nil {
		canonical := canonicalRoutes(updRoutes)
		update.AlternativeRoutes = &canonical
	}

	updated, err := h.alerts.UpdateAlert(c.Request.Context(), id, update)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}
		slog.Error("error updating alert", "error", err, "id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update alert"})
		return
	}

	c.JSON(http.StatusOK, updated)
}

func (h *Handler) deleteAlert(c *gin.Context) {
	user, _ := currentUser(c)
	id := c.Param("id")

	existing, err := h.alerts.GetAlert(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}
		slog.Error("error loading alert", "error", err, "id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete alert"})
		return
	}
	if existing.CreatedBy != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "you can only modify your own alerts"})
		return
	}

	ok, err := h.alerts.DeleteAlert(c.Request.Context(), id)
	if err != nil {
		slog.Error("error deleting alert", "error", err, "id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete alert"})
		return
	}
	if !ok {
		// Already soft-deleted.
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		return
	}

	c.Status(http.StatusNoContent)
}

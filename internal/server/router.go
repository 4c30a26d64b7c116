package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/MarcoPoloResearchLab/zenjournal/internal/auth"
	"github.com/MarcoPoloResearchLab/zenjournal/internal/insights"
	"github.com/MarcoPoloResearchLab/zenjournal/internal/journal"
	"github.com/MarcoPoloResearchLab/zenjournal/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	userIDContextKey       = "zenjournal_user_id"
	defaultHeartbeatPeriod = 25 * time.Second
)

var (
	errMissingTokenManager  = errors.New("token manager dependency required")
	errMissingUserStore     = errors.New("user store dependency required")
	errMissingJournalStore  = errors.New("journal store dependency required")
	errMissingEvents        = errors.New("event dispatcher dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

type TokenManager interface {
	IssueToken(ctx context.Context, subject string) (string, int64, error)
	ValidateRequest(r *http.Request) (string, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, email, password, name, avatar string) (uint, error)
	Authenticate(ctx context.Context, email, password string) (users.Profile, error)
	GetUser(ctx context.Context, userID uint) (users.Profile, error)
	UpdateProfile(ctx context.Context, userID uint, name, avatar string) (users.Profile, error)
	UpdatePreferences(ctx context.Context, userID uint, preferences json.RawMessage) (users.Profile, error)
	DeleteUser(ctx context.Context, userID uint) error
}

type JournalStore interface {
	SaveDailyEntry(ctx context.Context, request journal.SaveEntryRequest) (journal.SavedEntry, error)
	ListEntries(ctx context.Context, userID uint, limit, offset int) ([]journal.DailyEntry, error)
	EntryCount(ctx context.Context, userID uint) (int64, error)
	TodayStatus(ctx context.Context, userID uint) (journal.TodayStatus, error)
	YearSummary(ctx context.Context, userID uint, year int) (map[int]journal.MonthCounts, error)
	MonthSummary(ctx context.Context, userID uint, year, month int) (map[int]journal.DayCounts, error)
	DayEntry(ctx context.Context, userID uint, year, month, day int) (journal.DailyEntry, error)
	CurrentStreak(ctx context.Context, userID uint) (int, error)
	ListInteractions(ctx context.Context, userID uint, limit int) ([]journal.Interaction, error)
}

type InsightGenerator interface {
	AnalyzeDay(ctx context.Context, userID uint, year, month, day int) (insights.Insight, error)
}

// Dependencies wires the HTTP handler. Insights is optional; without it the
// insight routes answer 503.
type Dependencies struct {
	TokenManager    TokenManager
	Users           UserStore
	Journal         JournalStore
	Insights        InsightGenerator
	Events          *journal.Dispatcher
	AllowedOrigins  []string
	HeartbeatPeriod time.Duration
	Logger          *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.Users == nil {
		return nil, errMissingUserStore
	}
	if deps.Journal == nil {
		return nil, errMissingJournalStore
	}
	if deps.Events == nil {
		return nil, errMissingEvents
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	heartbeat := deps.HeartbeatPeriod
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatPeriod
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins...))

	handler := &httpHandler{
		tokens:    deps.TokenManager,
		users:     deps.Users,
		journal:   deps.Journal,
		insights:  deps.Insights,
		events:    deps.Events,
		heartbeat: heartbeat,
		logger:    logger,
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.POST("/auth/register", handler.handleRegister)
	router.POST("/auth/login", handler.handleLogin)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/me", handler.handleGetProfile)
	protected.PATCH("/me", handler.handleUpdateProfile)
	protected.DELETE("/me", handler.handleDeleteAccount)
	protected.PUT("/me/preferences", handler.handleUpdatePreferences)

	protected.POST("/entries", handler.handleSaveEntry)
	protected.GET("/entries", handler.handleListEntries)
	protected.GET("/entries/count", handler.handleEntryCount)
	protected.GET("/entries/today", handler.handleTodayStatus)
	protected.GET("/entries/stream", handler.handleEntryStream)

	protected.GET("/calendar/:year", handler.handleYearSummary)
	protected.GET("/calendar/:year/:month", handler.handleMonthSummary)
	protected.GET("/calendar/:year/:month/:day", handler.handleDayEntry)
	protected.GET("/stats/streak", handler.handleStreak)

	protected.POST("/insights/:year/:month/:day", handler.handleAnalyzeDay)
	protected.GET("/insights", handler.handleListInsights)

	return router, nil
}

func corsMiddleware(origins ...string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type", "Accept", "Cache-Control", "Last-Event-ID"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}
	return cors.New(config)
}

type httpHandler struct {
	tokens    TokenManager
	users     UserStore
	journal   JournalStore
	insights  InsightGenerator
	events    *journal.Dispatcher
	heartbeat time.Duration
	logger    *zap.Logger
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	subject, err := h.tokens.ValidateRequest(c.Request)
	if errors.Is(err, auth.ErrMissingToken) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) || errors.Is(err, auth.ErrExpiredToken) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	userID, err := strconv.ParseUint(subject, 10, 64)
	if err != nil || userID == 0 {
		h.logger.Warn("token subject is not a user id", zap.String("subject", subject))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, uint(userID))
	c.Next()
}

func currentUserID(c *gin.Context) (uint, bool) {
	value, ok := c.Get(userIDContextKey)
	if !ok {
		return 0, false
	}
	userID, ok := value.(uint)
	return userID, ok && userID != 0
}

// withUser runs next with the authenticated user id, or answers 401.
func withUser(c *gin.Context, next func(userID uint)) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	next(userID)
}

func pathInts(c *gin.Context, names ...string) ([]int, bool) {
	values := make([]int, 0, len(names))
	for _, name := range names {
		value, err := strconv.Atoi(c.Param(name))
		if err != nil {
			return nil, false
		}
		values = append(values, value)
	}
	return values, true
}

func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return value, true
}

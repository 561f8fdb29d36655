package api

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/homelens/homelens/internal/ai"
	"github.com/homelens/homelens/internal/analyze"
	"github.com/homelens/homelens/internal/auth"
	"github.com/homelens/homelens/internal/db"
	"github.com/homelens/homelens/internal/models"
	"github.com/homelens/homelens/internal/score"
	"github.com/homelens/homelens/internal/scrape"
)

type Server struct {
	Store       *db.Store
	AuthService *auth.Service
	Echo        *echo.Echo
	DB          *pgxpool.Pool
	AI          *ai.OllamaClient
	Pipeline    *analyze.Pipeline

	// Background job tracking
	jobMu      sync.Mutex
	runningJob *backgroundJob
}

type backgroundJob struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"` // running, completed, failed
	StartedAt time.Time          `json:"started_at"`
	EndedAt   time.Time          `json:"ended_at,omitempty"`
	Result    any                `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	Cancel    context.CancelFunc `json:"-"`
}

var (
	adminSecretOnce    sync.Once
	adminSecretRuntime string
	adminSecretErr     error
)

func NewServer(pool *pgxpool.Pool, pipeline *analyze.Pipeline) *Server {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// CORS: allow frontend origins from env or default to localhost
	allowedOrigins := []string{"http://localhost:5173"}
	if extra := os.Getenv("CORS_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	s := &Server{
		DB:          pool,
		Store:       db.NewStore(pool),
		AuthService: auth.NewService(pool),
		Echo:        e,
		AI:          pipeline.AI,
		Pipeline:    pipeline,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	api := s.Echo.Group("/api/v1")
	api.POST("/analyses", s.handleCreateAnalysis)
	api.GET("/analyses", s.handleListAnalyses)
	api.GET("/analyses/:id", s.handleGetAnalysis)
	api.GET("/stats", s.handleGetStats)

	// Admin routes
	admin := api.Group("")
	admin.Use(s.adminMiddleware)
	admin.POST("/admin/refresh-land-registry", s.handleRefreshLandRegistry)
	admin.POST("/admin/rescore", s.handleRescore)
	admin.GET("/admin/job/:id", s.handleJobStatus)
	admin.GET("/admin/refresh-runs", s.handleListRefreshRuns)

	// Auth routes
	api.POST("/auth/signup", s.handleSignup)
	api.POST("/auth/login", s.handleLogin)

	// Protected routes (saved reports)
	saved := api.Group("/saved")
	saved.Use(auth.Middleware)
	saved.POST("/:id", s.handleSaveReport)
	saved.DELETE("/:id", s.handleUnsaveReport)
	saved.GET("", s.handleGetSavedReports)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

type createAnalysisRequest struct {
	URL         string            `json:"url"`
	Preferences score.Preferences `json:"preferences"`
}

func (s *Server) handleCreateAnalysis(c echo.Context) error {
	var req createAnalysisRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	req.URL = strings.TrimSpace(req.URL)
	if err := scrape.ValidateListingURL(req.URL); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := rejectPrivateHost(req.URL); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	ctx := c.Request().Context()
	result, err := s.Pipeline.Analyze(ctx, req.URL, req.Preferences)
	if err != nil {
		c.Logger().Errorf("Analysis failed for %s: %v", req.URL, err)
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "Analysis failed"})
	}

	if err := s.Store.SaveReport(ctx, result.Report, result.Embedding); err != nil {
		c.Logger().Errorf("Failed to persist report for %s: %v", req.URL, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save report"})
	}

	return c.JSON(http.StatusCreated, result.Report)
}

// rejectPrivateHost resolves the URL host and refuses private or special
// addresses before any fetch happens.
func rejectPrivateHost(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL")
	}
	ips, err := net.LookupIP(u.Hostname())
	if err != nil {
		return fmt.Errorf("could not resolve host %s", u.Hostname())
	}
	for _, ip := range ips {
		if isPrivateOrSpecialIP(ip) {
			return fmt.Errorf("host %s resolves to a disallowed address", u.Hostname())
		}
	}
	return nil
}

func (s *Server) handleListAnalyses(c echo.Context) error {
	q := c.QueryParam("q")

	limit := 20
	offset := 0
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}
	if o, err := strconv.Atoi(c.QueryParam("offset")); err == nil && o >= 0 {
		offset = o
	}

	params := db.ListParams{
		Query:        q,
		Outcode:      c.QueryParam("outcode"),
		PropertyType: c.QueryParam("property_type"),
		SortBy:       c.QueryParam("sort"),
		Limit:        limit,
		Offset:       offset,
	}
	if v, err := strconv.Atoi(c.QueryParam("min_score")); err == nil && v > 0 {
		params.MinScore = v
	}
	if v, err := strconv.Atoi(c.QueryParam("max_score")); err == nil && v > 0 {
		params.MaxScore = v
	}
	if v, err := strconv.Atoi(c.QueryParam("min_price")); err == nil && v > 0 {
		params.MinPrice = v
	}
	if v, err := strconv.Atoi(c.QueryParam("max_price")); err == nil && v > 0 {
		params.MaxPrice = v
	}

	// Generate embedding for semantic search
	if q != "" && s.AI != nil {
		aiCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		vec, err := s.AI.GenerateEmbedding(aiCtx, q)
		if err != nil {
			c.Logger().Errorf("Failed to generate query embedding: %v", err)
			// Fall back to keyword search
		} else {
			params.QueryEmbedding = vec
		}
	}

	result, err := s.Store.ListReports(c.Request().Context(), params)
	if err != nil {
		c.Logger().Errorf("Failed to list reports: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}

	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetAnalysis(c echo.Context) error {
	id := c.Param("id")
	report, err := s.Store.GetReport(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handleGetStats(c echo.Context) error {
	stats, err := s.Store.GetStats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, stats)
}

// Admin handlers

func (s *Server) handleRefreshLandRegistry(c echo.Context) error {
	lr := s.Pipeline.LandRegistry
	if lr == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Land registry data not configured"})
	}

	ctx := c.Request().Context()
	runID, err := s.Store.StartRefreshRun(ctx)
	if err != nil {
		c.Logger().Errorf("Failed to record refresh run: %v", err)
	}

	outcodes, err := s.Store.ListOutcodes(ctx)
	if err != nil {
		if runID != "" {
			_ = s.Store.FinishRefreshRun(ctx, runID, "error", err.Error(), 0, 0)
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	refreshed, rowsScanned := lr.Refresh(outcodes)

	if runID != "" {
		if err := s.Store.FinishRefreshRun(ctx, runID, "ok", "", refreshed, rowsScanned); err != nil {
			c.Logger().Errorf("Failed to finish refresh run: %v", err)
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"districts":    refreshed,
		"rows_scanned": rowsScanned,
		"run_id":       runID,
	})
}

func (s *Server) handleRescore(c echo.Context) error {
	s.jobMu.Lock()
	if s.runningJob != nil && s.runningJob.Status == "running" {
		job := s.runningJob
		s.jobMu.Unlock()
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":  "A rescore job is already running",
			"job_id": job.ID,
		})
	}

	// context.WithoutCancel detaches from the HTTP lifecycle but keeps
	// trace values; the timeout is our own safety bound.
	jobCtx, jobCancel := context.WithTimeout(
		context.WithoutCancel(c.Request().Context()), 30*time.Minute,
	)

	jobID := uuid.New().String()[:8]
	job := &backgroundJob{
		ID:        jobID,
		Status:    "running",
		StartedAt: time.Now(),
		Cancel:    jobCancel,
	}
	s.runningJob = job
	s.jobMu.Unlock()

	// Runs in a background goroutine; the request returns 202 immediately.
	go func() {
		defer jobCancel()

		updated, failed, err := s.rescoreAll(jobCtx)
		s.jobMu.Lock()
		defer s.jobMu.Unlock()
		job.EndedAt = time.Now()
		if err != nil {
			job.Status = "failed"
			job.Error = err.Error()
			log.Printf("[rescore-job %s] failed: %v", jobID, err)
			return
		}
		job.Status = "completed"
		job.Result = map[string]interface{}{
			"updated": updated,
			"failed":  failed,
		}
		log.Printf("[rescore-job %s] completed: updated=%d failed=%d", jobID, updated, failed)
	}()

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"message": "Rescore job started",
		"job_id":  jobID,
		"poll":    fmt.Sprintf("/api/v1/admin/job/%s", jobID),
	})
}

// rescoreAll recomputes every stored report's scores from its persisted
// facts, without refetching anything.
func (s *Server) rescoreAll(ctx context.Context) (updated, failed int, err error) {
	ids, err := s.Store.ListReportIDs(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("listing reports: %w", err)
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return updated, failed, ctx.Err()
		}
		report, err := s.Store.GetReport(ctx, id)
		if err != nil {
			failed++
			continue
		}
		breakdown := score.Compute(analyze.ScoreInput(report))
		if err := s.Store.UpdateScores(ctx, id, breakdown, breakdown.Overall); err != nil {
			log.Printf("[rescore] failed to update %s: %v", id, err)
			failed++
			continue
		}
		updated++
	}
	return updated, failed, nil
}

func (s *Server) handleJobStatus(c echo.Context) error {
	queried := c.Param("id")
	s.jobMu.Lock()
	job := s.runningJob
	s.jobMu.Unlock()

	if job == nil || job.ID != queried {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	s.jobMu.Lock()
	resp := map[string]interface{}{
		"id":         job.ID,
		"status":     job.Status,
		"started_at": job.StartedAt,
	}
	if !job.EndedAt.IsZero() {
		resp["ended_at"] = job.EndedAt
		resp["duration"] = job.EndedAt.Sub(job.StartedAt).String()
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	s.jobMu.Unlock()

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListRefreshRuns(c echo.Context) error {
	limit := 20
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}
	runs, err := s.Store.ListRefreshRuns(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if runs == nil {
		runs = []models.RefreshRun{}
	}
	return c.JSON(http.StatusOK, runs)
}

// Auth handlers

func (s *Server) handleSignup(c echo.Context) error {
	var req auth.SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Email and a password of at least 8 characters are required"})
	}

	resp, err := s.AuthService.Signup(c.Request().Context(), req)
	if err != nil {
		if err == auth.ErrUserExists {
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	resp, err := s.AuthService.Login(c.Request().Context(), req)
	if err != nil {
		if err == auth.ErrInvalidCreds {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, resp)
}

// Protected handlers

func (s *Server) handleSaveReport(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	reportID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid report ID"})
	}

	if err := s.AuthService.SaveReport(ctx, userID, reportID); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save report"})
	}

	return c.NoContent(http.StatusOK)
}

func (s *Server) handleUnsaveReport(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	reportID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid report ID"})
	}

	if err := s.AuthService.UnsaveReport(ctx, userID, reportID); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to unsave report"})
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "unsaved"})
}

func (s *Server) handleGetSavedReports(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	reports, err := s.AuthService.GetSavedReports(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch saved reports"})
	}

	if reports == nil {
		reports = []models.Report{}
	}

	return c.JSON(http.StatusOK, reports)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func isPrivateOrSpecialIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsMulticast() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}

	if ip4 := ip.To4(); ip4 != nil {
		if ip4[0] == 100 && ip4[1]&0xC0 == 64 {
			return true
		}
		if ip4[0] == 169 && ip4[1] == 254 {
			return true
		}
	}

	return false
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		secret, err := adminSecret()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server admin configuration error"})
		}

		// Check X-Admin-Secret header or Bearer token
		authHeader := c.Request().Header.Get("Authorization")
		adminHeader := c.Request().Header.Get("X-Admin-Secret")

		if adminHeader == secret {
			return next(c)
		}
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			if authHeader[7:] == secret {
				return next(c)
			}
		}

		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

func adminSecret() (string, error) {
	adminSecretOnce.Do(func() {
		secret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
		if secret != "" {
			adminSecretRuntime = secret
			return
		}

		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			adminSecretErr = fmt.Errorf("failed to generate ADMIN_SECRET fallback: %w", err)
			return
		}

		adminSecretRuntime = base64.RawURLEncoding.EncodeToString(buf)
		log.Print("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	})

	if adminSecretErr != nil {
		return "", adminSecretErr
	}
	if adminSecretRuntime == "" {
		return "", fmt.Errorf("admin secret unavailable")
	}

	return adminSecretRuntime, nil
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/staysignal/backend/internal/config"
	"github.com/staysignal/backend/internal/middleware"
	"github.com/staysignal/backend/internal/models"
	"github.com/staysignal/backend/internal/services"
	"github.com/staysignal/backend/internal/store"
	"github.com/staysignal/backend/internal/utils"
	"github.com/staysignal/backend/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("handlers-test-secret")
}

type scriptedDrafter struct {
	mu      sync.Mutex
	results []error
}

func (d *scriptedDrafter) next(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.results = append(d.results, err)
}

func (d *scriptedDrafter) Draft(ctx context.Context, dc *services.DraftContext) (*services.DraftResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var err error
	if len(d.results) > 0 {
		err = d.results[0]
		d.results = d.results[1:]
	}
	if err != nil {
		return nil, err
	}
	return &services.DraftResult{Text: "Dear " + dc.GuestName + ", thank you for staying with us.", Model: "scripted"}, nil
}

type discardQueue struct{}

func (discardQueue) Enqueue(*services.Task) error { return nil }
func (discardQueue) IsAsync() bool                { return true }
func (discardQueue) Close() error                 { return nil }

type testServer struct {
	router  *gin.Engine
	db      *gorm.DB
	store   *store.GormStore
	drafter *scriptedDrafter
	harbor  *models.Tenant
	dunes   *models.Tenant
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, models.Migrate(db))

	st := store.NewGormStore(db)
	cfg := config.DefaultConfig()
	queue := discardQueue{}
	drafter := &scriptedDrafter{}
	audit := services.NewAuditLogger(st)
	settings := services.NewTenantSettingsService(st, cfg)
	feedback := services.NewFeedbackService(st, settings, queue, audit, cfg)
	responses := services.NewResponseService(st, drafter, nil, queue, audit, cfg)
	ingest := services.NewIngestService(st, settings, queue, cfg)
	detector := services.NewDetector(st, &cfg.Alerts)
	recovery := services.NewRecoveryService(st, settings)
	synth := services.NewSynthesizer(st, settings, detector, recovery, services.NewHolidayService(), cfg.Reports.Departments)
	digests := services.NewDigestService(st, synth, settings, services.NewNotificationService(st))

	feedbackHandler := NewFeedbackHandler(feedback)
	reviewHandler := NewReviewHandler(ingest, responses)
	responseHandler := NewResponseHandler(responses)
	reportHandler := NewReportHandler(synth, digests, recovery)
	settingsHandler := NewSettingsHandler(settings)
	authHandler := NewAuthHandler(services.NewAuthService(db, &cfg.JWT, services.NewLDAPService(&cfg.LDAP)), false)

	r := gin.New()
	r.POST("/api/public/tenants/:tenant_id/feedback", feedbackHandler.Submit)
	r.POST("/api/auth/login", authHandler.Login)
	r.POST("/api/auth/refresh", authHandler.Refresh)
	api := r.Group("/api", middleware.AuthRequired())
	api.GET("/auth/me", authHandler.Me)
	api.GET("/feedback/queue", feedbackHandler.Queue)
	api.GET("/feedback/:id", feedbackHandler.Get)
	api.POST("/feedback/:id/acknowledge", feedbackHandler.Acknowledge)
	api.POST("/feedback/:id/resolve", feedbackHandler.Resolve)
	api.POST("/reviews", reviewHandler.Ingest)
	api.POST("/reviews/:id/responses", reviewHandler.GenerateResponse)
	api.GET("/reviews/:id/responses", reviewHandler.ListResponses)
	api.POST("/responses/:id/approve", responseHandler.Approve)
	api.POST("/responses/:id/reject", responseHandler.Reject)
	api.POST("/responses/:id/posted", responseHandler.MarkPosted)
	api.PUT("/responses/:id/text", responseHandler.EditText)
	api.GET("/reports/:type", reportHandler.Synthesize)
	api.POST("/recovery-plan", reportHandler.RecoveryPlan)
	api.GET("/settings", settingsHandler.Get)
	api.PUT("/settings", settingsHandler.Update)
	promptHandler := NewPromptHandler(services.NewPromptService(db))
	api.GET("/prompts", promptHandler.List)
	api.POST("/prompts", promptHandler.Create)
	api.PUT("/prompts/:id", promptHandler.Update)
	api.DELETE("/prompts/:id", promptHandler.Delete)

	ts := &testServer{router: r, db: db, store: st, drafter: drafter}
	ts.harbor = ts.seedTenant(t, "harbor")
	ts.dunes = ts.seedTenant(t, "dunes")
	return ts
}

func (ts *testServer) seedTenant(t *testing.T, name string) *models.Tenant {
	t.Helper()
	tenant := &models.Tenant{
		Name:            name,
		BrandVoice:      "Warm",
		ContactEmail:    "gm@" + name + ".example",
		Timezone:        "UTC",
		CountryCode:     "NONE",
		PrimaryPlatform: "google",
		IsActive:        true,
	}
	require.NoError(t, ts.db.Create(tenant).Error)
	return tenant
}

func tokenFor(t *testing.T, tenantID uint) string {
	t.Helper()
	token, err := utils.GenerateToken(1, tenantID, "duty_manager", time.Hour)
	require.NoError(t, err)
	return token
}

type apiResult struct {
	status int
	body   struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
}

func (ts *testServer) do(t *testing.T, method, path string, tenantID uint, body interface{}) apiResult {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if tenantID != 0 {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, tenantID))
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	res := apiResult{status: w.Code}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res.body), w.Body.String())
	}
	return res
}

func decode[T any](t *testing.T, res apiResult) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(res.body.Data, &v))
	return v
}

func TestPublicSubmit(t *testing.T) {
	ts := newTestServer(t)
	path := fmt.Sprintf("/api/public/tenants/%d/feedback", ts.harbor.ID)

	res := ts.do(t, "POST", path, 0, gin.H{"rating": 0, "category": "Housekeeping"})
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = ts.do(t, "POST", path, 0, gin.H{"rating": 2, "category": "Housekeeping", "comment": "Towels missing", "location": "Room 214"})
	require.Equal(t, http.StatusCreated, res.status)
	created := decode[struct {
		ID     uint   `json:"id"`
		Status string `json:"status"`
	}](t, res)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "new", created.Status)

	res = ts.do(t, "POST", "/api/public/tenants/9999/feedback", 0, gin.H{"rating": 4, "category": "Breakfast"})
	assert.Equal(t, http.StatusNotFound, res.status)

	res = ts.do(t, "POST", "/api/public/tenants/abc/feedback", 0, gin.H{"rating": 4, "category": "Breakfast"})
	assert.Equal(t, http.StatusBadRequest, res.status)
}

func TestFeedbackWorkflow(t *testing.T) {
	ts := newTestServer(t)
	submit := fmt.Sprintf("/api/public/tenants/%d/feedback", ts.harbor.ID)
	res := ts.do(t, "POST", submit, 0, gin.H{"rating": 1, "category": "Safety", "comment": "Broken lock"})
	require.Equal(t, http.StatusCreated, res.status)
	id := decode[struct {
		ID uint `json:"id"`
	}](t, res).ID

	res = ts.do(t, "GET", "/api/feedback/queue", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)

	res = ts.do(t, "GET", "/api/feedback/queue", ts.harbor.ID, nil)
	require.Equal(t, http.StatusOK, res.status)
	queue := decode[struct {
		Items []services.QueueEntry `json:"items"`
		Total int                   `json:"total"`
	}](t, res)
	require.Equal(t, 1, queue.Total)
	assert.Equal(t, 115, queue.Items[0].Priority)
	assert.True(t, queue.Items[0].HighImpact)

	res = ts.do(t, "GET", fmt.Sprintf("/api/feedback/%d", id), ts.dunes.ID, nil)
	assert.Equal(t, http.StatusNotFound, res.status, "other tenants cannot see the item")

	res = ts.do(t, "POST", fmt.Sprintf("/api/feedback/%d/acknowledge", id), ts.harbor.ID, nil)
	require.Equal(t, http.StatusOK, res.status)
	item := decode[models.FeedbackItem](t, res)
	assert.Equal(t, models.FeedbackStatusAcknowledged, item.Status)
	assert.NotNil(t, item.AcknowledgedAt)

	res = ts.do(t, "POST", fmt.Sprintf("/api/feedback/%d/acknowledge", id), ts.harbor.ID, nil)
	assert.Equal(t, http.StatusConflict, res.status)

	res = ts.do(t, "POST", fmt.Sprintf("/api/feedback/%d/resolve", id), ts.harbor.ID, nil)
	require.Equal(t, http.StatusOK, res.status)

	res = ts.do(t, "GET", "/api/feedback/queue", ts.harbor.ID, nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, 0, decode[struct {
		Total int `json:"total"`
	}](t, res).Total)
}

func (ts *testServer) ingestReview(t *testing.T, externalID string, rating int) uint {
	t.Helper()
	res := ts.do(t, "POST", "/api/reviews", ts.harbor.ID, gin.H{
		"platform":    "google",
		"external_id": externalID,
		"rating":      rating,
		"author":      "Sam",
		"text":        "The wifi kept dropping and breakfast was cold",
		"review_date": time.Now().UTC().Add(-time.Hour),
	})
	require.Equal(t, http.StatusCreated, res.status)
	return decode[models.ExternalReview](t, res).ID
}

func TestResponseLifecycle(t *testing.T) {
	ts := newTestServer(t)
	reviewID := ts.ingestReview(t, "g-100", 2)

	res := ts.do(t, "POST", "/api/reviews", ts.harbor.ID, gin.H{"platform": "google", "external_id": "g-100", "rating": 2})
	assert.Equal(t, http.StatusOK, res.status, "re-ingesting is not a create")

	res = ts.do(t, "POST", fmt.Sprintf("/api/reviews/%d/responses", reviewID), ts.harbor.ID, nil)
	require.Equal(t, http.StatusCreated, res.status)
	draft := decode[models.ReviewResponse](t, res)
	assert.Equal(t, 1, draft.Version)
	assert.Equal(t, models.ResponsePriorityHigh, draft.Priority)

	res = ts.do(t, "POST", fmt.Sprintf("/api/reviews/%d/responses", reviewID), ts.harbor.ID, nil)
	assert.Equal(t, http.StatusConflict, res.status, "one active response per review")

	res = ts.do(t, "PUT", fmt.Sprintf("/api/responses/%d/text", draft.ID), ts.harbor.ID, gin.H{"text": "Dear Sam, we are sorry."})
	require.Equal(t, http.StatusOK, res.status)

	res = ts.do(t, "POST", fmt.Sprintf("/api/responses/%d/posted", draft.ID), ts.harbor.ID, nil)
	assert.Equal(t, http.StatusConflict, res.status, "drafts cannot be posted")

	res = ts.do(t, "POST", fmt.Sprintf("/api/responses/%d/approve", draft.ID), ts.harbor.ID, gin.H{"notes": "ok"})
	require.Equal(t, http.StatusOK, res.status)
	approved := decode[models.ReviewResponse](t, res)
	assert.Equal(t, models.ResponseStatusApproved, approved.Status)

	res = ts.do(t, "POST", fmt.Sprintf("/api/responses/%d/posted", draft.ID), ts.harbor.ID, nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, models.ResponseStatusPosted, decode[models.ReviewResponse](t, res).Status)

	review, err := ts.store.GetExternalReview(context.Background(), ts.harbor.ID, reviewID)
	require.NoError(t, err)
	assert.False(t, review.ResponseRequired)

	res = ts.do(t, "GET", fmt.Sprintf("/api/reviews/%d/responses", reviewID), ts.harbor.ID, nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, 1, decode[struct {
		Total int `json:"total"`
	}](t, res).Total)
}

func TestGenerateFailureIsBadGateway(t *testing.T) {
	ts := newTestServer(t)
	reviewID := ts.ingestReview(t, "g-200", 3)

	ts.drafter.next(errors.New("upstream timeout"))
	res := ts.do(t, "POST", fmt.Sprintf("/api/reviews/%d/responses", reviewID), ts.harbor.ID, nil)
	assert.Equal(t, http.StatusBadGateway, res.status)

	res = ts.do(t, "POST", "/api/reviews/9999/responses", ts.harbor.ID, nil)
	assert.Equal(t, http.StatusNotFound, res.status)
}

func TestRejectWithoutRegenerationIsPartial(t *testing.T) {
	ts := newTestServer(t)
	reviewID := ts.ingestReview(t, "g-300", 2)

	res := ts.do(t, "POST", fmt.Sprintf("/api/reviews/%d/responses", reviewID), ts.harbor.ID, nil)
	require.Equal(t, http.StatusCreated, res.status)
	draft := decode[models.ReviewResponse](t, res)

	ts.drafter.next(errors.New("model unavailable"))
	res = ts.do(t, "POST", fmt.Sprintf("/api/responses/%d/reject", draft.ID), ts.harbor.ID, gin.H{"reason": "Too generic"})
	require.Equal(t, http.StatusAccepted, res.status)
	assert.Equal(t, response.CodePartial, res.body.Code)
	outcome := decode[services.RejectOutcome](t, res)
	require.NotNil(t, outcome.Rejected)
	assert.Equal(t, models.ResponseStatusRejected, outcome.Rejected.Status)
	assert.Equal(t, "Too generic", outcome.Rejected.RejectionReason)
	assert.Nil(t, outcome.Draft)

	res = ts.do(t, "POST", fmt.Sprintf("/api/responses/%d/reject", draft.ID), ts.harbor.ID, gin.H{"reason": "again"})
	assert.Equal(t, http.StatusConflict, res.status, "a rejected response stays rejected")

	res = ts.do(t, "POST", fmt.Sprintf("/api/reviews/%d/responses", reviewID), ts.harbor.ID, nil)
	require.Equal(t, http.StatusCreated, res.status)
	assert.Equal(t, 2, decode[models.ReviewResponse](t, res).Version)
}

func TestRejectWithRegeneration(t *testing.T) {
	ts := newTestServer(t)
	reviewID := ts.ingestReview(t, "g-301", 2)

	res := ts.do(t, "POST", fmt.Sprintf("/api/reviews/%d/responses", reviewID), ts.harbor.ID, nil)
	require.Equal(t, http.StatusCreated, res.status)
	draft := decode[models.ReviewResponse](t, res)

	res = ts.do(t, "POST", fmt.Sprintf("/api/responses/%d/reject", draft.ID), ts.harbor.ID, gin.H{"reason": "Mention the wifi"})
	require.Equal(t, http.StatusOK, res.status)
	outcome := decode[services.RejectOutcome](t, res)
	require.NotNil(t, outcome.Draft)
	assert.Equal(t, 2, outcome.Draft.Version)
	assert.Equal(t, models.ResponseStatusDraft, outcome.Draft.Status)
}

func TestRecoveryPlanEndpoint(t *testing.T) {
	ts := newTestServer(t)

	res := ts.do(t, "POST", "/api/recovery-plan", ts.harbor.ID, gin.H{})
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = ts.do(t, "POST", "/api/recovery-plan", ts.harbor.ID, gin.H{"platform": "google"})
	assert.Equal(t, http.StatusNotFound, res.status)

	res = ts.do(t, "POST", "/api/recovery-plan", ts.harbor.ID, gin.H{
		"distribution": map[string]int{"5": 59, "4": 43, "3": 21, "2": 5, "1": 11},
		"target":       4.5,
	})
	require.Equal(t, http.StatusOK, res.status)
	plan := decode[services.PlatformRecovery](t, res)
	require.NotNil(t, plan.Plan)
	assert.Equal(t, 139, plan.Plan.TotalReviews)
	assert.Equal(t, 551, plan.Plan.CurrentPoints)
	assert.Equal(t, 75, plan.Plan.ConversionPoints)

	res = ts.do(t, "POST", "/api/recovery-plan", ts.harbor.ID, gin.H{"distribution": map[string]int{"5": 1}, "target": 6})
	assert.Equal(t, http.StatusBadRequest, res.status)
}

func TestReportEndpoint(t *testing.T) {
	ts := newTestServer(t)

	res := ts.do(t, "GET", "/api/reports/monthly", ts.harbor.ID, nil)
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = ts.do(t, "GET", "/api/reports/critical", ts.harbor.ID, nil)
	require.Equal(t, http.StatusOK, res.status)
	payload := decode[services.ReportPayload](t, res)
	assert.Equal(t, services.ReportKindAllClear, payload.Type)
	assert.Equal(t, "harbor", payload.TenantName)

	res = ts.do(t, "GET", "/api/reports/weekly", ts.harbor.ID, nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.NotNil(t, decode[services.ReportPayload](t, res).Weekly)
}

func TestSettingsUpdateIsAllOrNothing(t *testing.T) {
	ts := newTestServer(t)

	res := ts.do(t, "PUT", "/api/settings", ts.harbor.ID, gin.H{"settings": gin.H{
		"recovery_target":    "4.7",
		"auto_draft_enabled": "perhaps",
	}})
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = ts.do(t, "GET", "/api/settings", ts.harbor.ID, nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, 4.5, decode[services.Settings](t, res).RecoveryTarget)

	res = ts.do(t, "PUT", "/api/settings", ts.harbor.ID, gin.H{"settings": gin.H{
		"recovery_target":    "4.7",
		"auto_draft_enabled": "false",
	}})
	require.Equal(t, http.StatusOK, res.status)
	got := decode[services.Settings](t, res)
	assert.Equal(t, 4.7, got.RecoveryTarget)
	assert.False(t, got.AutoDraftEnabled)
}

func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		err      error
		want     int
		wantCode int
	}{
		{fmt.Errorf("%w: x", services.ErrNotFound), http.StatusNotFound, 404},
		{fmt.Errorf("%w: x", services.ErrValidation), http.StatusBadRequest, 400},
		{fmt.Errorf("%w: x", services.ErrInvalidState), http.StatusConflict, 409},
		{fmt.Errorf("%w: x", services.ErrInvalidTransition), http.StatusConflict, response.CodeInvalidTransition},
		{fmt.Errorf("%w: x", services.ErrConflict), http.StatusConflict, 409},
		{fmt.Errorf("%w: x", services.ErrInvalidCredentials), http.StatusUnauthorized, 401},
		{fmt.Errorf("%w: x", services.ErrAccountDisabled), http.StatusForbidden, 403},
		{fmt.Errorf("%w: x", services.ErrGenerationFailed), http.StatusBadGateway, response.CodeDraftingUnavailable},
		{errors.New("database is locked"), http.StatusInternalServerError, 500},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request, _ = http.NewRequest("GET", "/", nil)
		writeError(c, tt.err)
		assert.Equal(t, tt.want, w.Code, tt.err.Error())

		var body response.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, tt.wantCode, body.Code, tt.err.Error())
		assert.NotContains(t, body.Message, "database is locked")
	}
}

func TestLoginFlow(t *testing.T) {
	ts := newTestServer(t)
	hashed, err := utils.HashPassword("harbor-pw")
	require.NoError(t, err)
	manager := &models.Manager{TenantID: ts.harbor.ID, Name: "Ana", Email: "ana@harbor.example", Role: "general_manager", Password: hashed, AuthType: "local", IsActive: true}
	require.NoError(t, ts.db.Create(manager).Error)

	res := ts.do(t, http.MethodPost, "/api/auth/login", 0, gin.H{"email": "ana@harbor.example", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, res.status)

	res = ts.do(t, http.MethodPost, "/api/auth/login", 0, gin.H{"email": "ana@harbor.example"})
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = ts.do(t, http.MethodPost, "/api/auth/login", 0, gin.H{"email": "ana@harbor.example", "password": "harbor-pw"})
	require.Equal(t, http.StatusOK, res.status)
	login := decode[services.LoginResult](t, res)
	require.NotEmpty(t, login.AccessToken)

	req, _ := http.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ana@harbor.example")
	assert.NotContains(t, w.Body.String(), hashed)

	res = ts.do(t, http.MethodPost, "/api/auth/refresh", 0, gin.H{"refresh_token": login.RefreshToken})
	require.Equal(t, http.StatusOK, res.status)
	res = ts.do(t, http.MethodPost, "/api/auth/refresh", 0, gin.H{"refresh_token": login.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, res.status)
}

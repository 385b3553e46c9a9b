package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/staysignal/backend/internal/config"
	"github.com/staysignal/backend/internal/models"
	"github.com/staysignal/backend/internal/store"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) (*store.GormStore, *gorm.DB) {
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
	return store.NewGormStore(db), db
}

func seedTenant(t *testing.T, db *gorm.DB, name string) *models.Tenant {
	t.Helper()
	tenant := &models.Tenant{
		Name:            name,
		BrandVoice:      "Warm and professional",
		ContactEmail:    "gm@" + name + ".example",
		Timezone:        "UTC",
		CountryCode:     "NONE",
		PrimaryPlatform: "google",
		IsActive:        true,
	}
	require.NoError(t, db.Create(tenant).Error)
	return tenant
}

func seedReview(t *testing.T, st *store.GormStore, tenantID uint, externalID string, rating int, text string, at time.Time) *models.ExternalReview {
	t.Helper()
	review := &models.ExternalReview{
		Platform:         "google",
		ExternalID:       externalID,
		Rating:           rating,
		Author:           "Alex",
		Text:             text,
		ReviewDate:       at,
		Sentiment:        models.SentimentForRating(rating),
		ResponseRequired: true,
		CreatedAt:        at,
	}
	_, err := st.UpsertExternalReview(context.Background(), tenantID, review)
	require.NoError(t, err)
	return review
}

func testConfig() *config.Config {
	return config.DefaultConfig()
}

// fakeDrafter returns queued results in order and records every context it saw.
type fakeDrafter struct {
	mu       sync.Mutex
	results  []fakeDraft
	contexts []DraftContext
}

type fakeDraft struct {
	text string
	err  error
}

func (d *fakeDrafter) push(text string, err error) *fakeDrafter {
	d.results = append(d.results, fakeDraft{text: text, err: err})
	return d
}

func (d *fakeDrafter) Draft(ctx context.Context, dc *DraftContext) (*DraftResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contexts = append(d.contexts, *dc)
	if len(d.results) == 0 {
		return nil, errors.New("no draft queued")
	}
	next := d.results[0]
	d.results = d.results[1:]
	if next.err != nil {
		return nil, next.err
	}
	return &DraftResult{Text: next.text, Model: "fake-model"}, nil
}

func (d *fakeDrafter) calls() []DraftContext {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DraftContext(nil), d.contexts...)
}

// recordingQueue keeps enqueued tasks without running them.
type recordingQueue struct {
	mu    sync.Mutex
	tasks []*Task
}

func (q *recordingQueue) Enqueue(task *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *recordingQueue) IsAsync() bool { return true }
func (q *recordingQueue) Close() error  { return nil }

func (q *recordingQueue) ofType(taskType string) []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*Task
	for _, task := range q.tasks {
		if task.Type == taskType {
			out = append(out, task)
		}
	}
	return out
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []*NotificationEvent
	err    error
}

func (n *fakeNotifier) Notify(ctx context.Context, event *NotificationEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

func (n *fakeNotifier) sent() []*NotificationEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*NotificationEvent(nil), n.events...)
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/staysignal/backend/internal/config"
	"github.com/staysignal/backend/internal/models"
	"github.com/staysignal/backend/internal/store"
	"github.com/staysignal/backend/pkg/logger"
)

type AlertSignal string

const (
	SignalGuestComplaint AlertSignal = "guest_complaint"
	SignalRatingDrop     AlertSignal = "rating_drop"
	SignalDataFreshness  AlertSignal = "data_freshness"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
)

// Score maps a severity label onto the 1-10 scale.
func (s Severity) Score() int {
	switch s {
	case SeverityCritical:
		return 9
	case SeverityHigh:
		return 7
	case SeverityMedium:
		return 5
	default:
		return 1
	}
}

// Freshness alerts are about our own data pipeline, not about guests.
const (
	AlertCategoryGuestExperience = "guest_experience"
	AlertCategoryInstrumentation = "instrumentation"
)

type AlertContact struct {
	Name  string `json:"name"`
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type AlertReferences struct {
	FeedbackID  *uint  `json:"feedback_id,omitempty"`
	ReviewID    *uint  `json:"review_id,omitempty"`
	Platform    string `json:"platform,omitempty"`
	SnapshotIDs []uint `json:"snapshot_ids,omitempty"`
}

type AlertPayload struct {
	ID                 string          `json:"id"`
	Type               AlertSignal     `json:"type"`
	Category           string          `json:"category"`
	Severity           Severity        `json:"severity"`
	SeverityScore      int             `json:"severity_score"`
	Summary            string          `json:"summary"`
	RecommendedActions []string        `json:"recommended_actions"`
	Contacts           []AlertContact  `json:"contacts"`
	References         AlertReferences `json:"references"`
	DedupeKey          string          `json:"dedupe_key"`
	DetectedAt         time.Time       `json:"detected_at"`
}

// Detector evaluates the three escalation signals. Missing data means a
// signal does not fire; it is never an error.
type Detector struct {
	store     store.Store
	cfg       config.AlertConfig
	extractor IssueExtractor
}

func NewDetector(st store.Store, cfg *config.AlertConfig) *Detector {
	return &Detector{store: st, cfg: *cfg, extractor: NewKeywordIssueExtractor()}
}

// Detect returns complaints, then rating drops, then freshness alerts.
// An empty result is the all-clear.
func (d *Detector) Detect(ctx context.Context, tenantID uint, now time.Time) ([]AlertPayload, error) {
	now = now.UTC()
	contacts, err := d.contacts(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	complaints, err := d.complaints(ctx, tenantID, now, contacts)
	if err != nil {
		return nil, err
	}
	drops, stale, err := d.snapshotSignals(ctx, tenantID, now, contacts)
	if err != nil {
		return nil, err
	}

	alerts := make([]AlertPayload, 0, len(complaints)+len(drops)+len(stale))
	alerts = append(alerts, complaints...)
	alerts = append(alerts, drops...)
	alerts = append(alerts, stale...)
	return alerts, nil
}

func (d *Detector) contacts(ctx context.Context, tenantID uint) ([]AlertContact, error) {
	managers, err := d.store.ListAlertContacts(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	contacts := make([]AlertContact, 0, len(managers))
	for _, m := range managers {
		contacts = append(contacts, AlertContact{Name: m.Name, Role: m.Role, Email: m.Email, Phone: m.Phone})
	}
	return contacts, nil
}

type complaint struct {
	alert    AlertPayload
	at       time.Time
	internal bool
	id       uint
}

func complaintSeverity(rating int) Severity {
	if rating <= 2 {
		return SeverityCritical
	}
	return SeverityHigh
}

func (d *Detector) complaints(ctx context.Context, tenantID uint, now time.Time, contacts []AlertContact) ([]AlertPayload, error) {
	since := now.Add(-d.cfg.ComplaintWindow)

	items, err := d.store.ListFeedbackSince(ctx, tenantID, since)
	if err != nil {
		return nil, err
	}
	reviews, err := d.store.ListReviewsSince(ctx, tenantID, since)
	if err != nil {
		return nil, err
	}

	var found []complaint
	for _, item := range items {
		if item.Rating > d.cfg.ComplaintMaxRating || item.CreatedAt.After(now) {
			continue
		}
		id := item.ID
		severity := complaintSeverity(item.Rating)
		summary := fmt.Sprintf("%d★ %s feedback", item.Rating, item.Category)
		if item.Location != "" {
			summary += " from " + item.Location
		}
		if item.Comment != "" {
			summary += ": " + excerpt(item.Comment, 120)
		}
		found = append(found, complaint{
			alert: d.newAlert(tenantID, fmt.Sprintf("guest_complaint:feedback:%d", id), SignalGuestComplaint, severity, summary,
				feedbackActions(&item, severity), contacts, AlertReferences{FeedbackID: &id}, now),
			at:       item.CreatedAt,
			internal: true,
			id:       id,
		})
	}
	for _, review := range reviews {
		if review.Rating > d.cfg.ComplaintMaxRating || review.ReviewDate.After(now) {
			continue
		}
		id := review.ID
		severity := complaintSeverity(review.Rating)
		summary := fmt.Sprintf("%d★ %s review by %s", review.Rating, review.Platform, authorOrAnonymous(review.Author))
		if review.Text != "" {
			summary += ": " + excerpt(review.Text, 120)
		}
		found = append(found, complaint{
			alert: d.newAlert(tenantID, fmt.Sprintf("guest_complaint:review:%d", id), SignalGuestComplaint, severity, summary,
				d.reviewActions(&review), contacts, AlertReferences{ReviewID: &id, Platform: review.Platform}, now),
			at: review.ReviewDate,
			id: id,
		})
	}

	sort.SliceStable(found, func(i, j int) bool {
		a, b := found[i], found[j]
		if a.alert.SeverityScore != b.alert.SeverityScore {
			return a.alert.SeverityScore > b.alert.SeverityScore
		}
		if !a.at.Equal(b.at) {
			return a.at.After(b.at)
		}
		if a.internal != b.internal {
			return a.internal
		}
		return a.id < b.id
	})

	alerts := make([]AlertPayload, 0, len(found))
	for _, c := range found {
		alerts = append(alerts, c.alert)
	}
	return alerts, nil
}

func (d *Detector) snapshotSignals(ctx context.Context, tenantID uint, now time.Time, contacts []AlertContact) ([]AlertPayload, []AlertPayload, error) {
	platforms, err := d.store.Platforms(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}

	var drops, stale []AlertPayload
	for _, platform := range platforms {
		snaps, err := d.store.LatestSnapshots(ctx, tenantID, platform, 2)
		if err != nil {
			return nil, nil, err
		}
		if len(snaps) == 0 {
			continue
		}
		latest := snaps[0]

		if len(snaps) >= 2 && latest.Average < snaps[1].Average {
			previous := snaps[1]
			summary := fmt.Sprintf("%s rating dropped from %.2f to %.2f (%+.2f)",
				platform, previous.Average, latest.Average, latest.Average-previous.Average)
			drops = append(drops, d.newAlert(tenantID, fmt.Sprintf("rating_drop:%s:%d", platform, latest.ID), SignalRatingDrop, SeverityHigh, summary,
				[]string{
					fmt.Sprintf("Read the %s reviews received since %s", platform, previous.CapturedAt.Format("Jan 2 15:04")),
					"Prioritise replies to recent low ratings",
					"Brief department heads on the issues behind the drop",
				}, contacts, AlertReferences{Platform: platform, SnapshotIDs: []uint{latest.ID, previous.ID}}, now))
		}

		if age := now.Sub(latest.CapturedAt); age > d.cfg.FreshnessThreshold {
			summary := fmt.Sprintf("No %s rating data for %s (threshold %s)", platform, age.Truncate(time.Minute), d.cfg.FreshnessThreshold)
			alert := d.newAlert(tenantID, fmt.Sprintf("data_freshness:%s:%d", platform, latest.ID), SignalDataFreshness, SeverityMedium, summary,
				[]string{
					fmt.Sprintf("Check the %s rating import job", platform),
					"Verify platform credentials and rate limits",
				}, contacts, AlertReferences{Platform: platform, SnapshotIDs: []uint{latest.ID}}, now)
			alert.Category = AlertCategoryInstrumentation
			stale = append(stale, alert)
		}
	}
	return drops, stale, nil
}

func (d *Detector) newAlert(tenantID uint, key string, signal AlertSignal, severity Severity, summary string, actions []string, contacts []AlertContact, refs AlertReferences, now time.Time) AlertPayload {
	return AlertPayload{
		ID:                 uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%d:%s", tenantID, key))).String(),
		Type:               signal,
		Category:           AlertCategoryGuestExperience,
		Severity:           severity,
		SeverityScore:      severity.Score(),
		Summary:            summary,
		RecommendedActions: actions,
		Contacts:           contacts,
		References:         refs,
		DedupeKey:          key,
		DetectedAt:         now,
	}
}

func feedbackActions(item *models.FeedbackItem, severity Severity) []string {
	var actions []string
	where := "the guest"
	if item.Location != "" {
		where = "the guest in " + item.Location
	}
	if severity == SeverityCritical {
		actions = append(actions, fmt.Sprintf("Send the duty manager to %s now", where))
	} else {
		actions = append(actions, fmt.Sprintf("Check in with %s today", where))
	}
	if item.HasContact() {
		actions = append(actions, "Contact the guest using the details they left")
	}
	actions = append(actions,
		fmt.Sprintf("Assign the %s issue to the responsible team", item.Category),
		fmt.Sprintf("Acknowledge feedback #%d once someone owns it", item.ID),
	)
	return actions
}

func (d *Detector) reviewActions(review *models.ExternalReview) []string {
	actions := []string{fmt.Sprintf("Approve a reply on %s within 24 hours", review.Platform)}
	if issues := d.extractor.Extract(review.Text); len(issues) > 0 {
		actions = append(actions, "Investigate "+strings.Join(issues, ", "))
	}
	return append(actions, "Invite the guest to continue the conversation privately")
}

func authorOrAnonymous(author string) string {
	if strings.TrimSpace(author) == "" {
		return "anonymous"
	}
	return author
}

func excerpt(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return strings.TrimSpace(string(runes[:limit])) + "…"
}

// AlertService runs the detector and pushes each alert once.
type AlertService struct {
	detector *Detector
	store    store.Store
	notifier Notifier
}

func NewAlertService(detector *Detector, st store.Store, notifier Notifier) *AlertService {
	return &AlertService{detector: detector, store: st, notifier: notifier}
}

// maxPendingResend bounds how many undelivered alerts one run retries.
const maxPendingResend = 20

var detectorSignals = []string{string(SignalGuestComplaint), string(SignalRatingDrop), string(SignalDataFreshness)}

// CheckAndNotify returns the alerts that were new on this run. Alerts logged
// by earlier runs whose push failed are sent again first.
func (s *AlertService) CheckAndNotify(ctx context.Context, tenantID uint, now time.Time) ([]AlertPayload, error) {
	s.resendPending(ctx, tenantID)

	alerts, err := s.detector.Detect(ctx, tenantID, now)
	if err != nil {
		return nil, err
	}

	var emitted []AlertPayload
	for _, alert := range alerts {
		payload, _ := json.Marshal(alert)
		entry := &models.AlertLog{
			DedupeKey: alert.DedupeKey,
			AlertID:   alert.ID,
			Signal:    string(alert.Type),
			Severity:  string(alert.Severity),
			Summary:   alert.Summary,
			Payload:   string(payload),
			CreatedAt: now.UTC(),
		}
		if err := s.store.LogAlert(ctx, tenantID, entry); err != nil {
			if !errors.Is(err, store.ErrConflict) {
				logger.Warnf("[Alert] Failed to log %s for tenant %d: %v", alert.DedupeKey, tenantID, err)
			}
			continue
		}
		emitted = append(emitted, alert)
		s.deliver(ctx, tenantID, entry.ID, &alert)
	}

	if len(emitted) > 0 {
		logger.Info().Uint("tenant_id", tenantID).Int("count", len(emitted)).Msg("[Alert] New alerts emitted")
	}
	return emitted, nil
}

func (s *AlertService) resendPending(ctx context.Context, tenantID uint) {
	pending, err := s.store.ListUnnotifiedAlerts(ctx, tenantID, detectorSignals, maxPendingResend)
	if err != nil {
		logger.Warnf("[Alert] Failed to load undelivered alerts for tenant %d: %v", tenantID, err)
		return
	}
	for i := range pending {
		var alert AlertPayload
		if err := json.Unmarshal([]byte(pending[i].Payload), &alert); err != nil {
			logger.Warnf("[Alert] Skipping unreadable alert %s: %v", pending[i].DedupeKey, err)
			continue
		}
		s.deliver(ctx, tenantID, pending[i].ID, &alert)
	}
}

// deliver pushes one logged alert and stamps it once the push succeeds.
func (s *AlertService) deliver(ctx context.Context, tenantID, logID uint, alert *AlertPayload) {
	if err := s.notifier.Notify(ctx, AlertEvent(tenantID, alert)); err != nil {
		logger.Warnf("[Alert] Notification failed for %s: %v", alert.DedupeKey, err)
		return
	}
	if err := s.store.MarkAlertNotified(ctx, tenantID, logID, time.Now().UTC()); err != nil {
		logger.Warnf("[Alert] Failed to mark %s notified: %v", alert.DedupeKey, err)
	}
}

func (s *AlertService) Detect(ctx context.Context, tenantID uint, now time.Time) ([]AlertPayload, error) {
	return s.detector.Detect(ctx, tenantID, now)
}

func (s *AlertService) History(ctx context.Context, tenantID uint, limit int) ([]models.AlertLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListAlertLogs(ctx, tenantID, limit)
}

// AlertEvent renders an alert for chat channels.
func AlertEvent(tenantID uint, alert *AlertPayload) *NotificationEvent {
	var b strings.Builder
	b.WriteString(alert.Summary)
	if len(alert.RecommendedActions) > 0 {
		b.WriteString("\n\nRecommended actions:")
		for _, action := range alert.RecommendedActions {
			b.WriteString("\n- ")
			b.WriteString(action)
		}
	}
	if len(alert.Contacts) > 0 {
		names := make([]string, 0, len(alert.Contacts))
		for _, c := range alert.Contacts {
			names = append(names, c.Name)
		}
		b.WriteString("\n\nContacts: ")
		b.WriteString(strings.Join(names, ", "))
	}

	title := strings.ReplaceAll(string(alert.Type), "_", " ")
	return &NotificationEvent{
		TenantID: tenantID,
		Kind:     EventAlert,
		Title:    strings.ToUpper(title[:1]) + title[1:],
		Body:     b.String(),
		Severity: string(alert.Severity),
		Data: map[string]interface{}{
			"alert_id": alert.ID,
			"type":     alert.Type,
			"category": alert.Category,
			"score":    alert.SeverityScore,
		},
	}
}

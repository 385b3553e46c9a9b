package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/staysignal/backend/internal/models"
	"github.com/staysignal/backend/internal/store"
	"github.com/staysignal/backend/pkg/logger"
)

// DigestService persists synthesized reports and pushes morning and weekly
// digests to the tenant's digest channels. Critical alerts are pushed by
// AlertService so they are only sent once.
type DigestService struct {
	store       store.Store
	synthesizer *Synthesizer
	settings    *TenantSettingsService
	notifier    Notifier
}

func NewDigestService(st store.Store, synthesizer *Synthesizer, settings *TenantSettingsService, notifier Notifier) *DigestService {
	return &DigestService{store: st, synthesizer: synthesizer, settings: settings, notifier: notifier}
}

// Run synthesizes and stores a report. It returns nil, nil when the tenant
// has the digest switched off.
func (s *DigestService) Run(ctx context.Context, tenantID uint, reportType string, now time.Time) (*models.Report, error) {
	if !s.settings.DigestEnabled(ctx, tenantID, reportType) {
		logger.Debug().Uint("tenant_id", tenantID).Str("type", reportType).Msg("[Digest] Disabled for tenant")
		return nil, nil
	}

	payload, err := s.synthesizer.Synthesize(ctx, tenantID, reportType, now)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	tenant, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	report := &models.Report{
		ReportType: reportType,
		ReportDate: localDate(now, tenant.Timezone).Format("2006-01-02"),
		Payload:    string(data),
	}
	if err := s.store.SaveReport(ctx, tenantID, report); err != nil {
		return nil, err
	}
	logger.Info().Uint("tenant_id", tenantID).Str("type", reportType).Str("date", report.ReportDate).Msg("[Digest] Report stored")

	if reportType != models.ReportTypeCritical {
		s.deliver(ctx, tenantID, report, payload)
	}
	return report, nil
}

func (s *DigestService) deliver(ctx context.Context, tenantID uint, report *models.Report, payload *ReportPayload) {
	if err := s.notifier.Notify(ctx, DigestEvent(payload)); err != nil {
		logger.Warnf("[Digest] Failed to send %s digest for tenant %d: %v", report.ReportType, tenantID, err)
		report.NotifyError = err.Error()
	} else {
		now := time.Now().UTC()
		report.NotifiedAt = &now
		report.NotifyError = ""
	}
	if err := s.store.SaveReport(ctx, tenantID, report); err != nil {
		logger.Warnf("[Digest] Failed to record delivery of report %d: %v", report.ID, err)
	}
}

// Resend pushes a stored report again.
func (s *DigestService) Resend(ctx context.Context, tenantID uint, reportType, date string) (*models.Report, error) {
	report, err := s.store.GetReport(ctx, tenantID, reportType, date)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	var payload ReportPayload
	if err := json.Unmarshal([]byte(report.Payload), &payload); err != nil {
		return nil, fmt.Errorf("decode report %d: %w", report.ID, err)
	}
	s.deliver(ctx, tenantID, report, &payload)
	return report, nil
}

func (s *DigestService) List(ctx context.Context, tenantID uint, reportType string, limit int) ([]models.Report, error) {
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	return s.store.ListReports(ctx, tenantID, reportType, limit)
}

var digestTitles = map[string]string{
	models.ReportTypeMorning:  "Morning briefing",
	models.ReportTypeWeekly:   "Weekly performance",
	models.ReportTypeCritical: "Critical alerts",
	ReportKindAllClear:        "All clear",
}

// DigestEvent renders a compact chat summary of a report.
func DigestEvent(p *ReportPayload) *NotificationEvent {
	var b strings.Builder
	title := fmt.Sprintf("%s: %s", digestTitles[p.Type], p.TenantName)

	switch {
	case p.Morning != nil:
		m := p.Morning
		if m.Holiday != "" {
			fmt.Fprintf(&b, "Today is %s.\n", m.Holiday)
		}
		fmt.Fprintf(&b, "Last 24h: %d feedback, avg %.2f (%d positive, %d negative). Urgent open items: %d.\n",
			m.Counts.Total, m.Counts.Average, m.Counts.Positive, m.Counts.Negative, m.UrgentCount)
		for _, r := range m.Ratings {
			fmt.Fprintf(&b, "%s: %.2f from %d reviews\n", r.Platform, r.Average, r.TotalReviews)
		}
		if len(m.TopActions) > 0 {
			b.WriteString("\nTop actions:\n")
			for _, a := range m.TopActions {
				fmt.Fprintf(&b, "- #%d %d★ %s (%s): %s\n", a.FeedbackID, a.Rating, a.Category, a.SLALabel, a.Action)
			}
		}
		if m.Recovery != nil && !m.Recovery.TargetMet {
			fmt.Fprintf(&b, "\nTo reach %.1f on %s: win back %d reviews and earn %d new 5★ reviews.\n",
				m.Recovery.TargetAverage, m.Recovery.Platform, m.Recovery.Conversions, m.Recovery.AdditionalFiveStarReviewsNeeded)
		}
		b.WriteString("\nToday's focus:\n")
		for _, f := range m.TodaysFocus {
			fmt.Fprintf(&b, "- %s\n", f)
		}

	case p.Weekly != nil:
		w := p.Weekly
		fmt.Fprintf(&b, "Last 7 days: %d feedback, avg %.2f.\n\nDepartments:\n", w.Counts.Total, w.Counts.Average)
		for _, d := range w.Departments {
			if d.Status == DepartmentNoData {
				fmt.Fprintf(&b, "- %s: no data\n", d.Name)
				continue
			}
			fmt.Fprintf(&b, "- %s: %.2f (%s, %d items)\n", d.Name, d.Average, d.Status, d.Count)
		}
		if len(w.Attention) > 0 {
			b.WriteString("\nNeeds attention:\n")
			for _, a := range w.Attention {
				fmt.Fprintf(&b, "- %s: %d low ratings\n", a.Category, a.Count)
			}
		}
		b.WriteString("\nWins:\n")
		for _, win := range w.Wins {
			fmt.Fprintf(&b, "- %s\n", win.Excerpt)
		}

	case p.Type == ReportKindAllClear:
		b.WriteString("No complaints, rating drops or stale data.")

	default:
		for _, a := range p.Alerts {
			fmt.Fprintf(&b, "- [%s] %s\n", a.Severity, a.Summary)
		}
	}

	return &NotificationEvent{
		TenantID: p.TenantID,
		Kind:     EventDigest,
		Title:    title,
		Body:     strings.TrimRight(b.String(), "\n"),
		Data: map[string]interface{}{
			"report_type":  p.Type,
			"generated_at": p.GeneratedAt,
		},
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/staysignal/backend/internal/config"
	"github.com/staysignal/backend/internal/models"
	"github.com/staysignal/backend/internal/store"
)

// ReportKindAllClear replaces a critical report when nothing fired.
const ReportKindAllClear = "all_clear"

const (
	DepartmentGood    = "good"
	DepartmentWarning = "warning"
	DepartmentPoor    = "poor"
	DepartmentNoData  = "no_data"
)

const (
	topActionCount    = 3
	focusActionCount  = 3
	attentionCount    = 2
	winCount          = 2
	winExcerptLength  = 160
	lowRatingMax      = 3
	positiveRatingMin = 4
)

type ReportPeriod struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

type FeedbackCounts struct {
	Total    int     `json:"total"`
	Positive int     `json:"positive"`
	Negative int     `json:"negative"`
	Average  float64 `json:"average"`
}

type PlatformRating struct {
	Platform     string    `json:"platform"`
	Average      float64   `json:"average"`
	TotalReviews int       `json:"total_reviews"`
	CapturedAt   time.Time `json:"captured_at"`
}

type PriorityAction struct {
	FeedbackID uint    `json:"feedback_id"`
	Rating     int     `json:"rating"`
	Category   string  `json:"category"`
	Location   string  `json:"location,omitempty"`
	Priority   int     `json:"priority"`
	Urgency    Urgency `json:"urgency"`
	SLALabel   string  `json:"sla_label"`
	Action     string  `json:"action"`
}

type RecoverySummary struct {
	Platform                        string  `json:"platform"`
	CurrentAverage                  float64 `json:"current_average"`
	TargetAverage                   float64 `json:"target_average"`
	PointsNeeded                    float64 `json:"points_needed"`
	Conversions                     int     `json:"conversions"`
	AdditionalFiveStarReviewsNeeded int     `json:"additional_five_star_reviews_needed"`
	TargetMet                       bool    `json:"target_met"`
}

type MorningDigest struct {
	Period        ReportPeriod     `json:"period"`
	Counts        FeedbackCounts   `json:"counts"`
	UrgentCount   int              `json:"urgent_count"`
	Ratings       []PlatformRating `json:"ratings"`
	TopActions    []PriorityAction `json:"top_actions"`
	Recovery      *RecoverySummary `json:"recovery,omitempty"`
	FocusCategory string           `json:"focus_category,omitempty"`
	TodaysFocus   []string         `json:"todays_focus"`
	Holiday       string           `json:"holiday,omitempty"`
}

type DepartmentScore struct {
	Name    string  `json:"name"`
	Average float64 `json:"average"`
	Count   int     `json:"count"`
	Status  string  `json:"status"`
}

type AttentionItem struct {
	Category string  `json:"category"`
	Count    int     `json:"count"`
	Average  float64 `json:"average"`
}

type Win struct {
	FeedbackID uint      `json:"feedback_id,omitempty"`
	Category   string    `json:"category,omitempty"`
	Excerpt    string    `json:"excerpt"`
	CreatedAt  time.Time `json:"created_at"`
	Generic    bool      `json:"generic,omitempty"`
}

type WeeklyDigest struct {
	Period      ReportPeriod      `json:"period"`
	Counts      FeedbackCounts    `json:"counts"`
	Departments []DepartmentScore `json:"departments"`
	Unassigned  int               `json:"unassigned"`
	Attention   []AttentionItem   `json:"attention"`
	Wins        []Win             `json:"wins"`
}

// ReportPayload is structured data only; rendering happens elsewhere.
type ReportPayload struct {
	Type        string         `json:"type"`
	TenantID    uint           `json:"tenant_id"`
	TenantName  string         `json:"tenant_name"`
	GeneratedAt time.Time      `json:"generated_at"`
	Morning     *MorningDigest `json:"morning,omitempty"`
	Weekly      *WeeklyDigest  `json:"weekly,omitempty"`
	Alerts      []AlertPayload `json:"alerts,omitempty"`
}

// Synthesizer builds report payloads. Output depends only on stored data and now.
type Synthesizer struct {
	store       store.Store
	settings    *TenantSettingsService
	detector    *Detector
	recovery    *RecoveryService
	holidays    *HolidayService
	departments []config.Department
}

func NewSynthesizer(st store.Store, settings *TenantSettingsService, detector *Detector, recovery *RecoveryService, holidays *HolidayService, departments []config.Department) *Synthesizer {
	return &Synthesizer{
		store:       st,
		settings:    settings,
		detector:    detector,
		recovery:    recovery,
		holidays:    holidays,
		departments: departments,
	}
}

func (s *Synthesizer) Synthesize(ctx context.Context, tenantID uint, reportType string, now time.Time) (*ReportPayload, error) {
	now = now.UTC()
	tenant, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, translateStoreErr(err)
	}

	payload := &ReportPayload{Type: reportType, TenantID: tenantID, TenantName: tenant.Name, GeneratedAt: now}
	switch reportType {
	case models.ReportTypeMorning:
		payload.Morning, err = s.morning(ctx, tenant, now)
	case models.ReportTypeWeekly:
		payload.Weekly, err = s.weekly(ctx, tenantID, now)
	case models.ReportTypeCritical:
		payload.Alerts, err = s.detector.Detect(ctx, tenantID, now)
		if err == nil && len(payload.Alerts) == 0 {
			payload.Type = ReportKindAllClear
		}
	default:
		return nil, fmt.Errorf("%w: unknown report type %q", ErrValidation, reportType)
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *Synthesizer) morning(ctx context.Context, tenant *models.Tenant, now time.Time) (*MorningDigest, error) {
	period := ReportPeriod{From: now.Add(-24 * time.Hour), To: now}
	recent, err := s.store.ListFeedbackBetween(ctx, tenant.ID, period.From, period.To)
	if err != nil {
		return nil, err
	}
	open, err := s.store.ListOpenFeedback(ctx, tenant.ID)
	if err != nil {
		return nil, err
	}

	digest := &MorningDigest{Period: period, Counts: countFeedback(recent)}

	queue := s.settings.SLAPolicy(ctx, tenant.ID).SortByPriority(open, now)
	for _, entry := range queue {
		if entry.SLA.Urgency == UrgencyCritical || entry.SLA.Urgency == UrgencyHigh {
			digest.UrgentCount++
		}
	}
	digest.TopActions = make([]PriorityAction, 0, topActionCount)
	for _, entry := range queue[:min(topActionCount, len(queue))] {
		digest.TopActions = append(digest.TopActions, PriorityAction{
			FeedbackID: entry.ID,
			Rating:     entry.Rating,
			Category:   entry.Category,
			Location:   entry.Location,
			Priority:   entry.Priority,
			Urgency:    entry.SLA.Urgency,
			SLALabel:   entry.SLALabel,
			Action:     actionFor(&entry),
		})
	}

	if digest.Ratings, err = s.latestRatings(ctx, tenant.ID); err != nil {
		return nil, err
	}
	if digest.Recovery, err = s.recoverySummary(ctx, tenant, digest.Ratings); err != nil {
		return nil, err
	}

	week, err := s.store.ListFeedbackBetween(ctx, tenant.ID, now.Add(-7*24*time.Hour), now)
	if err != nil {
		return nil, err
	}
	digest.FocusCategory, digest.TodaysFocus = todaysFocus(week)

	if s.holidays != nil {
		if name, ok := s.holidays.PublicHoliday(localDate(now, tenant.Timezone), tenant.CountryCode); ok {
			digest.Holiday = name
		}
	}
	return digest, nil
}

func localDate(now time.Time, timezone string) time.Time {
	if loc, err := time.LoadLocation(timezone); err == nil && timezone != "" {
		return now.In(loc)
	}
	return now
}

func actionFor(entry *QueueEntry) string {
	switch entry.SLA.State {
	case SLAStateOverdueAck:
		return "Acknowledge now and assign an owner"
	case SLAStateOverdueResolve:
		return "Escalate: resolution deadline missed"
	case SLAStateWarning:
		return "Resolve before the deadline"
	}
	if entry.Status == models.FeedbackStatusNew {
		return "Acknowledge and assign an owner"
	}
	return "Follow through to resolution"
}

func (s *Synthesizer) latestRatings(ctx context.Context, tenantID uint) ([]PlatformRating, error) {
	platforms, err := s.store.Platforms(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	ratings := make([]PlatformRating, 0, len(platforms))
	for _, platform := range platforms {
		snaps, err := s.store.LatestSnapshots(ctx, tenantID, platform, 1)
		if err != nil {
			return nil, err
		}
		if len(snaps) == 0 {
			continue
		}
		ratings = append(ratings, PlatformRating{
			Platform:     platform,
			Average:      snaps[0].Average,
			TotalReviews: snaps[0].TotalReviews,
			CapturedAt:   snaps[0].CapturedAt,
		})
	}
	return ratings, nil
}

// recoverySummary plans for the tenant's primary platform, or the first
// platform with data when none is configured.
func (s *Synthesizer) recoverySummary(ctx context.Context, tenant *models.Tenant, ratings []PlatformRating) (*RecoverySummary, error) {
	platform := tenant.PrimaryPlatform
	if platform == "" {
		if len(ratings) == 0 {
			return nil, nil
		}
		platform = ratings[0].Platform
	}

	pr, err := s.recovery.PlanForPlatform(ctx, tenant.ID, platform)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	conversions := 0
	for _, step := range pr.Plan.Conversions {
		conversions += step.Count
	}
	return &RecoverySummary{
		Platform:                        platform,
		CurrentAverage:                  pr.Plan.CurrentAverage,
		TargetAverage:                   pr.Plan.TargetAverage,
		PointsNeeded:                    pr.Plan.PointsNeeded,
		Conversions:                     conversions,
		AdditionalFiveStarReviewsNeeded: pr.Plan.AdditionalFiveStarReviewsNeeded,
		TargetMet:                       pr.Plan.TargetMet,
	}, nil
}

func countFeedback(items []models.FeedbackItem) FeedbackCounts {
	counts := FeedbackCounts{Total: len(items)}
	sum := 0
	for _, item := range items {
		sum += item.Rating
		if item.Rating >= positiveRatingMin {
			counts.Positive++
		}
		if item.Rating <= lowRatingMax {
			counts.Negative++
		}
	}
	if len(items) > 0 {
		counts.Average = round2(float64(sum) / float64(len(items)))
	}
	return counts
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

type categoryCount struct {
	category string
	count    int
	sum      int
}

// lowRatingCategories ranks categories of low-rated items by frequency, then name.
func lowRatingCategories(items []models.FeedbackItem) []categoryCount {
	byCategory := make(map[string]*categoryCount)
	for _, item := range items {
		if item.Rating > lowRatingMax {
			continue
		}
		c, ok := byCategory[item.Category]
		if !ok {
			c = &categoryCount{category: item.Category}
			byCategory[item.Category] = c
		}
		c.count++
		c.sum += item.Rating
	}

	ranked := make([]categoryCount, 0, len(byCategory))
	for _, c := range byCategory {
		ranked = append(ranked, *c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].category < ranked[j].category
	})
	return ranked
}

var genericFocus = []string{
	"Greet arriving guests personally at check-in",
	"Read yesterday's reviews and queue replies",
	"Walk the public areas before the lunch service",
}

var focusPlaybook = []struct {
	keywords []string
	actions  []string
}{
	{[]string{"housekeeping", "clean", "room"}, []string{
		"Spot-check five departures with the housekeeping supervisor",
		"Re-brief the room attendant checklist at the morning huddle",
		"Call back guests who reported room issues this week",
	}},
	{[]string{"breakfast", "restaurant", "food", "bar"}, []string{
		"Check buffet replenishment during the breakfast peak",
		"Taste-test the morning service with the chef",
		"Ask three breakfast guests for feedback in person",
	}},
	{[]string{"wifi", "internet", "maintenance", "plumbing"}, []string{
		"Run a connectivity and hot-water check on the worst-rated floors",
		"Clear the open maintenance tickets older than 24 hours",
		"Tell affected guests when the fix is in place",
	}},
	{[]string{"front", "check-in", "reception", "staff", "service"}, []string{
		"Review check-in wait times with the front office lead",
		"Run a five-minute service recovery refresher",
		"Make sure a manager is visible in the lobby at peak times",
	}},
}

// todaysFocus picks the most frequent low-rating category of the week and
// turns it into a fixed-size action list.
func todaysFocus(week []models.FeedbackItem) (string, []string) {
	ranked := lowRatingCategories(week)
	if len(ranked) == 0 {
		return "", append([]string(nil), genericFocus...)
	}

	category := ranked[0].category
	lower := strings.ToLower(category)
	for _, play := range focusPlaybook {
		for _, kw := range play.keywords {
			if strings.Contains(lower, kw) {
				return category, append([]string(nil), play.actions[:focusActionCount]...)
			}
		}
	}
	return category, []string{
		fmt.Sprintf("Walk the %s area with the team lead", category),
		fmt.Sprintf("Review this week's %s complaints at the stand-up", category),
		fmt.Sprintf("Follow up with guests who reported %s issues", category),
	}
}

func (s *Synthesizer) weekly(ctx context.Context, tenantID uint, now time.Time) (*WeeklyDigest, error) {
	period := ReportPeriod{From: now.Add(-7 * 24 * time.Hour), To: now}
	items, err := s.store.ListFeedbackBetween(ctx, tenantID, period.From, period.To)
	if err != nil {
		return nil, err
	}

	digest := &WeeklyDigest{Period: period, Counts: countFeedback(items)}
	digest.Departments, digest.Unassigned = scoreDepartments(s.departments, items)

	ranked := lowRatingCategories(items)
	digest.Attention = make([]AttentionItem, 0, attentionCount)
	for _, c := range ranked[:min(attentionCount, len(ranked))] {
		digest.Attention = append(digest.Attention, AttentionItem{
			Category: c.category,
			Count:    c.count,
			Average:  round2(float64(c.sum) / float64(c.count)),
		})
	}
	digest.Wins = weeklyWins(items, digest.Counts)
	return digest, nil
}

// departmentFor attributes a category to at most one department. An exact
// match wins; otherwise the longest mapped category that prefixes it at a
// word boundary. "Room Service" therefore never lands in a department mapped
// only to "Service".
func departmentFor(departments []config.Department, category string) int {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return -1
	}

	best, bestLen := -1, 0
	for i, dept := range departments {
		for _, mapped := range dept.Categories {
			mapped = strings.ToLower(strings.TrimSpace(mapped))
			if mapped == "" {
				continue
			}
			if mapped == category {
				return i
			}
			if strings.HasPrefix(category, mapped+" ") && len(mapped) > bestLen {
				best, bestLen = i, len(mapped)
			}
		}
	}
	return best
}

func scoreDepartments(departments []config.Department, items []models.FeedbackItem) ([]DepartmentScore, int) {
	sums := make([]int, len(departments))
	counts := make([]int, len(departments))
	unassigned := 0
	for _, item := range items {
		idx := departmentFor(departments, item.Category)
		if idx < 0 {
			unassigned++
			continue
		}
		sums[idx] += item.Rating
		counts[idx]++
	}

	scores := make([]DepartmentScore, 0, len(departments))
	for i, dept := range departments {
		score := DepartmentScore{Name: dept.Name, Count: counts[i], Status: DepartmentNoData}
		if counts[i] > 0 {
			score.Average = round2(float64(sums[i]) / float64(counts[i]))
			score.Status = departmentStatus(float64(sums[i]) / float64(counts[i]))
		}
		scores = append(scores, score)
	}
	return scores, unassigned
}

func departmentStatus(avg float64) string {
	switch {
	case avg >= 4.0:
		return DepartmentGood
	case avg >= 3.5:
		return DepartmentWarning
	default:
		return DepartmentPoor
	}
}

func weeklyWins(items []models.FeedbackItem, counts FeedbackCounts) []Win {
	var fiveStar []models.FeedbackItem
	for _, item := range items {
		if item.Rating == 5 && strings.TrimSpace(item.Comment) != "" {
			fiveStar = append(fiveStar, item)
		}
	}
	sort.SliceStable(fiveStar, func(i, j int) bool {
		if !fiveStar[i].CreatedAt.Equal(fiveStar[j].CreatedAt) {
			return fiveStar[i].CreatedAt.After(fiveStar[j].CreatedAt)
		}
		return fiveStar[i].ID > fiveStar[j].ID
	})

	wins := make([]Win, 0, winCount)
	for _, item := range fiveStar[:min(winCount, len(fiveStar))] {
		wins = append(wins, Win{
			FeedbackID: item.ID,
			Category:   item.Category,
			Excerpt:    excerpt(item.Comment, winExcerptLength),
			CreatedAt:  item.CreatedAt,
		})
	}
	if len(wins) == 0 {
		text := "Every guest issue this week was tracked through the feedback queue"
		if counts.Positive > 0 {
			text = fmt.Sprintf("%d guests rated their experience 4★ or higher", counts.Positive)
		}
		wins = append(wins, Win{Excerpt: text, Generic: true})
	}
	return wins
}

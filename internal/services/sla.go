package services

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/staysignal/backend/internal/config"
	"github.com/staysignal/backend/internal/models"
)

type SLAState string

const (
	SLAStateResolved       SLAState = "resolved"
	SLAStateOverdueAck     SLAState = "overdue_ack"
	SLAStateOverdueResolve SLAState = "overdue_resolve"
	SLAStateWarning        SLAState = "warning"
	SLAStateOnTime         SLAState = "on_time"
)

type Urgency string

const (
	UrgencyNone     Urgency = "none"
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyNormal   Urgency = "normal"
)

// SLAPolicy holds the deadlines and weights used to triage feedback.
type SLAPolicy struct {
	AckWindow     time.Duration
	ResolveWindow time.Duration
	WarningRatio  float64
	HighImpact    []string
}

func DefaultSLAPolicy() SLAPolicy {
	return NewSLAPolicy(&config.DefaultConfig().Triage)
}

func NewSLAPolicy(cfg *config.TriageConfig) SLAPolicy {
	return SLAPolicy{
		AckWindow:     cfg.AckWindow,
		ResolveWindow: cfg.ResolveWindow,
		WarningRatio:  cfg.WarningRatio,
		HighImpact:    append([]string(nil), cfg.HighImpactCategories...),
	}
}

type SLAResult struct {
	State          SLAState `json:"state"`
	Urgency        Urgency  `json:"urgency"`
	HoursRemaining float64  `json:"hours_remaining"`
}

// Display renders the remaining time, or "Overdue" once the deadline has passed.
func (r SLAResult) Display() string {
	if r.State == SLAStateResolved {
		return "Resolved"
	}
	if r.HoursRemaining <= 0 {
		return "Overdue"
	}
	if r.HoursRemaining < 1 {
		return fmt.Sprintf("%dm left", int(math.Ceil(r.HoursRemaining*60)))
	}
	return fmt.Sprintf("%.1fh left", r.HoursRemaining)
}

// Classify places an item against its acknowledgement and resolution deadlines.
// HoursRemaining counts down to the acknowledgement deadline while the item is
// new and to the resolution deadline afterwards.
func (p SLAPolicy) Classify(item *models.FeedbackItem, now time.Time) SLAResult {
	if item.Status == models.FeedbackStatusResolved {
		return SLAResult{State: SLAStateResolved, Urgency: UrgencyNone}
	}

	elapsed := now.Sub(item.CreatedAt)
	acknowledged := item.Status != models.FeedbackStatusNew

	deadline := p.ResolveWindow
	if !acknowledged {
		deadline = p.AckWindow
	}
	remaining := (deadline - elapsed).Hours()

	switch {
	case !acknowledged && elapsed > p.AckWindow:
		return SLAResult{State: SLAStateOverdueAck, Urgency: UrgencyCritical, HoursRemaining: remaining}
	case elapsed > p.ResolveWindow:
		return SLAResult{State: SLAStateOverdueResolve, Urgency: UrgencyCritical, HoursRemaining: remaining}
	case float64(elapsed) > p.WarningRatio*float64(p.ResolveWindow):
		return SLAResult{State: SLAStateWarning, Urgency: UrgencyHigh, HoursRemaining: remaining}
	default:
		return SLAResult{State: SLAStateOnTime, Urgency: UrgencyNormal, HoursRemaining: remaining}
	}
}

func (p SLAPolicy) IsHighImpact(category string) bool {
	category = strings.TrimSpace(category)
	for _, c := range p.HighImpact {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

// Priority ranks an item for attention: lower ratings, high-impact categories
// and pressing deadlines all raise the score.
func (p SLAPolicy) Priority(item *models.FeedbackItem, now time.Time) int {
	return p.priority(item, p.Classify(item, now))
}

func (p SLAPolicy) priority(item *models.FeedbackItem, sla SLAResult) int {
	score := (6 - item.Rating) * 20
	if p.IsHighImpact(item.Category) {
		score += 15
	}
	switch sla.Urgency {
	case UrgencyCritical:
		score += 30
	case UrgencyHigh:
		score += 15
	}
	return score
}

// QueueEntry is a feedback item annotated with its derived triage fields.
type QueueEntry struct {
	models.FeedbackItem
	SLA        SLAResult `json:"sla"`
	SLALabel   string    `json:"sla_label"`
	Priority   int       `json:"priority"`
	HighImpact bool      `json:"high_impact"`
}

func (p SLAPolicy) Annotate(item models.FeedbackItem, now time.Time) QueueEntry {
	sla := p.Classify(&item, now)
	return QueueEntry{
		FeedbackItem: item,
		SLA:          sla,
		SLALabel:     sla.Display(),
		Priority:     p.priority(&item, sla),
		HighImpact:   p.IsHighImpact(item.Category),
	}
}

// SortByPriority annotates items and orders them highest priority first.
// Items with equal scores keep their input order.
func (p SLAPolicy) SortByPriority(items []models.FeedbackItem, now time.Time) []QueueEntry {
	entries := make([]QueueEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, p.Annotate(item, now))
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Priority > entries[j].Priority
	})
	return entries
}

// TransitionFeedback returns a copy of item moved to target, or
// ErrInvalidTransition if the edge is not allowed.
func TransitionFeedback(item *models.FeedbackItem, target models.FeedbackStatus, now time.Time) (*models.FeedbackItem, error) {
	next := *item
	switch {
	case item.Status == models.FeedbackStatusNew && target == models.FeedbackStatusAcknowledged:
		next.AcknowledgedAt = &now
	case item.Status == models.FeedbackStatusAcknowledged && target == models.FeedbackStatusResolved:
		next.ResolvedAt = &now
	case item.Status == models.FeedbackStatusNew && target == models.FeedbackStatusResolved:
		// Direct resolution counts as acknowledged at the same instant.
		next.AcknowledgedAt = &now
		next.ResolvedAt = &now
	default:
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, item.Status, target)
	}
	next.Status = target
	return &next, nil
}

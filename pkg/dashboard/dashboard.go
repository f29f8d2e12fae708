// Package dashboard aggregates the reconciled fleet into a dashboard and
// memoizes it for a TTL.
package dashboard

import (
	"fmt"
	"sort"
	"time"

	"github.com/agentstation/utc"

	"github.com/agentstation/fleetmap/pkg/reconciler"
	"github.com/agentstation/fleetmap/pkg/vehicles"
)

// Limits for list sections.
const (
	RecentActivityLimit = 10
	UpcomingLimit       = 10
	UpcomingWindowDays  = 30
)

// IssueKind classifies a fleet issue.
type IssueKind string

// Issue kinds, in severity order.
const (
	IssueExpired     IssueKind = "expired"
	IssueExpiring    IssueKind = "expiring"
	IssueConflict    IssueKind = "conflict"
	IssueNeedsReview IssueKind = "needs_review"
	IssueMissing     IssueKind = "missing"
)

var issueOrder = map[IssueKind]int{
	IssueExpired:     0,
	IssueExpiring:    1,
	IssueConflict:    2,
	IssueNeedsReview: 3,
	IssueMissing:     4,
}

// Issue counts one kind of problem across the fleet.
type Issue struct {
	Kind        IssueKind         `json:"kind" yaml:"kind"`
	Category    vehicles.Category `json:"category,omitempty" yaml:"category,omitempty"`
	Count       int               `json:"count" yaml:"count"`
	Description string            `json:"description" yaml:"description"`
}

// Activity is one recently received document.
type Activity struct {
	DocumentID   string                `json:"documentId" yaml:"documentId"`
	VIN          vehicles.VIN          `json:"vin" yaml:"vin"`
	DocumentType vehicles.DocumentType `json:"documentType" yaml:"documentType"`
	Source       vehicles.Source       `json:"source" yaml:"source"`
	FileName     string                `json:"fileName,omitempty" yaml:"fileName,omitempty"`
	ReceivedAt   time.Time             `json:"receivedAt" yaml:"receivedAt"`
}

// FleetDashboard is a read-only aggregate over every reconciled vehicle.
type FleetDashboard struct {
	GeneratedAt         utc.Time                     `json:"generatedAt" yaml:"generatedAt"`
	TotalVehicles       int                          `json:"totalVehicles" yaml:"totalVehicles"`
	TotalDocuments      int                          `json:"totalDocuments" yaml:"totalDocuments"`
	Compliant           int                          `json:"compliant" yaml:"compliant"`
	Warning             int                          `json:"warning" yaml:"warning"`
	NonCompliant        int                          `json:"nonCompliant" yaml:"nonCompliant"`
	AverageScore        float64                      `json:"averageScore" yaml:"averageScore"`
	ActiveConflicts     int                          `json:"activeConflicts" yaml:"activeConflicts"`
	NeedsReview         int                          `json:"needsReview" yaml:"needsReview"`
	Alerts              reconciler.ExpirationAlerts  `json:"alerts" yaml:"alerts"`
	ByRisk              map[vehicles.RiskLevel]int   `json:"byRisk" yaml:"byRisk"`
	ByLifecycle         map[vehicles.Lifecycle]int   `json:"byLifecycle" yaml:"byLifecycle"`
	TopIssues           []Issue                      `json:"topIssues" yaml:"topIssues"`
	UpcomingExpirations []reconciler.ExpiringVehicle `json:"upcomingExpirations" yaml:"upcomingExpirations"`
	RecentActivity      []Activity                   `json:"recentActivity" yaml:"recentActivity"`
}

// Compute builds a dashboard from the reconciler's current state. Every
// count is derived from per-vehicle compliance.
func Compute(r reconciler.Reconciler) *FleetDashboard {
	stats := r.GetStats()
	all := r.GetAllVehicles()

	d := &FleetDashboard{
		GeneratedAt:     utc.New(r.Now()),
		TotalVehicles:   stats.TotalVehicles,
		TotalDocuments:  stats.TotalDocuments,
		Compliant:       stats.ByLevel[vehicles.LevelCompliant],
		Warning:         stats.ByLevel[vehicles.LevelWarning],
		NonCompliant:    stats.ByLevel[vehicles.LevelNonCompliant],
		AverageScore:    stats.AverageScore,
		ActiveConflicts: stats.ActiveConflicts,
		NeedsReview:     stats.VehiclesNeedingReview,
		Alerts:          stats.Alerts,
		ByRisk:          stats.ByRisk,
		ByLifecycle:     stats.ByLifecycle,
		TopIssues:       topIssues(all),
	}

	upcoming := r.GetExpiringVehicles(UpcomingWindowDays)
	if len(upcoming) > UpcomingLimit {
		upcoming = upcoming[:UpcomingLimit]
	}
	d.UpcomingExpirations = upcoming

	for _, doc := range r.Documents().Recent(RecentActivityLimit) {
		d.RecentActivity = append(d.RecentActivity, Activity{
			DocumentID:   doc.DocumentID,
			VIN:          doc.VIN,
			DocumentType: doc.DocumentType,
			Source:       doc.Source,
			FileName:     doc.FileName,
			ReceivedAt:   doc.ReceivedAt,
		})
	}
	return d
}

type issueKey struct {
	kind     IssueKind
	category vehicles.Category
}

func topIssues(all []*vehicles.VehicleState) []Issue {
	counts := make(map[issueKey]int)
	for _, v := range all {
		if len(v.ActiveConflicts) > 0 {
			counts[issueKey{kind: IssueConflict}]++
		}
		if v.NeedsReview() {
			counts[issueKey{kind: IssueNeedsReview}]++
		}
		for _, c := range vehicles.Categories() {
			s := v.Compliance.Category(c)
			switch {
			case s.Status == vehicles.StatusExpired:
				counts[issueKey{IssueExpired, c}]++
			case s.Status == vehicles.StatusExpiringSoon:
				counts[issueKey{IssueExpiring, c}]++
			case s.Status == vehicles.StatusMissing && s.Scored:
				counts[issueKey{IssueMissing, c}]++
			}
		}
	}

	issues := make([]Issue, 0, len(counts))
	for k, n := range counts {
		issues = append(issues, Issue{
			Kind:        k.kind,
			Category:    k.category,
			Count:       n,
			Description: describe(k, n),
		})
	}
	sort.Slice(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if issueOrder[a.Kind] != issueOrder[b.Kind] {
			return issueOrder[a.Kind] < issueOrder[b.Kind]
		}
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Category < b.Category
	})
	return issues
}

func describe(k issueKey, n int) string {
	noun := "vehicles"
	if n == 1 {
		noun = "vehicle"
	}
	switch k.kind {
	case IssueExpired:
		return fmt.Sprintf("%d %s with expired %s", n, noun, k.category)
	case IssueExpiring:
		return fmt.Sprintf("%d %s with %s expiring within %d days", n, noun, k.category, UpcomingWindowDays)
	case IssueConflict:
		return fmt.Sprintf("%d %s with conflicting identity data", n, noun)
	case IssueNeedsReview:
		return fmt.Sprintf("%d %s needing data review", n, noun)
	default:
		return fmt.Sprintf("%d %s missing %s", n, noun, k.category)
	}
}

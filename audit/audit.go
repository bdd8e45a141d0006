// Package audit records who did what to which dataset and answers
// compliance queries over that trail.
package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Entry is one audited event.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	User      string    `json:"user"`
	Details   string    `json:"details"`
	SessionID string    `json:"session_id"`
}

// Filter narrows a List call. Zero values mean no constraint; Limit keeps
// only the most recent entries.
type Filter struct {
	User           string
	ActionContains string
	Start          time.Time
	End            time.Time
	Limit          int
}

// Store persists audit entries. Implementations must keep entries in
// insertion order.
type Store interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context, f Filter) ([]Entry, error)
	Clear(ctx context.Context) error
}

// Event constructors mirror the actions the platform audits.

func DataAccess(user, sessionID, resource, operation string) Entry {
	return Entry{
		Action:    fmt.Sprintf("Data Access: %s", operation),
		User:      user,
		Details:   fmt.Sprintf("Resource: %s", resource),
		SessionID: sessionID,
	}
}

func DataModification(user, sessionID, table, operation string, rowCount int) Entry {
	return Entry{
		Action:    fmt.Sprintf("Data Modification: %s", operation),
		User:      user,
		Details:   fmt.Sprintf("Table: %s, Rows affected: %d", table, rowCount),
		SessionID: sessionID,
	}
}

func DataExport(user, sessionID, format string, rowCount int) Entry {
	return Entry{
		Action:    "Data Export",
		User:      user,
		Details:   fmt.Sprintf("Format: %s, Rows: %d", format, rowCount),
		SessionID: sessionID,
	}
}

func ErrorEvent(user, sessionID, errorType, message string) Entry {
	return Entry{
		Action:    fmt.Sprintf("Error: %s", errorType),
		User:      user,
		Details:   message,
		SessionID: sessionID,
	}
}

func SecurityEvent(user, sessionID, eventType, details string) Entry {
	return Entry{
		Action:    fmt.Sprintf("Security: %s", eventType),
		User:      user,
		Details:   details,
		SessionID: sessionID,
	}
}

// Matches reports whether the entry passes every set constraint.
func (f Filter) Matches(e Entry) bool {
	if f.User != "" && e.User != f.User {
		return false
	}
	if f.ActionContains != "" && !strings.Contains(strings.ToLower(e.Action), strings.ToLower(f.ActionContains)) {
		return false
	}
	if !f.Start.IsZero() && e.Timestamp.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && e.Timestamp.After(f.End) {
		return false
	}
	return true
}

// Summary aggregates an audit trail.
type Summary struct {
	TotalEvents  int            `json:"total_events"`
	UniqueUsers  int            `json:"unique_users"`
	EventTypes   map[string]int `json:"event_types"`
	EventsByUser map[string]int `json:"events_by_user"`
	Recent       []Entry        `json:"recent_activity"`
}

// Summarize computes counts per action and per user plus the five most
// recent entries.
func Summarize(entries []Entry) Summary {
	s := Summary{
		TotalEvents:  len(entries),
		EventTypes:   make(map[string]int),
		EventsByUser: make(map[string]int),
	}
	users := make(map[string]bool)
	for _, e := range entries {
		s.EventTypes[e.Action]++
		s.EventsByUser[e.User]++
		users[e.User] = true
	}
	s.UniqueUsers = len(users)

	recent := entries
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	s.Recent = append([]Entry(nil), recent...)
	return s
}

// ComplianceReport counts the event categories compliance reviews ask about
// over a period.
type ComplianceReport struct {
	PeriodStart       time.Time      `json:"period_start"`
	PeriodEnd         time.Time      `json:"period_end"`
	TotalEvents       int            `json:"total_events"`
	UniqueUsers       int            `json:"unique_users"`
	ActionsSummary    map[string]int `json:"actions_summary"`
	UserActivity      map[string]int `json:"user_activity"`
	SecurityEvents    int            `json:"security_events"`
	DataExports       int            `json:"data_exports"`
	DataModifications int            `json:"data_modifications"`
	Errors            int            `json:"errors"`
}

func Compliance(entries []Entry) ComplianceReport {
	r := ComplianceReport{
		TotalEvents:    len(entries),
		ActionsSummary: make(map[string]int),
		UserActivity:   make(map[string]int),
	}
	if len(entries) == 0 {
		return r
	}
	r.PeriodStart = entries[0].Timestamp
	r.PeriodEnd = entries[len(entries)-1].Timestamp

	users := make(map[string]bool)
	for _, e := range entries {
		r.ActionsSummary[e.Action]++
		r.UserActivity[e.User]++
		users[e.User] = true
		switch {
		case strings.Contains(e.Action, "Security"):
			r.SecurityEvents++
		case strings.Contains(e.Action, "Export"):
			r.DataExports++
		case strings.Contains(e.Action, "Modification"):
			r.DataModifications++
		case strings.Contains(e.Action, "Error"):
			r.Errors++
		}
	}
	r.UniqueUsers = len(users)
	return r
}

// SuspiciousFinding flags an activity pattern worth a second look.
type SuspiciousFinding struct {
	Type     string   `json:"type"`
	Severity string   `json:"severity"`
	Details  string   `json:"details"`
	Users    []string `json:"users"`
}

// Suspicious scans the trail for rapid consecutive actions, unusually many
// exports, and repeated errors. Fewer than five entries is too little signal.
func Suspicious(entries []Entry) []SuspiciousFinding {
	if len(entries) < 5 {
		return nil
	}

	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var findings []SuspiciousFinding

	var rapid []Entry
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Timestamp.Sub(sorted[i-1].Timestamp) < time.Second {
			rapid = append(rapid, sorted[i])
		}
	}
	if len(rapid) > 0 {
		findings = append(findings, SuspiciousFinding{
			Type:     "Rapid Actions",
			Severity: "Medium",
			Details:  fmt.Sprintf("%d actions performed in quick succession", len(rapid)),
			Users:    uniqueUsers(rapid),
		})
	}

	var exports []Entry
	for _, e := range sorted {
		if strings.Contains(strings.ToLower(e.Action), "export") {
			exports = append(exports, e)
		}
	}
	if len(exports) > 10 {
		findings = append(findings, SuspiciousFinding{
			Type:     "High Export Volume",
			Severity: "High",
			Details:  fmt.Sprintf("%d export operations detected", len(exports)),
			Users:    uniqueUsers(exports),
		})
	}

	var errors []Entry
	for _, e := range sorted {
		if strings.Contains(strings.ToLower(e.Action), "error") {
			errors = append(errors, e)
		}
	}
	if len(errors) > 5 {
		findings = append(findings, SuspiciousFinding{
			Type:     "Multiple Errors",
			Severity: "Low",
			Details:  fmt.Sprintf("%d errors occurred", len(errors)),
			Users:    uniqueUsers(errors),
		})
	}

	return findings
}

func uniqueUsers(entries []Entry) []string {
	seen := make(map[string]bool)
	var users []string
	for _, e := range entries {
		if !seen[e.User] {
			seen[e.User] = true
			users = append(users, e.User)
		}
	}
	return users
}

// ExportCSV renders entries as a CSV document.
func ExportCSV(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"timestamp", "action", "user", "details", "session_id"}); err != nil {
		return nil, err
	}
	for _, e := range entries {
		record := []string{
			e.Timestamp.Format("2006-01-02 15:04:05"),
			e.Action,
			e.User,
			e.Details,
			e.SessionID,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func applyLimit(entries []Entry, limit int) []Entry {
	if limit > 0 && len(entries) > limit {
		return entries[len(entries)-limit:]
	}
	return entries
}

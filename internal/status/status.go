// Package status models the upstream status payload and the derived
// issue sets the rest of the application works with. Everything here is
// a pure transformation over in-memory data.
package status

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"statusbot/internal/model"
)

// IssueSet is a set of issues keyed by (service, platform).
type IssueSet map[model.Issue]struct{}

// Delta holds the issue-set difference between two snapshots.
type Delta struct {
	Added   IssueSet
	Removed IssueSet
}

// Empty reports whether the delta carries no changes.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

type serviceEntry struct {
	GameTitle string `json:"gameTitle"`
	Platform  string `json:"platform"`
}

type payload struct {
	ServerStatuses   []serviceEntry  `json:"serverStatuses"`
	PlatformsRO      []string        `json:"platformsRO"`
	UpdatedTime      string          `json:"updatedTime"`
	RecentlyResolved json.RawMessage `json:"recentlyResolved"`
}

// Snapshot is a point-in-time view of upstream service health. The raw
// payload is retained verbatim so further derived views can be computed
// without re-fetching. Snapshots are immutable once created; a new
// fetch supersedes the old snapshot, it never mutates it.
type Snapshot struct {
	FetchedAt time.Time
	Raw       json.RawMessage

	parsed payload
}

// Parse builds a Snapshot from a raw upstream payload.
func Parse(raw []byte, fetchedAt time.Time) (*Snapshot, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &Snapshot{
		FetchedAt: fetchedAt,
		Raw:       append(json.RawMessage(nil), raw...),
		parsed:    p,
	}, nil
}

// Issues returns the set of (service, platform) pairs currently
// reporting problems. Entries missing a title or platform cannot be
// represented and are dropped; duplicates collapse.
func (s *Snapshot) Issues() IssueSet {
	set := make(IssueSet, len(s.parsed.ServerStatuses))
	for _, e := range s.parsed.ServerStatuses {
		if e.GameTitle == "" || e.Platform == "" {
			continue
		}
		set[model.Issue{Service: e.GameTitle, Platform: e.Platform}] = struct{}{}
	}
	return set
}

// Platforms returns the platform list reported upstream.
func (s *Snapshot) Platforms() []string {
	return s.parsed.PlatformsRO
}

// UpdatedTime returns the upstream-reported update timestamp string, or
// "" when absent. Display-only; freshness decisions use FetchedAt.
func (s *Snapshot) UpdatedTime() string {
	return s.parsed.UpdatedTime
}

// ServiceNames returns every service name the payload knows about:
// current issues plus recently resolved incidents when that section is
// present. An unexpected recentlyResolved shape is ignored, not an
// error. The result is sorted.
func (s *Snapshot) ServiceNames() []string {
	seen := make(map[string]struct{})
	for _, e := range s.parsed.ServerStatuses {
		if e.GameTitle != "" {
			seen[e.GameTitle] = struct{}{}
		}
	}
	if len(s.parsed.RecentlyResolved) > 0 {
		var resolved []serviceEntry
		if err := json.Unmarshal(s.parsed.RecentlyResolved, &resolved); err == nil {
			for _, e := range resolved {
				if e.GameTitle != "" {
					seen[e.GameTitle] = struct{}{}
				}
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Diff computes the issues added and removed between two sets.
// Diff(a, b).Added always equals Diff(b, a).Removed, and Diff(a, a) is
// empty.
func Diff(previous, current IssueSet) Delta {
	d := Delta{Added: make(IssueSet), Removed: make(IssueSet)}
	for issue := range current {
		if _, ok := previous[issue]; !ok {
			d.Added[issue] = struct{}{}
		}
	}
	for issue := range previous {
		if _, ok := current[issue]; !ok {
			d.Removed[issue] = struct{}{}
		}
	}
	return d
}

// Sorted returns the set as a slice ordered by service then platform,
// for stable display.
func (s IssueSet) Sorted() []model.Issue {
	issues := make([]model.Issue, 0, len(s))
	for issue := range s {
		issues = append(issues, issue)
	}
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Service != issues[j].Service {
			return issues[i].Service < issues[j].Service
		}
		return issues[i].Platform < issues[j].Platform
	})
	return issues
}

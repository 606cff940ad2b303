package bot

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"statusbot/internal/model"
	"statusbot/internal/scheduler"
	"statusbot/internal/status"
)

func TestFormatUpdateEmbed(t *testing.T) {
	u := scheduler.Update{
		Added:       []model.Issue{{Service: "Call of Duty: Warzone", Platform: "PC"}},
		Removed:     []model.Issue{{Service: "Crash Team Racing", Platform: "PS4"}},
		UpdatedTime: "2024-11-05T18:20:00Z",
	}

	embed := FormatUpdateEmbed(u)

	if embed.Color != colorOrange {
		t.Errorf("expected orange for new issues, got %#x", embed.Color)
	}
	if len(embed.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(embed.Fields))
	}
	if embed.Fields[0].Name != "⚠️ New Issues Detected" {
		t.Errorf("unexpected first field name: %s", embed.Fields[0].Name)
	}
	if want := "• **Call of Duty: Warzone** (PC)"; embed.Fields[0].Value != want {
		t.Errorf("added field mismatch: got %q, want %q", embed.Fields[0].Value, want)
	}
	if embed.Fields[1].Name != "✅ Issues Resolved" {
		t.Errorf("unexpected second field name: %s", embed.Fields[1].Name)
	}
	if embed.Footer == nil || embed.Footer.Text != "Last updated: 2024-11-05 18:20:00 UTC" {
		t.Errorf("unexpected footer: %+v", embed.Footer)
	}
}

func TestFormatUpdateEmbedResolvedOnlyIsGreen(t *testing.T) {
	u := scheduler.Update{
		Removed: []model.Issue{{Service: "Crash Team Racing", Platform: "PS4"}},
	}

	embed := FormatUpdateEmbed(u)
	if embed.Color != colorGreen {
		t.Errorf("expected green for resolved-only update, got %#x", embed.Color)
	}
	if len(embed.Fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(embed.Fields))
	}
	if embed.Footer != nil {
		t.Errorf("expected no footer without updated time, got %+v", embed.Footer)
	}
}

func TestFormatUpdateEmbedTruncatesLongFields(t *testing.T) {
	var issues []model.Issue
	for i := 0; i < 100; i++ {
		issues = append(issues, model.Issue{
			Service:  strings.Repeat("Very Long Service Name ", 3),
			Platform: "PC",
		})
	}

	embed := FormatUpdateEmbed(scheduler.Update{Added: issues})
	if got := len(embed.Fields[0].Value); got > fieldLimit {
		t.Errorf("field value length %d exceeds limit %d", got, fieldLimit)
	}
	if !strings.HasSuffix(embed.Fields[0].Value, "...") {
		t.Error("expected truncation marker")
	}
}

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	// Walk the cut point across every byte offset of a multi-byte rune.
	for limit := 10; limit <= 16; limit++ {
		got := truncate(strings.Repeat("•", 20), limit)
		if len(got) > limit {
			t.Errorf("limit %d: length %d exceeds limit", limit, len(got))
		}
		if !utf8.ValidString(got) {
			t.Errorf("limit %d: truncated string is not valid UTF-8: %q", limit, got)
		}
		if !strings.HasSuffix(got, "...") {
			t.Errorf("limit %d: missing truncation marker: %q", limit, got)
		}
	}
}

func TestFormatStatusEmbedAllOnline(t *testing.T) {
	snap, err := status.Parse([]byte(`{"serverStatuses":[],"updatedTime":"2024-11-05T18:20:00Z"}`), time.Now().UTC())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	embed := FormatStatusEmbed(snap, false)
	if embed.Color != colorGreen {
		t.Errorf("expected green, got %#x", embed.Color)
	}
	if embed.Description != "✅ All services are online!" {
		t.Errorf("unexpected description: %q", embed.Description)
	}
	if embed.Footer == nil || !strings.Contains(embed.Footer.Text, "Cache age:") {
		t.Errorf("expected cache age in footer, got %+v", embed.Footer)
	}
	if strings.Contains(embed.Footer.Text, "force refresh") {
		t.Error("unexpected force marker without force")
	}
}

func TestFormatStatusEmbedWithIssues(t *testing.T) {
	raw := `{"serverStatuses":[{"gameTitle":"Call of Duty: Warzone","platform":"PC"}]}`
	snap, err := status.Parse([]byte(raw), time.Now().UTC())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	embed := FormatStatusEmbed(snap, true)
	if embed.Color != colorRed {
		t.Errorf("expected red, got %#x", embed.Color)
	}
	if len(embed.Fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(embed.Fields))
	}
	if embed.Fields[0].Name != "⚠️ Services with Issues (1)" {
		t.Errorf("unexpected field name: %s", embed.Fields[0].Name)
	}
	if !strings.Contains(embed.Footer.Text, "(force refresh)") {
		t.Errorf("expected force marker, got %q", embed.Footer.Text)
	}
}

func TestFormatServiceList(t *testing.T) {
	embed := FormatServiceList([]string{"Call of Duty: Warzone", "Crash Team Racing"})
	if embed.Color != colorBlue {
		t.Errorf("expected blue, got %#x", embed.Color)
	}
	want := "• **Call of Duty: Warzone**\n• **Crash Team Racing**"
	if diff := cmp.Diff(want, embed.Description); diff != "" {
		t.Errorf("description mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(embed.Footer.Text, "Total: 2 services") {
		t.Errorf("unexpected footer: %q", embed.Footer.Text)
	}
}

func TestFormatChannelList(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		got := FormatChannelList(nil, nil)
		if !strings.Contains(got, "No channels") {
			t.Errorf("unexpected text: %q", got)
		}
	})

	t.Run("with destinations", func(t *testing.T) {
		dests := []model.Destination{
			{ID: 1, ChannelID: "chan-1"},
			{ID: 2, ChannelID: "chan-2"},
		}
		got := FormatChannelList(dests, map[int64]int{2: 3})
		if !strings.Contains(got, "<#chan-1> — no filters (all services)") {
			t.Errorf("missing unfiltered channel line: %q", got)
		}
		if !strings.Contains(got, "<#chan-2> — 3 filter pattern(s)") {
			t.Errorf("missing filtered channel line: %q", got)
		}
	})
}

func TestFormatFilterList(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		got := FormatFilterList(nil)
		if !strings.Contains(got, "no filters configured") {
			t.Errorf("unexpected text: %q", got)
		}
	})

	t.Run("with rules", func(t *testing.T) {
		rules := []model.FilterRule{
			{Pattern: "Warzone/i"},
			{Pattern: "Crash"},
		}
		got := FormatFilterList(rules)
		for _, want := range []string{"`Warzone/i`", "`Crash`"} {
			if !strings.Contains(got, want) {
				t.Errorf("missing %s in %q", want, got)
			}
		}
	})
}

func TestUpdatedFooter(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "valid timestamp", input: "2024-11-05T18:20:00Z", want: "Last updated: 2024-11-05 18:20:00 UTC"},
		{name: "offset is normalized to UTC", input: "2024-11-05T20:20:00+02:00", want: "Last updated: 2024-11-05 18:20:00 UTC"},
		{name: "empty", input: "", want: ""},
		{name: "unparseable", input: "yesterday", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, updatedFooter(tt.input)); diff != "" {
				t.Errorf("footer mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

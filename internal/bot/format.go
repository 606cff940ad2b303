package bot

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"statusbot/internal/model"
	"statusbot/internal/scheduler"
	"statusbot/internal/status"
)

const (
	colorGreen  = 0x2ECC71
	colorOrange = 0xE67E22
	colorRed    = 0xE74C3C
	colorBlue   = 0x3498DB

	// Discord's embed field value limit.
	fieldLimit = 1024
)

// FormatUpdateEmbed builds the notification embed for a filtered delta.
func FormatUpdateEmbed(u scheduler.Update) *discordgo.MessageEmbed {
	color := colorGreen
	if len(u.Added) > 0 {
		color = colorOrange
	}

	embed := &discordgo.MessageEmbed{
		Title:     "Activision Service Status Update",
		Color:     color,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if len(u.Added) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "⚠️ New Issues Detected",
			Value: issueLines(u.Added),
		})
	}
	if len(u.Removed) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "✅ Issues Resolved",
			Value: issueLines(u.Removed),
		})
	}

	if footer := updatedFooter(u.UpdatedTime); footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: footer}
	}
	return embed
}

// FormatStatusEmbed builds the summary embed for a manual check.
func FormatStatusEmbed(snap *status.Snapshot, force bool) *discordgo.MessageEmbed {
	issues := snap.Issues().Sorted()

	embed := &discordgo.MessageEmbed{
		Title:     "Activision Service Status",
		Color:     colorGreen,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if len(issues) > 0 {
		embed.Color = colorRed
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("⚠️ Services with Issues (%d)", len(issues)),
			Value: issueLines(issues),
		})
	} else {
		embed.Description = "✅ All services are online!"
	}

	var footer []string
	if f := updatedFooter(snap.UpdatedTime()); f != "" {
		footer = append(footer, f)
	}
	footer = append(footer, fmt.Sprintf("Cache age: %.0fs", time.Since(snap.FetchedAt).Seconds()))
	if force {
		footer = append(footer, "(force refresh)")
	}
	embed.Footer = &discordgo.MessageEmbedFooter{Text: strings.Join(footer, " | ")}

	return embed
}

// FormatServiceList builds the embed listing filterable service names.
func FormatServiceList(names []string) *discordgo.MessageEmbed {
	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("• **%s**", name))
	}
	return &discordgo.MessageEmbed{
		Title:       "Known Services",
		Description: truncate(strings.Join(lines, "\n"), 4096),
		Color:       colorBlue,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Total: %d services | Use these exact names in filter patterns.", len(names)),
		},
	}
}

// FormatChannelList formats a guild's registered destinations.
func FormatChannelList(dests []model.Destination, filterCounts map[int64]int) string {
	if len(dests) == 0 {
		return "No channels in this server receive status updates. Use `status addchannel` in a channel to register it."
	}
	var b strings.Builder
	b.WriteString("Status update channels:\n")
	for _, d := range dests {
		n := filterCounts[d.ID]
		if n == 0 {
			fmt.Fprintf(&b, "• <#%s> — no filters (all services)\n", d.ChannelID)
		} else {
			fmt.Fprintf(&b, "• <#%s> — %d filter pattern(s)\n", d.ChannelID, n)
		}
	}
	return b.String()
}

// FormatFilterList formats a destination's allow-list.
func FormatFilterList(rules []model.FilterRule) string {
	if len(rules) == 0 {
		return "This channel has no filters configured. All services will trigger status updates."
	}
	var b strings.Builder
	b.WriteString("Filter patterns for this channel:\n")
	for _, r := range rules {
		fmt.Fprintf(&b, "• `%s`\n", r.Pattern)
	}
	b.WriteString("Only services matching at least one pattern trigger updates here.")
	return b.String()
}

func issueLines(issues []model.Issue) string {
	lines := make([]string, 0, len(issues))
	for _, issue := range issues {
		lines = append(lines, fmt.Sprintf("• **%s** (%s)", issue.Service, issue.Platform))
	}
	text := strings.Join(lines, "\n")
	if text == "" {
		return "No details available"
	}
	return truncate(text, fieldLimit)
}

// truncate shortens s to at most limit bytes, backing up to a rune
// boundary so bullets and other multi-byte characters are never cut in
// half.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// updatedFooter renders the upstream-reported update timestamp, or ""
// when it is absent or unparseable.
func updatedFooter(updatedTime string) string {
	if updatedTime == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, updatedTime)
	if err != nil {
		return ""
	}
	return "Last updated: " + t.UTC().Format("2006-01-02 15:04:05 UTC")
}

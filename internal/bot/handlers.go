package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"statusbot/internal/filter"
	"statusbot/internal/model"
	"statusbot/internal/storage"
)

func (b *Bot) handleHelp(channelID string) {
	p := b.cfg.CommandPrefix
	b.reply(channelID, fmt.Sprintf(`Activision status monitoring:
%[1]sstatus check [force] — current service status (force bypasses the cache)
%[1]sstatus services — service names usable in filter patterns

Channel management (Manage Server):
%[1]sstatus addchannel — post status updates to this channel
%[1]sstatus removechannel — stop posting updates to this channel
%[1]sstatus channels — list update channels in this server

Filters (Manage Server, apply to the current channel):
%[1]sstatus filter add <pattern> — allow-list a regex (supports /i /m /s flags)
%[1]sstatus filter remove <pattern> — remove a pattern
%[1]sstatus filter list — show patterns (empty list = all services)
%[1]sstatus filter clear — remove all patterns

Settings (Manage Server):
%[1]sstatus interval [seconds] — get/set the poll interval (min 60)
%[1]sstatus cacheage [seconds] — get/set the cache age (min 60)
%[1]sstatus presence [on|off] — mirror service health in the bot presence`, p))
}

func (b *Bot) handleCheck(ctx context.Context, m *discordgo.MessageCreate, args []string) {
	force := len(args) > 0 && args[0] == "force"

	snap, err := b.fetcher.Fetch(ctx, force)
	if err != nil {
		b.log.Warn("manual status check failed", "error", err)
		b.reply(m.ChannelID, "Failed to fetch status from the Activision API.")
		return
	}
	b.replyEmbed(m.ChannelID, FormatStatusEmbed(snap, force))
}

func (b *Bot) handleAddChannel(ctx context.Context, m *discordgo.MessageCreate) {
	if !b.requireOperator(m) {
		return
	}

	_, err := b.store.GetDestination(ctx, m.GuildID, m.ChannelID)
	if err == nil {
		b.reply(m.ChannelID, "This channel is already receiving status updates.")
		return
	}
	if !errors.Is(err, storage.ErrNotFound) {
		b.reply(m.ChannelID, fmt.Sprintf("Error: %v", err))
		return
	}

	d := &model.Destination{GuildID: m.GuildID, ChannelID: m.ChannelID}
	if err := b.store.CreateDestination(ctx, d); err != nil {
		b.reply(m.ChannelID, fmt.Sprintf("Failed to register channel: %v", err))
		return
	}
	b.reply(m.ChannelID, "This channel will now receive status updates.")
}

func (b *Bot) handleRemoveChannel(ctx context.Context, m *discordgo.MessageCreate) {
	if !b.requireOperator(m) {
		return
	}

	d, err := b.store.GetDestination(ctx, m.GuildID, m.ChannelID)
	if errors.Is(err, storage.ErrNotFound) {
		b.reply(m.ChannelID, "This channel is not receiving status updates.")
		return
	}
	if err != nil {
		b.reply(m.ChannelID, fmt.Sprintf("Error: %v", err))
		return
	}

	if err := b.store.DeleteDestination(ctx, d.ID); err != nil {
		b.reply(m.ChannelID, fmt.Sprintf("Failed to remove channel: %v", err))
		return
	}
	b.reply(m.ChannelID, "This channel will no longer receive status updates.")
}

func (b *Bot) handleChannels(ctx context.Context, m *discordgo.MessageCreate) {
	if m.GuildID == "" {
		b.reply(m.ChannelID, "This command can only be used in a server.")
		return
	}

	dests, err := b.store.ListDestinations(ctx, m.GuildID)
	if err != nil {
		b.reply(m.ChannelID, fmt.Sprintf("Error: %v", err))
		return
	}

	counts := make(map[int64]int)
	for _, d := range dests {
		rules, err := b.store.ListFilters(ctx, d.ID)
		if err != nil {
			continue
		}
		counts[d.ID] = len(rules)
	}
	b.reply(m.ChannelID, FormatChannelList(dests, counts))
}

func (b *Bot) handleFilter(ctx context.Context, m *discordgo.MessageCreate, args []string) {
	if len(args) == 0 {
		b.reply(m.ChannelID, fmt.Sprintf("Usage: %sstatus filter add|remove|list|clear [pattern]", b.cfg.CommandPrefix))
		return
	}

	sub := args[0]
	if sub == "list" {
		b.handleFilterList(ctx, m)
		return
	}

	if !b.requireOperator(m) {
		return
	}

	d, err := b.store.GetDestination(ctx, m.GuildID, m.ChannelID)
	if errors.Is(err, storage.ErrNotFound) {
		b.reply(m.ChannelID, fmt.Sprintf("This channel is not receiving status updates. Add it first with `%sstatus addchannel`.", b.cfg.CommandPrefix))
		return
	}
	if err != nil {
		b.reply(m.ChannelID, fmt.Sprintf("Error: %v", err))
		return
	}

	switch sub {
	case "add":
		if len(args) < 2 {
			b.reply(m.ChannelID, "Usage: filter add <pattern>")
			return
		}
		pattern := args[1]
		if err := filter.Validate(pattern); err != nil {
			b.reply(m.ChannelID, fmt.Sprintf("Invalid regex pattern: %v", err))
			return
		}
		created, err := b.store.AddFilter(ctx, &model.FilterRule{DestinationID: d.ID, Pattern: pattern})
		if err != nil {
			b.reply(m.ChannelID, fmt.Sprintf("Failed to add filter: %v", err))
			return
		}
		if !created {
			b.reply(m.ChannelID, fmt.Sprintf("Pattern `%s` is already in this channel's filter list.", pattern))
			return
		}
		b.reply(m.ChannelID, fmt.Sprintf("Added pattern `%s` to this channel's filter list.", pattern))

	case "remove":
		if len(args) < 2 {
			b.reply(m.ChannelID, "Usage: filter remove <pattern>")
			return
		}
		pattern := args[1]
		removed, err := b.store.RemoveFilter(ctx, d.ID, pattern)
		if err != nil {
			b.reply(m.ChannelID, fmt.Sprintf("Failed to remove filter: %v", err))
			return
		}
		if !removed {
			b.reply(m.ChannelID, fmt.Sprintf("Pattern `%s` is not in this channel's filter list.", pattern))
			return
		}
		b.reply(m.ChannelID, fmt.Sprintf("Removed pattern `%s` from this channel's filter list.", pattern))

	case "clear":
		if err := b.store.ClearFilters(ctx, d.ID); err != nil {
			b.reply(m.ChannelID, fmt.Sprintf("Failed to clear filters: %v", err))
			return
		}
		b.reply(m.ChannelID, "Cleared this channel's filter list. All services will now trigger updates.")

	default:
		b.reply(m.ChannelID, fmt.Sprintf("Unknown filter command %q. Use add, remove, list or clear.", sub))
	}
}

func (b *Bot) handleFilterList(ctx context.Context, m *discordgo.MessageCreate) {
	if m.GuildID == "" {
		b.reply(m.ChannelID, "This command can only be used in a server.")
		return
	}

	d, err := b.store.GetDestination(ctx, m.GuildID, m.ChannelID)
	if errors.Is(err, storage.ErrNotFound) {
		b.reply(m.ChannelID, "This channel is not receiving status updates.")
		return
	}
	if err != nil {
		b.reply(m.ChannelID, fmt.Sprintf("Error: %v", err))
		return
	}

	rules, err := b.store.ListFilters(ctx, d.ID)
	if err != nil {
		b.reply(m.ChannelID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(m.ChannelID, FormatFilterList(rules))
}

func (b *Bot) handleInterval(ctx context.Context, m *discordgo.MessageCreate, args []string) {
	secs, set, err := ParseSecondsArg(args)
	if err != nil {
		b.reply(m.ChannelID, fmt.Sprintf("Error: %v", err))
		return
	}

	if !set {
		current, err := storage.IntSetting(ctx, b.store, model.SettingCheckInterval, model.DefaultCheckInterval)
		if err != nil {
			b.reply(m.ChannelID, fmt.Sprintf("Error: %v", err))
			return
		}
		b.reply(m.ChannelID, fmt.Sprintf("Current check interval: %d seconds (%d minutes).", current, current/60))
		return
	}

	if !b.requireOperator(m) {
		return
	}
	if err := b.store.SetSetting(ctx, model.SettingCheckInterval, fmt.Sprint(secs)); err != nil {
		b.reply(m.ChannelID, fmt.Sprintf("Failed to set interval: %v", err))
		return
	}
	b.reply(m.ChannelID, fmt.Sprintf("Check interval set to %d seconds (%d minutes). Takes effect on the next tick.", secs, secs/60))
}

func (b *Bot) handleCacheAge(ctx context.Context, m *discordgo.MessageCreate, args []string) {
	secs, set, err := ParseSecondsArg(args)
	if err != nil {
		b.reply(m.ChannelID, fmt.Sprintf("Error: %v", err))
		return
	}

	if !set {
		current, err := storage.IntSetting(ctx, b.store, model.SettingCacheAge, model.DefaultCacheAge)
		if err != nil {
			b.reply(m.ChannelID, fmt.Sprintf("Error: %v", err))
			return
		}
		b.reply(m.ChannelID, fmt.Sprintf("Current cache age: %d seconds (%d minutes).", current, current/60))
		return
	}

	if !b.requireOperator(m) {
		return
	}
	if err := b.store.SetSetting(ctx, model.SettingCacheAge, fmt.Sprint(secs)); err != nil {
		b.reply(m.ChannelID, fmt.Sprintf("Failed to set cache age: %v", err))
		return
	}
	b.fetcher.SetCacheAge(time.Duration(secs) * time.Second)
	b.reply(m.ChannelID, fmt.Sprintf("Cache age set to %d seconds (%d minutes).", secs, secs/60))
}

func (b *Bot) handlePresence(ctx context.Context, m *discordgo.MessageCreate, args []string) {
	if !b.requireOperator(m) {
		return
	}

	current, err := storage.BoolSetting(ctx, b.store, model.SettingUpdatePresence, false)
	if err != nil {
		b.reply(m.ChannelID, fmt.Sprintf("Error: %v", err))
		return
	}

	enabled := !current
	if len(args) > 0 {
		switch args[0] {
		case "on":
			enabled = true
		case "off":
			enabled = false
		default:
			b.reply(m.ChannelID, "Usage: presence [on|off]")
			return
		}
	}

	if err := storage.SetBoolSetting(ctx, b.store, model.SettingUpdatePresence, enabled); err != nil {
		b.reply(m.ChannelID, fmt.Sprintf("Failed to update setting: %v", err))
		return
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	b.reply(m.ChannelID, fmt.Sprintf("Bot presence updates are now %s.", state))

	// Reflect the new state right away instead of waiting for a delta.
	if enabled {
		if snap, err := b.fetcher.Fetch(ctx, false); err == nil {
			if err := b.UpdatePresence(len(snap.Issues())); err != nil {
				b.log.Error("update presence", "error", err)
			}
		}
	}
}

func (b *Bot) handleServices(ctx context.Context, m *discordgo.MessageCreate) {
	snap, err := b.fetcher.Fetch(ctx, false)
	if err != nil {
		b.log.Warn("services lookup failed", "error", err)
		b.reply(m.ChannelID, "Failed to fetch status from the Activision API.")
		return
	}

	names := snap.ServiceNames()
	if len(names) == 0 {
		b.reply(m.ChannelID, "No services found in the current API data. This usually means everything is online.")
		return
	}
	b.replyEmbed(m.ChannelID, FormatServiceList(names))
}

// requireOperator replies with an error and returns false when the
// author may not change configuration or the command is used outside a
// guild.
func (b *Bot) requireOperator(m *discordgo.MessageCreate) bool {
	if m.GuildID == "" {
		b.reply(m.ChannelID, "This command can only be used in a server.")
		return false
	}
	if !b.isOperator(m) {
		b.reply(m.ChannelID, "You need the Manage Server permission to use this command.")
		return false
	}
	return true
}

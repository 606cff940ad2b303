// Package bot implements the Discord command layer and the notification
// sender used by the scheduler.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"statusbot/internal/config"
	"statusbot/internal/scheduler"
	"statusbot/internal/status"
	"statusbot/internal/storage"
)

// session is the subset of discordgo.Session the handlers use.
type session interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UpdateWatchStatus(idle int, name string) error
	UserChannelPermissions(userID, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error)
}

// Fetcher produces status snapshots for the check/services commands.
type Fetcher interface {
	Fetch(ctx context.Context, force bool) (*status.Snapshot, error)
	SetCacheAge(d time.Duration)
}

// Bot handles operator commands and sends status notifications.
type Bot struct {
	dg      *discordgo.Session
	session session
	store   storage.Storage
	fetcher Fetcher
	cfg     *config.Config
	log     *slog.Logger

	ready     chan struct{}
	readyOnce sync.Once
}

// New creates a Bot with its Discord session and registers the gateway
// handlers. The session is not opened until Run.
func New(cfg *config.Config, store storage.Storage, f Fetcher, log *slog.Logger) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	b := &Bot{
		dg:      dg,
		session: dg,
		store:   store,
		fetcher: f,
		cfg:     cfg,
		log:     log,
		ready:   make(chan struct{}),
	}
	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onMessageCreate)
	return b, nil
}

// Run opens the gateway connection and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	<-ctx.Done()
	return b.dg.Close()
}

// Ready is closed once the gateway session reports ready; the scheduler
// waits on it before seeding.
func (b *Bot) Ready() <-chan struct{} {
	return b.ready
}

// SendUpdate implements scheduler.Sender.
func (b *Bot) SendUpdate(channelID string, u scheduler.Update) error {
	_, err := b.session.ChannelMessageSendEmbed(channelID, FormatUpdateEmbed(u))
	return err
}

// UpdatePresence implements scheduler.PresenceUpdater.
func (b *Bot) UpdatePresence(issueCount int) error {
	text := "Activision Services - All Online"
	if issueCount > 0 {
		text = fmt.Sprintf("%d service(s) with issues", issueCount)
	}
	return b.session.UpdateWatchStatus(0, text)
}

func (b *Bot) onReady(_ *discordgo.Session, _ *discordgo.Ready) {
	b.readyOnce.Do(func() { close(b.ready) })
	b.log.Info("discord session ready")
}

func (b *Bot) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	cmd, ok := ParseCommand(m.Content, b.cfg.CommandPrefix)
	if !ok {
		return
	}
	b.handleCommand(context.Background(), m, cmd)
}

func (b *Bot) handleCommand(ctx context.Context, m *discordgo.MessageCreate, cmd Command) {
	b.log.Debug("command", "cmd", cmd.Name, "args", cmd.Args, "channel_id", m.ChannelID, "user_id", m.Author.ID)

	switch cmd.Name {
	case "help":
		b.handleHelp(m.ChannelID)
	case "check":
		b.handleCheck(ctx, m, cmd.Args)
	case "addchannel":
		b.handleAddChannel(ctx, m)
	case "removechannel":
		b.handleRemoveChannel(ctx, m)
	case "channels":
		b.handleChannels(ctx, m)
	case "filter":
		b.handleFilter(ctx, m, cmd.Args)
	case "interval":
		b.handleInterval(ctx, m, cmd.Args)
	case "cacheage":
		b.handleCacheAge(ctx, m, cmd.Args)
	case "presence":
		b.handlePresence(ctx, m, cmd.Args)
	case "services":
		b.handleServices(ctx, m)
	default:
		b.reply(m.ChannelID, fmt.Sprintf("Unknown command. Use `%sstatus help` for a list of commands.", b.cfg.CommandPrefix))
	}
}

func (b *Bot) reply(channelID, text string) {
	if _, err := b.session.ChannelMessageSend(channelID, text); err != nil {
		b.log.Error("send message", "channel_id", channelID, "error", err)
	}
}

func (b *Bot) replyEmbed(channelID string, embed *discordgo.MessageEmbed) {
	if _, err := b.session.ChannelMessageSendEmbed(channelID, embed); err != nil {
		b.log.Error("send embed", "channel_id", channelID, "error", err)
	}
}

// isOperator reports whether the author may change configuration:
// either on the static admin allow list or holding Manage Server (or
// Administrator) in the channel's guild.
func (b *Bot) isOperator(m *discordgo.MessageCreate) bool {
	if b.cfg.IsAdmin(m.Author.ID) {
		return true
	}
	perms, err := b.session.UserChannelPermissions(m.Author.ID, m.ChannelID)
	if err != nil {
		b.log.Error("resolve permissions", "user_id", m.Author.ID, "channel_id", m.ChannelID, "error", err)
		return false
	}
	return perms&(discordgo.PermissionManageGuild|discordgo.PermissionAdministrator) != 0
}

// Package bot connects the auction service to Discord: sales are announced
// in a channel and /auction-status answers with the live board.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/player-auction/internal/bot/commands"
	"github.com/jensholdgaard/player-auction/internal/config"
)

// Bot wraps the Discord session and command handlers.
type Bot struct {
	session *discordgo.Session
	cfg     config.DiscordConfig
	logger  *slog.Logger
	tp      trace.TracerProvider
	cmds    []*discordgo.ApplicationCommand
}

// New creates a Bot. The session is not opened until Start, but it can
// already post messages for an Announcer.
func New(cfg config.DiscordConfig, logger *slog.Logger, tp trace.TracerProvider) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	return &Bot{session: session, cfg: cfg, logger: logger, tp: tp}, nil
}

// Session exposes the Discord session for the Announcer.
func (b *Bot) Session() *discordgo.Session { return b.session }

// Run opens the gateway connection, registers the slash commands and
// blocks until ctx is done, then removes the commands and disconnects.
func (b *Bot) Run(ctx context.Context, boards commands.BoardSource) error {
	handlers := commands.NewHandlers(boards, b.logger, b.tp)

	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.logger.InfoContext(ctx, "discord bot is ready", slog.String("user", s.State.User.Username))
	})
	b.session.AddHandler(handlers.InteractionCreate)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening discord session: %w", err)
	}

	registered, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, b.cfg.GuildID, commands.SlashCommands())
	if err != nil {
		_ = b.session.Close()
		return fmt.Errorf("registering slash commands: %w", err)
	}
	b.cmds = registered
	b.logger.InfoContext(ctx, "slash commands registered", slog.Int("count", len(registered)))

	<-ctx.Done()
	return b.stop()
}

func (b *Bot) stop() error {
	for _, cmd := range b.cmds {
		if err := b.session.ApplicationCommandDelete(b.session.State.User.ID, b.cfg.GuildID, cmd.ID); err != nil {
			b.logger.Error("failed to delete command", slog.String("command", cmd.Name), slog.Any("error", err))
		}
	}
	return b.session.Close()
}

// Package commands implements the Discord slash commands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/player-auction/internal/apperr"
	"github.com/jensholdgaard/player-auction/internal/auction"
	"github.com/jensholdgaard/player-auction/internal/auth"
	"github.com/jensholdgaard/player-auction/internal/ledger"
)

// BoardSource loads the live board of a tournament.
type BoardSource interface {
	Get(ctx context.Context, slug string, creds auth.Credentials) (*auction.Snapshot, error)
}

// Handlers process Discord interactions.
type Handlers struct {
	boards BoardSource
	logger *slog.Logger
	tracer trace.Tracer
}

// NewHandlers creates new command handlers.
func NewHandlers(boards BoardSource, logger *slog.Logger, tp trace.TracerProvider) *Handlers {
	return &Handlers{
		boards: boards,
		logger: logger,
		tracer: tp.Tracer("github.com/jensholdgaard/player-auction/internal/bot/commands"),
	}
}

// SlashCommands returns the slash command definitions.
func SlashCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "auction-status",
			Description: "Show the player on the block and every team's budget",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "tournament",
					Description: "Tournament slug",
					Required:    true,
				},
			},
		},
	}
}

// InteractionCreate handles incoming slash command interactions.
func (h *Handlers) InteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	ctx, span := h.tracer.Start(context.Background(), "InteractionCreate",
		trace.WithAttributes(attribute.String("command", data.Name)),
	)
	defer span.End()

	switch data.Name {
	case "auction-status":
		respond(s, i, h.Status(ctx, optionString(data.Options, "tournament")))
	default:
		respond(s, i, "Unknown command")
	}
}

// Status answers /auction-status. Only published tournaments are shown,
// since the bot holds no tournament credentials.
func (h *Handlers) Status(ctx context.Context, slug string) string {
	if slug == "" {
		return "Please name a tournament."
	}
	snap, err := h.boards.Get(ctx, slug, auth.Credentials{})
	switch {
	case err == nil:
		return FormatBoard(slug, snap)
	case apperr.KindOf(err) == apperr.KindNotFound, apperr.KindOf(err) == apperr.KindUnauthorized:
		return fmt.Sprintf("No public tournament `%s`.", slug)
	case errors.Is(err, context.Canceled):
		return "Request cancelled."
	default:
		h.logger.ErrorContext(ctx, "auction-status failed", slog.String("tournament", slug), slog.Any("error", err))
		return "Could not load the auction right now."
	}
}

// FormatBoard renders a snapshot as a Discord message.
func FormatBoard(slug string, snap *auction.Snapshot) string {
	var b strings.Builder
	name := snap.Tournament.Name
	if name == "" {
		name = slug
	}
	fmt.Fprintf(&b, "**%s** · %s\n", name, snap.View.Status)

	v := snap.View
	switch {
	case v.CurrentPlayer == nil:
		b.WriteString("Nobody on the block.\n")
	case v.Status == ledger.StatusSold && v.SoldTo != nil:
		fmt.Fprintf(&b, "**%s** sold to **%s** for %d\n", v.CurrentPlayer.Name, v.SoldTo.Name, v.SoldPrice)
	default:
		fmt.Fprintf(&b, "On the block: **%s** (%s, %s) · base %d\n",
			v.CurrentPlayer.Name, v.CurrentPlayer.Role, v.CurrentPlayer.Category, v.CurrentBasePrice)
	}

	for _, t := range v.Teams {
		fmt.Fprintf(&b, "• %s: %d left, max bid %d, %d slots open\n", t.Name, t.Remaining, t.MaxBid, t.SlotsNeeded)
	}
	fmt.Fprintf(&b, "%d sold · %d unsold · %d remaining", v.SoldCount, v.UnsoldCount, v.Remaining.Total)
	return b.String()
}

func optionString(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, o := range opts {
		if o.Name == name {
			return strings.TrimSpace(o.StringValue())
		}
	}
	return ""
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
		},
	})
}

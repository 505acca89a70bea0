package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/jensholdgaard/player-auction/internal/event"
	"github.com/jensholdgaard/player-auction/internal/store"
	"github.com/jensholdgaard/player-auction/internal/tournament"
)

// Messenger posts a message to a channel. *discordgo.Session satisfies it.
type Messenger interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Announcer posts auction highlights to a Discord channel. It is an
// audit sink, so it only ever sees events that were stored.
type Announcer struct {
	messenger   Messenger
	channelID   string
	tournaments store.TournamentRepository
	rosters     store.RosterRepository
	logger      *slog.Logger
}

// NewAnnouncer returns an Announcer posting to channelID. Only published
// tournaments are announced; rosters is used to print names instead of ids.
func NewAnnouncer(m Messenger, channelID string, tournaments store.TournamentRepository, rosters store.RosterRepository, logger *slog.Logger) *Announcer {
	return &Announcer{messenger: m, channelID: channelID, tournaments: tournaments, rosters: rosters, logger: logger}
}

// Notify implements audit.Sink. Events without an announcement and events
// of unpublished or deleted tournaments are ignored.
func (a *Announcer) Notify(ctx context.Context, ev event.Event) error {
	msg, ok := a.Format(ctx, ev)
	if !ok {
		return nil
	}
	t, err := a.tournaments.Get(ctx, ev.AggregateID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading tournament %s: %w", ev.AggregateID, err)
	}
	if !t.Published {
		return nil
	}
	if _, err := a.messenger.ChannelMessageSend(a.channelID, msg, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("posting announcement: %w", err)
	}
	return nil
}

// Format renders the announcement for ev, if it has one.
func (a *Announcer) Format(ctx context.Context, ev event.Event) (string, bool) {
	switch ev.Type {
	case event.AuctionStarted:
		var d event.StartedData
		if !a.decode(ctx, ev, &d) {
			return "", false
		}
		names := a.names(ctx, ev.AggregateID)
		return fmt.Sprintf("[%s] Now on the block: **%s**", ev.AggregateID, names.player(d.PlayerID)), true

	case event.AuctionSold:
		var d event.SoldData
		if !a.decode(ctx, ev, &d) {
			return "", false
		}
		names := a.names(ctx, ev.AggregateID)
		msg := fmt.Sprintf("[%s] **%s** sold to **%s** for **%d**", ev.AggregateID, names.player(d.PlayerID), names.team(d.TeamID), d.Price)
		if d.Joker {
			msg += " (joker)"
		}
		return msg, true

	case event.AuctionUnsold:
		var d event.UnsoldData
		if !a.decode(ctx, ev, &d) {
			return "", false
		}
		names := a.names(ctx, ev.AggregateID)
		return fmt.Sprintf("[%s] **%s** went unsold", ev.AggregateID, names.player(d.PlayerID)), true

	case event.AuctionJokerClaimed:
		var d event.JokerData
		if !a.decode(ctx, ev, &d) {
			return "", false
		}
		names := a.names(ctx, ev.AggregateID)
		return fmt.Sprintf("[%s] **%s** played their joker on **%s**", ev.AggregateID, names.team(d.TeamID), names.player(d.PlayerID)), true

	case event.AuctionPaused:
		var d event.PausedData
		if !a.decode(ctx, ev, &d) {
			return "", false
		}
		msg := fmt.Sprintf("[%s] Auction paused", ev.AggregateID)
		if d.Message != "" {
			msg += ": " + d.Message
		}
		if d.Until != nil {
			msg += fmt.Sprintf(" (back <t:%d:R>)", d.Until.Unix())
		}
		return msg, true

	case event.AuctionResumed:
		return fmt.Sprintf("[%s] Auction resumed", ev.AggregateID), true
	}
	return "", false
}

func (a *Announcer) decode(ctx context.Context, ev event.Event, v any) bool {
	if err := json.Unmarshal(ev.Data, v); err != nil {
		a.logger.WarnContext(ctx, "undecodable event payload",
			slog.String("type", string(ev.Type)),
			slog.Any("error", err),
		)
		return false
	}
	return true
}

// nameBook resolves ids to display names, falling back to the id.
type nameBook struct {
	roster *tournament.Roster
}

func (a *Announcer) names(ctx context.Context, slug string) nameBook {
	if a.rosters == nil {
		return nameBook{}
	}
	teams, err := a.rosters.Teams(ctx, slug)
	if err != nil {
		return nameBook{}
	}
	players, err := a.rosters.Players(ctx, slug)
	if err != nil {
		return nameBook{}
	}
	return nameBook{roster: tournament.NewRoster(teams, players)}
}

func (n nameBook) player(id string) string {
	if n.roster != nil {
		if p, ok := n.roster.Player(id); ok {
			return p.Name
		}
	}
	return id
}

func (n nameBook) team(id string) string {
	if n.roster != nil {
		if t, ok := n.roster.Team(id); ok {
			return t.Name
		}
	}
	return id
}

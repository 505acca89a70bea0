package auction

import (
	"encoding/json"

	"github.com/jensholdgaard/player-auction/internal/apperr"
)

// Name is the wire name of an action.
type Name string

const (
	NameStartAuction Name = "START_AUCTION"
	NameSold         Name = "SOLD"
	NameUnsold       Name = "UNSOLD"
	NamePause        Name = "PAUSE"
	NameUnpause      Name = "UNPAUSE"
	NameClear        Name = "CLEAR"
	NameReset        Name = "RESET"
	NameJoker        Name = "JOKER"
	NameCorrect      Name = "CORRECT"
	NameRandom       Name = "RANDOM"
	NameVerify       Name = "VERIFY"
)

// Action is one of the variants below. The set is closed: only this
// package can implement it.
type Action interface {
	Name() Name
	// Mutates reports whether the action may change the ledger.
	Mutates() bool
	validate() error
}

type StartAuction struct {
	PlayerID string `json:"playerId"`
}

// Sold records a sale of the player on the block. PlayerID is optional;
// when given it must name the active player.
type Sold struct {
	TeamID   string `json:"teamId"`
	Price    int64  `json:"soldPrice"`
	PlayerID string `json:"playerId,omitempty"`
}

type Unsold struct{}

type Pause struct {
	Message         string `json:"message,omitempty"`
	DurationSeconds int64  `json:"durationSeconds,omitempty"`
}

type Unpause struct{}

type Clear struct{}

type Reset struct {
	Confirm bool `json:"confirm"`
}

type Joker struct {
	TeamID string `json:"teamId"`
}

type Correct struct {
	PlayerID   string `json:"playerId"`
	FromTeamID string `json:"fromTeamId"`
	ToTeamID   string `json:"toTeamId"`
}

type Random struct{}

type Verify struct{}

func (StartAuction) Name() Name { return NameStartAuction }
func (Sold) Name() Name         { return NameSold }
func (Unsold) Name() Name       { return NameUnsold }
func (Pause) Name() Name        { return NamePause }
func (Unpause) Name() Name      { return NameUnpause }
func (Clear) Name() Name        { return NameClear }
func (Reset) Name() Name        { return NameReset }
func (Joker) Name() Name        { return NameJoker }
func (Correct) Name() Name      { return NameCorrect }
func (Random) Name() Name       { return NameRandom }
func (Verify) Name() Name       { return NameVerify }

func (StartAuction) Mutates() bool { return true }
func (Sold) Mutates() bool         { return true }
func (Unsold) Mutates() bool       { return true }
func (Pause) Mutates() bool        { return true }
func (Unpause) Mutates() bool      { return true }
func (Clear) Mutates() bool        { return true }
func (Reset) Mutates() bool        { return true }
func (Joker) Mutates() bool        { return true }
func (Correct) Mutates() bool      { return true }
func (Random) Mutates() bool       { return false }
func (Verify) Mutates() bool       { return false }

// Decoding errors.
var (
	ErrMalformedBody = apperr.BadRequest("MALFORMED_BODY", "request body is not valid JSON")
	ErrUnknownAction = apperr.BadRequest("UNKNOWN_ACTION", "unknown action")
)

func missing(field string) error {
	return apperr.BadRequest("VALIDATION_ERROR", "%s is required", field).
		WithDetails(map[string]any{"field": field})
}

func invalid(field, format string, args ...any) error {
	return apperr.BadRequest("VALIDATION_ERROR", format, args...).
		WithDetails(map[string]any{"field": field})
}

func (a StartAuction) validate() error {
	if a.PlayerID == "" {
		return missing("playerId")
	}
	return nil
}

func (a Sold) validate() error {
	if a.TeamID == "" {
		return missing("teamId")
	}
	if a.Price <= 0 {
		return invalid("soldPrice", "soldPrice must be positive")
	}
	return nil
}

// MaxPauseSeconds bounds a PAUSE countdown to one day.
const MaxPauseSeconds = 24 * 60 * 60

func (a Pause) validate() error {
	if a.DurationSeconds < 0 {
		return invalid("durationSeconds", "durationSeconds must not be negative")
	}
	if a.DurationSeconds > MaxPauseSeconds {
		return invalid("durationSeconds", "durationSeconds must be at most %d", MaxPauseSeconds)
	}
	if len(a.Message) > 280 {
		return invalid("message", "message must be at most 280 characters")
	}
	return nil
}

func (a Joker) validate() error {
	if a.TeamID == "" {
		return missing("teamId")
	}
	return nil
}

func (a Correct) validate() error {
	switch {
	case a.PlayerID == "":
		return missing("playerId")
	case a.FromTeamID == "":
		return missing("fromTeamId")
	case a.ToTeamID == "":
		return missing("toTeamId")
	}
	return nil
}

// Reset carries its confirmation as a field so that a missing flag is a
// business-rule failure reported by the machine, not a decoding error.
func (Reset) validate() error   { return nil }
func (Unsold) validate() error  { return nil }
func (Unpause) validate() error { return nil }
func (Clear) validate() error   { return nil }
func (Random) validate() error  { return nil }
func (Verify) validate() error  { return nil }

// Request is a decoded POST body: the action plus an optional PIN.
type Request struct {
	Action Action
	PIN    string
}

// DecodeRequest parses {"action": "...", "pin": "...", ...fields} into the
// matching variant and validates its fields.
func DecodeRequest(body []byte) (Request, error) {
	var head struct {
		Action Name   `json:"action"`
		PIN    string `json:"pin"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return Request{}, ErrMalformedBody.Wrap(err)
	}
	if head.Action == "" {
		return Request{}, missing("action")
	}

	var a Action
	switch head.Action {
	case NameStartAuction:
		a = decodeInto[StartAuction](body)
	case NameSold:
		a = decodeInto[Sold](body)
	case NameUnsold:
		a = Unsold{}
	case NamePause:
		a = decodeInto[Pause](body)
	case NameUnpause:
		a = Unpause{}
	case NameClear:
		a = Clear{}
	case NameReset:
		a = decodeInto[Reset](body)
	case NameJoker:
		a = decodeInto[Joker](body)
	case NameCorrect:
		a = decodeInto[Correct](body)
	case NameRandom:
		a = Random{}
	case NameVerify:
		a = Verify{}
	default:
		return Request{}, ErrUnknownAction.WithDetails(map[string]any{"action": head.Action})
	}
	if a == nil {
		return Request{}, apperr.BadRequest("VALIDATION_ERROR", "invalid fields for %s", head.Action)
	}
	if err := a.validate(); err != nil {
		return Request{}, err
	}
	return Request{Action: a, PIN: head.PIN}, nil
}

// decodeInto returns nil when body does not fit T.
func decodeInto[T Action](body []byte) Action {
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return nil
	}
	return v
}

// Package convo implements the conversation core: the model-driven dialogue
// loop that turns one transcribed utterance into at most one spoken reply.
//
// Each utterance is submitted to the chat; the reply either becomes speech
// directly or carries an action tag that invokes a handler. Handlers perform
// side effects (shift lookup, cancellation submission), inject a synthetic
// SYSTEM observation describing the outcome, and recurse, up to a fixed
// depth. Deeper chains are treated as model runaway and collapsed to speech.
package convo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/helpathands/shiftline/internal/chat"
	"github.com/helpathands/shiftline/internal/phonetic"
	"github.com/helpathands/shiftline/internal/workflow"
)

// maxDepth bounds the recursive observation-injection loop. The longest
// legitimate chain is get → confirm → reason → final speech; one extra
// level is allowed before collapsing to plain text.
const maxDepth = 4

// fuzzyIDThreshold is the maximum Damerau-Levenshtein distance at which a
// confirm-cancel token is still accepted as a match for a known shift id or
// client name. Transcribed ids routinely lose a character.
const fuzzyIDThreshold = 2

// ShiftService is the slice of the shift workflow the core depends on.
type ShiftService interface {
	Lookup(ctx context.Context, callerPhone, utterance string) (*workflow.Result, error)
	SubmitCancellation(ctx context.Context, staff workflow.Staff, shift workflow.Shift, reason string) error
}

// Turn is the outcome of processing one utterance.
type Turn struct {
	// Reply is the text to synthesize; empty means stay silent this turn.
	Reply string

	// EndCall is set when the model closed the conversation.
	EndCall bool
}

// Option is a functional option for configuring a Core.
type Option func(*Core)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(c *Core) {
		c.log = log
	}
}

// Core drives the dialogue for one call. It is not safe for concurrent
// use: the session serializes utterances by pausing the transcriber.
type Core struct {
	chat        *chat.Chat
	shifts      ShiftService
	callerPhone string
	log         *slog.Logger
	names       *phonetic.Matcher

	memory Context
}

// New creates a Core speaking through the given chat. callerPhone may be
// empty; shift lookups then fail with a fixed spoken explanation.
func New(ch *chat.Chat, shifts ShiftService, callerPhone string, opts ...Option) *Core {
	c := &Core{
		chat:        ch,
		shifts:      shifts,
		callerPhone: callerPhone,
		log:         slog.Default(),
		names:       phonetic.New(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Memory exposes the handler working memory, mainly for tests and the
// session's reset path.
func (c *Core) Memory() *Context { return &c.memory }

// Reset clears the working memory and the chat history back to the system
// prompt. Called by the session after an unrecoverable turn.
func (c *Core) Reset() {
	c.memory.Reset()
	c.chat.ClearHistory(true)
}

// Process translates one complete utterance into at most one spoken reply.
// A returned error means the turn failed unrecoverably; the session speaks
// an apology and resets.
func (c *Core) Process(ctx context.Context, utterance string) (Turn, error) {
	return c.process(ctx, utterance, 0)
}

func (c *Core) process(ctx context.Context, input string, depth int) (Turn, error) {
	if depth > maxDepth {
		c.log.Warn("action chain exceeded depth bound, collapsing to speech", "depth", depth)
		return Turn{Reply: Sanitize(input)}, nil
	}
	if err := ctx.Err(); err != nil {
		return Turn{}, err
	}

	raw, err := c.chat.Ask(ctx, input)
	if err != nil {
		return Turn{}, fmt.Errorf("convo: chat: %w", err)
	}

	action, ok := ParseAction(raw)
	if !ok {
		if saidGoodbye(raw) {
			return Turn{Reply: Goodbye, EndCall: true}, nil
		}
		return Turn{Reply: Sanitize(raw)}, nil
	}

	switch action.Kind {
	case ActionGetShifts:
		query := action.Payload
		if query == "" {
			query = input
		}
		return c.handleGetShifts(ctx, query, depth)
	case ActionConfirmCancel:
		return c.handleConfirmCancel(ctx, action.Payload, depth)
	case ActionReason:
		reason := action.Payload
		if reason == "" {
			reason = input
		}
		return c.handleReason(ctx, reason, depth)
	case ActionLogin:
		return Turn{Reply: "I understand you're having trouble logging in. Please hold while I transfer you to a live agent for assistance."}, nil
	case ActionReal:
		return Turn{Reply: "Of course. Please hold while I transfer you to a live agent."}, nil
	case ActionDeny:
		return Turn{Reply: "I'm sorry, I can't help with that request. I can only assist with shift-related queries and cancellations. Is there anything else I can help you with?"}, nil
	case ActionEnd:
		return Turn{Reply: Goodbye, EndCall: true}, nil
	default:
		return Turn{Reply: Sanitize(raw)}, nil
	}
}

// obsShift is the shape of one shift in the lookup observation.
type obsShift struct {
	Client  string `json:"client"`
	Date    string `json:"date"`
	Time    string `json:"time"`
	ShiftID string `json:"shift_id"`
}

func (c *Core) handleGetShifts(ctx context.Context, query string, depth int) (Turn, error) {
	if c.callerPhone == "" {
		return Turn{Reply: "I'm sorry, I don't have your phone number on file. Please contact support."}, nil
	}

	res, err := c.shifts.Lookup(ctx, c.callerPhone, query)
	if err != nil {
		c.log.Error("shift lookup failed", "error", err)
		c.memory.Reset()
		return Turn{Reply: lookupApology(err)}, nil
	}

	c.memory.CurrentShifts = res.FilteredShifts
	c.memory.Staff = res.Staff
	c.memory.HasStaff = true
	c.memory.IsCancellation = res.Intent == workflow.IntentCancel
	c.memory.SelectedShift = nil

	shiftData := "[]"
	if len(res.FilteredShifts) > 0 {
		items := make([]obsShift, 0, len(res.FilteredShifts))
		for _, s := range res.FilteredShifts {
			items = append(items, obsShift{
				Client:  s.ClientName,
				Date:    s.Date,
				Time:    s.Time,
				ShiftID: s.ShiftID,
			})
		}
		b, err := json.Marshal(items)
		if err != nil {
			return Turn{}, fmt.Errorf("convo: marshal shift observation: %w", err)
		}
		shiftData = string(b)
	}

	observation := fmt.Sprintf("SYSTEM: Found %d shift(s): %s", len(res.FilteredShifts), shiftData)
	if c.memory.IsCancellation {
		observation += " | User wants to CANCEL a shift."
	} else {
		observation += " | User wants to VIEW shift info."
	}

	return c.process(ctx, observation, depth+1)
}

func (c *Core) handleConfirmCancel(ctx context.Context, token string, depth int) (Turn, error) {
	selected := c.selectShift(token)
	if selected == nil {
		return c.process(ctx, "SYSTEM: That shift id is not in the current results. Ask the user again which shift they mean.", depth+1)
	}

	c.memory.SelectedShift = selected
	return c.process(ctx, "SYSTEM: User confirmed cancellation. Now ask for the reason.", depth+1)
}

// selectShift resolves a confirm-cancel token against the current shifts:
// exact id match first, then the sole shift when only one exists, then a
// fuzzy match against ids and client names to absorb transcription noise.
func (c *Core) selectShift(token string) *workflow.Shift {
	for i := range c.memory.CurrentShifts {
		if c.memory.CurrentShifts[i].ShiftID == token {
			return &c.memory.CurrentShifts[i]
		}
	}
	if len(c.memory.CurrentShifts) == 1 {
		return &c.memory.CurrentShifts[0]
	}
	if token == "" {
		return nil
	}

	best := -1
	bestDist := fuzzyIDThreshold + 1
	lower := strings.ToLower(token)
	for i := range c.memory.CurrentShifts {
		s := &c.memory.CurrentShifts[i]
		for _, candidate := range []string{strings.ToLower(s.ShiftID), strings.ToLower(s.ClientName)} {
			if candidate == "" {
				continue
			}
			if d := matchr.DamerauLevenshtein(lower, candidate); d < bestDist {
				bestDist = d
				best = i
			}
		}
	}
	if best >= 0 {
		return &c.memory.CurrentShifts[best]
	}

	// Edit distance found nothing close; the caller may have spoken the
	// client name rather than the id. Resolve it phonetically.
	names := make([]string, 0, len(c.memory.CurrentShifts))
	for i := range c.memory.CurrentShifts {
		names = append(names, c.memory.CurrentShifts[i].ClientName)
	}
	name, score, ok := c.names.Match(token, names)
	if !ok {
		return nil
	}
	c.log.Info("confirm token resolved phonetically", "token", token, "client", name, "score", score)
	for i := range c.memory.CurrentShifts {
		if c.memory.CurrentShifts[i].ClientName == name {
			return &c.memory.CurrentShifts[i]
		}
	}
	return nil
}

func (c *Core) handleReason(ctx context.Context, reason string, depth int) (Turn, error) {
	shift := c.memory.SelectedShift
	if shift == nil {
		c.memory.Reset()
		return Turn{Reply: "Sorry, I lost track of which shift to cancel. Let's start over."}, nil
	}
	if !c.memory.HasStaff {
		c.memory.Reset()
		return Turn{Reply: "Sorry, I lost track of your details. Let's start over."}, nil
	}

	if err := c.shifts.SubmitCancellation(ctx, c.memory.Staff, *shift, reason); err != nil {
		c.log.Error("cancellation submission failed", "shift_id", shift.ShiftID, "error", err)
		return c.process(ctx, "SYSTEM: Cancellation submission failed. Apologize and suggest the user try again later or contact support.", depth+1)
	}

	observation := fmt.Sprintf(
		"SYSTEM: Cancellation successful. Shift at %s on %s at %s has been cancelled. Reason: %s. Thank the user and ask if there's anything else.",
		shift.ClientName, shift.Date, shift.Time, reason,
	)

	c.memory.SelectedShift = nil
	c.memory.CurrentShifts = nil

	return c.process(ctx, observation, depth+1)
}

// lookupApology maps a workflow failure to its spoken template.
func lookupApology(err error) string {
	switch {
	case errors.Is(err, workflow.ErrStaffNotFound):
		return "I'm sorry, I couldn't find your details from this phone number. Please contact support."
	case errors.Is(err, workflow.ErrAuthFailed):
		return "Sorry, I'm having trouble accessing the roster system right now. Please try again later."
	case errors.Is(err, workflow.ErrNavigationTimeout):
		return "Sorry, the roster system is taking too long to respond. Please try again in a moment."
	default:
		return "Sorry, I couldn't retrieve your shift information. Please try again later."
	}
}

// Sanitize strips speculative multi-turn narration from a model reply: the
// text is cut at the first "User:" line and a leading "You:" prefix is
// removed, so the assistant never speaks both sides of an imagined dialogue.
func Sanitize(text string) string {
	if idx := strings.Index(text, "User:"); idx >= 0 {
		text = text[:idx]
	}
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "You:")
	return strings.TrimSpace(text)
}

// saidGoodbye detects the model closing the call without the explicit end
// tag. Matches the sign-off phrasing the prompt steers the model toward.
func saidGoodbye(raw string) bool {
	return strings.Contains(strings.TrimRight(strings.ToLower(raw), "!."), "have a great day")
}

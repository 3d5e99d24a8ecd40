package convo

import "strings"

// ActionKind identifies one of the structured commands the model may embed
// in a reply.
type ActionKind int

const (
	// ActionGetShifts triggers the shift lookup workflow. Payload is the
	// user's shift query.
	ActionGetShifts ActionKind = iota
	// ActionConfirmCancel selects a shift for cancellation. Payload is
	// the shift id token.
	ActionConfirmCancel
	// ActionReason supplies the cancellation reason and triggers
	// submission. Payload is the reason text.
	ActionReason
	// ActionLogin announces a transfer for app login problems.
	ActionLogin
	// ActionReal announces a transfer to a live agent.
	ActionReal
	// ActionDeny refuses an out-of-scope request.
	ActionDeny
	// ActionEnd closes the call.
	ActionEnd
)

// Action is one parsed command with its tag-specific payload.
type Action struct {
	Kind    ActionKind
	Payload string
}

// Tag markers, matched exactly (no whitespace or casing variants).
const (
	tagGetShifts     = "<GETSHIFTS>"
	tagConfirmCancel = "<CONFIRM_CANCEL>"
	tagReason        = "<REASON>"
	tagLogin         = "<LOGIN>"
	tagReal          = "<REAL>"
	tagDeny          = "<DENY>"
	tagEnd           = "<END>"
)

// ParseAction scans raw for the first action tag in priority order and
// extracts its payload. It returns false when no known tag is present, in
// which case the reply falls through to sanitization and is spoken as-is.
func ParseAction(raw string) (Action, bool) {
	if idx := strings.Index(raw, tagGetShifts); idx >= 0 {
		return Action{Kind: ActionGetShifts, Payload: restOfLine(raw, idx+len(tagGetShifts))}, true
	}
	if idx := strings.Index(raw, tagConfirmCancel); idx >= 0 {
		return Action{Kind: ActionConfirmCancel, Payload: firstToken(raw[idx+len(tagConfirmCancel):])}, true
	}
	if idx := strings.Index(raw, tagReason); idx >= 0 {
		return Action{Kind: ActionReason, Payload: restOfLine(raw, idx+len(tagReason))}, true
	}
	if strings.Contains(raw, tagLogin) {
		return Action{Kind: ActionLogin}, true
	}
	if strings.Contains(raw, tagReal) {
		return Action{Kind: ActionReal}, true
	}
	if strings.Contains(raw, tagDeny) {
		return Action{Kind: ActionDeny}, true
	}
	if strings.Contains(raw, tagEnd) {
		return Action{Kind: ActionEnd}, true
	}
	return Action{}, false
}

// restOfLine returns the text from offset to the end of that line, trimmed.
func restOfLine(s string, offset int) string {
	rest := s[offset:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	return strings.TrimSpace(rest)
}

// firstToken returns the first whitespace-delimited token of s, with any
// trailing punctuation stripped. Models emit the shift id inside free-form
// prose, so "s123." and "s123," both resolve to "s123".
func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimRight(fields[0], ".,;:!?\"')")
}

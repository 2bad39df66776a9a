package action

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

// SecurityPrefix tags guardrail blocks in action results and audit entries.
const SecurityPrefix = "SECURITY: "

// GuardResult represents the outcome of a guardrail evaluation.
type GuardResult struct {
	Allowed  bool
	Reason   string
	Security bool
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

func allow() GuardResult { return GuardResult{Allowed: true} }

func block(format string, args ...any) GuardResult {
	return GuardResult{Reason: SecurityPrefix + fmt.Sprintf(format, args...), Security: true}
}

// RecipientContext provides context for the recipient allow-list guard.
type RecipientContext struct {
	Recipients    []string
	AllowedSuffix string
}

// CheckRecipients blocks a send when any recipient is outside the allowed
// domain suffix. One bad address blocks the whole send; there is no partial send.
func CheckRecipients(ctx RecipientContext) GuardResult {
	suffix := normalizeSuffix(ctx.AllowedSuffix)
	if suffix == "" {
		return block("no allowed recipient domain is configured")
	}

	var blocked []string
	for _, r := range ctx.Recipients {
		addr := r
		if parsed, err := mail.ParseAddress(r); err == nil {
			addr = parsed.Address
		}
		if !strings.HasSuffix(strings.ToLower(strings.TrimSpace(addr)), suffix) {
			blocked = append(blocked, r)
		}
	}
	if len(blocked) > 0 {
		return block("blocked recipient(s) outside %s: %s", suffix, strings.Join(blocked, ", "))
	}
	return allow()
}

func normalizeSuffix(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "@") {
		s = "@" + s
	}
	return s
}

// BroadcastContext provides context for the broadcast content guard.
type BroadcastContext struct {
	Text           string
	OverseerHandle string
}

// CheckBroadcast blocks a channel post that addresses the overseer by its
// reserved handle; reaching the overseer is only allowed through escalate.
func CheckBroadcast(ctx BroadcastContext) GuardResult {
	handle := strings.TrimSpace(ctx.OverseerHandle)
	if strings.TrimLeft(handle, "@") == "" {
		return allow()
	}
	if mentionPattern(handle).MatchString(ctx.Text) {
		return block("channel posts must not address %s; use escalate", handle)
	}
	return allow()
}

// mentionPattern matches the handle as a standalone mention. Any run of
// leading '@' counts; a handle configured with '@' needs at least one, a bare
// handle also matches as a plain word. An '@' directly after a word character
// is an email address, not a mention.
func mentionPattern(handle string) *regexp.Regexp {
	bare := strings.TrimLeft(handle, "@")
	at := "@*"
	if bare != handle {
		at = "@+"
	}
	return regexp.MustCompile(`(?i)(^|[^\w@])` + at + regexp.QuoteMeta(bare) + `($|[^\w])`)
}

// ReachableContext provides context for the channel allow-list guard.
type ReachableContext struct {
	Channel   string
	Reachable []string
}

// CheckReachable requires the channel to be one of the persona's declared
// reachable channels. Names compare case-insensitively and ignore a leading '#'.
func CheckReachable(ctx ReachableContext) GuardResult {
	want := channelKey(ctx.Channel)
	for _, c := range ctx.Reachable {
		if channelKey(c) == want {
			return allow()
		}
	}
	return GuardResult{Reason: fmt.Sprintf("channel %s is not reachable for this persona", ctx.Channel)}
}

func channelKey(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "#"))
}

// Package rules implements the trigger engine: pure, deterministic
// evaluation of one message against one moderation rule. Each trigger kind
// is a variant of Trigger, matched with a type switch rather than dynamic
// type tests, per the polymorphic-triggers design note.
package rules

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/hkarel/telebot/internal/tgapi"
)

// Kind identifies which evaluation a Trigger performs.
type Kind string

const (
	KindLinkDisable Kind = "link_disable"
	KindLinkEnable  Kind = "link_enable"
	KindWord        Kind = "word"
	KindRegexp      Kind = "regexp"
)

// Analyze selects which half of Text a regexp trigger evaluates.
type Analyze string

const (
	AnalyzeContent  Analyze = "content"
	AnalyzeUsername Analyze = "username"
)

// ListItem is one whitelist/blacklist entry for a link trigger: a host
// suffix plus an optional set of acceptable path prefixes.
type ListItem struct {
	Host  string
	Paths []string // each normalized to start with "/"
}

// Text is the caller-prepared pair a trigger evaluates against. Content is
// caption+text with every url entity stripped, trimmed; UserName is
// "first last username" trimmed. Both are computed once per message by
// the worker and reused across every trigger in the chat.
type Text struct {
	Content  string
	UserName string
}

// Trigger is a tagged union of the four rule kinds. Exactly one kind-
// specific payload is meaningful, selected by Kind.
type Trigger struct {
	Name           string
	Active         bool
	Description    string
	SkipAdmins     bool
	WhiteUsers     map[int64]struct{}
	Inverse        bool
	ImmediatelyBan bool
	Kind           Kind

	// link_disable / link_enable
	WhiteList []ListItem
	BlackList []ListItem

	// word
	CaseInsensitive bool
	WordList        []string

	// regexp
	Multiline     bool
	Analyze       Analyze
	RegexpRemove  []*regexp.Regexp
	RegexpList    []*regexp.Regexp
	RegexpListSrc []string // not set by the config loader and not read by the engine
}

// IsWhitelistedUser reports whether userID is exempt from this trigger
// specifically (independent of the chat-wide whitelist).
func (t *Trigger) IsWhitelistedUser(userID int64) bool {
	if t.WhiteUsers == nil {
		return false
	}
	_, ok := t.WhiteUsers[userID]
	return ok
}

// IsActive evaluates the trigger against one message. activated is
// deterministic for fixed (trigger, message) inputs; reason is empty
// unless activated is true. The inverse flag is XOR-ed into the result
// after kind-specific evaluation. A link_disable trigger with an empty
// whitelist activates on every message carrying a URL, so with Inverse it
// never activates on a message with a URL and always activates on a
// message without one.
func (t *Trigger) IsActive(msg *tgapi.Message, text Text) (activated bool, reason string) {
	switch t.Kind {
	case KindLinkDisable:
		activated, reason = evalLinkDisable(msg, t.WhiteList)
	case KindLinkEnable:
		activated, reason = evalLinkEnable(msg, t.WhiteList, t.BlackList)
	case KindWord:
		activated, reason = evalWord(text.Content, t.WordList, t.CaseInsensitive)
	case KindRegexp:
		activated, reason = evalRegexp(text, t.Analyze, t.RegexpRemove, t.RegexpList)
	default:
		return false, ""
	}
	activated = activated != t.Inverse // XOR
	if !activated {
		reason = ""
	}
	return activated, reason
}

// messageURLs returns every URL carried by the message's url/text_link
// entities, in entity order; the activation reason quotes the same string.
func messageURLs(msg *tgapi.Message) []string {
	var urls []string
	for _, e := range msg.Entities {
		switch e.Type {
		case tgapi.EntityURL:
			urls = append(urls, tgapi.Utf16Substring(msg.Text, e.Offset, e.Length))
		case tgapi.EntityTextLink:
			if e.URL != "" {
				urls = append(urls, e.URL)
			}
		}
	}
	return urls
}

func evalLinkDisable(msg *tgapi.Message, whiteList []ListItem) (bool, string) {
	for _, raw := range messageURLs(msg) {
		if !inList(raw, whiteList) {
			return true, "ссылка: " + raw
		}
	}
	return false, ""
}

func evalLinkEnable(msg *tgapi.Message, whiteList, blackList []ListItem) (bool, string) {
	for _, raw := range messageURLs(msg) {
		if !inList(raw, whiteList) && inList(raw, blackList) {
			return true, "ссылка: " + raw
		}
	}
	return false, ""
}

func evalWord(content string, words []string, caseInsensitive bool) (bool, string) {
	haystack := content
	if caseInsensitive {
		haystack = strings.ToLower(haystack)
	}
	for _, w := range words {
		needle := w
		if caseInsensitive {
			needle = strings.ToLower(needle)
		}
		if needle == "" {
			continue
		}
		if strings.Contains(haystack, needle) {
			return true, "слово: " + w
		}
	}
	return false, ""
}

func evalRegexp(text Text, analyze Analyze, remove, list []*regexp.Regexp) (bool, string) {
	content := text.Content
	if analyze == AnalyzeUsername {
		content = text.UserName
	}
	for _, re := range remove {
		content = re.ReplaceAllString(content, "")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return false, ""
	}
	for _, re := range list {
		if m := re.FindString(content); m != "" {
			return true, "фраза: " + m
		}
	}
	return false, ""
}

// CompileRegexpOptions builds the *regexp.Regexp set the config loader
// needs, applying dot-matches-all and unicode-property flags always, plus
// the requested case-insensitive/multiline inline flags. An invalid
// pattern is logged and skipped rather than failing the whole trigger, per
// spec — the caller passes the trigger/field name for the log line.
func CompileRegexpOptions(patterns []string, caseInsensitive, multiline bool, logger *slog.Logger, triggerName, field string) []*regexp.Regexp {
	var flags string
	if caseInsensitive {
		flags += "i"
	}
	if multiline {
		flags += "m"
	}
	flags += "s" // dot matches newline, mirroring "dot-matches-all"

	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		pattern := p
		if flags != "" {
			pattern = fmt.Sprintf("(?%s)%s", flags, p)
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			if logger != nil {
				logger.Error("invalid regexp pattern skipped",
					slog.String("trigger", triggerName),
					slog.String("field", field),
					slog.String("pattern", p),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		out = append(out, re)
	}
	return out
}

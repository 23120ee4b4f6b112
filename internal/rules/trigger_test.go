package rules

import (
	"regexp"
	"testing"

	"github.com/hkarel/telebot/internal/tgapi"
)

func msgWithURL(text string, offset, length int) *tgapi.Message {
	return &tgapi.Message{
		Text: text,
		Entities: []tgapi.Entity{
			{Type: tgapi.EntityURL, Offset: offset, Length: length},
		},
	}
}

func TestLinkDisableActivatesOnAnyNonWhitelistedURL(t *testing.T) {
	trig := &Trigger{Kind: KindLinkDisable}
	msg := msgWithURL("see https://evil.test/x here", 4, 18)
	activated, reason := trig.IsActive(msg, Text{})
	if !activated {
		t.Fatalf("expected activation")
	}
	if reason == "" {
		t.Fatalf("expected a reason")
	}
}

func TestLinkDisableWhitelistSuppresses(t *testing.T) {
	trig := &Trigger{
		Kind:      KindLinkDisable,
		WhiteList: []ListItem{{Host: "evil.test"}},
	}
	msg := msgWithURL("see https://evil.test/x here", 4, 18)
	activated, _ := trig.IsActive(msg, Text{})
	if activated {
		t.Fatalf("expected whitelist to suppress activation")
	}
}

func TestLinkDisableInverseOnEmptyWhitelistSuppressesURLMessage(t *testing.T) {
	trig := &Trigger{Kind: KindLinkDisable, Inverse: true}
	msg := msgWithURL("see https://evil.test/x here", 4, 18)
	activated, _ := trig.IsActive(msg, Text{})
	if activated {
		t.Fatalf("inverse on an always-activating trigger must suppress")
	}
}

func TestLinkDisableWhitelistMatchesPlainSuffixWithoutDotBoundary(t *testing.T) {
	trig := &Trigger{
		Kind:      KindLinkDisable,
		WhiteList: []ListItem{{Host: "example.com"}},
	}
	msg := msgWithURL("see https://notexample.com/x here", 4, 24)
	activated, _ := trig.IsActive(msg, Text{})
	if activated {
		t.Fatalf("whitelist host %q must suffix-match %q", "example.com", "notexample.com")
	}
}

func TestLinkEnableRequiresBlacklistMatch(t *testing.T) {
	trig := &Trigger{
		Kind:      KindLinkEnable,
		BlackList: []ListItem{{Host: "spam.test"}},
	}
	clean := msgWithURL("see https://good.test/x here", 4, 18)
	if activated, _ := trig.IsActive(clean, Text{}); activated {
		t.Fatalf("non-blacklisted url must not activate")
	}
	bad := msgWithURL("see https://spam.test/x here", 4, 18)
	if activated, _ := trig.IsActive(bad, Text{}); !activated {
		t.Fatalf("blacklisted url must activate")
	}
}

func TestWordTriggerCaseInsensitive(t *testing.T) {
	trig := &Trigger{Kind: KindWord, CaseInsensitive: true, WordList: []string{"spam"}}
	activated, _ := trig.IsActive(&tgapi.Message{}, Text{Content: "this is SPAM right here"})
	if !activated {
		t.Fatalf("expected case-insensitive match")
	}
}

func TestWordTriggerCaseSensitiveMiss(t *testing.T) {
	trig := &Trigger{Kind: KindWord, CaseInsensitive: false, WordList: []string{"spam"}}
	activated, _ := trig.IsActive(&tgapi.Message{}, Text{Content: "this is SPAM right here"})
	if activated {
		t.Fatalf("expected case-sensitive miss")
	}
}

func TestRegexpTriggerMatchesAfterRemove(t *testing.T) {
	remove := regexp.MustCompile(`\s+`)
	list := regexp.MustCompile(`buynow`)
	trig := &Trigger{
		Kind:         KindRegexp,
		Analyze:      AnalyzeContent,
		RegexpRemove: []*regexp.Regexp{remove},
		RegexpList:   []*regexp.Regexp{list},
	}
	activated, reason := trig.IsActive(&tgapi.Message{}, Text{Content: "buy  now  !!"})
	if !activated {
		t.Fatalf("expected match after whitespace removal, reason=%q", reason)
	}
}

func TestRegexpTriggerAnalyzeUsername(t *testing.T) {
	list := regexp.MustCompile(`(?i)admin`)
	trig := &Trigger{
		Kind:       KindRegexp,
		Analyze:    AnalyzeUsername,
		RegexpList: []*regexp.Regexp{list},
	}
	activated, _ := trig.IsActive(&tgapi.Message{}, Text{Content: "hello admin", UserName: "regular_user"})
	if activated {
		t.Fatalf("username analyze must not look at content")
	}
	activated, _ = trig.IsActive(&tgapi.Message{}, Text{Content: "hello", UserName: "fake_Admin_99"})
	if !activated {
		t.Fatalf("expected username match")
	}
}

func TestIsWhitelistedUser(t *testing.T) {
	trig := &Trigger{WhiteUsers: map[int64]struct{}{42: {}}}
	if !trig.IsWhitelistedUser(42) {
		t.Fatalf("expected 42 to be whitelisted")
	}
	if trig.IsWhitelistedUser(7) {
		t.Fatalf("expected 7 to not be whitelisted")
	}
}

func TestCompileRegexpOptionsSkipsInvalidPattern(t *testing.T) {
	got := CompileRegexpOptions([]string{"(valid)", "(unclosed"}, true, false, nil, "t1", "regexp_list")
	if len(got) != 1 {
		t.Fatalf("expected 1 compiled pattern, got %d", len(got))
	}
}

package mediagroup

import (
	"io"
	"log/slog"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTouchAccumulatesMessageIDs(t *testing.T) {
	tr := NewTracker(discardLogger())
	tr.Touch(100, "album-1", 1)
	g := tr.Touch(100, "album-1", 2)
	if len(g.MessageIDs) != 2 {
		t.Fatalf("expected 2 message ids, got %d", len(g.MessageIDs))
	}
}

func TestMarkBadPersistsAcrossTouches(t *testing.T) {
	tr := NewTracker(discardLogger())
	tr.Touch(100, "album-1", 1)
	tr.MarkBad(100, "album-1", "слово: spam")
	g := tr.Touch(100, "album-1", 2)
	if !g.IsBad {
		t.Fatal("expected group to stay marked bad")
	}
	if g.Reason != "слово: spam" {
		t.Fatalf("reason = %q", g.Reason)
	}
}

func TestDistinctGroupsAreIndependent(t *testing.T) {
	tr := NewTracker(discardLogger())
	tr.MarkBad(100, "album-1", "x")
	g := tr.Touch(100, "album-2", 1)
	if g.IsBad {
		t.Fatal("unrelated group must not inherit bad flag")
	}
}

func TestTouchKeyedByMediaGroupIDAloneAcrossChats(t *testing.T) {
	tr := NewTracker(discardLogger())
	tr.Touch(100, "album-1", 1)
	g := tr.Touch(200, "album-1", 2)
	if len(g.MessageIDs) != 2 {
		t.Fatalf("expected the second chat's touch to join the same group, got %d ids", len(g.MessageIDs))
	}
	if g.ChatID != 100 {
		t.Fatalf("expected group to retain its original chat id, got %d", g.ChatID)
	}
}

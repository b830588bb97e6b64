package core

import "testing"

func TestSession_AddMessageAndClone(t *testing.T) {
	s := NewSession("s1")
	s.AddMessage(NewUserMessage("hi"))
	s.AddMessage(NewAssistantMessage("assistant", "hello"))

	if s.Len() != 2 {
		t.Fatalf("expected 2 messages, got %d", s.Len())
	}

	clone := s.Clone()
	if clone == s {
		t.Error("Clone should be a different pointer")
	}

	clone.AddMessage(NewUserMessage("only in clone"))
	if s.Len() != 2 {
		t.Error("original should not see messages appended to the clone")
	}
}

func TestSession_GetMessagesIsDefensiveCopy(t *testing.T) {
	s := NewSession("s2")
	s.AddMessage(NewUserMessage("hi"))

	all := s.GetMessages()
	orig := all[0].Author
	all[0].Author = "changed"
	all[0].Parts[0] = TextPart{Text: "mutated"}

	got := s.GetMessages()[0]
	if got.Author != orig {
		t.Error("messages slice should be copied on read")
	}
	if got.Text() != "hi" {
		t.Errorf("parts should be copied on read, got %q", got.Text())
	}
}

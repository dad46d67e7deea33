package core

import (
	"testing"
	"time"
)

func TestSession_AppendAndSnapshot(t *testing.T) {
	s := NewSession("s1", "", []string{"doc-a"})

	s.Append(NewMessage(RoleUser, "hi"))
	s.Append(NewMessage(RoleAgent, "hello"))

	msgs := s.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[1].Role != RoleAgent {
		t.Fatalf("messages out of order: %+v", msgs)
	}

	msgs[0].Content = "mutated"
	if s.Messages()[0].Content == "mutated" {
		t.Error("message slice should be copied on read")
	}
}

func TestSession_DocumentsDeduplicated(t *testing.T) {
	s := NewSession("s2", "u1", nil)
	s.AddDocuments("a", "b")
	s.AddDocuments("b", "c")
	if got := s.Documents(); len(got) != 3 {
		t.Fatalf("expected 3 documents, got %v", got)
	}
}

func TestSession_ExpiredAt(t *testing.T) {
	s := NewSession("s3", "", nil)
	ttl := 24 * time.Hour

	if s.ExpiredAt(s.LastTouched.Add(23*time.Hour+59*time.Minute), ttl) {
		t.Error("session should be alive just under the TTL")
	}
	if !s.ExpiredAt(s.LastTouched.Add(24*time.Hour+time.Minute), ttl) {
		t.Error("session should be expired just over the TTL")
	}
}

func TestSession_CloneDiverges(t *testing.T) {
	s := NewSession("s4", "", []string{"doc-a"})
	s.Append(NewMessage(RoleUser, "q"))

	clone := s.Clone()
	if clone == s {
		t.Fatal("Clone should return a different pointer")
	}
	clone.Append(NewMessage(RoleAgent, "a"))
	if len(s.Messages()) != 1 {
		t.Error("original should not see clone's append")
	}
}

package conversation

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/adavila/ada/internal/llm"
)

func TestAppendOrder(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "conv.json"), 0, nil)

	for i := 0; i < 5; i++ {
		s.Append("chat", llm.UserText(fmt.Sprintf("msg %d", i)))
	}

	msgs := s.Get("chat")
	if len(msgs) != 5 {
		t.Fatalf("len = %d, want 5", len(msgs))
	}
	for i, m := range msgs {
		want := fmt.Sprintf("msg %d", i)
		if m.Text() != want {
			t.Errorf("msgs[%d] = %q, want %q (insertion order)", i, m.Text(), want)
		}
	}
}

func TestGetUnknownConversation(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "conv.json"), 0, nil)

	msgs := s.Get("never-seen")
	if msgs == nil || len(msgs) != 0 {
		t.Errorf("Get(unknown) = %v, want empty slice", msgs)
	}
}

func TestTrimBound(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "conv.json"), 4, nil)

	for i := 0; i < 10; i++ {
		s.Append("chat", llm.UserText(fmt.Sprintf("msg %d", i)))
	}
	s.Trim("chat")

	msgs := s.Get("chat")
	if len(msgs) != 4 {
		t.Fatalf("len after trim = %d, want 4", len(msgs))
	}
	// The retained entries are the most recent, in original order.
	for i, m := range msgs {
		want := fmt.Sprintf("msg %d", i+6)
		if m.Text() != want {
			t.Errorf("msgs[%d] = %q, want %q", i, m.Text(), want)
		}
	}
}

func TestTrimNoopUnderBound(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "conv.json"), 20, nil)

	s.Append("chat", llm.UserText("only one"))
	s.Trim("chat")

	if got := s.Len("chat"); got != 1 {
		t.Errorf("len = %d, want 1", got)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "conv.json"), 0, nil)
	s.Append("chat", llm.UserText("original"))

	msgs := s.Get("chat")
	msgs[0] = llm.UserText("mutated")

	if got := s.Get("chat")[0].Text(); got != "original" {
		t.Errorf("store message = %q, want %q (Get must copy)", got, "original")
	}
}

func TestPersistLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conv.json")

	s := NewStore(path, 0, nil)
	s.Append("chat-1", llm.UserText("hola"))
	s.Append("chat-1", llm.Message{Role: llm.RoleAssistant, Content: []llm.Block{
		llm.ToolUseBlock("toolu_1", "list_tasks", map[string]any{}),
	}})
	s.Append("chat-1", llm.Message{Role: llm.RoleUser, Content: []llm.Block{
		llm.ToolResultBlock("toolu_1", "no tasks"),
	}})
	s.Append("chat-2", llm.UserText("otra"))

	if err := s.Persist(); err != nil {
		t.Fatalf("Persist() error: %v", err)
	}

	restored := NewStore(path, 0, nil)
	if err := restored.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	msgs := restored.Get("chat-1")
	if len(msgs) != 3 {
		t.Fatalf("len(chat-1) = %d, want 3", len(msgs))
	}
	if msgs[1].Content[0].ID != "toolu_1" {
		t.Errorf("tool_use id = %q, want toolu_1", msgs[1].Content[0].ID)
	}
	if msgs[2].Content[0].ToolUseID != "toolu_1" {
		t.Errorf("tool_result pairing id = %q, want toolu_1", msgs[2].Content[0].ToolUseID)
	}
	if got := restored.Len("chat-2"); got != 1 {
		t.Errorf("len(chat-2) = %d, want 1", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nope.json"), 0, nil)
	if err := s.Load(); err != nil {
		t.Errorf("Load() with missing file should be nil, got %v", err)
	}
}

func TestBeginSerializesTurns(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "conv.json"), 0, nil)

	var order []int
	var mu sync.Mutex

	release := s.Begin("chat")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		end := s.Begin("chat")
		defer end()
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
	}()

	mu.Lock()
	order = append(order, 1)
	mu.Unlock()
	release()
	wg.Wait()

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("turn order = %v, want [1 2]", order)
	}
}

func TestBeginIndependentConversations(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "conv.json"), 0, nil)

	releaseA := s.Begin("a")
	defer releaseA()

	// A held lock on "a" must not block "b".
	done := make(chan struct{})
	go func() {
		releaseB := s.Begin("b")
		releaseB()
		close(done)
	}()
	<-done
}

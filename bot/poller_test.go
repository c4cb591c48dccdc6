package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yury-yury/telegram-bot/telegram"
)

type fetchStep struct {
	updates []telegram.Update
	err     error
}

// scriptedFetcher replays a fixed sequence of getUpdates results and cancels
// the run once the script is exhausted.
type scriptedFetcher struct {
	script  []fetchStep
	offsets []int
	cancel  context.CancelFunc
}

func (f *scriptedFetcher) GetUpdates(ctx context.Context, offset, _ int) ([]telegram.Update, error) {
	if len(f.offsets) >= len(f.script) {
		f.cancel()
		return nil, ctx.Err()
	}
	f.offsets = append(f.offsets, offset)
	step := f.script[len(f.offsets)-1]
	return step.updates, step.err
}

type recordingHandler struct {
	messages []telegram.Message
}

func (h *recordingHandler) HandleMessage(_ context.Context, msg telegram.Message) {
	h.messages = append(h.messages, msg)
}

func updateWithText(id int, text string) telegram.Update {
	return telegram.Update{
		ID: id,
		Message: &telegram.Message{
			ID:   int64(id),
			Text: text,
			From: &telegram.User{ID: 100},
			Chat: telegram.Chat{ID: 500, Type: "private"},
		},
	}
}

func runScripted(t *testing.T, script []fetchStep, retryDelay time.Duration) (*scriptedFetcher, *recordingHandler, *Poller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fetcher := &scriptedFetcher{script: script, cancel: cancel}
	handler := &recordingHandler{}
	poller := NewPoller(fetcher, handler, 1, retryDelay)

	if err := poller.Run(ctx); !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run returned %v", err)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		t.Fatal("poller did not drain the script before the test deadline")
	}
	return fetcher, handler, poller
}

func TestPollerOffsetAdvancesPastBatch(t *testing.T) {
	fetcher, handler, poller := runScripted(t, []fetchStep{
		{updates: []telegram.Update{updateWithText(1, "a"), updateWithText(2, "b")}},
		{updates: nil}, // empty batch keeps the cursor
		{updates: []telegram.Update{updateWithText(5, "c")}},
	}, time.Millisecond)

	wantOffsets := []int{0, 3, 3}
	if len(fetcher.offsets) != len(wantOffsets) {
		t.Fatalf("offsets seen = %v", fetcher.offsets)
	}
	for i, want := range wantOffsets {
		if fetcher.offsets[i] != want {
			t.Errorf("fetch %d offset = %d, want %d", i, fetcher.offsets[i], want)
		}
	}
	if poller.Offset() != 6 {
		t.Errorf("final offset = %d, want 6", poller.Offset())
	}
	if len(handler.messages) != 3 {
		t.Errorf("dispatched %d messages, want 3", len(handler.messages))
	}
}

func TestPollerSkipsUpdatesWithoutMessage(t *testing.T) {
	edited := telegram.Update{ID: 9}
	_, handler, poller := runScripted(t, []fetchStep{
		{updates: []telegram.Update{edited, updateWithText(10, "hi")}},
	}, time.Millisecond)

	if len(handler.messages) != 1 || handler.messages[0].Text != "hi" {
		t.Fatalf("dispatched = %+v", handler.messages)
	}
	// The skipped update is still acknowledged.
	if poller.Offset() != 11 {
		t.Errorf("final offset = %d, want 11", poller.Offset())
	}
}

func TestPollerRetriesFetchAtSameOffset(t *testing.T) {
	fetcher, handler, _ := runScripted(t, []fetchStep{
		{updates: []telegram.Update{updateWithText(1, "a")}},
		{err: errors.New("upstream 502")},
		{updates: []telegram.Update{updateWithText(2, "b")}},
	}, time.Millisecond)

	wantOffsets := []int{0, 2, 2}
	for i, want := range wantOffsets {
		if fetcher.offsets[i] != want {
			t.Errorf("fetch %d offset = %d, want %d", i, fetcher.offsets[i], want)
		}
	}
	if len(handler.messages) != 2 {
		t.Errorf("dispatched %d messages, want 2", len(handler.messages))
	}
}

func TestPollerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	poller := NewPoller(&scriptedFetcher{cancel: func() {}}, &recordingHandler{}, 1, time.Millisecond)
	if err := poller.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run on cancelled context returned %v", err)
	}
}

package internal_test

import (
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/koopa0/system-design/14-drawing-game/internal"
)

// recordedEvent 一筆被攔截的廣播
type recordedEvent struct {
	RoomCode string
	Event    internal.Event
}

// recordingBroadcaster 測試用廣播閘道：攔截所有對外事件
//
// 計時器回調會在獨立 goroutine 上廣播，所以必須併發安全。
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
	joins  []string // "code/conn"
	leaves []string
}

func (b *recordingBroadcaster) Join(roomCode, connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.joins = append(b.joins, roomCode+"/"+connID)
}

func (b *recordingBroadcaster) Leave(roomCode, connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.leaves = append(b.leaves, roomCode+"/"+connID)
}

func (b *recordingBroadcaster) Broadcast(roomCode string, event internal.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{RoomCode: roomCode, Event: event})
}

// named 返回指定名稱的所有事件
func (b *recordingBroadcaster) named(name string) []recordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []recordedEvent
	for _, e := range b.events {
		if e.Event.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// count 返回指定名稱的事件數量
func (b *recordingBroadcaster) count(name string) int {
	return len(b.named(name))
}

// last 返回指定名稱的最後一筆事件
func (b *recordingBroadcaster) last(name string) (internal.Event, bool) {
	events := b.named(name)
	if len(events) == 0 {
		return internal.Event{}, false
	}
	return events[len(events)-1].Event, true
}

// testLogger 靜音測試日誌（只留 error）
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestRegistry 創建接上攔截廣播器的註冊表
func newTestRegistry(t *testing.T, mutate func(*internal.Config)) (*internal.Registry, *recordingBroadcaster) {
	t.Helper()

	cfg := internal.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}

	b := &recordingBroadcaster{}
	reg := internal.NewRegistry(cfg, testLogger())
	reg.SetBroadcaster(b)
	t.Cleanup(reg.Stop)

	return reg, b
}

// drawingsOf 從 drawings-revealed / scores-revealed 載荷取出作品映射
func drawingsOf(t *testing.T, e internal.Event) map[string]string {
	t.Helper()

	data, ok := e.Data.(map[string]any)
	if !ok {
		t.Fatalf("unexpected payload type %T", e.Data)
	}
	drawings, ok := data["drawings"].(map[string]string)
	if !ok {
		t.Fatalf("payload missing drawings: %#v", data)
	}
	return drawings
}

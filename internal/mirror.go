package internal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Mirror NATS 事件鏡像
//
// 可選的稽核通道：把每一筆房間廣播同步發佈到
// game.<room_code>.<event> 主題，供監控或事後重放除錯訂閱。
// 事件即稽核日誌——遊戲本身不依賴這條路徑，發佈失敗只記日誌、
// 絕不影響房間流程。
type Mirror struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// NewMirror 連接 NATS 並創建事件鏡像
func NewMirror(url string, logger *slog.Logger) (*Mirror, error) {
	nc, err := nats.Connect(url,
		nats.Name("drawing-game-mirror"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	logger.Info("事件鏡像已啟用", "nats_url", url)
	return &Mirror{nc: nc, logger: logger}, nil
}

// Publish 發佈一筆房間事件
func (m *Mirror) Publish(roomCode string, event Event) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		m.logger.Error("序列化鏡像事件失敗", "error", err, "event", event.Name)
		return
	}

	subject := fmt.Sprintf("game.%s.%s", roomCode, event.Name)
	if err := m.nc.Publish(subject, data); err != nil {
		m.logger.Warn("發佈鏡像事件失敗", "error", err, "subject", subject)
	}
}

// Close 關閉 NATS 連線
func (m *Mirror) Close() {
	if err := m.nc.Drain(); err != nil {
		m.logger.Warn("關閉 NATS 連線失敗", "error", err)
	}
}

package internal

// 系統設計問題：
//   遊戲核心如何與傳輸層解耦？
//
// 核心挑戰：
//   1. 核心邏輯不應知道 WebSocket、訊息編碼等傳輸細節
//   2. 廣播順序必須與狀態變更順序一致（先加入房間、再收到名單）
//   3. 測試時需要能攔截所有對外事件
//
// 設計方案：
//   ✅ Broadcaster 介面 - 核心只會說「把事件 E 廣播到房間 R」
//   ✅ 依賴注入 - Registry 持有介面，Hub 實現介面
//   ✅ 成員管理也走介面 - Join/Leave 由核心在持鎖時呼叫，
//      保證「先訂閱、後廣播」的順序

// Event 房間事件：一個帶名稱的結構化廣播
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

// Broadcaster 廣播閘道
//
// 遊戲核心對傳輸層的唯一依賴。實現者（WebSocket Hub）負責
// 把事件送達房間內的每一條存活連接；核心不關心送達方式。
type Broadcaster interface {
	// Join 將連接訂閱到房間的廣播範圍
	Join(roomCode, connID string)
	// Leave 將連接移出房間的廣播範圍
	Leave(roomCode, connID string)
	// Broadcast 向房間內所有成員廣播事件
	Broadcast(roomCode string, event Event)
}

// 對外廣播的事件名稱
const (
	EventRosterUpdate      = "roster-update"      // 玩家名單變更
	EventRoundStart        = "round-start"        // 回合開始
	EventDrawingsRevealed  = "drawings-revealed"  // 公開所有作品
	EventScoresRevealed    = "scores-revealed"    // 公開評分結果
	EventWinnersRevealed   = "winners-revealed"   // 公開票選優勝作品（>2 人）
	EventVoteResults       = "vote-results"       // 票選結果（<=2 人的降級通知）
	EventNextRoundReady    = "next-round-ready"   // 下一回合確認進度
	EventPresentationReady = "presentation-ready" // 觀看作品確認進度
	EventGameOver          = "game-over"          // 遊戲結束
	EventChatMessage       = "chat-message"       // 聊天訊息
)

// PlayerInfo 名單廣播中的玩家資訊
type PlayerInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
}

// RosterPayload 玩家名單廣播
type RosterPayload struct {
	Players []PlayerInfo `json:"players"`
	Leader  string       `json:"leader"`
	Started bool         `json:"started"`
}

// RoundStartPayload 回合開始廣播
//
// ServerTime 供客戶端校正時鐘偏差：以 server_time 與本地時間的差值
// 修正 started_at + duration 得到的截止時刻。
type RoundStartPayload struct {
	Round       int     `json:"round"` // 1-based
	TotalRounds int     `json:"total_rounds"`
	Theme       *string `json:"theme"`
	Prompt      *string `json:"prompt"`
	Duration    int     `json:"duration"` // 秒
	StartedAt   int64   `json:"started_at"`
	ServerTime  int64   `json:"server_time"`
}

// Score 一幅作品的評分結果
type Score struct {
	Average float64  `json:"average"`
	Ratings []Rating `json:"ratings"`
}

// AckCountPayload 確認進度廣播（下一回合 / 觀看作品兩個閘門共用）
type AckCountPayload struct {
	Ready int `json:"ready"`
	Total int `json:"total"`
}

// PlayerName 評分/投票目標的標籤資訊
type PlayerName struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

package internal

import (
	"log/slog"
	"sync"
	"time"
)

// 系統設計問題：
//   如何在併發、部分有序的客戶端事件下，正確推進一場繪畫遊戲？
//
// 核心挑戰：
//   1. 狀態管理：房間有嚴格的階段轉換（lobby → in_round → judging → … → game_over）
//   2. 並發控制：同房間的多個玩家同時操作（提交、評分、確認）
//   3. 計時競態：截止計時器與「全員提交」互相競爭收卷權
//   4. 隊長容錯：隊長斷線時必須在處理器返回前修復隊長指派
//
// 設計方案：
//   ✅ 每房間一把 Mutex - 訊息處理 run-to-completion，狀態天然序列化
//   ✅ 有限狀態機 - 非法操作靜默忽略（客戶端 UI 把關）
//   ✅ 計時器世代號 - 被取消的計時器回調成為 no-op
//   ✅ 事件驅動 - 狀態變更後立即廣播給房間成員

// Phase 房間階段
//
// 有限狀態機設計：
//
//	lobby → in_round(n) → judging(n) → in_round(n+1) → … → game_over
//
// 階段轉換規則：
//   - lobby → in_round(0)：隊長明確啟動（start-game）
//   - in_round → judging：全員提交 或 截止計時器觸發（擇一，恰好一次）
//   - judging → in_round(n+1)：全員確認 或 隊長強制推進
//   - judging → game_over：回合數用盡時的同一條推進路徑
//
// game_over 為終態：不再接受任何影響回合的事件，
// 新的一局需要建立新房間。
type Phase string

const (
	PhaseLobby    Phase = "lobby"     // 等待玩家加入
	PhaseInRound  Phase = "in_round"  // 繪畫進行中
	PhaseJudging  Phase = "judging"   // 評審進行中（評分或投票）
	PhaseGameOver Phase = "game_over" // 遊戲結束（終態）
)

// PlaceholderDrawing 截止時補給未提交玩家的固定空白 PNG
//
// 活性保證：即使有玩家從未提交，回合也一定會進入評審階段。
const PlaceholderDrawing = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAMgAAADICAMAAACahl6sAAAAA1BMVEUAAACnej3aAAAASElEQVR4nO3BMQEAAAgDoJvc6F9hAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAADwG4wAAQ2r+JwAAAAASUVORK5CYII="

// Player 玩家資訊
//
// 連接句柄（ConnectionHandle）就是玩家身份：由傳輸層在連接建立時
// 指派，斷線即失效。重連會拿到新句柄、成為新的玩家條目（不做跨
// 連接的身份持久化）。
type Player struct {
	ID       string    // 連接句柄
	Name     string    // 自報的顯示名稱
	Ready    bool      // 大廳準備旗標（不自動觸發開局）
	JoinedAt time.Time // 加入時間（名單順序以 slice 順序為準）
}

// Rating 一筆評分紀錄
type Rating struct {
	From  string  `json:"from"`
	Value float64 `json:"value"`
}

// Room 遊戲房間
//
// 系統設計考量：
//
//  1. 並發控制（Mutex）：
//     每個房間一把互斥鎖，所有操作（包括計時器回調）先取鎖再動狀態。
//     run-to-completion 語義由此保證：單一訊息處理完畢前
//     不會與同房間的其他訊息交錯。鎖順序固定為 registry.mu → room.mu，
//     持 room.mu 時不得回頭取 registry.mu。
//
//  2. 玩家名單（有序 slice）：
//     插入順序 = 加入順序。隊長遞補規則「名單上第一位」依賴這個順序，
//     所以不用 map 存玩家。
//
//  3. 計時器（單一 setter + 世代號）：
//     roundTimer 只透過 scheduleDeadlineLocked / cancelDeadlineLocked
//     變更，替換必先取消，任何時刻每房間至多一個待觸發計時器。
//     世代號讓輸掉競態的回調自行退出（取消與觸發之間的窗口）。
//
//  4. 評審資料（map 逐回合重建）：
//     drawings / ratings / votes 在每回合開始時整個換新，
//     舊回合的遲到訊息頂多改寫已丟棄的 map。
type Room struct {
	Code string // 短房間代碼（人類可輸入，存活期間唯一）

	mu       sync.Mutex
	players  []*Player // 加入順序
	leaderID string
	phase    Phase
	started  bool

	currentRound   int // 0-based；只增不減，每次推進恰好 +1
	drawings       map[string]string   // 連接句柄 -> 作品
	ratings        map[string][]Rating // 目標句柄 -> 評分（同一評分者至多一筆）
	votes          map[string]string   // 投票者 -> 目標（後投覆蓋先投）
	waitingForNext bool
	nextRoundAcks  map[string]struct{}
	presentAcks    map[string]struct{}

	roundTimer     *time.Timer
	timerGen       int // 計時器世代號；每次排程或取消遞增
	roundStartedAt time.Time
	roundDuration  time.Duration

	catalog     Catalog
	mode        JudgmentMode
	broadcaster Broadcaster
	logger      *slog.Logger
}

// newRoom 創建房間；創建者立刻成為唯一玩家兼隊長
func newRoom(code string, cfg *Config, b Broadcaster, logger *slog.Logger) *Room {
	return &Room{
		Code:          code,
		phase:         PhaseLobby,
		roundDuration: cfg.Game.RoundDuration,
		catalog:       cfg.Game.Themes,
		mode:          cfg.Game.Judgment,
		broadcaster:   b,
		logger:        logger,
	}
}

// addPlayerLocked 加入玩家（冪等：同一句柄不會重複加入）
func (r *Room) addPlayerLocked(connID, name string) {
	for _, p := range r.players {
		if p.ID == connID {
			return
		}
	}

	player := &Player{
		ID:       connID,
		Name:     name,
		JoinedAt: time.Now(),
	}
	r.players = append(r.players, player)

	if len(r.players) == 1 {
		r.leaderID = connID
	}
}

// removePlayerLocked 移除玩家，返回是否確實移除
//
// 隊長不變式的修復點：若被移除者是隊長且還有玩家留下，
// 名單上的第一位（最早加入者）在返回前接任隊長。
func (r *Room) removePlayerLocked(connID string) bool {
	idx := -1
	for i, p := range r.players {
		if p.ID == connID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return false
	}

	r.players = append(r.players[:idx], r.players[idx+1:]...)

	// 離開者不再計入任何全員一致的條件
	delete(r.nextRoundAcks, connID)
	delete(r.presentAcks, connID)
	delete(r.votes, connID)

	if r.leaderID == connID && len(r.players) > 0 {
		r.leaderID = r.players[0].ID
	}

	return true
}

// reconcileDepartureLocked 玩家離開後重新評估完成條件
//
// 完成檢查平時只掛在提交路徑上；若離開的玩家正是最後一個欠缺的
// 提交者或確認者，房間會永遠等不到那一筆。這裡以縮小後的名單
// 重新評估每個閘門，保證玩家離開不會卡住回合推進。
func (r *Room) reconcileDepartureLocked() {
	if len(r.players) == 0 {
		return
	}

	switch {
	case r.phase == PhaseInRound:
		if r.allSubmittedLocked() {
			r.cancelDeadlineLocked()
			r.revealDrawingsLocked()
		}
	case r.phase == PhaseJudging && r.waitingForNext:
		if len(r.nextRoundAcks) == len(r.players) {
			r.advanceLocked()
		}
	case r.phase == PhaseJudging && r.mode == ModeRating:
		if r.allRatedLocked() {
			r.finishRatingLocked()
		}
	case r.phase == PhaseJudging && r.mode == ModeVoting:
		if len(r.votes) == len(r.players) {
			r.finishVotingLocked()
		}
	}
}

// SetReady 設置大廳準備旗標
//
// 準備狀態只是大廳裡給其他玩家看的 UI 訊號，不會自動開局；
// 開局是隊長的明確動作（StartGame）。
func (r *Room) SetReady(connID string, ready bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.players {
		if p.ID == connID {
			p.Ready = ready
			r.broadcastRosterLocked()
			return
		}
	}
}

// PlayerNames 返回評分/投票目標的標籤列表（純讀取）
func (r *Room) PlayerNames() []PlayerName {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]PlayerName, 0, len(r.players))
	for _, p := range r.players {
		names = append(names, PlayerName{ID: p.ID, Name: p.Name})
	}
	return names
}

// Phase 返回當前階段
func (r *Room) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// PlayerCount 返回玩家數量
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// Leader 返回當前隊長的連接句柄
func (r *Room) Leader() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaderID
}

// CurrentRound 返回當前回合索引（0-based）
func (r *Room) CurrentRound() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentRound
}

// rosterLocked 構建名單廣播的載荷
func (r *Room) rosterLocked() RosterPayload {
	players := make([]PlayerInfo, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, PlayerInfo{ID: p.ID, Name: p.Name, Ready: p.Ready})
	}
	return RosterPayload{
		Players: players,
		Leader:  r.leaderID,
		Started: r.started,
	}
}

// broadcastRosterLocked 廣播玩家名單
func (r *Room) broadcastRosterLocked() {
	r.broadcaster.Broadcast(r.Code, Event{Name: EventRosterUpdate, Data: r.rosterLocked()})
}

// broadcastLocked 廣播任意事件
func (r *Room) broadcastLocked(name string, data any) {
	r.broadcaster.Broadcast(r.Code, Event{Name: name, Data: data})
}

// close 銷毀前的清理：取消待觸發的計時器
func (r *Room) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelDeadlineLocked()
}

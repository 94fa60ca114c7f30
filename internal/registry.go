package internal

import (
	"crypto/rand"
	"log/slog"
	"sync"
)

// Registry 房間註冊表
//
// 行程內唯一的 code -> Room 映射，以依賴注入的方式交給各處理器
// （沒有套件級的全域房間表）。職責：
//   - 創建房間：生成人類可輸入的短代碼，與存活房間查重
//   - 查找房間：各遊戲操作按代碼委派給對應房間
//   - 斷線清理：防禦性掃描所有房間、修復隊長、銷毀空房間
//
// 併發控制：
//   - registry.mu 保護房間表本身
//   - 房間狀態由各自的 room.mu 保護
//   - 鎖順序固定 registry.mu → room.mu，反向絕不發生
type Registry struct {
	rooms       map[string]*Room
	mu          sync.RWMutex
	cfg         *Config
	logger      *slog.Logger
	broadcaster Broadcaster
}

// NewRegistry 創建房間註冊表
func NewRegistry(cfg *Config, logger *slog.Logger) *Registry {
	return &Registry{
		rooms:  make(map[string]*Room),
		cfg:    cfg,
		logger: logger,
	}
}

// SetBroadcaster 注入廣播閘道
//
// Registry 與 Hub 互相引用（核心廣播事件、Hub 轉發訊息），
// 以後設的 setter 打破建構順序的循環；必須在開始服務前呼叫。
func (reg *Registry) SetBroadcaster(b Broadcaster) {
	reg.broadcaster = b
}

// CreateRoom 創建房間，創建者成為唯一玩家兼隊長
//
// 返回房間代碼。顯示名稱為空時返回 ValidationError（透過 ack 回給
// 呼叫者，不廣播）。
func (reg *Registry) CreateRoom(connID, name string) (string, error) {
	if name == "" {
		return "", ErrNameRequired
	}

	reg.mu.Lock()
	code := reg.generateCodeLocked()
	room := newRoom(code, reg.cfg, reg.broadcaster, reg.logger)
	reg.rooms[code] = room
	reg.mu.Unlock()

	room.mu.Lock()
	room.addPlayerLocked(connID, name)
	reg.broadcaster.Join(code, connID)
	room.broadcastRosterLocked()
	room.mu.Unlock()

	reg.logger.Info("房間已創建",
		"room_code", code,
		"conn_id", connID,
		"name", name)

	return code, nil
}

// JoinRoom 加入房間
//
// 冪等：同一連接句柄重複加入不會產生重複的玩家條目。
func (reg *Registry) JoinRoom(connID, name, code string) error {
	if name == "" {
		return ErrNameRequired
	}

	room, ok := reg.Room(code)
	if !ok {
		return ErrRoomNotFound
	}

	room.mu.Lock()
	room.addPlayerLocked(connID, name)
	reg.broadcaster.Join(code, connID)
	room.broadcastRosterLocked()
	room.mu.Unlock()

	reg.logger.Info("玩家加入房間",
		"room_code", code,
		"conn_id", connID,
		"name", name)

	return nil
}

// Room 查找房間
func (reg *Registry) Room(code string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	room, ok := reg.rooms[code]
	return room, ok
}

// RemoveConnection 斷線清理
//
// 斷線不是錯誤，是正常的生命週期轉換。一條連接實務上至多屬於
// 一個房間，但這裡防禦性地掃描全部房間。對每個含有該玩家的房間：
//   - 移除玩家；若他是隊長且還有人留下，名單第一位接任
//   - 房間變空則立即銷毀（先取消截止計時器）
//   - 否則廣播更新後的名單，並以縮小後的名單重新評估
//     提交/確認的完成條件（離開者可能正是最後欠缺的一筆）
func (reg *Registry) RemoveConnection(connID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for code, room := range reg.rooms {
		room.mu.Lock()

		if !room.removePlayerLocked(connID) {
			room.mu.Unlock()
			continue
		}

		reg.broadcaster.Leave(code, connID)

		if len(room.players) == 0 {
			room.cancelDeadlineLocked()
			room.mu.Unlock()
			delete(reg.rooms, code)
			reg.logger.Info("房間已銷毀", "room_code", code)
			continue
		}

		room.broadcastRosterLocked()
		room.reconcileDepartureLocked()
		room.mu.Unlock()

		reg.logger.Info("玩家離開房間",
			"room_code", code,
			"conn_id", connID)
	}
}

// 以下為按房間代碼委派的遊戲操作。
// 房間不存在時一律靜默忽略（軟失敗策略）。

// SetReady 設置大廳準備旗標
func (reg *Registry) SetReady(code, connID string, ready bool) {
	if room, ok := reg.Room(code); ok {
		room.SetReady(connID, ready)
	}
}

// StartGame 隊長啟動遊戲
func (reg *Registry) StartGame(code, connID string) {
	if room, ok := reg.Room(code); ok {
		room.StartGame(connID)
	}
}

// SubmitDrawing 提交作品
func (reg *Registry) SubmitDrawing(code, connID, drawing string) {
	if room, ok := reg.Room(code); ok {
		room.SubmitDrawing(connID, drawing)
	}
}

// UnsubmitDrawing 撤回作品
func (reg *Registry) UnsubmitDrawing(code, connID string) {
	if room, ok := reg.Room(code); ok {
		room.UnsubmitDrawing(connID)
	}
}

// SubmitRating 提交評分
func (reg *Registry) SubmitRating(code, raterID, targetID string, value float64) {
	if room, ok := reg.Room(code); ok {
		room.SubmitRating(raterID, targetID, value)
	}
}

// SubmitVote 提交投票
func (reg *Registry) SubmitVote(code, voterID, targetID string) {
	if room, ok := reg.Room(code); ok {
		room.SubmitVote(voterID, targetID)
	}
}

// AckNextRound 確認進入下一回合
func (reg *Registry) AckNextRound(code, connID string, ready bool) {
	if room, ok := reg.Room(code); ok {
		room.AckNextRound(connID, ready)
	}
}

// LeaderAdvance 隊長強制推進
func (reg *Registry) LeaderAdvance(code, connID string) {
	if room, ok := reg.Room(code); ok {
		room.LeaderAdvance(connID)
	}
}

// PresentationReady 確認觀看作品
func (reg *Registry) PresentationReady(code, connID string, ready bool) {
	if room, ok := reg.Room(code); ok {
		room.PresentationReady(connID, ready)
	}
}

// PlayerNames 返回玩家標籤列表；房間不存在時返回空列表
func (reg *Registry) PlayerNames(code string) []PlayerName {
	room, ok := reg.Room(code)
	if !ok {
		return []PlayerName{}
	}
	return room.PlayerNames()
}

// Stats 獲取統計資訊
func (reg *Registry) Stats() map[string]any {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	phaseCount := make(map[Phase]int)
	totalPlayers := 0
	for _, room := range reg.rooms {
		phaseCount[room.Phase()]++
		totalPlayers += room.PlayerCount()
	}

	return map[string]any{
		"total_rooms":   len(reg.rooms),
		"total_players": totalPlayers,
		"by_phase":      phaseCount,
	}
}

// Stop 停止註冊表：取消所有房間的待觸發計時器
func (reg *Registry) Stop() {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for code, room := range reg.rooms {
		room.close()
		delete(reg.rooms, code)
	}

	reg.logger.Info("房間註冊表已停止")
}

// 房間代碼字元集（人類可輸入：大寫字母 + 數字）
const codeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// codeLength 房間代碼長度
const codeLength = 5

// generateCodeLocked 生成與存活房間查重過的短代碼
//
// 碰撞時重新生成。36^5 ≈ 6000 萬組合，存活房間數遠小於此，
// 重試次數期望值趨近 1。
func (reg *Registry) generateCodeLocked() string {
	for {
		code := randomCode()
		if _, exists := reg.rooms[code]; !exists {
			return code
		}
	}
}

// randomCode 生成一個隨機代碼
//
// 拒絕取樣去除模數偏差：256 不是 36 的倍數，直接取餘會讓
// 前幾個字元的機率偏高，故丟棄 252（36*7）以上的位元組重抽。
func randomCode() string {
	const limit = byte(len(codeChars) * (256 / len(codeChars)))

	b := make([]byte, codeLength)
	for i := 0; i < codeLength; {
		var buf [1]byte
		if _, err := rand.Read(buf[:]); err != nil {
			// 隨機源失敗的備援：退化為固定代碼再靠查重重試
			b[i] = 'A'
			i++
			continue
		}
		if buf[0] >= limit {
			continue
		}
		b[i] = codeChars[int(buf[0])%len(codeChars)]
		i++
	}
	return string(b)
}

package internal

import "time"

// 回合引擎：驅動 in_round 階段的開始、計時與收卷。
//
// 收卷（進入評審）有且僅有兩個觸發點，兩者競爭、恰好一個生效：
//   1. 最後一位玩家提交作品（提前收卷，取消計時器）
//   2. 截止計時器觸發（為缺席者補空白佔位圖）
//
// 競態處理：計時器回調先取房間鎖、再比對世代號。
// 「取消」與「觸發」之間的窗口裡觸發的回調會因世代號不符而退出，
// 保證 drawings-revealed 每回合恰好廣播一次。

// StartGame 隊長啟動遊戲（lobby → in_round(0)）
//
// 軟失敗策略：呼叫者不是隊長、或遊戲已開始時靜默忽略。
func (r *Room) StartGame(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.leaderID != connID || r.started {
		return
	}

	r.started = true
	r.currentRound = 0
	r.logger.Info("遊戲開始",
		"room_code", r.Code,
		"players", len(r.players),
		"judgment", r.mode)

	r.startRoundLocked()
}

// startRoundLocked 回合進入動作
//
// 依序執行：
//  1. 清空上一回合的作品、評分、投票與確認集合
//  2. 廣播確認進度歸零（客戶端藉此提前重置「準備」UI）
//  3. 依目錄解析主題；超出目錄的加碼回合主題缺席
//  4. 主題帶題目池時均勻隨機抽一題
//  5. 重置截止計時器（替換必先取消）
//  6. 廣播回合開始載荷（含伺服器時間供客戶端校正時鐘偏差）
func (r *Room) startRoundLocked() {
	r.phase = PhaseInRound
	r.waitingForNext = false
	r.drawings = make(map[string]string)
	r.ratings = make(map[string][]Rating)
	r.votes = make(map[string]string)
	r.nextRoundAcks = make(map[string]struct{})
	r.presentAcks = make(map[string]struct{})

	r.broadcastLocked(EventNextRoundReady, AckCountPayload{
		Ready: 0,
		Total: len(r.players),
	})

	label, prompt := r.catalog.Resolve(r.currentRound)

	now := time.Now()
	r.roundStartedAt = now
	r.scheduleDeadlineLocked(r.roundDuration)

	r.broadcastLocked(EventRoundStart, RoundStartPayload{
		Round:       r.currentRound + 1,
		TotalRounds: r.catalog.TotalRounds(),
		Theme:       label,
		Prompt:      prompt,
		Duration:    int(r.roundDuration.Seconds()),
		StartedAt:   now.UnixMilli(),
		ServerTime:  time.Now().UnixMilli(),
	})

	r.logger.Info("回合開始",
		"room_code", r.Code,
		"round", r.currentRound+1,
		"theme", label)
}

// scheduleDeadlineLocked 排程截止計時器
//
// 不變式：計時器只能透過這裡與 cancelDeadlineLocked 變更，
// 替換一定先取消，每房間任何時刻至多一個待觸發計時器。
func (r *Room) scheduleDeadlineLocked(d time.Duration) {
	r.cancelDeadlineLocked()

	gen := r.timerGen
	r.roundTimer = time.AfterFunc(d, func() {
		r.deadlineFired(gen)
	})
}

// cancelDeadlineLocked 取消截止計時器
func (r *Room) cancelDeadlineLocked() {
	if r.roundTimer != nil {
		r.roundTimer.Stop()
		r.roundTimer = nil
	}
	// 世代號遞增使已出發但尚未取鎖的回調失效
	r.timerGen++
}

// deadlineFired 截止計時器回調
//
// 在計時器自己的 goroutine 上執行，先取鎖再驗證世代號：
// 世代號不符表示這個計時器已被取消（全員提前提交、回合已推進、
// 或房間正在銷毀），直接退出。
func (r *Room) deadlineFired(gen int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.timerGen || r.phase != PhaseInRound {
		return
	}
	r.roundTimer = nil

	// 活性保證：為每位未提交的玩家補固定空白佔位圖
	for _, p := range r.players {
		if _, ok := r.drawings[p.ID]; !ok {
			r.drawings[p.ID] = PlaceholderDrawing
		}
	}

	r.logger.Info("回合截止，強制收卷",
		"room_code", r.Code,
		"round", r.currentRound+1)

	r.revealDrawingsLocked()
}

// SubmitDrawing 提交（或覆蓋）作品
//
// 全員到齊時取消計時器並收卷——這是進入評審的唯一提前觸發點。
func (r *Room) SubmitDrawing(connID, drawing string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhaseInRound {
		return
	}

	r.drawings[connID] = drawing

	if r.allSubmittedLocked() {
		r.cancelDeadlineLocked()
		r.revealDrawingsLocked()
	}
}

// allSubmittedLocked 檢查是否每位現役玩家都有作品
func (r *Room) allSubmittedLocked() bool {
	if len(r.players) == 0 {
		return false
	}
	for _, p := range r.players {
		if _, ok := r.drawings[p.ID]; !ok {
			return false
		}
	}
	return true
}

// UnsubmitDrawing 撤回作品（截止前可重新提交）
//
// 同時移除已記錄在該作品上的評分。回合收卷後的撤回是
// 明確允許的 no-op，不是錯誤。
func (r *Room) UnsubmitDrawing(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhaseInRound || r.drawings == nil {
		return
	}

	delete(r.drawings, connID)
	delete(r.ratings, connID)
}

// revealDrawingsLocked 收卷：進入評審階段並公開所有作品
func (r *Room) revealDrawingsLocked() {
	r.phase = PhaseJudging
	r.broadcastLocked(EventDrawingsRevealed, map[string]any{
		"drawings": r.drawings,
	})
}

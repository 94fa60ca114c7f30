package internal

// 回合間閘門：以「全員確認 或 隊長強制」推進回合。
//
// 兩個閘門共用同一種全員一致語義：
//   - 主閘門（next-round-ack）：推進到下一回合或結束遊戲
//   - 觀看閘門（presentation-ready）：全員準備好後（重新）公開作品集
//
// 主閘門只在 waitingForNext 為真時開放——也就是本回合的分數或開票
// 結果已經廣播之後；推進或結束的瞬間旗標清除，確認集合歸零。

// AckNextRound 切換「準備好進下一回合」的確認
//
// 每次切換都廣播當前確認進度；確認數到達現役玩家數時推進恰好一次。
func (r *Room) AckNextRound(connID string, ready bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.waitingForNext {
		return
	}

	if ready {
		r.nextRoundAcks[connID] = struct{}{}
	} else {
		delete(r.nextRoundAcks, connID)
	}

	r.broadcastLocked(EventNextRoundReady, AckCountPayload{
		Ready: len(r.nextRoundAcks),
		Total: len(r.players),
	})

	if len(r.nextRoundAcks) == len(r.players) {
		r.advanceLocked()
	}
}

// LeaderAdvance 隊長強制推進（繞過全員確認）
//
// 軟失敗：呼叫者不是隊長、或不在等待狀態時靜默忽略。
func (r *Room) LeaderAdvance(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.leaderID != connID || !r.waitingForNext {
		return
	}

	r.advanceLocked()
}

// advanceLocked 推進到下一回合或結束遊戲
//
// currentRound 單調遞增、每次恰好 +1。回合總數為目錄長度 +1：
// 最後一個是主題缺席的加碼回合（保留的上游行為）。
// 用盡後進入 game_over 終態。
func (r *Room) advanceLocked() {
	r.waitingForNext = false
	r.currentRound++

	if r.currentRound < r.catalog.TotalRounds()+1 {
		r.startRoundLocked()
		return
	}

	r.phase = PhaseGameOver
	r.cancelDeadlineLocked()
	r.broadcastLocked(EventGameOver, map[string]any{})

	r.logger.Info("遊戲結束",
		"room_code", r.Code,
		"rounds_played", r.currentRound)
}

// PresentationReady 切換「準備好觀看作品」的確認
//
// 與主閘門獨立的輕量閘門：全員確認後重置集合並（重新）廣播作品集，
// 供某些玩法變體在評審開始前同步所有人的觀看時機。
// 只在評審階段開放：遊戲結束後不再重播上一回合的作品集。
func (r *Room) PresentationReady(connID string, ready bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhaseJudging || r.presentAcks == nil {
		return
	}

	if ready {
		r.presentAcks[connID] = struct{}{}
	} else {
		delete(r.presentAcks, connID)
	}

	r.broadcastLocked(EventPresentationReady, AckCountPayload{
		Ready: len(r.presentAcks),
		Total: len(r.players),
	})

	if len(r.presentAcks) == len(r.players) && len(r.players) > 0 {
		r.presentAcks = make(map[string]struct{})
		r.broadcastLocked(EventDrawingsRevealed, map[string]any{
			"drawings": r.drawings,
		})
	}
}

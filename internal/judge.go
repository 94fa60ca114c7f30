package internal

import "math"

// 評審引擎：評分聚合與投票聚合。
//
// 系統設計問題：
//   多位玩家非同步送來評分/投票，如何判定「評審完成」且只完成一次？
//
// 核心挑戰：
//   1. 冪等性：同一玩家重複送出評分/投票只保留最新一筆
//   2. 完成條件：評分按「每幅作品收齊 N-1 筆」、投票按「投票人數到齊」
//   3. 恰好一次：完成廣播每回合只能發一次（完成後狀態立即轉入等待下一回合）
//
// 設計方案：
//   ✅ 評分以目標分組，寫入前先剔除同一評分者的舊評分
//   ✅ 投票以投票者為鍵，後寫覆蓋
//   ✅ 完成檢查只在寫入路徑上執行，與房間鎖一起保證單次觸發

// CoerceRating 將任意解碼結果強制轉成合法評分
//
// 數值異常採取強制轉換而非拒絕的策略：非數字一律視為 0，
// 數字夾取到閉區間 [0, 10]。
func CoerceRating(v any) float64 {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) {
		return 0
	}
	if f < 0 {
		return 0
	}
	if f > 10 {
		return 10
	}
	return f
}

// SubmitRating 提交一筆評分（僅限 rating 模式的房間）
//
// 冪等：同一評分者對同一目標重複提交時，以最新值取代舊值。
// 自評靜默忽略。每幅作品都收齊「其他所有現役玩家」的評分時，
// 計算分數並廣播，然後進入等待下一回合的狀態。
func (r *Room) SubmitRating(raterID, targetID string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mode != ModeRating || r.phase != PhaseJudging || r.waitingForNext || raterID == targetID {
		return
	}

	// 剔除同一評分者的舊評分（冪等重提交）
	kept := r.ratings[targetID][:0]
	for _, rating := range r.ratings[targetID] {
		if rating.From != raterID {
			kept = append(kept, rating)
		}
	}
	r.ratings[targetID] = append(kept, Rating{From: raterID, Value: CoerceRating(value)})

	if r.allRatedLocked() {
		r.finishRatingLocked()
	}
}

// allRatedLocked 檢查評審完成條件
//
// 每幅作品的擁有者都收到了 playerCount-1 筆評分
// （評分者互異、且不含自評，所以上限正是 playerCount-1）。
func (r *Room) allRatedLocked() bool {
	total := len(r.players)
	for targetID := range r.drawings {
		if len(r.ratings[targetID]) < total-1 {
			return false
		}
	}
	return true
}

// finishRatingLocked 結算評分並廣播
//
// 分數 = 該作品所有評分的算術平均，四捨五入到小數兩位；
// 沒有任何評分的作品計 0 分（單人房間的邊界情況）。
func (r *Room) finishRatingLocked() {
	scores := make(map[string]Score, len(r.drawings))
	for targetID := range r.drawings {
		ratings := r.ratings[targetID]
		avg := 0.0
		if len(ratings) > 0 {
			sum := 0.0
			for _, rating := range ratings {
				sum += rating.Value
			}
			avg = math.Round(sum/float64(len(ratings))*100) / 100
		}
		if ratings == nil {
			ratings = []Rating{}
		}
		scores[targetID] = Score{Average: avg, Ratings: ratings}
	}

	r.broadcastLocked(EventScoresRevealed, map[string]any{
		"drawings": r.drawings,
		"scores":   scores,
	})

	r.waitingForNext = true
	r.nextRoundAcks = make(map[string]struct{})

	r.logger.Info("評分結算完成",
		"room_code", r.Code,
		"round", r.currentRound+1)
}

// SubmitVote 提交一票（僅限 voting 模式的房間；後投覆蓋先投）
//
// 自投靜默忽略。不同投票者的數量等於現役玩家數時開票：
// 得票最高的所有目標同列優勝（並列不破）。
func (r *Room) SubmitVote(voterID, targetID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mode != ModeVoting || r.phase != PhaseJudging || r.waitingForNext || voterID == targetID {
		return
	}

	r.votes[voterID] = targetID

	if len(r.votes) == len(r.players) && len(r.players) > 0 {
		r.finishVotingLocked()
	}
}

// finishVotingLocked 開票並廣播
//
// 分支依玩家人數：
//   - >2 人：只公開優勝作品、優勝者集合與完整得票數（不含評分）
//   - <=2 人：僅廣播優勝者集合與得票數，不帶作品載荷。
//     兩人以下的投票在上游本就欠缺定義，這裡刻意保留為降級通知，
//     不是待修的 bug。
func (r *Room) finishVotingLocked() {
	tally := make(map[string]int)
	for _, targetID := range r.votes {
		tally[targetID]++
	}

	maxVotes := 0
	var winners []string
	for targetID, count := range tally {
		switch {
		case count > maxVotes:
			maxVotes = count
			winners = []string{targetID}
		case count == maxVotes:
			winners = append(winners, targetID)
		}
	}

	if len(r.players) > 2 {
		winnerDrawings := make(map[string]string, len(winners))
		for _, winnerID := range winners {
			winnerDrawings[winnerID] = r.drawings[winnerID]
		}
		r.broadcastLocked(EventWinnersRevealed, map[string]any{
			"title":    "Drawing(s) of the round:",
			"drawings": winnerDrawings,
			"winners":  winners,
			"tally":    tally,
		})
	} else {
		r.broadcastLocked(EventVoteResults, map[string]any{
			"winners": winners,
			"tally":   tally,
		})
	}

	r.waitingForNext = true
	r.nextRoundAcks = make(map[string]struct{})
	r.votes = make(map[string]string)

	r.logger.Info("投票結算完成",
		"room_code", r.Code,
		"round", r.currentRound+1,
		"winners", winners,
		"max_votes", maxVotes)
}

package internal_test

import (
	"testing"
	"time"

	"github.com/koopa0/system-design/14-drawing-game/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupStartedGame 創建房間、加入玩家並由隊長開局
func setupStartedGame(t *testing.T, mutate func(*internal.Config), players ...string) (*internal.Registry, *recordingBroadcaster, string) {
	t.Helper()
	require.NotEmpty(t, players)

	reg, b := newTestRegistry(t, mutate)

	code, err := reg.CreateRoom(players[0], "玩家A")
	require.NoError(t, err)
	for i, conn := range players[1:] {
		require.NoError(t, reg.JoinRoom(conn, "玩家"+string(rune('B'+i)), code))
	}

	reg.StartGame(code, players[0])
	return reg, b, code
}

// TestRoom_StartGame_LeaderOnly 測試開局為隊長專屬動作
func TestRoom_StartGame_LeaderOnly(t *testing.T) {
	reg, b := newTestRegistry(t, nil)
	code, err := reg.CreateRoom("conn-1", "小美")
	require.NoError(t, err)
	require.NoError(t, reg.JoinRoom("conn-2", "阿強", code))

	// 非隊長：靜默忽略
	reg.StartGame(code, "conn-2")
	room, _ := reg.Room(code)
	assert.Equal(t, internal.PhaseLobby, room.Phase())
	assert.Equal(t, 0, b.count(internal.EventRoundStart))

	// 隊長：開局
	reg.StartGame(code, "conn-1")
	assert.Equal(t, internal.PhaseInRound, room.Phase())
	assert.Equal(t, 1, b.count(internal.EventRoundStart))

	// 重複開局：靜默忽略
	reg.StartGame(code, "conn-1")
	assert.Equal(t, 1, b.count(internal.EventRoundStart))
}

// TestRoom_RoundStartPayload 測試回合開始載荷
func TestRoom_RoundStartPayload(t *testing.T) {
	themes := internal.Catalog{
		{Label: "Animal"},
		{Label: "food", Prompts: []string{"pizza", "sushi"}},
	}
	_, b, _ := setupStartedGame(t, func(cfg *internal.Config) {
		cfg.Game.Themes = themes
		cfg.Game.RoundDuration = 90 * time.Second
	}, "conn-1", "conn-2")

	// 回合進入動作先把確認進度歸零
	reset, ok := b.last(internal.EventNextRoundReady)
	require.True(t, ok)
	assert.Equal(t, internal.AckCountPayload{Ready: 0, Total: 2}, reset.Data)

	start, ok := b.last(internal.EventRoundStart)
	require.True(t, ok)
	payload := start.Data.(internal.RoundStartPayload)
	assert.Equal(t, 1, payload.Round)
	assert.Equal(t, 2, payload.TotalRounds)
	require.NotNil(t, payload.Theme)
	assert.Equal(t, "Animal", *payload.Theme)
	assert.Nil(t, payload.Prompt) // Animal 沒有題目池
	assert.Equal(t, 90, payload.Duration)
	assert.NotZero(t, payload.StartedAt)
	assert.GreaterOrEqual(t, payload.ServerTime, payload.StartedAt)
}

// TestRoom_SubmitDrawing_AllSubmittedReveals 測試全員提交提前收卷
func TestRoom_SubmitDrawing_AllSubmittedReveals(t *testing.T) {
	reg, b, code := setupStartedGame(t, func(cfg *internal.Config) {
		cfg.Game.RoundDuration = 50 * time.Millisecond
	}, "conn-1", "conn-2")

	reg.SubmitDrawing(code, "conn-1", "drawing-a")
	assert.Equal(t, 0, b.count(internal.EventDrawingsRevealed))

	reg.SubmitDrawing(code, "conn-2", "drawing-b")
	require.Equal(t, 1, b.count(internal.EventDrawingsRevealed))

	room, _ := reg.Room(code)
	assert.Equal(t, internal.PhaseJudging, room.Phase())

	reveal, _ := b.last(internal.EventDrawingsRevealed)
	drawings := drawingsOf(t, reveal)
	assert.Equal(t, "drawing-a", drawings["conn-1"])
	assert.Equal(t, "drawing-b", drawings["conn-2"])

	// 計時器已取消：等過原截止時間後仍然只有一次收卷
	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, 1, b.count(internal.EventDrawingsRevealed))
}

// TestRoom_DeadlineFallback 測試截止計時器的活性保證
//
// 兩人房間只有一人提交：截止觸發後兩個條目都在
// （一張真作品、一張空白佔位圖），且收卷恰好廣播一次。
func TestRoom_DeadlineFallback(t *testing.T) {
	reg, b, code := setupStartedGame(t, func(cfg *internal.Config) {
		cfg.Game.RoundDuration = 30 * time.Millisecond
	}, "conn-1", "conn-2")

	reg.SubmitDrawing(code, "conn-1", "real-drawing")

	require.Eventually(t, func() bool {
		return b.count(internal.EventDrawingsRevealed) == 1
	}, time.Second, 5*time.Millisecond)

	reveal, _ := b.last(internal.EventDrawingsRevealed)
	drawings := drawingsOf(t, reveal)
	require.Len(t, drawings, 2)
	assert.Equal(t, "real-drawing", drawings["conn-1"])
	assert.Equal(t, internal.PlaceholderDrawing, drawings["conn-2"])

	// 不會重複收卷
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 1, b.count(internal.EventDrawingsRevealed))
}

// TestRoom_UnsubmitDrawing 測試撤回作品
func TestRoom_UnsubmitDrawing(t *testing.T) {
	reg, b, code := setupStartedGame(t, nil, "conn-1", "conn-2")

	reg.SubmitDrawing(code, "conn-1", "v1")
	reg.UnsubmitDrawing(code, "conn-1")

	// 撤回後另一人提交不足以收卷
	reg.SubmitDrawing(code, "conn-2", "drawing-b")
	assert.Equal(t, 0, b.count(internal.EventDrawingsRevealed))

	// 重新提交 → 收卷
	reg.SubmitDrawing(code, "conn-1", "v2")
	require.Equal(t, 1, b.count(internal.EventDrawingsRevealed))

	reveal, _ := b.last(internal.EventDrawingsRevealed)
	assert.Equal(t, "v2", drawingsOf(t, reveal)["conn-1"])

	// 收卷後的撤回是允許的 no-op，不影響已公開的作品
	reg.UnsubmitDrawing(code, "conn-1")
	room, _ := reg.Room(code)
	assert.Equal(t, internal.PhaseJudging, room.Phase())
}

// TestRoom_SubmitDrawing_OverwriteBeforeClose 測試截止前覆蓋提交
func TestRoom_SubmitDrawing_OverwriteBeforeClose(t *testing.T) {
	reg, b, code := setupStartedGame(t, nil, "conn-1", "conn-2")

	reg.SubmitDrawing(code, "conn-1", "draft")
	reg.SubmitDrawing(code, "conn-1", "final")
	reg.SubmitDrawing(code, "conn-2", "drawing-b")

	reveal, ok := b.last(internal.EventDrawingsRevealed)
	require.True(t, ok)
	assert.Equal(t, "final", drawingsOf(t, reveal)["conn-1"])
}

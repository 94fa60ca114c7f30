// Package drawinggame 提供了一個多人繪畫派對遊戲的伺服器端協調器。
//
// 實現了一個支援多房間、多玩家的即時繪畫評分遊戲服務器，包含以下核心功能：
//
// 房間管理系統
//
// 提供完整的房間生命週期管理：
//   - 以短代碼創建與加入房間
//   - 玩家名單與隊長（Leader）指派
//   - 隊長斷線自動遞補
//   - 空房間即時銷毀
//
// 回合引擎
//
// 由伺服器強制推進的回合狀態機：
//   - 每回合依主題目錄決定題目與提示
//   - 伺服器端截止計時器（可取消、可替換）
//   - 作品提交齊全即提前收卷
//   - 逾時玩家自動補入空白佔位圖
//
// 評審引擎
//
// 兩種互斥的評審模式（由配置選擇）：
//   - 評分模式：每位玩家為他人作品打 0-10 分，取平均
//   - 投票模式：每位玩家投一票，得票最高者（含並列）勝出
//
// # WebSocket 通訊
//
// 實現了即時雙向通訊機制：
//   - 每條連接一個雙向事件通道（房間範圍廣播 + 點對點回覆）
//   - 支援心跳檢測（Ping/Pong）
//   - 帶確認回調（ack）的請求/回應語義
//
// 併發安全設計
//
// 每個房間一把互斥鎖，所有針對房間的訊息處理皆為
// run-to-completion：單一訊息處理完畢前不會與其他訊息交錯，
// 房間狀態的變更因此天然序列化，無需更細粒度的鎖。
//
// 使用範例
//
// 啟動服務器：
//
//	registry := internal.NewRegistry(cfg, logger)
//	hub := internal.NewHub(registry, nil, logger)
//	registry.SetBroadcaster(hub)
//
//	mux := http.NewServeMux()
//	mux.Handle("/", internal.NewHandler(registry, logger).Routes())
//	mux.HandleFunc("GET /ws", hub.ServeWS)
//	log.Fatal(http.ListenAndServe(":3000", mux))
//
// 配置選項
//
// 支援多種運行時配置：
//   - -port：服務監聽端口（預設 3000）
//   - -config：YAML 配置檔路徑（主題目錄、回合時長、評審模式）
//   - -log-level：日誌級別（debug/info/warn/error）
//   - -log-format：日誌格式（text/json）
package drawinggame

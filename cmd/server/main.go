package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/koopa0/system-design/14-drawing-game/internal"
)

func main() {
	// 解析命令行參數
	var (
		configPath = flag.String("config", "", "YAML 配置檔路徑（空則用內建預設）")
		port       = flag.Int("port", 0, "服務器端口（覆蓋配置檔；預設 3000）")
		logLevel   = flag.String("log-level", "", "日誌級別 (debug, info, warn, error)")
		logFormat  = flag.String("log-format", "", "日誌格式 (text, json)")
	)
	flag.Parse()

	// 載入配置
	cfg := internal.DefaultConfig()
	if *configPath != "" {
		loaded, err := internal.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "載入配置失敗: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// 命令行覆蓋
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}

	// 設置日誌
	logger := setupLogger(cfg.Log.Level, cfg.Log.Format)

	// 創建房間註冊表
	registry := internal.NewRegistry(cfg, logger)

	// 可選的 NATS 事件鏡像
	var mirror *internal.Mirror
	if cfg.NATS.URL != "" {
		m, err := internal.NewMirror(cfg.NATS.URL, logger)
		if err != nil {
			logger.Error("連接 NATS 失敗，事件鏡像停用", "error", err)
		} else {
			mirror = m
			defer mirror.Close()
		}
	}

	// 創建 WebSocket Hub 並注入為廣播閘道
	hub := internal.NewHub(registry, mirror, logger)
	registry.SetBroadcaster(hub)

	// 創建 HTTP 處理器
	handler := internal.NewHandler(registry, logger)

	// 設置路由
	mux := http.NewServeMux()
	mux.Handle("/", handler.Routes())
	mux.HandleFunc("GET /ws", hub.ServeWS)

	// 創建 HTTP 服務器
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// 啟動服務器
	go func() {
		logger.Info("繪畫遊戲服務器啟動",
			"port", cfg.Server.Port,
			"judgment", cfg.Game.Judgment,
			"round_duration", cfg.Game.RoundDuration,
			"themes", len(cfg.Game.Themes))

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("服務器啟動失敗", "error", err)
			os.Exit(1)
		}
	}()

	// 等待中斷信號
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("收到關閉信號，開始優雅關閉...")

	// 優雅關閉
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("服務器關閉失敗", "error", err)
	}

	// 停止 WebSocket Hub 與房間註冊表
	hub.Stop()
	registry.Stop()

	logger.Info("服務器已關閉")
}

// setupLogger 設置日誌
func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: level == "debug",
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

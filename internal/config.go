package internal

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// JudgmentMode 評審模式
//
// 兩種模式互斥，由配置選擇（而非依玩家人數猜測哪種才「正確」）：
//   - rating：每位玩家為其他人的作品打 0-10 分，取平均
//   - voting：每位玩家投一票選最佳作品，得票最高者勝（並列保留）
type JudgmentMode string

const (
	ModeRating JudgmentMode = "rating"
	ModeVoting JudgmentMode = "voting"
)

// Config 整個應用的配置
type Config struct {
	Server struct {
		Port         int           `yaml:"port"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"server"`

	Game struct {
		// RoundDuration 每回合的繪畫時長
		RoundDuration time.Duration `yaml:"round_duration"`
		// Judgment 評審模式（rating / voting）
		Judgment JudgmentMode `yaml:"judgment"`
		// Themes 主題目錄；空則使用內建預設
		Themes Catalog `yaml:"themes"`
	} `yaml:"game"`

	NATS struct {
		// URL 事件鏡像的 NATS 連線位址；空字串表示停用
		URL string `yaml:"url"`
	} `yaml:"nats"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// DefaultConfig 返回預設配置
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.Port = 3000
	cfg.Server.ReadTimeout = 15 * time.Second
	cfg.Server.WriteTimeout = 15 * time.Second
	cfg.Game.RoundDuration = 120 * time.Second
	cfg.Game.Judgment = ModeRating
	cfg.Game.Themes = DefaultCatalog()
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return cfg
}

// LoadConfig 載入 YAML 配置檔，缺漏的欄位以預設值補齊
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	// #nosec G304 - path 來自命令列旗標，非未受信任的輸入
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate 驗證配置
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Game.RoundDuration <= 0 {
		return fmt.Errorf("round_duration must be positive")
	}
	switch c.Game.Judgment {
	case ModeRating, ModeVoting:
	default:
		return fmt.Errorf("invalid judgment mode: %q", c.Game.Judgment)
	}
	if len(c.Game.Themes) == 0 {
		c.Game.Themes = DefaultCatalog()
	}
	return nil
}

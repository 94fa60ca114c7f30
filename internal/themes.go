package internal

import "math/rand/v2"

// Theme 一個回合的主題
//
// Prompts 為可選的具體題目池；非空時每回合從中均勻隨機抽取一題，
// 空則為自由發揮回合（只有主題標籤、沒有具體題目）。
type Theme struct {
	Label   string   `yaml:"label" json:"label"`
	Prompts []string `yaml:"prompts,omitempty" json:"prompts,omitempty"`
}

// Catalog 主題目錄：有序的回合主題列表
//
// 回合索引的解析規則：
//   - 索引在目錄範圍內：返回該主題
//   - 索引超出目錄：主題、題目皆為 nil（加碼回合，玩家自由發揮）
//
// 加碼回合是刻意保留的行為：遊戲總共進行 len(catalog)+1 個回合，
// 但對外廣播的 total_rounds 維持 len(catalog)。
type Catalog []Theme

// DefaultCatalog 預設主題目錄
func DefaultCatalog() Catalog {
	return Catalog{
		{Label: "Animal"},
		{Label: "Anime"},
		{Label: "Sports"},
		{Label: "superhero"},
		{Label: "food"},
		{Label: "meme"},
		{Label: "country"},
		{Label: "FREE DRAW"},
	}
}

// TotalRounds 對外宣告的總回合數
func (c Catalog) TotalRounds() int {
	return len(c)
}

// Resolve 解析指定回合的主題標籤與題目
//
// 返回值為 nil 表示該欄位缺席（超出目錄的加碼回合沒有主題，
// 沒有題目池的主題沒有具體題目）。
func (c Catalog) Resolve(round int) (label, prompt *string) {
	if round < 0 || round >= len(c) {
		return nil, nil
	}

	theme := c[round]
	label = &theme.Label

	if len(theme.Prompts) > 0 {
		p := theme.Prompts[rand.IntN(len(theme.Prompts))]
		prompt = &p
	}

	return label, prompt
}

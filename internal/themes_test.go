package internal_test

import (
	"testing"

	"github.com/koopa0/system-design/14-drawing-game/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCatalog_Resolve 測試回合主題解析
func TestCatalog_Resolve(t *testing.T) {
	catalog := internal.Catalog{
		{Label: "Animal"},
		{Label: "food", Prompts: []string{"pizza"}},
	}

	tests := []struct {
		name       string
		round      int
		wantLabel  string
		wantPrompt string
		wantNil    bool
	}{
		{name: "plain theme", round: 0, wantLabel: "Animal"},
		{name: "theme with prompt pool", round: 1, wantLabel: "food", wantPrompt: "pizza"},
		{name: "bonus round past catalog", round: 2, wantNil: true},
		{name: "negative round", round: -1, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, prompt := catalog.Resolve(tt.round)

			if tt.wantNil {
				assert.Nil(t, label)
				assert.Nil(t, prompt)
				return
			}

			require.NotNil(t, label)
			assert.Equal(t, tt.wantLabel, *label)
			if tt.wantPrompt != "" {
				require.NotNil(t, prompt)
				assert.Equal(t, tt.wantPrompt, *prompt)
			} else {
				assert.Nil(t, prompt)
			}
		})
	}
}

// TestCatalog_Resolve_PromptPool 題目從池中均勻抽取
func TestCatalog_Resolve_PromptPool(t *testing.T) {
	catalog := internal.Catalog{
		{Label: "food", Prompts: []string{"pizza", "sushi", "ramen"}},
	}

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		_, prompt := catalog.Resolve(0)
		require.NotNil(t, prompt)
		assert.Contains(t, catalog[0].Prompts, *prompt)
		seen[*prompt] = true
	}

	// 200 次抽取後三個題目都該出現過
	assert.Len(t, seen, 3)
}

// TestDefaultCatalog 預設目錄的形狀
func TestDefaultCatalog(t *testing.T) {
	catalog := internal.DefaultCatalog()

	assert.Equal(t, 8, catalog.TotalRounds())
	assert.Equal(t, "Animal", catalog[0].Label)
	assert.Equal(t, "FREE DRAW", catalog[len(catalog)-1].Label)
}

package internal

import "fmt"

// 定義錯誤碼
//
// 錯誤處理策略（對應三類失敗）：
//   - VALIDATION_ERROR / NOT_FOUND：透過 ack 回調回給呼叫者，不廣播
//   - 越權操作（非隊長執行隊長動作、狀態外的動作）：靜默忽略，
//     不回錯誤也不改狀態（客戶端 UI 負責把關）
//   - 數值異常（非數字評分）：強制轉換而非拒絕
const (
	// ErrCodeValidation 輸入驗證失敗
	ErrCodeValidation = "VALIDATION_ERROR"
	// ErrCodeNotFound 資源未找到
	ErrCodeNotFound = "NOT_FOUND"
)

// AppError 應用程式錯誤
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error 實現 error 介面
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Is 實現 errors.Is
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New 創建新的應用程式錯誤
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// 預定義錯誤
var (
	// ErrNameRequired 顯示名稱為必填
	ErrNameRequired = New(ErrCodeValidation, "username required")

	// ErrRoomNotFound 房間不存在
	ErrRoomNotFound = New(ErrCodeNotFound, "room not found")
)

package service

import "errors"

// 服務層的錯誤分類
// Unauthorized / Conflict / Validation / NotFound 皆以哨兵錯誤表示，
// 其他由儲存層或傳輸層傳上來的錯誤一律視為執行期失敗
var (
	ErrUnauthorized = errors.New("沒有權限執行此操作")

	ErrRoomNotFound = errors.New("房間不存在")
	ErrRoomClosed   = errors.New("房間不存在或已關閉")
	ErrPollNotFound = errors.New("題目不存在")

	ErrPollActive   = errors.New("此房間已有進行中的投票")
	ErrPollMismatch = errors.New("沒有進行中的投票或題目編號不符")
	ErrAlreadyVoted = errors.New("您已經投過票或投票已結束")
	ErrNameTaken    = errors.New("此名稱已有人使用")

	ErrEmptyQuestion = errors.New("題目內容不可為空")
	ErrInvalidOption = errors.New("無效的選項")
	ErrEmptyName     = errors.New("顯示名稱不可為空")
	ErrInvalidTimer  = errors.New("投票時長超出允許範圍")

	ErrRoomCodeExhausted = errors.New("無法產生不重複的房間代碼")
)

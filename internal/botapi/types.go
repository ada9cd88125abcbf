// Package botapi はTelegram Bot APIのクライアントを提供する。
// 会話エンジンが必要とする更新取得・メッセージ送信・ファイル取得の
// サブセットのみを実装する。
package botapi

// Update はBot APIから受信する更新イベント。
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// Message はチャットメッセージ。
// 画像付きメッセージのテキストはTextでなくCaptionに入る。
type Message struct {
	MessageID int64       `json:"message_id"`
	Chat      Chat        `json:"chat"`
	Text      string      `json:"text,omitempty"`
	Caption   string      `json:"caption,omitempty"`
	Photo     []PhotoSize `json:"photo,omitempty"`
}

// Chat は会話の単位。1対1の会話ではチャットIDが送信者を一意に識別する。
type Chat struct {
	ID int64 `json:"id"`
}

// PhotoSize は画像の1解像度分のメタデータ。
type PhotoSize struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int64  `json:"file_size,omitempty"`
}

// CallbackQuery はインラインキーボードのボタン押下イベント。
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    Chat     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

// File はBot APIが管理するファイルのメタデータ。
// FilePathはダウンロードURLの構築に使用する。
type File struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size,omitempty"`
	FilePath string `json:"file_path,omitempty"`
}

// UserProfilePhotos はユーザーのプロフィール画像一覧。
// Photosの各要素は同一画像の解像度バリエーション。
type UserProfilePhotos struct {
	TotalCount int           `json:"total_count"`
	Photos     [][]PhotoSize `json:"photos"`
}

// InlineKeyboardMarkup はメッセージに添付するインラインキーボード。
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// InlineKeyboardButton はインラインキーボードのボタン。
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
}

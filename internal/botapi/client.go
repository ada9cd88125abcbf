package botapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
)

// defaultBaseURL はTelegram Bot APIのベースURL。
const defaultBaseURL = "https://api.telegram.org"

// Client はBot APIのクライアント。
// メソッド呼び出し用とファイルダウンロード用でHTTPクライアントを分離する。
// ダウンロードURLはAPIレスポンス由来の文字列から組み立てるため、
// fileClientにはSSRF防止付きクライアントを渡すこと。
type Client struct {
	httpClient  *http.Client
	fileClient  *http.Client
	token       string
	logger      *slog.Logger
	baseURL     string // テスト用にエンドポイントを差し替え可能
	maxFileSize int64
	validateURL func(rawURL string) error
}

// NewClient はClient の新しいインスタンスを生成する。
// validateURLはダウンロードURLの事前検証関数（nil可）。
func NewClient(httpClient, fileClient *http.Client, token string, maxFileSize int64, validateURL func(string) error, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient:  httpClient,
		fileClient:  fileClient,
		token:       token,
		logger:      logger,
		baseURL:     defaultBaseURL,
		maxFileSize: maxFileSize,
		validateURL: validateURL,
	}
}

// SetBaseURL はAPIのベースURLを差し替える。テストとセルフホスト環境用。
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// apiResponse はBot APIの共通レスポンスエンベロープ。
type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// call はBot APIメソッドを呼び出し、resultフィールドをoutへデコードする。
// outがnilの場合はresultを読み捨てる。
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)

	var body io.Reader
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("リクエストパラメータのエンコードに失敗しました: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	if params != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Bot APIの呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("Bot APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	if !envelope.OK {
		c.logger.Error("Bot APIがエラーを返しました",
			slog.String("method", method),
			slog.Int("http_status", resp.StatusCode),
			slog.String("description", envelope.Description),
		)
		return fmt.Errorf("Bot APIエラー (%s): %s", method, envelope.Description)
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("resultフィールドのパースに失敗しました: %w", err)
		}
	}

	return nil
}

// GetUpdates はロングポーリングで更新を取得する。
// timeoutSecの間サーバー側で更新を待ち、無ければ空スライスを返す。
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]Update, error) {
	params := map[string]any{
		"offset":  offset,
		"timeout": timeoutSec,
	}

	var updates []Update
	if err := c.call(ctx, "getUpdates", params, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SendMessage は指定チャットへテキストメッセージを送信する。
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	params := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	return c.call(ctx, "sendMessage", params, nil)
}

// SendMessageWithKeyboard はインラインキーボード付きのメッセージを送信する。
func (c *Client) SendMessageWithKeyboard(ctx context.Context, chatID int64, text string, keyboard InlineKeyboardMarkup) error {
	params := map[string]any{
		"chat_id":      chatID,
		"text":         text,
		"reply_markup": keyboard,
	}
	return c.call(ctx, "sendMessage", params, nil)
}

// AnswerCallback はコールバッククエリに応答し、クライアント側の
// ローディング表示を解除する。
func (c *Client) AnswerCallback(ctx context.Context, callbackID string) error {
	params := map[string]any{
		"callback_query_id": callbackID,
	}
	return c.call(ctx, "answerCallbackQuery", params, nil)
}

// GetFile はファイルIDからダウンロード用のファイルメタデータを取得する。
func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	params := map[string]any{
		"file_id": fileID,
	}

	var file File
	if err := c.call(ctx, "getFile", params, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

// OpenFile は指定ファイルIDのダウンロードストリームを開く。
// ダウンロードURLはAPIレスポンスのfile_pathから組み立てるため、
// 事前検証を通してからfileClient経由でアクセスする。
// 返却ストリームはmaxFileSizeで打ち切られる。
func (c *Client) OpenFile(ctx context.Context, fileID string) (io.ReadCloser, error) {
	file, err := c.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.FilePath == "" {
		return nil, fmt.Errorf("file_pathが空です: file_id=%s", fileID)
	}

	downloadURL := fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, file.FilePath)
	if c.validateURL != nil {
		if err := c.validateURL(downloadURL); err != nil {
			c.logger.Error("ダウンロードURLの検証に失敗しました",
				slog.String("error", err.Error()),
			)
			return nil, fmt.Errorf("ダウンロードURLの検証に失敗しました: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	resp, err := c.fileClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ファイルのダウンロードに失敗しました: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("ファイルダウンロードがステータス %d を返しました", resp.StatusCode)
	}

	return &limitedReadCloser{
		r: io.LimitReader(resp.Body, c.maxFileSize),
		c: resp.Body,
	}, nil
}

// OpenProfilePhoto は指定チャットの現在のプロフィール画像のストリームを開く。
// プロフィール画像が設定されていない場合はnilを返す。
// 複数解像度のうち最も画素数の多いものを選択する。
func (c *Client) OpenProfilePhoto(ctx context.Context, chatID int64) (io.ReadCloser, error) {
	params := map[string]any{
		"user_id": strconv.FormatInt(chatID, 10),
		"limit":   1,
	}

	var photos UserProfilePhotos
	if err := c.call(ctx, "getUserProfilePhotos", params, &photos); err != nil {
		return nil, err
	}

	if photos.TotalCount == 0 || len(photos.Photos) == 0 || len(photos.Photos[0]) == 0 {
		return nil, nil
	}

	sizes := photos.Photos[0]
	best := sizes[0]
	for _, p := range sizes[1:] {
		if p.Width*p.Height > best.Width*best.Height {
			best = p
		}
	}

	return c.OpenFile(ctx, best.FileID)
}

// limitedReadCloser はLimitReaderと元ストリームのCloseを束ねる。
type limitedReadCloser struct {
	r io.Reader
	c io.Closer
}

func (l *limitedReadCloser) Read(p []byte) (int, error) { return l.r.Read(p) }
func (l *limitedReadCloser) Close() error               { return l.c.Close() }

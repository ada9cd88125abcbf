package chat

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/cardquest/internal/avatar"
	"github.com/hitoshi/cardquest/internal/botapi"
	"github.com/hitoshi/cardquest/internal/model"
	"github.com/hitoshi/cardquest/internal/register"
)

// callbackUseProfilePhoto はプロフィール画像選択ボタンのコールバックデータ。
const callbackUseProfilePhoto = "use_profile_photo"

// ユーザー向け返信テキスト
const (
	textHelp = `カード登録ボットです。

/register <トークン> - カード登録を開始
/cancel - 登録を中断
/createquest <クエスト名> <ユーザー名> - クエストを割り当て
/acknowledge <クエストID> - クエストを完了
/help - このヘルプを表示`

	textStart            = "ようこそ。カードに記載された8文字のトークンで /register <トークン> と入力してください。"
	textInvalidToken     = "トークンは8文字です。カードに記載されたトークンを確認してください。"
	textTokenNotFound    = "このトークンに対応する仮登録が見つかりません。トークンを確認してもう一度入力してください。"
	textAskUsername      = "カードを確認しました。使用するユーザー名を入力してください。"
	textUsernameEmpty    = "そのユーザー名は使用できません。別の名前を入力してください。"
	textUsernameTaken    = "そのユーザー名は既に使用されています。別の名前を入力してください。"
	textAskAvatar        = "アバターにする画像を送信してください。プロフィール画像を使うこともできます。"
	textAvatarReprompt   = "画像を送信するか、ボタンでプロフィール画像を選択してください。"
	textNoProfilePhoto   = "プロフィール画像が設定されていません。画像を直接送信してください。"
	textRegisterComplete = "登録が完了しました。ゲームへようこそ！"
	textUsernameConflict = "そのユーザー名は直前に使用されました。別のユーザー名を入力してください。"
	textFinalizeFailed   = "登録処理でエラーが発生しました。もう一度画像を送信してください。"
	textCancelled        = "登録を中断しました。最初からやり直すには /register <トークン> と入力してください。"
	textUnknownCommand   = "認識できないコマンドです。/help で使い方を確認できます。"
	textLookupFailed     = "確認中にエラーが発生しました。もう一度入力してください。"
)

// Registrar は登録ワークフローの操作インターフェース。
type Registrar interface {
	Consume(ctx context.Context, token string) (*model.StagedUser, error)
	NormalizeUsername(raw string) string
	IsUsernameTaken(ctx context.Context, username string) (bool, error)
	FinalizeWithUpload(ctx context.Context, in register.FinalizeInput, photos []avatar.Photo) error
	FinalizeWithProfilePhoto(ctx context.Context, in register.FinalizeInput) error
}

// QuestKeeper はクエスト割り当ての操作インターフェース。
type QuestKeeper interface {
	CreateQuest(ctx context.Context, questName, assigneeUsername string) (*model.Quest, error)
	AcknowledgeQuest(ctx context.Context, questID string) (*model.Quest, error)
}

// Messenger はユーザーへの返信送信インターフェース。
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendMessageWithKeyboard(ctx context.Context, chatID int64, text string, keyboard botapi.InlineKeyboardMarkup) error
	AnswerCallback(ctx context.Context, callbackID string) error
}

// MetricsRecorder は会話エンジンのメトリクス記録インターフェース。
type MetricsRecorder interface {
	DialogueTransition(from, to string)
	RegistrationCompleted()
	RegistrationCancelled()
}

// noopMetrics はメトリクス未設定時のプレースホルダー。
type noopMetrics struct{}

func (noopMetrics) DialogueTransition(from, to string) {}
func (noopMetrics) RegistrationCompleted()             {}
func (noopMetrics) RegistrationCancelled()             {}

// Engine は会話ごとの登録フローを駆動する状態機械。
// 1会話のイベントは順序通り・重複なしで届く前提（ポーラーが保証する）のため、
// エンジン自体は会話単位のロックを持たない。
type Engine struct {
	sessions  SessionStore
	registrar Registrar
	quests    QuestKeeper
	messenger Messenger
	metrics   MetricsRecorder
	logger    *slog.Logger
}

// NewEngine はEngineの新しいインスタンスを生成する。metricsはnil可。
func NewEngine(
	sessions SessionStore,
	registrar Registrar,
	quests QuestKeeper,
	messenger Messenger,
	metrics MetricsRecorder,
	logger *slog.Logger,
) *Engine {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		sessions:  sessions,
		registrar: registrar,
		quests:    quests,
		messenger: messenger,
		metrics:   metrics,
		logger:    logger,
	}
}

// stateName はメトリクスラベル用の状態名を返す。
func stateName(s StateKind) string {
	switch s {
	case StateStartRegister:
		return "start_register"
	case StateGetUsername:
		return "get_username"
	case StateGetAvatar:
		return "get_avatar"
	default:
		return "unknown"
	}
}

// transition はセッションを次状態へ保存し、遷移メトリクスを記録する。
func (e *Engine) transition(chatID int64, from StateKind, next Session) {
	e.sessions.Put(chatID, next)
	e.metrics.DialogueTransition(stateName(from), stateName(next.State))
}

// HandleUpdate は1件の更新イベントを処理する。
// 返信送信の失敗はログに記録するのみで、状態遷移自体は巻き戻さない。
func (e *Engine) HandleUpdate(ctx context.Context, update botapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		e.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		e.handleMessage(ctx, update.Message)
	}
}

func (e *Engine) handleMessage(ctx context.Context, msg *botapi.Message) {
	chatID := msg.Chat.ID
	sess := e.sessions.GetOrDefault(chatID)

	// 画像付きメッセージのテキストはCaptionに入る。
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	cmd := ParseCommand(text)

	// コマンドは画像ペイロードより優先する。
	// 「/cancelをキャプションに付けた画像」が登録を確定させてはならない。
	// コマンドでないキャプション付き画像はアバター入力として扱う。
	if len(msg.Photo) > 0 && cmd.Kind == CommandNone {
		e.handlePhoto(ctx, chatID, sess, msg.Photo)
		return
	}

	switch cmd.Kind {
	case CommandHelp:
		e.reply(ctx, chatID, textHelp)

	case CommandCancel:
		e.handleCancel(ctx, chatID)

	case CommandAcknowledge:
		e.handleAcknowledge(ctx, chatID, cmd.Args)

	case CommandCreateQuest:
		e.handleCreateQuest(ctx, chatID, cmd.Args)

	case CommandStart:
		if sess.State == StateStartRegister {
			e.reply(ctx, chatID, textStart)
		}

	case CommandRegister:
		if sess.State == StateStartRegister {
			e.handleRegister(ctx, chatID, sess, cmd.Args)
		}

	case CommandUnknown:
		// 未知のスラッシュコマンドをユーザー名やアバター入力として
		// 誤処理しないよう、状態を変えずに案内だけ返す。
		e.reply(ctx, chatID, textUnknownCommand)

	case CommandNone:
		e.handleText(ctx, chatID, sess, text)
	}
}

// handleRegister はStartRegister状態での/registerを処理する。
func (e *Engine) handleRegister(ctx context.Context, chatID int64, sess Session, args []string) {
	if len(args) != 1 || len(args[0]) != model.TokenLength {
		e.reply(ctx, chatID, textInvalidToken)
		return
	}
	token := args[0]

	staged, err := e.registrar.Consume(ctx, token)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Kind == model.ErrKindInvalidFormat {
			e.reply(ctx, chatID, textInvalidToken)
			return
		}
		e.logger.Error("仮登録の消費に失敗しました",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
		e.reply(ctx, chatID, textLookupFailed)
		return
	}
	if staged == nil {
		e.reply(ctx, chatID, textTokenNotFound)
		return
	}

	e.transition(chatID, sess.State, Session{
		State:    StateGetUsername,
		ID:       staged.ID,
		CardHash: staged.CardHash,
	})
	e.reply(ctx, chatID, textAskUsername)
}

// handleText は自由テキスト入力を現在状態に応じて処理する。
func (e *Engine) handleText(ctx context.Context, chatID int64, sess Session, text string) {
	switch sess.State {
	case StateGetUsername:
		e.handleUsername(ctx, chatID, sess, text)
	case StateGetAvatar:
		e.reply(ctx, chatID, textAvatarReprompt)
	default:
		// StartRegisterでの自由テキストは対応する遷移が無いため何もしない
	}
}

// handleUsername はGetUsername状態でのユーザー名入力を処理する。
func (e *Engine) handleUsername(ctx context.Context, chatID int64, sess Session, text string) {
	username := e.registrar.NormalizeUsername(text)
	if username == "" {
		e.reply(ctx, chatID, textUsernameEmpty)
		return
	}

	taken, err := e.registrar.IsUsernameTaken(ctx, username)
	if err != nil {
		e.logger.Error("ユーザー名の確認に失敗しました",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
		e.reply(ctx, chatID, textLookupFailed)
		return
	}
	if taken {
		e.reply(ctx, chatID, textUsernameTaken)
		return
	}

	next := sess
	next.State = StateGetAvatar
	next.Username = username
	e.transition(chatID, sess.State, next)

	keyboard := botapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]botapi.InlineKeyboardButton{
			{{Text: "プロフィール画像を使う", CallbackData: callbackUseProfilePhoto}},
		},
	}
	if err := e.messenger.SendMessageWithKeyboard(ctx, chatID, textAskAvatar, keyboard); err != nil {
		e.logger.Error("返信の送信に失敗しました",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}
}

// handlePhoto はGetAvatar状態での画像アップロードを処理する。
// それ以外の状態では対応する遷移が無いため何もしない。
func (e *Engine) handlePhoto(ctx context.Context, chatID int64, sess Session, photos []botapi.PhotoSize) {
	if sess.State != StateGetAvatar {
		return
	}

	converted := make([]avatar.Photo, 0, len(photos))
	for _, p := range photos {
		converted = append(converted, avatar.Photo{
			FileID:   p.FileID,
			Width:    p.Width,
			Height:   p.Height,
			FileSize: p.FileSize,
		})
	}

	err := e.registrar.FinalizeWithUpload(ctx, e.finalizeInput(chatID, sess), converted)
	e.afterFinalize(ctx, chatID, sess, err)
}

// handleCallback はインラインキーボードのボタン押下を処理する。
func (e *Engine) handleCallback(ctx context.Context, cb *botapi.CallbackQuery) {
	if err := e.messenger.AnswerCallback(ctx, cb.ID); err != nil {
		e.logger.Error("コールバック応答に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	chatID := cb.From.ID
	if cb.Message != nil {
		chatID = cb.Message.Chat.ID
	}

	sess := e.sessions.GetOrDefault(chatID)
	if cb.Data != callbackUseProfilePhoto || sess.State != StateGetAvatar {
		return
	}

	err := e.registrar.FinalizeWithProfilePhoto(ctx, e.finalizeInput(chatID, sess))
	if errors.Is(err, avatar.ErrNoProfilePhoto) {
		e.reply(ctx, chatID, textNoProfilePhoto)
		return
	}
	e.afterFinalize(ctx, chatID, sess, err)
}

func (e *Engine) finalizeInput(chatID int64, sess Session) register.FinalizeInput {
	return register.FinalizeInput{
		CardHash: sess.CardHash,
		ID:       sess.ID,
		Username: sess.Username,
		ChatID:   chatID,
	}
}

// afterFinalize は本登録確定の結果に応じてセッションを遷移させる。
// 成功で完了、ユーザー名の競合はGetUsernameへ戻し、
// それ以外の失敗はGetAvatarに留めて再試行を促す。
func (e *Engine) afterFinalize(ctx context.Context, chatID int64, sess Session, err error) {
	if err == nil {
		e.sessions.Delete(chatID)
		e.metrics.DialogueTransition(stateName(sess.State), "completed")
		e.metrics.RegistrationCompleted()
		e.reply(ctx, chatID, textRegisterComplete)
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Kind == model.ErrKindConflict {
		// 事前チェック後に同名ユーザーが確定した競合。挿入は制約で拒否され、
		// 書き込み済みアバターは補償削除されているため、名前から取り直す。
		next := sess
		next.State = StateGetUsername
		next.Username = ""
		e.transition(chatID, sess.State, next)
		e.reply(ctx, chatID, textUsernameConflict)
		return
	}

	e.logger.Error("本登録の確定に失敗しました",
		slog.Int64("chat_id", chatID),
		slog.String("error", err.Error()),
	)
	e.reply(ctx, chatID, textFinalizeFailed)
}

// handleCancel はセッションを無条件に破棄する。
func (e *Engine) handleCancel(ctx context.Context, chatID int64) {
	e.sessions.Delete(chatID)
	e.metrics.RegistrationCancelled()
	e.reply(ctx, chatID, textCancelled)
}

// reply はテキストメッセージを返信する。送信失敗はログに記録するのみ。
func (e *Engine) reply(ctx context.Context, chatID int64, text string) {
	if err := e.messenger.SendMessage(ctx, chatID, text); err != nil {
		e.logger.Error("返信の送信に失敗しました",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}
}

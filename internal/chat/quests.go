package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// クエストコマンドの返信テキスト
const (
	textCreateQuestUsage  = "使い方: /createquest <クエスト名> <ユーザー名>"
	textAcknowledgeUsage  = "使い方: /acknowledge <クエストID>"
	textAssigneeNotFound  = "指定されたユーザー名のプレイヤーが見つかりません。"
	textQuestNotFound     = "指定されたIDのクエストが見つかりません。"
	textQuestActionFailed = "クエスト処理でエラーが発生しました。しばらくしてからもう一度お試しください。"
)

// handleCreateQuest は/createquestコマンドを処理する。
// クエストコマンドは登録フローの状態に関係なく実行でき、
// セッションの状態は変更しない。
func (e *Engine) handleCreateQuest(ctx context.Context, chatID int64, args []string) {
	if len(args) < 2 {
		e.reply(ctx, chatID, textCreateQuestUsage)
		return
	}

	// 最後の引数を割り当て先、残りをクエスト名として扱う。
	// クエスト名に空白を含められる。
	assignee := args[len(args)-1]
	questName := strings.Join(args[:len(args)-1], " ")

	quest, err := e.quests.CreateQuest(ctx, questName, assignee)
	if err != nil {
		e.logger.Error("クエストの作成に失敗しました",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
		e.reply(ctx, chatID, textQuestActionFailed)
		return
	}
	if quest == nil {
		e.reply(ctx, chatID, textAssigneeNotFound)
		return
	}

	e.reply(ctx, chatID, fmt.Sprintf(
		"クエスト「%s」を %s に割り当てました。\n完了するには /acknowledge %s と入力してください。",
		quest.QuestName, assignee, quest.ID))
}

// handleAcknowledge は/acknowledgeコマンドを処理する。
func (e *Engine) handleAcknowledge(ctx context.Context, chatID int64, args []string) {
	if len(args) != 1 {
		e.reply(ctx, chatID, textAcknowledgeUsage)
		return
	}

	quest, err := e.quests.AcknowledgeQuest(ctx, args[0])
	if err != nil {
		e.logger.Error("クエストの完了に失敗しました",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
		e.reply(ctx, chatID, textQuestActionFailed)
		return
	}
	if quest == nil {
		e.reply(ctx, chatID, textQuestNotFound)
		return
	}

	e.reply(ctx, chatID, fmt.Sprintf("クエスト「%s」を完了しました。", quest.QuestName))
}

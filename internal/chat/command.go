// Package chat は登録ダイアログの会話エンジンを提供する。
// 会話ごとの有限状態機械、コマンドパーサー、更新ポーラーを含む。
package chat

import "strings"

// CommandKind はコマンドの種別。
type CommandKind int

const (
	// CommandNone はコマンドでない入力（自由テキスト等）。
	CommandNone CommandKind = iota
	CommandHelp
	CommandStart
	CommandRegister
	CommandCancel
	CommandAcknowledge
	CommandCreateQuest
	// CommandUnknown はスラッシュで始まるが認識できないコマンド。
	CommandUnknown
)

// Command はパース済みのコマンド。
type Command struct {
	Kind CommandKind
	// Args はコマンド語に続く引数。/register のトークン等。
	Args []string
}

// ParseCommand はメッセージテキストをコマンドへパースする。
// コマンド語は大文字小文字を区別せず、"@botname"サフィックスを無視する。
// スラッシュで始まらない入力はCommandNoneとして返し、
// 状態機械側で自由テキストとして扱う。
func ParseCommand(text string) Command {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return Command{Kind: CommandNone}
	}

	fields := strings.Fields(trimmed)
	word := strings.ToLower(fields[0])

	// グループチャットでは "/register@botname" の形式になる
	if i := strings.Index(word, "@"); i >= 0 {
		word = word[:i]
	}

	args := fields[1:]

	switch word {
	case "/help":
		return Command{Kind: CommandHelp, Args: args}
	case "/start":
		return Command{Kind: CommandStart, Args: args}
	case "/register":
		return Command{Kind: CommandRegister, Args: args}
	case "/cancel":
		return Command{Kind: CommandCancel, Args: args}
	case "/acknowledge":
		return Command{Kind: CommandAcknowledge, Args: args}
	case "/createquest":
		return Command{Kind: CommandCreateQuest, Args: args}
	default:
		return Command{Kind: CommandUnknown, Args: args}
	}
}

package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/cardquest/internal/botapi"
)

const (
	// workerQueueSize は会話ごとの更新キューの容量。
	workerQueueSize = 16
	// workerIdleTimeout はアイドル状態のワーカーを回収するまでの時間。
	workerIdleTimeout = 2 * time.Minute
	// pollRetryDelay は更新取得失敗後の再試行間隔。
	pollRetryDelay = 3 * time.Second
)

// UpdateSource は更新イベントの取得元インターフェース。
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]botapi.Update, error)
}

// UpdateHandler は更新イベントの処理インターフェース。
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update botapi.Update)
}

// Poller はロングポーリングで更新を取得し、会話ごとのワーカーへ振り分ける。
//
// 同一会話の更新は同じワーカーが順番に処理するため、会話内の順序は保たれる。
// 会話をまたぐ処理は並行に走り、全体の同時実行数はセマフォで制限される。
// 低速な画像取得が1会話で発生しても他の会話の処理は止まらない。
type Poller struct {
	source        UpdateSource
	handler       UpdateHandler
	logger        *slog.Logger
	pollTimeout   time.Duration
	maxConcurrent int

	mu      sync.Mutex
	workers map[int64]chan botapi.Update
	sem     chan struct{}
	wg      sync.WaitGroup
}

// NewPoller はPollerの新しいインスタンスを生成する。
func NewPoller(source UpdateSource, handler UpdateHandler, pollTimeout time.Duration, maxConcurrent int, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Poller{
		source:        source,
		handler:       handler,
		logger:        logger,
		pollTimeout:   pollTimeout,
		maxConcurrent: maxConcurrent,
		workers:       make(map[int64]chan botapi.Update),
		sem:           make(chan struct{}, maxConcurrent),
	}
}

// Run は更新取得ループを開始し、コンテキストのキャンセルまでブロックする。
// 停止時は全ワーカーの終了を待ってから戻る。
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("更新ポーラーを開始します",
		slog.Int("max_concurrent", p.maxConcurrent),
	)

	var offset int64
	for {
		select {
		case <-ctx.Done():
			p.wg.Wait()
			p.logger.Info("更新ポーラーを停止しました")
			return
		default:
		}

		updates, err := p.source.GetUpdates(ctx, offset, int(p.pollTimeout.Seconds()))
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Error("更新の取得に失敗しました",
				slog.String("error", err.Error()),
			)
			select {
			case <-ctx.Done():
			case <-time.After(pollRetryDelay):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			p.dispatch(ctx, update)
		}
	}
}

// chatIDForUpdate は更新イベントの属する会話IDを返す。
func chatIDForUpdate(update botapi.Update) (int64, bool) {
	switch {
	case update.Message != nil:
		return update.Message.Chat.ID, true
	case update.CallbackQuery != nil:
		if update.CallbackQuery.Message != nil {
			return update.CallbackQuery.Message.Chat.ID, true
		}
		return update.CallbackQuery.From.ID, true
	default:
		return 0, false
	}
}

// dispatch は更新を会話ごとのワーカーキューへ投入する。
// キューが満杯の場合は更新を破棄する（ブロックするとポーリングループ全体が
// 1会話に引きずられるため）。
func (p *Poller) dispatch(ctx context.Context, update botapi.Update) {
	chatID, ok := chatIDForUpdate(update)
	if !ok {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, exists := p.workers[chatID]
	if !exists {
		ch = make(chan botapi.Update, workerQueueSize)
		p.workers[chatID] = ch
		p.wg.Add(1)
		go p.worker(ctx, chatID, ch)
	}

	select {
	case ch <- update:
	default:
		p.logger.Warn("会話の更新キューが満杯のため更新を破棄しました",
			slog.Int64("chat_id", chatID),
			slog.Int64("update_id", update.UpdateID),
		)
	}
}

// worker は1会話分の更新を順番に処理する。
// 一定時間アイドルが続いたらキューが空であることを確認して自身を回収する。
func (p *Poller) worker(ctx context.Context, chatID int64, ch chan botapi.Update) {
	defer p.wg.Done()

	idle := time.NewTimer(workerIdleTimeout)
	defer idle.Stop()

	for {
		select {
		case update := <-ch:
			p.sem <- struct{}{}
			p.handler.HandleUpdate(ctx, update)
			<-p.sem

			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(workerIdleTimeout)

		case <-idle.C:
			// dispatchは登録済みワーカーのキューへロック下で投入するため、
			// 回収判定も同じロック下でキューの空を確認する。
			p.mu.Lock()
			if len(ch) == 0 {
				delete(p.workers, chatID)
				p.mu.Unlock()
				return
			}
			p.mu.Unlock()
			idle.Reset(workerIdleTimeout)

		case <-ctx.Done():
			p.mu.Lock()
			delete(p.workers, chatID)
			p.mu.Unlock()
			return
		}
	}
}

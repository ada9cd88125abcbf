package avatar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// ErrNoProfilePhoto はチャットプラットフォーム側にプロフィール画像が
// 設定されていない場合のセンチネルエラー。呼び出し側はアップロード経路への
// 切り替えをユーザーに案内する。
var ErrNoProfilePhoto = errors.New("プロフィール画像が設定されていません")

// Photo はアップロードされた画像の1解像度分を表す。
// チャットプラットフォームは同一画像を複数解像度で提示することがある。
type Photo struct {
	FileID   string
	Width    int
	Height   int
	FileSize int64
}

// FileSource はチャットプラットフォームからの画像ストリーム取得インターフェース。
type FileSource interface {
	// OpenFile は指定ファイルIDのダウンロードストリームを開く。
	OpenFile(ctx context.Context, fileID string) (io.ReadCloser, error)

	// OpenProfilePhoto は指定チャットの現在のプロフィール画像のストリームを開く。
	// プロフィール画像が設定されていない場合はnilを返す。
	OpenProfilePhoto(ctx context.Context, chatID int64) (io.ReadCloser, error)
}

// Service はアバター取り込みのサービス層。
// 入口は2経路（直接アップロード・プロフィール画像のリモート取得）だが、
// どちらも「成功を返す前にアセットを完全に書き切る」という同じ契約を持つ。
type Service struct {
	store  Store
	files  FileSource
	logger *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(store Store, files FileSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		files:  files,
		logger: logger,
	}
}

// IngestUpload はアップロードされた画像をアセットとして書き込む。
// 複数解像度が提示された場合は最も画素数の多いものを選択する。
func (s *Service) IngestUpload(ctx context.Context, cardHash string, photos []Photo) error {
	if len(photos) == 0 {
		return fmt.Errorf("no photo provided")
	}

	best := photos[0]
	for _, p := range photos[1:] {
		if p.Width*p.Height > best.Width*best.Height {
			best = p
		}
	}

	rc, err := s.files.OpenFile(ctx, best.FileID)
	if err != nil {
		return fmt.Errorf("アップロード画像の取得に失敗しました: %w", err)
	}
	defer rc.Close()

	if err := s.store.WriteFrom(cardHash, rc); err != nil {
		return fmt.Errorf("アバターアセットの書き込みに失敗しました: %w", err)
	}

	s.logger.Info("アバターを取り込みました",
		slog.String("path", "upload"),
		slog.String("file_id", best.FileID),
	)

	return nil
}

// IngestProfilePhoto はチャットプラットフォーム上のプロフィール画像を
// リモート取得してアセットとして書き込む。
// プロフィール画像が無い場合はErrNoProfilePhotoを返す。
func (s *Service) IngestProfilePhoto(ctx context.Context, cardHash string, chatID int64) error {
	rc, err := s.files.OpenProfilePhoto(ctx, chatID)
	if err != nil {
		return fmt.Errorf("プロフィール画像の取得に失敗しました: %w", err)
	}
	if rc == nil {
		return ErrNoProfilePhoto
	}
	defer rc.Close()

	if err := s.store.WriteFrom(cardHash, rc); err != nil {
		return fmt.Errorf("アバターアセットの書き込みに失敗しました: %w", err)
	}

	s.logger.Info("アバターを取り込みました",
		slog.String("path", "profile_photo"),
		slog.Int64("chat_id", chatID),
	)

	return nil
}

// Remove はアセットを削除する。本登録の失敗時の補償処理として使用する。
func (s *Service) Remove(cardHash string) error {
	return s.store.Remove(cardHash)
}

// Open はアセットの読み取りストリームを返す。存在しない場合はnilを返す。
func (s *Service) Open(cardHash string) (io.ReadCloser, error) {
	return s.store.Open(cardHash)
}

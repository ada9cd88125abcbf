// Package register は登録ワークフローのサービス層を提供する。
// 仮登録の作成と消費、ユーザー名の検証、本登録の確定を担当する。
package register

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/cardquest/internal/avatar"
	"github.com/hitoshi/cardquest/internal/model"
	"github.com/hitoshi/cardquest/internal/repository"
	"github.com/hitoshi/cardquest/internal/security"
)

// FinalizeInput は本登録の確定に必要な入力。
// IDとCardHashは仮登録レコード由来、Usernameは一意性チェック済みの値。
type FinalizeInput struct {
	CardHash string
	ID       string
	Username string
	ChatID   int64
}

// AvatarIngestor はアバター取り込みのインターフェース。
type AvatarIngestor interface {
	IngestUpload(ctx context.Context, cardHash string, photos []avatar.Photo) error
	IngestProfilePhoto(ctx context.Context, cardHash string, chatID int64) error
	Remove(cardHash string) error
}

// MetricsRecorder は登録ワークフローのメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordRegistrationStaged()
	RecordAvatarIngest(path string)
	RecordAvatarIngestFailure(path string)
	RecordFinalizeLatency(duration time.Duration)
}

// noopMetrics はメトリクス未設定時のプレースホルダー。
type noopMetrics struct{}

func (noopMetrics) RecordRegistrationStaged()             {}
func (noopMetrics) RecordAvatarIngest(path string)        {}
func (noopMetrics) RecordAvatarIngestFailure(path string) {}
func (noopMetrics) RecordFinalizeLatency(d time.Duration) {}

// Service は登録ワークフローのサービス。
type Service struct {
	staging   repository.StagingRepository
	users     repository.UserRepository
	avatars   AvatarIngestor
	sanitizer security.NameSanitizerService
	metrics   MetricsRecorder
	logger    *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。metricsはnil可。
func NewService(
	staging repository.StagingRepository,
	users repository.UserRepository,
	avatars AvatarIngestor,
	sanitizer security.NameSanitizerService,
	metrics MetricsRecorder,
	logger *slog.Logger,
) *Service {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		staging:   staging,
		users:     users,
		avatars:   avatars,
		sanitizer: sanitizer,
		metrics:   metrics,
		logger:    logger,
	}
}

// isHexHash はカードハッシュが64文字の小文字16進文字列かを検証する。
func isHexHash(s string) bool {
	if len(s) != model.CardHashLength {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Stage は仮登録レコードを作成する（フェーズ1）。
// card_hashの形式が不正な場合はINVALID_FORMAT、
// 同一card_hashが既に仮登録済みの場合はCONFLICTを返す。
func (s *Service) Stage(ctx context.Context, cardHash string) (*model.StagedUser, error) {
	if !isHexHash(cardHash) {
		return nil, model.NewInvalidFormatError("card_hashは64文字の16進文字列である必要があります")
	}

	staged := &model.StagedUser{
		CardHash: cardHash,
		ID:       uuid.NewString(),
	}

	if err := s.staging.Create(ctx, staged); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewConflictError("このカードは既に仮登録されています")
		}
		s.logger.Error("仮登録レコードの作成に失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamError("仮登録レコードの作成に失敗しました")
	}

	s.metrics.RecordRegistrationStaged()
	s.logger.Info("仮登録レコードを作成しました",
		slog.String("staged_id", staged.ID),
	)

	return staged, nil
}

// Consume はトークンに対応する仮登録レコードを消費する。
// トークン長が不正な場合はINVALID_FORMAT、対応するレコードが無い場合は
// nilを返す（呼び出し側が再入力を促す）。
// 消費は1文のアトミックな削除で行われるため、同一トークンの並行呼び出しで
// 成功するのは高々1件。
func (s *Service) Consume(ctx context.Context, token string) (*model.StagedUser, error) {
	if len(token) != model.TokenLength {
		return nil, model.NewInvalidFormatError(
			fmt.Sprintf("トークンは%d文字である必要があります", model.TokenLength))
	}

	staged, err := s.staging.ConsumeByPrefix(ctx, token)
	if err != nil {
		s.logger.Error("仮登録レコードの消費に失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamError("仮登録レコードの取得に失敗しました")
	}

	return staged, nil
}

// NormalizeUsername は入力されたユーザー名をサニタイズして返す。
// マークアップ除去の結果が空になる場合もある（呼び出し側が再入力を促す）。
func (s *Service) NormalizeUsername(raw string) string {
	return s.sanitizer.Sanitize(raw)
}

// IsUsernameTaken はユーザー名が既に使用されているかを返す。
// この事前チェックは利便性のためで、最終的な一意性はストアの制約が保証する。
func (s *Service) IsUsernameTaken(ctx context.Context, username string) (bool, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return false, fmt.Errorf("ユーザー名の検索に失敗しました: %w", err)
	}
	return user != nil, nil
}

// FinalizeWithUpload はアップロードされた画像で本登録を確定する。
func (s *Service) FinalizeWithUpload(ctx context.Context, in FinalizeInput, photos []avatar.Photo) error {
	start := time.Now()
	if err := s.avatars.IngestUpload(ctx, in.CardHash, photos); err != nil {
		s.metrics.RecordAvatarIngestFailure("upload")
		return model.NewIOError("アバター画像の保存に失敗しました")
	}
	s.metrics.RecordAvatarIngest("upload")

	if err := s.insertUser(ctx, in); err != nil {
		return err
	}
	s.metrics.RecordFinalizeLatency(time.Since(start))
	return nil
}

// FinalizeWithProfilePhoto はプロフィール画像で本登録を確定する。
// プロフィール画像が未設定の場合はavatar.ErrNoProfilePhotoをそのまま返す。
func (s *Service) FinalizeWithProfilePhoto(ctx context.Context, in FinalizeInput) error {
	start := time.Now()
	if err := s.avatars.IngestProfilePhoto(ctx, in.CardHash, in.ChatID); err != nil {
		if errors.Is(err, avatar.ErrNoProfilePhoto) {
			return err
		}
		s.metrics.RecordAvatarIngestFailure("profile_photo")
		return model.NewIOError("アバター画像の保存に失敗しました")
	}
	s.metrics.RecordAvatarIngest("profile_photo")

	if err := s.insertUser(ctx, in); err != nil {
		return err
	}
	s.metrics.RecordFinalizeLatency(time.Since(start))
	return nil
}

// insertUser はユーザーレコードを挿入する。
// アバター書き込みとレコード挿入はトランザクションで括れないため、
// 挿入に失敗した場合は書き込み済みのアバターを補償削除して
// 孤児アセットを残さない。
func (s *Service) insertUser(ctx context.Context, in FinalizeInput) error {
	user := &model.User{
		ID:       in.ID,
		CardHash: in.CardHash,
		Username: in.Username,
		ChatID:   in.ChatID,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if removeErr := s.avatars.Remove(in.CardHash); removeErr != nil {
			s.logger.Error("アバターの補償削除に失敗しました",
				slog.String("error", removeErr.Error()),
			)
		}

		if errors.Is(err, repository.ErrDuplicate) {
			return model.NewConflictError("ユーザー名またはカードハッシュが重複しています")
		}

		s.logger.Error("ユーザーレコードの挿入に失敗しました",
			slog.String("error", err.Error()),
		)
		return model.NewUpstreamError("ユーザーレコードの挿入に失敗しました")
	}

	s.logger.Info("本登録が完了しました",
		slog.String("user_id", in.ID),
		slog.String("username", in.Username),
	)

	return nil
}

// LookupByCardHash は指定カードハッシュのユーザーを取得する。
// ハッシュの長さ検証は呼び出し側（ハンドラー）で行う。
func (s *Service) LookupByCardHash(ctx context.Context, cardHash string) (*model.User, error) {
	user, err := s.users.FindByCardHash(ctx, cardHash)
	if err != nil {
		s.logger.Error("ユーザーの検索に失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamError("ユーザーの検索に失敗しました")
	}
	if user == nil {
		return nil, model.NewNotFoundError("ユーザー")
	}
	return user, nil
}

// LookupByID は指定IDのユーザーを取得する。
// idカラムはUUID型のため、UUID形式でない入力はストアへ照会せず
// NOT_FOUNDとして扱う。不正な形式の入力がクエリとしてストアへ届くことはない。
func (s *Service) LookupByID(ctx context.Context, id string) (*model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewNotFoundError("ユーザー")
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		s.logger.Error("ユーザーの検索に失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamError("ユーザーの検索に失敗しました")
	}
	if user == nil {
		return nil, model.NewNotFoundError("ユーザー")
	}
	return user, nil
}

// Package avatar はアバター画像の取り込みと保存を提供する。
// アセットはカードハッシュから導出されるキー（<card_hash>.png）で
// コンテンツアドレスされ、書き込みはcreate-or-replaceセマンティクスを持つ。
package avatar

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store はアバターアセットの保存先インターフェース。
type Store interface {
	// WriteFrom はリーダーの内容をカードハッシュに対応するキーへ書き込む。
	// 転送が途中で失敗した場合、宛先に部分的なアセットを残してはならない。
	WriteFrom(cardHash string, r io.Reader) error

	// Open はカードハッシュに対応するアセットの読み取りストリームを返す。
	// アセットが存在しない場合はnilを返す。
	Open(cardHash string) (io.ReadCloser, error)

	// Remove はカードハッシュに対応するアセットを削除する。
	// アセットが存在しない場合は何もしない。
	Remove(cardHash string) error
}

// FSStore はローカルファイルシステムを使用したアバターストア。
type FSStore struct {
	dir string
}

// NewFSStore はFSStoreを生成する。保存先ディレクトリが無ければ作成する。
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create avatar directory: %w", err)
	}
	return &FSStore{dir: dir}, nil
}

// assetPath はカードハッシュからアセットのファイルパスを導出する。
func (s *FSStore) assetPath(cardHash string) string {
	return filepath.Join(s.dir, cardHash+".png")
}

// WriteFrom はリーダーの内容をアセットへ書き込む。
// 一時ファイルへ書き切ってからrenameでコミットするため、
// 転送失敗時に中途半端なアセットが読める状態にはならない。
// 同一キーへの再書き込みは上書きになる。
func (s *FSStore) WriteFrom(cardHash string, r io.Reader) error {
	tmp, err := os.CreateTemp(s.dir, ".avatar-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write avatar data: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.assetPath(cardHash)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to commit avatar asset: %w", err)
	}

	return nil
}

// Open はアセットの読み取りストリームを返す。存在しない場合はnilを返す。
func (s *FSStore) Open(cardHash string) (io.ReadCloser, error) {
	f, err := os.Open(s.assetPath(cardHash))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open avatar asset: %w", err)
	}
	return f, nil
}

// Remove はアセットを削除する。存在しない場合は何もしない。
func (s *FSStore) Remove(cardHash string) error {
	err := os.Remove(s.assetPath(cardHash))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove avatar asset: %w", err)
	}
	return nil
}

// compile-time interface check
var _ Store = (*FSStore)(nil)

package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jinford/honyaku/internal/core/translation"
)

// LocalStore はローカルファイルシステム上のファイルストレージ
// 参照はルートディレクトリからの相対スラッシュパス（例: "uploads/a.pdf"）
type LocalStore struct {
	root string
}

// NewLocalStore はルートディレクトリを指定して LocalStore を作成する
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, errors.New("storage root must not be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// ReadBytes は参照先のファイルを読み込む
func (s *LocalStore) ReadBytes(ctx context.Context, ref string) ([]byte, error) {
	p, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ref, err)
	}
	return data, nil
}

// WriteBytes は参照先へファイルを書き込む。親ディレクトリは自動で作成する
func (s *LocalStore) WriteBytes(ctx context.Context, ref string, data []byte) error {
	p, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", ref, err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", ref, err)
	}
	return nil
}

// Exists は参照先のファイルが存在するかどうかを返す
func (s *LocalStore) Exists(ctx context.Context, ref string) (bool, error) {
	p, err := s.resolve(ref)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", ref, err)
}

// Delete は参照先のファイルを削除する。存在しない場合もエラーにしない
func (s *LocalStore) Delete(ctx context.Context, ref string) error {
	p, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", ref, err)
	}
	return nil
}

// resolve は参照をルート配下の絶対パスへ解決する
// ルートの外へ出る参照は拒否する
func (s *LocalStore) resolve(ref string) (string, error) {
	if ref == "" {
		return "", errors.New("storage ref must not be empty")
	}
	p := filepath.Join(s.root, filepath.FromSlash(ref))
	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("storage ref escapes root: %s", ref)
	}
	return p, nil
}

var _ translation.Storage = (*LocalStore)(nil)

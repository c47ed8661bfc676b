package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ignatzorin/fire-report-backend/internal/pkg/apperror"
)

// Разрешённые расширения фотографий. Проверка без учёта регистра.
var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// PhotoStorage отвечает за файловое хранилище фотографий сообщений.
// Имя файла генерируется сервером: клиентское имя никогда не переиспользуется,
// поэтому ни коллизии, ни path traversal невозможны.
type PhotoStorage struct {
	rootPath string
	maxBytes int64
}

// NewPhotoStorage создаёт файловое хранилище.
func NewPhotoStorage(rootPath string, maxBytes int64) (*PhotoStorage, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}

	return &PhotoStorage{
		rootPath: rootPath,
		maxBytes: maxBytes,
	}, nil
}

// Save валидирует и сохраняет фотографию, возвращая публичный URL вида
// /api/photos/{uuid}{ext}. Запись идёт во временный файл с последующим
// rename, поэтому читатели никогда не видят частично записанный файл.
func (s *PhotoStorage) Save(ctx context.Context, originalName string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedExtensions[ext] {
		return "", apperror.Wrap(
			fmt.Errorf("расширение %q не входит в список разрешённых", ext),
			apperror.ErrCodeValidation,
			"неподдерживаемый формат файла, используйте JPG, PNG или WebP",
		)
	}

	fileName := uuid.New().String() + ext
	targetPath := filepath.Join(s.rootPath, fileName)
	tempPath := targetPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("storage: не удалось создать файл: %w", err)
	}
	defer f.Close()

	// Читаем на один байт больше лимита: так отличаем ровно maxBytes от превышения.
	limited := io.LimitedReader{R: r, N: s.maxBytes + 1}
	written, err := io.Copy(f, &limited)
	if err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("storage: ошибка записи файла: %w", err)
	}

	if written > s.maxBytes {
		_ = os.Remove(tempPath)
		return "", apperror.Wrap(
			fmt.Errorf("размер файла превышает %d байт", s.maxBytes),
			apperror.ErrCodeValidation,
			"размер фотографии превышает допустимый лимит",
		)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("storage: ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tempPath, targetPath); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("storage: не удалось переименовать файл: %w", err)
	}

	return "/api/photos/" + fileName, nil
}

// Delete удаляет файл по публичному URL. Используется для отката при
// неудачной записи сообщения в базу.
func (s *PhotoStorage) Delete(ctx context.Context, photoURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name := filepath.Base(photoURL)
	if err := os.Remove(filepath.Join(s.rootPath, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: не удалось удалить файл: %w", err)
	}
	return nil
}

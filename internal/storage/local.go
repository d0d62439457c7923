package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalUploader grava arquivos em disco, servidos em PublicURL.
type LocalUploader struct {
	dir       string
	publicURL string
}

// NewLocalUploader garante que o diretório existe.
func NewLocalUploader(dir, publicURL string) (*LocalUploader, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("storage: diretório local ausente")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: criar diretório: %w", err)
	}
	return &LocalUploader{dir: dir, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

func (u *LocalUploader) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	key, err := cleanKey(input.Key)
	if err != nil {
		return nil, err
	}
	if len(input.Body) == 0 {
		return nil, errors.New("storage: corpo vazio")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	target := filepath.Join(u.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("storage: criar diretório: %w", err)
	}
	if err := os.WriteFile(target, input.Body, 0o644); err != nil {
		return nil, fmt.Errorf("storage: gravar arquivo: %w", err)
	}

	result := &UploadResult{Key: key, URL: key}
	if u.publicURL != "" {
		result.URL = u.publicURL + "/" + key
	}
	return result, nil
}

// Delete remove o arquivo; arquivo ausente não é erro.
func (u *LocalUploader) Delete(ctx context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err = os.Remove(filepath.Join(u.dir, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: remover arquivo: %w", err)
	}
	return nil
}

func (u *LocalUploader) List(ctx context.Context, prefix string) ([]Object, error) {
	var out []Object
	err := filepath.WalkDir(u.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(u.dir, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, Object{Key: key, Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: listar arquivos: %w", err)
	}
	return out, nil
}

// cleanKey impede que a chave escape do diretório base.
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: chave do objeto obrigatória")
	}
	cleaned := strings.TrimLeft(path.Clean("/"+key), "/")
	if cleaned == "" || cleaned == "." {
		return "", errors.New("storage: chave do objeto inválida")
	}
	return cleaned, nil
}

package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotConfigured sinaliza que nenhum backend de arquivos foi configurado.
var ErrNotConfigured = errors.New("storage: uploader não configurado")

// UploadInput representa uma operação de upload simples.
type UploadInput struct {
	Key          string
	Body         []byte
	ContentType  string
	CacheControl string
}

// UploadResult descreve o artefato persistido.
type UploadResult struct {
	Key  string
	URL  string
	ETag string
}

// Object é um arquivo já armazenado.
type Object struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Uploader define comportamento básico para armazenar blobs.
type Uploader interface {
	Upload(ctx context.Context, input UploadInput) (*UploadResult, error)
	Delete(ctx context.Context, key string) error
}

// Lister enumera objetos sob um prefixo; usado pela varredura de órfãos.
type Lister interface {
	List(ctx context.Context, prefix string) ([]Object, error)
}

// Package attachment recebe fotos de demandas, normaliza e vincula a referência.
package attachment

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gestaozabele/demandas/internal/access"
	"github.com/gestaozabele/demandas/internal/demand"
	"github.com/gestaozabele/demandas/internal/imagetransform"
	"github.com/gestaozabele/demandas/internal/storage"
)

// Kind identifica qual foto da demanda está sendo tratada.
type Kind string

const (
	// KindRequest é a foto enviada pelo cidadão na solicitação.
	KindRequest Kind = "demanda"
	// KindResolution é a foto registrada pelo operador ao concluir.
	KindResolution Kind = "resolucao"
)

// ParseKind aceita os nomes usados na rota.
func ParseKind(raw string) (Kind, bool) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(raw))); k {
	case KindRequest, KindResolution:
		return k, true
	}
	return "", false
}

const (
	// MaxSize é o tamanho máximo aceito por arquivo.
	MaxSize       = 50 << 20
	side          = 400
	jpegQuality   = 80
	defaultPrefix = "demandas/"
)

var contentTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"svg":  "image/svg+xml",
}

// File é o arquivo recebido pela borda.
type File struct {
	Name string
	Data []byte
}

// Linker grava a referência da foto pelos portões do serviço de demandas.
type Linker interface {
	SetRequestImage(ctx context.Context, caller demand.Caller, id, ref string) (demand.Document, string, error)
	SetResolutionImage(ctx context.Context, caller demand.Caller, id, ref string) (demand.Document, string, error)
}

// Pipeline valida, transforma, armazena e vincula fotos.
type Pipeline struct {
	linker      Linker
	transformer imagetransform.Transformer
	uploader    storage.Uploader
	logger      zerolog.Logger
	metrics     demand.Recorder
	prefix      string
	newName     func() string
}

// Option ajusta o Pipeline.
type Option func(*Pipeline)

func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

func WithRecorder(r demand.Recorder) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.metrics = r
		}
	}
}

// WithKeyPrefix define o prefixo das chaves no storage.
func WithKeyPrefix(prefix string) Option {
	return func(p *Pipeline) { p.prefix = prefix }
}

func NewPipeline(linker Linker, transformer imagetransform.Transformer, uploader storage.Uploader, opts ...Option) *Pipeline {
	p := &Pipeline{
		linker:      linker,
		transformer: transformer,
		uploader:    uploader,
		logger:      zerolog.Nop(),
		metrics:     nopRecorder{},
		prefix:      defaultPrefix,
		newName:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Upload grava a foto e devolve a demanda atualizada, projetada para o chamador.
// A foto substituída não é apagada aqui: a varredura remove o que ficar sem referência.
func (p *Pipeline) Upload(ctx context.Context, caller demand.Caller, demandID string, kind Kind, file File) (doc demand.Document, err error) {
	started := time.Now()
	defer func() { p.metrics.ObserveOperation("foto_enviar", demand.Outcome(err), time.Since(started)) }()

	if err := gate(caller, kind); err != nil {
		return nil, err
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(file.Name), "."))
	contentType, ok := contentTypes[ext]
	if !ok {
		return nil, demand.Invalid("Formato de arquivo não permitido; use jpg, jpeg, png ou svg")
	}
	if len(file.Data) == 0 {
		return nil, demand.Invalid("Arquivo vazio")
	}
	if len(file.Data) > MaxSize {
		return nil, demand.Invalid("Arquivo excede o limite de 50 MB")
	}

	body, err := p.normalize(ext, file.Data)
	if err != nil {
		return nil, err
	}

	key := p.prefix + p.newName() + "." + ext
	res, err := p.uploader.Upload(ctx, storage.UploadInput{
		Key:          key,
		Body:         body,
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000, immutable",
	})
	if err != nil {
		p.logger.Error().Err(err).Str("chave", key).Str("demanda_id", demandID).Msg("anexo: falha no upload")
		return nil, demand.Internal("falha ao armazenar arquivo", err)
	}

	doc, previous, err := p.link(ctx, caller, demandID, kind, res.Key)
	if err != nil {
		// sem rollback: o arquivo fica órfão até a próxima varredura
		p.logger.Warn().Err(err).Str("chave", res.Key).Str("demanda_id", demandID).Msg("anexo: vínculo falhou, arquivo órfão")
		return nil, err
	}
	p.logger.Info().
		Str("demanda_id", demandID).
		Str("foto", string(kind)).
		Str("chave", res.Key).
		Str("anterior", previous).
		Msg("anexo: foto vinculada")
	return doc, nil
}

// Delete limpa a referência pelo mesmo portão. O arquivo fica para a varredura,
// que só remove chaves que nenhuma demanda referencia.
func (p *Pipeline) Delete(ctx context.Context, caller demand.Caller, demandID string, kind Kind) (doc demand.Document, err error) {
	started := time.Now()
	defer func() { p.metrics.ObserveOperation("foto_remover", demand.Outcome(err), time.Since(started)) }()

	if err := gate(caller, kind); err != nil {
		return nil, err
	}

	doc, previous, err := p.link(ctx, caller, demandID, kind, "")
	if err != nil {
		return nil, err
	}
	p.logger.Info().Str("demanda_id", demandID).Str("foto", string(kind)).Str("anterior", previous).Msg("anexo: foto desvinculada")
	return doc, nil
}

func (p *Pipeline) normalize(ext string, data []byte) ([]byte, error) {
	opts := imagetransform.Options{Width: side, Height: side, Fit: imagetransform.FitCover}
	switch ext {
	case "svg":
		// vetorial: segue sem recorte
		return data, nil
	case "png":
		opts.Format = imagetransform.FormatPNG
	default:
		opts.Format = imagetransform.FormatJPEG
		opts.Quality = jpegQuality
	}

	out, err := p.transformer.Transform(data, opts)
	if err != nil {
		return nil, demand.Invalid("Imagem inválida ou corrompida")
	}
	return out, nil
}

func (p *Pipeline) link(ctx context.Context, caller demand.Caller, id string, kind Kind, ref string) (demand.Document, string, error) {
	if kind == KindResolution {
		return p.linker.SetResolutionImage(ctx, caller, id, ref)
	}
	return p.linker.SetRequestImage(ctx, caller, id, ref)
}

// gate antecipa o portão de papel antes de gravar qualquer arquivo;
// posse e existência são verificadas no vínculo.
func gate(caller demand.Caller, kind Kind) error {
	op := access.OpUpdate
	if kind == KindResolution {
		op = access.OpResolve
	}
	if !access.Allowed(caller.Role(), op) {
		return demand.Forbidden("Permissão negada para alterar fotos da demanda")
	}
	return nil
}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, string, time.Duration) {}

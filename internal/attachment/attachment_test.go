package attachment

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestaozabele/demandas/internal/access"
	"github.com/gestaozabele/demandas/internal/demand"
	"github.com/gestaozabele/demandas/internal/imagetransform"
	"github.com/gestaozabele/demandas/internal/storage"
	"github.com/gestaozabele/demandas/internal/store/memory"
)

type fakeUploader struct {
	objects map[string][]byte
	types   map[string]string
	failPut error
	deletes []string
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeUploader) Upload(_ context.Context, in storage.UploadInput) (*storage.UploadResult, error) {
	if f.failPut != nil {
		return nil, f.failPut
	}
	f.objects[in.Key] = in.Body
	f.types[in.Key] = in.ContentType
	return &storage.UploadResult{Key: in.Key, URL: "https://cdn/" + in.Key}, nil
}

func (f *fakeUploader) Delete(_ context.Context, key string) error {
	f.deletes = append(f.deletes, key)
	delete(f.objects, key)
	return nil
}

type recordingTransformer struct {
	opts []imagetransform.Options
	err  error
}

func (r *recordingTransformer) Transform(data []byte, opts imagetransform.Options) ([]byte, error) {
	r.opts = append(r.opts, opts)
	if r.err != nil {
		return nil, r.err
	}
	return append([]byte("t:"), data...), nil
}

type env struct {
	store    *memory.Store
	uploader *fakeUploader
	tr       *recordingTransformer
	pipeline *Pipeline
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := memory.New()
	st.PutUser(demand.User{ID: "u1", Flags: access.Flags{Cidadao: true}})
	st.PutUser(demand.User{ID: "u2", Flags: access.Flags{Cidadao: true}})
	st.PutUser(demand.User{ID: "op1", Flags: access.Flags{Operador: true}, Departments: []string{"s1"}})
	st.PutUser(demand.User{ID: "adm", Flags: access.Flags{Administrador: true}})
	st.Put(demand.Demand{ID: "d1", Type: demand.TypeLighting, Status: demand.StatusInProgress, Users: []string{"u1", "op1"}, Departments: []string{"s1"}})

	svc := demand.NewService(st, st.Users(), st.Departments())
	up := newFakeUploader()
	tr := &recordingTransformer{}
	names := []string{"n1", "n2", "n3"}
	p := NewPipeline(svc, tr, up)
	p.newName = func() string {
		n := names[0]
		names = names[1:]
		return n
	}
	return &env{store: st, uploader: up, tr: tr, pipeline: p}
}

func caller(id string, flags access.Flags) demand.Caller {
	return demand.Caller{ID: id, Flags: flags, Departments: []string{"s1"}}
}

var (
	citizen  = caller("u1", access.Flags{Cidadao: true})
	stranger = caller("u2", access.Flags{Cidadao: true})
	operator = caller("op1", access.Flags{Operador: true})
	admin    = caller("adm", access.Flags{Administrador: true})
)

func TestUploadRequestPhoto(t *testing.T) {
	e := newEnv(t)

	doc, err := e.pipeline.Upload(context.Background(), citizen, "d1", KindRequest, File{Name: "Foto.JPG", Data: []byte("img")})
	require.NoError(t, err)
	assert.Equal(t, "demandas/n1.jpg", doc[access.FieldRequestImage])

	require.Len(t, e.tr.opts, 1)
	assert.Equal(t, imagetransform.Options{Width: 400, Height: 400, Fit: imagetransform.FitCover, Format: imagetransform.FormatJPEG, Quality: 80}, e.tr.opts[0])
	assert.Equal(t, []byte("t:img"), e.uploader.objects["demandas/n1.jpg"])
	assert.Equal(t, "image/jpeg", e.uploader.types["demandas/n1.jpg"])

	stored, err := e.store.FindByID(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, "demandas/n1.jpg", stored.RequestImage)
	assert.Equal(t, demand.StatusInProgress, stored.Status)
}

func TestUploadReplacesReferenceAndLeavesOldObject(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.pipeline.Upload(ctx, citizen, "d1", KindRequest, File{Name: "a.png", Data: []byte("1")})
	require.NoError(t, err)
	_, err = e.pipeline.Upload(ctx, citizen, "d1", KindRequest, File{Name: "b.png", Data: []byte("2")})
	require.NoError(t, err)

	stored, err := e.store.FindByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "demandas/n2.png", stored.RequestImage)

	assert.Contains(t, e.uploader.objects, "demandas/n1.png", "a varredura recolhe o arquivo antigo")
	assert.Contains(t, e.uploader.objects, "demandas/n2.png")
	assert.Empty(t, e.uploader.deletes)
	assert.Equal(t, imagetransform.FormatPNG, e.tr.opts[1].Format)
}

func TestUploadSVGSkipsTransform(t *testing.T) {
	e := newEnv(t)

	_, err := e.pipeline.Upload(context.Background(), citizen, "d1", KindRequest, File{Name: "mapa.svg", Data: []byte("<svg/>")})
	require.NoError(t, err)
	assert.Empty(t, e.tr.opts)
	assert.Equal(t, []byte("<svg/>"), e.uploader.objects["demandas/n1.svg"])
	assert.Equal(t, "image/svg+xml", e.uploader.types["demandas/n1.svg"])
}

func TestUploadValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.pipeline.Upload(ctx, citizen, "d1", KindRequest, File{Name: "doc.pdf", Data: []byte("x")})
	assert.ErrorIs(t, err, demand.ErrValidation)

	_, err = e.pipeline.Upload(ctx, citizen, "d1", KindRequest, File{Name: "semextensao", Data: []byte("x")})
	assert.ErrorIs(t, err, demand.ErrValidation)

	_, err = e.pipeline.Upload(ctx, citizen, "d1", KindRequest, File{Name: "a.jpg"})
	assert.ErrorIs(t, err, demand.ErrValidation)

	_, err = e.pipeline.Upload(ctx, citizen, "d1", KindRequest, File{Name: "grande.jpg", Data: make([]byte, MaxSize+1)})
	assert.ErrorIs(t, err, demand.ErrValidation)

	e.tr.err = errors.New("formato desconhecido")
	_, err = e.pipeline.Upload(ctx, citizen, "d1", KindRequest, File{Name: "a.jpg", Data: []byte("x")})
	assert.ErrorIs(t, err, demand.ErrValidation)

	assert.Empty(t, e.uploader.objects)
}

func TestUploadUsesUpdateGuard(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	// cidadão que não é dono: o arquivo é gravado, o vínculo é negado
	_, err := e.pipeline.Upload(ctx, stranger, "d1", KindRequest, File{Name: "a.jpg", Data: []byte("x")})
	assert.ErrorIs(t, err, demand.ErrForbidden)

	// papéis fora do portão de update nem chegam ao storage
	before := len(e.uploader.objects)
	for _, c := range []demand.Caller{operator, admin} {
		_, err = e.pipeline.Upload(ctx, c, "d1", KindRequest, File{Name: "a.jpg", Data: []byte("x")})
		assert.ErrorIs(t, err, demand.ErrForbidden)
	}
	assert.Len(t, e.uploader.objects, before)

	_, err = e.pipeline.Upload(ctx, citizen, "nao-existe", KindRequest, File{Name: "a.jpg", Data: []byte("x")})
	assert.ErrorIs(t, err, demand.ErrNotFound)

	stored, err := e.store.FindByID(ctx, "d1")
	require.NoError(t, err)
	assert.Empty(t, stored.RequestImage)
}

func TestUploadResolutionPhotoUsesResolveGuard(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.pipeline.Upload(ctx, citizen, "d1", KindResolution, File{Name: "a.jpg", Data: []byte("x")})
	assert.ErrorIs(t, err, demand.ErrForbidden)

	doc, err := e.pipeline.Upload(ctx, operator, "d1", KindResolution, File{Name: "a.jpg", Data: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, "demandas/n1.jpg", doc[access.FieldResolutionImage])

	stored, err := e.store.FindByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, demand.StatusInProgress, stored.Status)
	assert.Empty(t, stored.RequestImage)
}

func TestUploadStorageFailureIsInternal(t *testing.T) {
	e := newEnv(t)
	e.uploader.failPut = errors.New("bucket indisponível")

	_, err := e.pipeline.Upload(context.Background(), citizen, "d1", KindRequest, File{Name: "a.jpg", Data: []byte("x")})
	assert.ErrorIs(t, err, demand.ErrInternal)
}

func TestDeletePhoto(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.pipeline.Upload(ctx, citizen, "d1", KindRequest, File{Name: "a.jpg", Data: []byte("x")})
	require.NoError(t, err)

	_, err = e.pipeline.Delete(ctx, stranger, "d1", KindRequest)
	assert.ErrorIs(t, err, demand.ErrForbidden)
	assert.Contains(t, e.uploader.objects, "demandas/n1.jpg")

	doc, err := e.pipeline.Delete(ctx, citizen, "d1", KindRequest)
	require.NoError(t, err)
	assert.NotContains(t, doc, access.FieldRequestImage)

	stored, err := e.store.FindByID(ctx, "d1")
	require.NoError(t, err)
	assert.Empty(t, stored.RequestImage)
	assert.Contains(t, e.uploader.objects, "demandas/n1.jpg")
	assert.Empty(t, e.uploader.deletes)
}

func TestDeletePhotoKeepsObjectsOfOtherDemands(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := demand.NewService(e.store, e.store.Users(), e.store.Departments())

	const foreign = "demandas/alheia.jpg"
	e.uploader.objects[foreign] = []byte("x")
	e.store.Put(demand.Demand{ID: "d2", Type: demand.TypeLighting, Status: demand.StatusOpen,
		Users: []string{"u2"}, Departments: []string{"s1"}, RequestImage: foreign})

	// cidadão tenta apontar a própria demanda para a chave de outra
	_, err := svc.Update(ctx, citizen, "d1", demand.Input{RequestImage: demand.Ptr(foreign)})
	require.NoError(t, err)
	stored, err := e.store.FindByID(ctx, "d1")
	require.NoError(t, err)
	assert.Empty(t, stored.RequestImage)

	_, err = e.pipeline.Delete(ctx, citizen, "d1", KindRequest)
	require.NoError(t, err)

	// operador grava a chave alheia pela resolução e depois remove a foto
	_, err = svc.Resolve(ctx, operator, "d1", demand.Input{ResolutionImage: demand.Ptr(foreign)})
	require.NoError(t, err)
	_, err = e.pipeline.Delete(ctx, operator, "d1", KindResolution)
	require.NoError(t, err)

	assert.Contains(t, e.uploader.objects, foreign)
	assert.Empty(t, e.uploader.deletes)

	victim, err := e.store.FindByID(ctx, "d2")
	require.NoError(t, err)
	assert.Equal(t, foreign, victim.RequestImage)
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("Resolucao")
	assert.True(t, ok)
	assert.Equal(t, KindResolution, k)

	_, ok = ParseKind("capa")
	assert.False(t, ok)
}

func TestPipelineWithImagingAndLocalDisk(t *testing.T) {
	st := memory.New()
	st.PutUser(demand.User{ID: "u1", Flags: access.Flags{Cidadao: true}})
	st.Put(demand.Demand{ID: "d1", Type: demand.TypeTrees, Status: demand.StatusOpen, Users: []string{"u1"}})
	svc := demand.NewService(st, st.Users(), st.Departments())

	dir := t.TempDir()
	local, err := storage.NewLocalUploader(dir, "")
	require.NoError(t, err)
	p := NewPipeline(svc, imagetransform.Imaging{}, local)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 900, 600))))

	doc, err := p.Upload(context.Background(), citizen, "d1", KindRequest, File{Name: "arvore.png", Data: buf.Bytes()})
	require.NoError(t, err)

	key := doc[access.FieldRequestImage].(string)
	objs, err := local.List(context.Background(), "demandas/")
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, key, objs[0].Key)

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 400, cfg.Width)
	assert.Equal(t, 400, cfg.Height)
}

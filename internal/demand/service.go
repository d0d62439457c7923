package demand

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gestaozabele/demandas/internal/access"
)

// Campos que o cidadão não altera por Update. A foto só muda pelo fluxo de anexos.
var updateProtected = append([]string{
	access.FieldID,
	access.FieldType,
	access.FieldCreatedAt,
	access.FieldStatus,
	access.FieldUsers,
	access.FieldDepartments,
	access.FieldRequestImage,
}, workflowFields...)

// Recorder recebe o resultado de cada operação do serviço.
type Recorder interface {
	ObserveOperation(op string, outcome string, elapsed time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) ObserveOperation(string, string, time.Duration) {}

// Service aplica as regras de acesso e o ciclo de vida das demandas.
type Service struct {
	store       Store
	users       UserLookup
	departments DepartmentLookup
	logger      zerolog.Logger
	metrics     Recorder
	fallback    []string
	now         func() time.Time
}

// Option ajusta o Service.
type Option func(*Service)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.metrics = r
		}
	}
}

// WithFallbackFields define a projeção para chamadores sem papel.
func WithFallbackFields(fields []string) Option {
	return func(s *Service) {
		if len(fields) > 0 {
			s.fallback = append([]string(nil), fields...)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, users UserLookup, departments DepartmentLookup, opts ...Option) *Service {
	s := &Service{
		store:       store,
		users:       users,
		departments: departments,
		logger:      zerolog.Nop(),
		metrics:     noopRecorder{},
		fallback:    DefaultFallbackFields,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get devolve a demanda projetada para o papel do chamador.
func (s *Service) Get(ctx context.Context, caller Caller, id string, populate ...Reference) (doc Document, err error) {
	defer s.observe(access.OpGet, time.Now(), &err)

	role := caller.Role()
	if !access.Allowed(role, access.OpGet) {
		return nil, Forbidden("Permissão negada para consultar demandas")
	}

	d, err := s.load(ctx, id, populate...)
	if err != nil {
		return nil, err
	}
	if !visible(caller, role, d) {
		return nil, Forbidden("Demanda fora do escopo do usuário")
	}
	return s.redact(role, d), nil
}

// List aplica os critérios, o escopo do papel e a projeção.
func (s *Service) List(ctx context.Context, caller Caller, criteria Criteria, page PageRequest, populate ...Reference) (out *DocumentPage, err error) {
	defer s.observe(access.OpList, time.Now(), &err)

	role := caller.Role()
	if !access.Allowed(role, access.OpList) {
		return nil, Forbidden("Permissão negada para listar demandas")
	}

	builder := NewFilterBuilder(s.users, s.departments).Criteria(criteria)
	if role == access.Citizen {
		builder.Owner(caller.ID)
	}
	filter, err := builder.Build(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.store.Find(ctx, filter, page.Normalize(), populate...)
	if err != nil {
		return nil, Internal("falha ao listar demandas", err)
	}

	docs := make([]Document, 0, len(result.Docs))
	for _, d := range result.Docs {
		if !visible(caller, role, d) {
			continue
		}
		docs = append(docs, s.redact(role, d))
	}
	return newDocumentPage(result, docs), nil
}

// Create registra uma nova demanda roteada para a secretaria do tipo.
func (s *Service) Create(ctx context.Context, caller Caller, in Input) (doc Document, err error) {
	defer s.observe(access.OpCreate, time.Now(), &err)

	role := caller.Role()
	if !access.Allowed(role, access.OpCreate) {
		return nil, Forbidden("Permissão negada para criar demandas")
	}
	if in.Type == nil || !IsValidType(*in.Type) {
		return nil, Invalid("Tipo de demanda inválido")
	}

	in = in.Without(access.FieldID, access.FieldStatus, access.FieldCreatedAt, access.FieldDepartments)
	switch role {
	case access.Citizen:
		in = in.Without(workflowFields...)
		in.Users = []string{caller.ID}
	default:
		in.Users = dedupe(in.Users)
		if len(in.Users) == 0 {
			in.Users = []string{caller.ID}
		}
	}

	dep, err := s.departments.FindByType(ctx, *in.Type)
	if err != nil {
		if errors.Is(err, ErrNoDocument) {
			return nil, Invalid("Nenhuma secretaria atende o tipo " + string(*in.Type))
		}
		return nil, Internal("falha ao buscar secretaria", err)
	}

	d := Demand{}.Apply(in)
	d.Status = StatusOpen
	d.CreatedAt = s.now().UTC()
	d.Departments = []string{dep.ID}

	created, err := s.store.Create(ctx, d)
	if err != nil {
		return nil, Internal("falha ao criar demanda", err)
	}

	s.logger.Info().
		Str("demanda_id", created.ID).
		Str("papel", role.String()).
		Str("tipo", string(created.Type)).
		Str("secretaria_id", dep.ID).
		Msg("demanda criada")
	return s.redact(role, created), nil
}

// Update altera campos descritivos de uma demanda do próprio cidadão.
func (s *Service) Update(ctx context.Context, caller Caller, id string, in Input) (doc Document, err error) {
	defer s.observe(access.OpUpdate, time.Now(), &err)

	role := caller.Role()
	_, updated, err := s.updateOwn(ctx, caller, role, id, in.Without(updateProtected...))
	if err != nil {
		return nil, err
	}
	return s.redact(role, updated), nil
}

// updateOwn é o portão compartilhado por Update e pela foto da solicitação.
func (s *Service) updateOwn(ctx context.Context, caller Caller, role access.Role, id string, changes Input) (Demand, Demand, error) {
	if !access.Allowed(role, access.OpUpdate) {
		return Demand{}, Demand{}, Forbidden("Permissão negada para atualizar demandas")
	}

	existing, err := s.load(ctx, id)
	if err != nil {
		return Demand{}, Demand{}, err
	}
	if !existing.HasUser(caller.ID) {
		return Demand{}, Demand{}, Forbidden("Demanda não pertence ao usuário")
	}
	if changes.IsEmpty() {
		return existing, existing, nil
	}

	updated, err := s.update(ctx, id, changes)
	if err != nil {
		return Demand{}, Demand{}, err
	}
	return existing, updated, nil
}

// Assign associa operadores a uma demanda da secretaria do chamador.
func (s *Service) Assign(ctx context.Context, caller Caller, id string, in Input) (doc Document, err error) {
	defer s.observe(access.OpAssign, time.Now(), &err)

	role := caller.Role()
	if !access.Allowed(role, access.OpAssign) {
		return nil, Forbidden("Permissão negada para atribuir demandas")
	}

	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !existing.SharesDepartment(caller.Departments) {
		return nil, Forbidden("Demanda não pertence às secretarias do usuário")
	}
	if existing.Status.Terminal() {
		return nil, Invalid("Demanda já finalizada")
	}

	requested := dedupe(in.Users)
	if len(requested) == 0 {
		return nil, Invalid("Informe ao menos um usuário")
	}

	found, err := s.users.FindByIDs(ctx, dedupe(append(append([]string(nil), requested...), existing.Users...)))
	if err != nil {
		return nil, Internal("falha ao buscar usuários", err)
	}
	byID := make(map[string]User, len(found))
	for _, u := range found {
		byID[u.ID] = u
	}

	for _, uid := range requested {
		u, ok := byID[uid]
		if !ok || access.Resolve(u.Flags) != access.Operator {
			return nil, Invalid("Apenas operadores podem ser associados a uma demanda")
		}
	}

	members := make([]string, 0, len(existing.Users)+len(requested))
	for _, uid := range existing.Users {
		if u, ok := byID[uid]; ok && access.Resolve(u.Flags) == access.Citizen {
			members = append(members, uid)
		}
	}
	members = dedupe(append(members, requested...))

	updated, err := s.update(ctx, id, Input{Users: members, Status: Ptr(StatusInProgress)})
	if err != nil {
		return nil, err
	}
	s.logTransition(access.OpAssign, role, existing, updated)
	return s.redact(role, updated), nil
}

// Return devolve a demanda: o secretário recusa; operador e administrador
// se desassociam e a demanda volta a ficar em aberto.
func (s *Service) Return(ctx context.Context, caller Caller, id string, in Input) (doc Document, err error) {
	defer s.observe(access.OpReturn, time.Now(), &err)

	role := caller.Role()
	if !access.Allowed(role, access.OpReturn) {
		return nil, Forbidden("Permissão negada para devolver demandas")
	}

	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	var changes Input
	switch role {
	case access.Secretary:
		if !existing.SharesDepartment(caller.Departments) {
			return nil, Forbidden("Demanda não pertence às secretarias do usuário")
		}
		if existing.Status.Terminal() {
			return nil, Invalid("Demanda já finalizada")
		}
		if in.RejectionReason == nil || strings.TrimSpace(*in.RejectionReason) == "" {
			return nil, Invalid("Informe o motivo da rejeição")
		}
		changes = Input{
			RejectionReason: Ptr(strings.TrimSpace(*in.RejectionReason)),
			Status:          Ptr(StatusRejected),
		}
	default:
		if existing.Status.Terminal() {
			return nil, Invalid("Demanda já finalizada")
		}
		remaining := make([]string, 0, len(existing.Users))
		for _, uid := range existing.Users {
			if uid != caller.ID {
				remaining = append(remaining, uid)
			}
		}
		changes = Input{
			Users:        remaining,
			ReturnReason: in.ReturnReason,
			Status:       Ptr(StatusOpen),
		}
	}

	updated, err := s.update(ctx, id, changes)
	if err != nil {
		return nil, err
	}
	s.logTransition(access.OpReturn, role, existing, updated)
	return s.redact(role, updated), nil
}

// Resolve conclui a demanda com descrição e imagem da resolução.
func (s *Service) Resolve(ctx context.Context, caller Caller, id string, in Input) (doc Document, err error) {
	defer s.observe(access.OpResolve, time.Now(), &err)

	role := caller.Role()
	if !access.Allowed(role, access.OpResolve) {
		return nil, Forbidden("Permissão negada para resolver demandas")
	}

	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status.Terminal() {
		return nil, Invalid("Demanda já finalizada")
	}

	changes := in.Only(access.FieldResolutionNote, access.FieldResolutionImage)
	changes.ReturnReason = Ptr("")
	changes.Status = Ptr(StatusResolved)

	updated, err := s.update(ctx, id, changes)
	if err != nil {
		return nil, err
	}
	s.logTransition(access.OpResolve, role, existing, updated)
	return s.redact(role, updated), nil
}

// SetRequestImage grava a referência da foto da solicitação pelo mesmo
// portão de Update, escrevendo apenas esse campo. Devolve também a
// referência substituída.
func (s *Service) SetRequestImage(ctx context.Context, caller Caller, id string, ref string) (doc Document, previous string, err error) {
	defer s.observe(access.OpUpdate, time.Now(), &err)

	role := caller.Role()
	existing, updated, err := s.updateOwn(ctx, caller, role, id, Input{RequestImage: &ref})
	if err != nil {
		return nil, "", err
	}
	return s.redact(role, updated), existing.RequestImage, nil
}

// SetResolutionImage grava a referência da foto da resolução pelo portão
// de Resolve, sem mudar o status.
func (s *Service) SetResolutionImage(ctx context.Context, caller Caller, id string, ref string) (doc Document, previous string, err error) {
	defer s.observe(access.OpResolve, time.Now(), &err)

	role := caller.Role()
	if !access.Allowed(role, access.OpResolve) {
		return nil, "", Forbidden("Permissão negada para resolver demandas")
	}
	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, "", err
	}

	updated, err := s.update(ctx, id, Input{ResolutionImage: &ref})
	if err != nil {
		return nil, "", err
	}
	return s.redact(role, updated), existing.ResolutionImage, nil
}

// Delete remove a demanda; o cidadão só remove as próprias.
func (s *Service) Delete(ctx context.Context, caller Caller, id string) (doc Document, err error) {
	defer s.observe(access.OpDelete, time.Now(), &err)

	role := caller.Role()
	if !access.Allowed(role, access.OpDelete) {
		return nil, Forbidden("Permissão negada para remover demandas")
	}

	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if role == access.Citizen && !existing.HasUser(caller.ID) {
		return nil, Forbidden("Demanda não pertence ao usuário")
	}

	deleted, err := s.store.DeleteByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNoDocument) {
			return nil, NotFound()
		}
		return nil, Internal("falha ao remover demanda", err)
	}

	s.logger.Info().
		Str("demanda_id", id).
		Str("papel", role.String()).
		Msg("demanda removida")
	return s.redact(role, deleted), nil
}

func (s *Service) load(ctx context.Context, id string, populate ...Reference) (Demand, error) {
	d, err := s.store.FindByID(ctx, id, populate...)
	if err != nil {
		if errors.Is(err, ErrNoDocument) {
			return Demand{}, NotFound()
		}
		return Demand{}, Internal("falha ao buscar demanda", err)
	}
	return d, nil
}

func (s *Service) update(ctx context.Context, id string, changes Input) (Demand, error) {
	d, err := s.store.UpdateByID(ctx, id, changes)
	if err != nil {
		if errors.Is(err, ErrNoDocument) {
			return Demand{}, NotFound()
		}
		return Demand{}, Internal("falha ao atualizar demanda", err)
	}
	return d, nil
}

func (s *Service) redact(role access.Role, d Demand) Document {
	return Redact(role, d.Document(), s.fallback)
}

func (s *Service) logTransition(op access.Operation, role access.Role, before, after Demand) {
	s.logger.Info().
		Str("demanda_id", after.ID).
		Str("operacao", string(op)).
		Str("papel", role.String()).
		Str("de", string(before.Status)).
		Str("para", string(after.Status)).
		Msg("demanda: transição de status")
}

func (s *Service) observe(op access.Operation, started time.Time, err *error) {
	s.metrics.ObserveOperation(string(op), Outcome(*err), time.Since(started))
	if *err != nil && errors.Is(*err, ErrInternal) {
		s.logger.Error().Err(*err).Str("operacao", string(op)).Msg("demanda: falha interna")
	}
}

// Outcome classifica o erro para métricas e logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validacao"
	case errors.Is(err, ErrNotFound):
		return "nao_encontrada"
	case errors.Is(err, ErrForbidden):
		return "proibido"
	default:
		return "interno"
	}
}

// visible aplica o escopo de leitura por papel.
func visible(caller Caller, role access.Role, d Demand) bool {
	switch role {
	case access.Administrator:
		return true
	case access.None:
		// só recebe a projeção de fallback
		return true
	case access.Secretary:
		return d.SharesDepartment(caller.Departments)
	case access.Operator:
		return d.SharesDepartment(caller.Departments) && d.HasUser(caller.ID)
	case access.Citizen:
		return d.HasUser(caller.ID)
	}
	return false
}

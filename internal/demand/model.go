package demand

import (
	"strings"
	"time"

	"github.com/gestaozabele/demandas/internal/access"
)

// Type é o tipo de serviço solicitado; define a secretaria responsável.
type Type string

const (
	TypeCollection Type = "Coleta"
	TypeLighting   Type = "Iluminação"
	TypeSanitation Type = "Saneamento"
	TypeTrees      Type = "Árvores"
	TypeAnimals    Type = "Animais"
	TypePaving     Type = "Pavimentação"
)

// Status é o estado da demanda no ciclo de vida.
type Status string

const (
	StatusOpen       Status = "Em aberto"
	StatusInProgress Status = "Em andamento"
	StatusResolved   Status = "Concluído"
	StatusRejected   Status = "Recusado"
)

var (
	validTypes = map[Type]struct{}{
		TypeCollection: {},
		TypeLighting:   {},
		TypeSanitation: {},
		TypeTrees:      {},
		TypeAnimals:    {},
		TypePaving:     {},
	}
	validStatuses = map[Status]struct{}{
		StatusOpen:       {},
		StatusInProgress: {},
		StatusResolved:   {},
		StatusRejected:   {},
	}
)

// IsValidType indica se o tipo é aceito.
func IsValidType(t Type) bool {
	_, ok := validTypes[t]
	return ok
}

// IsValidStatus indica se o status é aceito.
func IsValidStatus(s Status) bool {
	_, ok := validStatuses[s]
	return ok
}

// Terminal indica estados dos quais nenhuma operação sai.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusRejected
}

// Address é o endereço estruturado da demanda.
type Address struct {
	Street       string `json:"logradouro" bson:"logradouro"`
	PostalCode   string `json:"cep" bson:"cep"`
	Neighborhood string `json:"bairro" bson:"bairro"`
	Number       string `json:"numero" bson:"numero"`
	Complement   string `json:"complemento,omitempty" bson:"complemento,omitempty"`
}

func (a Address) parts() []string {
	return []string{a.Street, a.PostalCode, a.Neighborhood, a.Number, a.Complement}
}

// UserSummary é a forma populada de uma referência a usuário.
type UserSummary struct {
	ID    string `json:"_id"`
	Name  string `json:"nome"`
	Email string `json:"email,omitempty"`
}

// DepartmentSummary é a forma populada de uma referência a secretaria.
type DepartmentSummary struct {
	ID   string `json:"_id"`
	Name string `json:"nome"`
	Type Type   `json:"tipo"`
}

// Demand representa uma solicitação de serviço público aberta por um cidadão.
type Demand struct {
	ID              string
	Type            Type
	Status          Status
	Description     string
	Address         Address
	CreatedAt       time.Time
	Users           []string
	Departments     []string
	ResolutionNote  string
	ResolutionImage string
	FeedbackScore   *int
	FeedbackNote    string
	ReturnReason    string
	RejectionReason string
	RequestImage    string

	// Preenchidos apenas quando a leitura pede referências populadas.
	UserDetails       []UserSummary
	DepartmentDetails []DepartmentSummary
}

// HasUser indica se o usuário pertence a usuarios.
func (d Demand) HasUser(id string) bool {
	return contains(d.Users, id)
}

// SharesDepartment indica se alguma das secretarias informadas roteia a demanda.
func (d Demand) SharesDepartment(ids []string) bool {
	for _, id := range ids {
		if contains(d.Departments, id) {
			return true
		}
	}
	return false
}

// Document converte a demanda para a representação de saída, chave a chave.
func (d Demand) Document() Document {
	doc := Document{
		access.FieldID:          d.ID,
		access.FieldType:        d.Type,
		access.FieldStatus:      d.Status,
		access.FieldDescription: d.Description,
		access.FieldAddress:     d.Address,
		access.FieldCreatedAt:   d.CreatedAt,
	}

	if d.UserDetails != nil {
		doc[access.FieldUsers] = append([]UserSummary(nil), d.UserDetails...)
	} else {
		doc[access.FieldUsers] = cloneIDs(d.Users)
	}
	if d.DepartmentDetails != nil {
		doc[access.FieldDepartments] = append([]DepartmentSummary(nil), d.DepartmentDetails...)
	} else {
		doc[access.FieldDepartments] = cloneIDs(d.Departments)
	}

	setIfNotEmpty(doc, access.FieldResolutionNote, d.ResolutionNote)
	setIfNotEmpty(doc, access.FieldResolutionImage, d.ResolutionImage)
	setIfNotEmpty(doc, access.FieldFeedbackNote, d.FeedbackNote)
	setIfNotEmpty(doc, access.FieldReturnReason, d.ReturnReason)
	setIfNotEmpty(doc, access.FieldRejectionReason, d.RejectionReason)
	setIfNotEmpty(doc, access.FieldRequestImage, d.RequestImage)
	if d.FeedbackScore != nil {
		doc[access.FieldFeedbackScore] = *d.FeedbackScore
	}
	return doc
}

// Apply devolve uma nova demanda com as alterações aplicadas.
func (d Demand) Apply(in Input) Demand {
	out := d
	out.Users = cloneIDs(d.Users)
	out.Departments = cloneIDs(d.Departments)

	if in.Type != nil {
		out.Type = *in.Type
	}
	if in.Status != nil {
		out.Status = *in.Status
	}
	if in.Description != nil {
		out.Description = *in.Description
	}
	if in.Address != nil {
		out.Address = *in.Address
	}
	if in.CreatedAt != nil {
		out.CreatedAt = *in.CreatedAt
	}
	if in.Users != nil {
		out.Users = cloneIDs(in.Users)
		out.UserDetails = nil
	}
	if in.Departments != nil {
		out.Departments = cloneIDs(in.Departments)
		out.DepartmentDetails = nil
	}
	if in.ResolutionNote != nil {
		out.ResolutionNote = *in.ResolutionNote
	}
	if in.ResolutionImage != nil {
		out.ResolutionImage = *in.ResolutionImage
	}
	if in.FeedbackScore != nil {
		score := *in.FeedbackScore
		out.FeedbackScore = &score
	}
	if in.FeedbackNote != nil {
		out.FeedbackNote = *in.FeedbackNote
	}
	if in.ReturnReason != nil {
		out.ReturnReason = *in.ReturnReason
	}
	if in.RejectionReason != nil {
		out.RejectionReason = *in.RejectionReason
	}
	if in.RequestImage != nil {
		out.RequestImage = *in.RequestImage
	}
	return out
}

// Input é o payload já validado de uma operação. Campos nil não são tocados;
// Users/Departments nil também significam "sem alteração".
type Input struct {
	Type            *Type      `json:"tipo,omitempty"`
	Status          *Status    `json:"status,omitempty"`
	Description     *string    `json:"descricao,omitempty"`
	Address         *Address   `json:"endereco,omitempty"`
	CreatedAt       *time.Time `json:"data_criacao,omitempty"`
	Users           []string   `json:"usuarios,omitempty"`
	Departments     []string   `json:"secretarias,omitempty"`
	ResolutionNote  *string    `json:"resolucao,omitempty"`
	ResolutionImage *string    `json:"link_imagem_resolucao,omitempty"`
	FeedbackScore   *int       `json:"feedback,omitempty"`
	FeedbackNote    *string    `json:"avaliacao_resolucao,omitempty"`
	ReturnReason    *string    `json:"motivo_devolucao,omitempty"`
	RejectionReason *string    `json:"motivo_rejeicao,omitempty"`
	RequestImage    *string    `json:"link_imagem,omitempty"`
}

var (
	workflowFields = []string{
		access.FieldResolutionNote,
		access.FieldResolutionImage,
		access.FieldFeedbackScore,
		access.FieldFeedbackNote,
		access.FieldReturnReason,
		access.FieldRejectionReason,
	}
)

// Only devolve uma cópia contendo apenas os campos listados.
func (in Input) Only(fields ...string) Input {
	set := toSet(fields)
	return in.keep(func(f string) bool { _, ok := set[f]; return ok })
}

// Without devolve uma cópia sem os campos listados.
func (in Input) Without(fields ...string) Input {
	set := toSet(fields)
	return in.keep(func(f string) bool { _, ok := set[f]; return !ok })
}

// IsEmpty indica que nenhum campo seria escrito.
func (in Input) IsEmpty() bool {
	return len(in.Fields()) == 0
}

// Fields monta o documento de alterações chaveado pelo nome do campo.
func (in Input) Fields() map[string]any {
	out := make(map[string]any)
	if in.Type != nil {
		out[access.FieldType] = *in.Type
	}
	if in.Status != nil {
		out[access.FieldStatus] = *in.Status
	}
	if in.Description != nil {
		out[access.FieldDescription] = *in.Description
	}
	if in.Address != nil {
		out[access.FieldAddress] = *in.Address
	}
	if in.CreatedAt != nil {
		out[access.FieldCreatedAt] = *in.CreatedAt
	}
	if in.Users != nil {
		out[access.FieldUsers] = cloneIDs(in.Users)
	}
	if in.Departments != nil {
		out[access.FieldDepartments] = cloneIDs(in.Departments)
	}
	if in.ResolutionNote != nil {
		out[access.FieldResolutionNote] = *in.ResolutionNote
	}
	if in.ResolutionImage != nil {
		out[access.FieldResolutionImage] = *in.ResolutionImage
	}
	if in.FeedbackScore != nil {
		out[access.FieldFeedbackScore] = *in.FeedbackScore
	}
	if in.FeedbackNote != nil {
		out[access.FieldFeedbackNote] = *in.FeedbackNote
	}
	if in.ReturnReason != nil {
		out[access.FieldReturnReason] = *in.ReturnReason
	}
	if in.RejectionReason != nil {
		out[access.FieldRejectionReason] = *in.RejectionReason
	}
	if in.RequestImage != nil {
		out[access.FieldRequestImage] = *in.RequestImage
	}
	return out
}

func (in Input) keep(keep func(string) bool) Input {
	var out Input
	if keep(access.FieldType) {
		out.Type = in.Type
	}
	if keep(access.FieldStatus) {
		out.Status = in.Status
	}
	if keep(access.FieldDescription) {
		out.Description = in.Description
	}
	if keep(access.FieldAddress) {
		out.Address = in.Address
	}
	if keep(access.FieldCreatedAt) {
		out.CreatedAt = in.CreatedAt
	}
	if keep(access.FieldUsers) && in.Users != nil {
		out.Users = cloneIDs(in.Users)
	}
	if keep(access.FieldDepartments) && in.Departments != nil {
		out.Departments = cloneIDs(in.Departments)
	}
	if keep(access.FieldResolutionNote) {
		out.ResolutionNote = in.ResolutionNote
	}
	if keep(access.FieldResolutionImage) {
		out.ResolutionImage = in.ResolutionImage
	}
	if keep(access.FieldFeedbackScore) {
		out.FeedbackScore = in.FeedbackScore
	}
	if keep(access.FieldFeedbackNote) {
		out.FeedbackNote = in.FeedbackNote
	}
	if keep(access.FieldReturnReason) {
		out.ReturnReason = in.ReturnReason
	}
	if keep(access.FieldRejectionReason) {
		out.RejectionReason = in.RejectionReason
	}
	if keep(access.FieldRequestImage) {
		out.RequestImage = in.RequestImage
	}
	return out
}

// Ptr facilita a montagem de Inputs.
func Ptr[T any](v T) *T {
	return &v
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

// cloneIDs preserva a distinção entre nil e vazio.
func cloneIDs(ids []string) []string {
	if ids == nil {
		return nil
	}
	return append(make([]string, 0, len(ids)), ids...)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func setIfNotEmpty(doc Document, key, value string) {
	if value != "" {
		doc[key] = value
	}
}

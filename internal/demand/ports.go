package demand

import (
	"context"
	"strings"

	"github.com/gestaozabele/demandas/internal/access"
)

// Reference nomeia uma referência que pode ser populada na leitura.
type Reference string

const (
	RefUsers       Reference = Reference(access.FieldUsers)
	RefDepartments Reference = Reference(access.FieldDepartments)
)

// ParseReferences interpreta "usuarios,secretarias"; nomes desconhecidos são ignorados.
func ParseReferences(raw string) []Reference {
	var out []Reference
	for _, part := range strings.Split(raw, ",") {
		switch ref := Reference(strings.TrimSpace(part)); ref {
		case RefUsers, RefDepartments:
			out = append(out, ref)
		}
	}
	return out
}

// Populates indica se ref está entre as referências pedidas.
func Populates(refs []Reference, ref Reference) bool {
	for _, r := range refs {
		if r == ref {
			return true
		}
	}
	return false
}

// User é o usuário como visto pelo serviço de demandas.
type User struct {
	ID          string       `json:"_id"`
	Name        string       `json:"nome"`
	Email       string       `json:"email"`
	Flags       access.Flags `json:"nivel_acesso"`
	Departments []string     `json:"secretarias"`
}

// Department é uma secretaria municipal; cada tipo de demanda tem uma.
type Department struct {
	ID   string `json:"_id"`
	Name string `json:"nome"`
	Type Type   `json:"tipo"`
}

// Caller é o usuário autenticado, já carregado pela borda HTTP.
type Caller struct {
	ID          string
	Flags       access.Flags
	Departments []string
}

// CallerFromUser monta o Caller a partir do usuário carregado.
func CallerFromUser(u User) Caller {
	return Caller{ID: u.ID, Flags: u.Flags, Departments: cloneIDs(u.Departments)}
}

// Role resolve o papel efetivo do chamador.
func (c Caller) Role() access.Role {
	return access.Resolve(c.Flags)
}

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// PageRequest descreve paginação e ordenação de uma listagem.
type PageRequest struct {
	Page  int
	Limit int
	// SortAsc ordena por data_criacao crescente; o padrão é decrescente.
	SortAsc bool
}

// Normalize aplica os limites de página.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	return p
}

// Offset calcula o deslocamento da página normalizada.
func (p PageRequest) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.Limit
}

// Page é o resultado paginado devolvido pelo Store.
type Page struct {
	Docs      []Demand
	Page      int
	Limit     int
	TotalDocs int64
}

// DocumentPage é a página já projetada para o papel do chamador.
type DocumentPage struct {
	Docs        []Document `json:"docs"`
	Page        int        `json:"page"`
	Limit       int        `json:"limit"`
	TotalDocs   int64      `json:"totalDocs"`
	TotalPages  int        `json:"totalPages"`
	HasNextPage bool       `json:"hasNextPage"`
	HasPrevPage bool       `json:"hasPrevPage"`
}

func newDocumentPage(p *Page, docs []Document) *DocumentPage {
	totalPages := 0
	if p.Limit > 0 {
		totalPages = int((p.TotalDocs + int64(p.Limit) - 1) / int64(p.Limit))
	}
	if docs == nil {
		docs = []Document{}
	}
	return &DocumentPage{
		Docs:        docs,
		Page:        p.Page,
		Limit:       p.Limit,
		TotalDocs:   p.TotalDocs,
		TotalPages:  totalPages,
		HasNextPage: p.Page < totalPages,
		HasPrevPage: p.Page > 1,
	}
}

// Store persiste demandas. Documentos ausentes devolvem ErrNoDocument.
type Store interface {
	FindByID(ctx context.Context, id string, populate ...Reference) (Demand, error)
	Find(ctx context.Context, filter Filter, page PageRequest, populate ...Reference) (*Page, error)
	Create(ctx context.Context, d Demand) (Demand, error)
	UpdateByID(ctx context.Context, id string, changes Input, populate ...Reference) (Demand, error)
	DeleteByID(ctx context.Context, id string) (Demand, error)
}

// UserLookup consulta usuários.
type UserLookup interface {
	// FindByName busca por nome, sem diferenciar maiúsculas, por substring.
	FindByName(ctx context.Context, name string) ([]User, error)
	// FindByIDs resolve vários ids em uma única ida ao banco; ids ausentes são omitidos.
	FindByIDs(ctx context.Context, ids []string) ([]User, error)
}

// DepartmentLookup consulta secretarias.
type DepartmentLookup interface {
	// FindByType devolve ErrNoDocument quando nenhuma secretaria atende o tipo.
	FindByType(ctx context.Context, t Type) (Department, error)
	FindByName(ctx context.Context, name string) ([]Department, error)
}

package demand

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const dateLayout = "2006-01-02"

// IDSet é um predicado de pertinência. Um IDSet vazio não casa nada.
type IDSet struct {
	IDs []string
}

// Filter é o predicado de listagem já resolvido. Cada adaptador de Store o
// traduz para sua linguagem de consulta; Match é a versão em memória.
type Filter struct {
	// Type casa por substring, sem diferenciar maiúsculas.
	Type   string
	Status Status
	// From e To são limites inclusivos em UTC.
	From *time.Time
	To   *time.Time
	// Address casa por substring em qualquer parte do endereço.
	Address string
	// Departments restringe às secretarias informadas pelo chamador.
	Departments *IDSet
	// Users e DepartmentNames vêm da resolução de nomes.
	Users           *IDSet
	DepartmentNames *IDSet
	// Owner restringe às demandas em que o usuário figura.
	Owner string
}

// MatchesNothing indica que algum predicado de pertinência está vazio.
func (f Filter) MatchesNothing() bool {
	for _, set := range []*IDSet{f.Departments, f.Users, f.DepartmentNames} {
		if set != nil && len(set.IDs) == 0 {
			return true
		}
	}
	return false
}

// Match avalia o filtro sobre uma demanda.
func (f Filter) Match(d Demand) bool {
	if f.MatchesNothing() {
		return false
	}
	if f.Type != "" && !containsFold(string(d.Type), f.Type) {
		return false
	}
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	if f.From != nil && d.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && d.CreatedAt.After(*f.To) {
		return false
	}
	if f.Address != "" && !addressMatches(d.Address, f.Address) {
		return false
	}
	if f.Departments != nil && !d.SharesDepartment(f.Departments.IDs) {
		return false
	}
	if f.DepartmentNames != nil && !d.SharesDepartment(f.DepartmentNames.IDs) {
		return false
	}
	if f.Users != nil && !sharesAny(d.Users, f.Users.IDs) {
		return false
	}
	if f.Owner != "" && !d.HasUser(f.Owner) {
		return false
	}
	return true
}

func addressMatches(a Address, text string) bool {
	for _, part := range a.parts() {
		if containsFold(part, text) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func sharesAny(values, candidates []string) bool {
	for _, c := range candidates {
		if contains(values, c) {
			return true
		}
	}
	return false
}

// Criteria são os critérios de listagem como chegam da borda, todos opcionais.
type Criteria struct {
	Type           string
	Status         string
	From           string
	To             string
	Address        string
	UserName       string
	DepartmentName string
	Departments    []string
}

// FilterBuilder acumula critérios e resolve nomes em ids no Build.
// Definir o mesmo critério de novo sobrescreve o anterior.
type FilterBuilder struct {
	users       UserLookup
	departments DepartmentLookup

	filter         Filter
	userName       string
	departmentName string
	// erros de parse ficam por critério para que redefinir o critério os limpe
	statusErr error
	dateErr   error
}

// NewFilterBuilder cria um builder vazio.
func NewFilterBuilder(users UserLookup, departments DepartmentLookup) *FilterBuilder {
	return &FilterBuilder{users: users, departments: departments}
}

// Criteria aplica todos os critérios não vazios.
func (b *FilterBuilder) Criteria(c Criteria) *FilterBuilder {
	if c.Type != "" {
		b.Type(c.Type)
	}
	if c.Status != "" {
		b.Status(c.Status)
	}
	if c.From != "" || c.To != "" {
		b.DateRange(c.From, c.To)
	}
	if c.Address != "" {
		b.Address(c.Address)
	}
	if c.UserName != "" {
		b.UserName(c.UserName)
	}
	if c.DepartmentName != "" {
		b.DepartmentName(c.DepartmentName)
	}
	if c.Departments != nil {
		b.Departments(c.Departments)
	}
	return b
}

func (b *FilterBuilder) Type(t string) *FilterBuilder {
	b.filter.Type = strings.TrimSpace(t)
	return b
}

// Status aceita apenas os estados do ciclo de vida.
func (b *FilterBuilder) Status(s string) *FilterBuilder {
	b.filter.Status, b.statusErr = "", nil
	status := Status(strings.TrimSpace(s))
	if status == "" {
		return b
	}
	if !IsValidStatus(status) {
		b.statusErr = Invalid("status inválido")
		return b
	}
	b.filter.Status = status
	return b
}

// DateRange aceita datas AAAA-MM-DD; o fim inclui o dia inteiro.
func (b *FilterBuilder) DateRange(from, to string) *FilterBuilder {
	b.filter.From, b.filter.To, b.dateErr = nil, nil, nil

	var start, end *time.Time
	if from = strings.TrimSpace(from); from != "" {
		day, err := time.ParseInLocation(dateLayout, from, time.UTC)
		if err != nil {
			b.dateErr = Invalid("data inicial inválida")
			return b
		}
		start = &day
	}
	if to = strings.TrimSpace(to); to != "" {
		day, err := time.ParseInLocation(dateLayout, to, time.UTC)
		if err != nil {
			b.dateErr = Invalid("data final inválida")
			return b
		}
		last := day.Add(24*time.Hour - time.Nanosecond)
		end = &last
	}

	b.filter.From, b.filter.To = start, end
	return b
}

func (b *FilterBuilder) Address(text string) *FilterBuilder {
	b.filter.Address = strings.TrimSpace(text)
	return b
}

// Departments restringe a listagem às secretarias informadas.
func (b *FilterBuilder) Departments(ids []string) *FilterBuilder {
	b.filter.Departments = &IDSet{IDs: dedupe(ids)}
	return b
}

// Owner restringe às demandas em que o usuário figura.
func (b *FilterBuilder) Owner(id string) *FilterBuilder {
	b.filter.Owner = id
	return b
}

func (b *FilterBuilder) UserName(name string) *FilterBuilder {
	b.userName = strings.TrimSpace(name)
	return b
}

func (b *FilterBuilder) DepartmentName(name string) *FilterBuilder {
	b.departmentName = strings.TrimSpace(name)
	return b
}

// Build resolve os nomes pendentes em paralelo e devolve o filtro final.
// Nomes sem correspondência produzem um filtro que não casa nada.
func (b *FilterBuilder) Build(ctx context.Context) (Filter, error) {
	if b.statusErr != nil {
		return Filter{}, b.statusErr
	}
	if b.dateErr != nil {
		return Filter{}, b.dateErr
	}

	var userIDs, departmentIDs []string
	g, gctx := errgroup.WithContext(ctx)

	if b.userName != "" {
		name := b.userName
		g.Go(func() error {
			users, err := b.users.FindByName(gctx, name)
			if err != nil {
				return Internal("falha ao buscar usuários", err)
			}
			userIDs = make([]string, 0, len(users))
			for _, u := range users {
				userIDs = append(userIDs, u.ID)
			}
			return nil
		})
	}
	if b.departmentName != "" {
		name := b.departmentName
		g.Go(func() error {
			deps, err := b.departments.FindByName(gctx, name)
			if err != nil {
				return Internal("falha ao buscar secretarias", err)
			}
			departmentIDs = make([]string, 0, len(deps))
			for _, d := range deps {
				departmentIDs = append(departmentIDs, d.ID)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Filter{}, err
	}

	out := b.filter
	if out.Departments != nil {
		out.Departments = &IDSet{IDs: cloneIDs(out.Departments.IDs)}
	}
	if userIDs != nil {
		out.Users = &IDSet{IDs: userIDs}
	}
	if departmentIDs != nil {
		out.DepartmentNames = &IDSet{IDs: departmentIDs}
	}
	return out, nil
}

// Package memory guarda demandas, usuários e secretarias em memória.
// Serve aos testes e ao modo STORE_DRIVER=memory de desenvolvimento.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/gestaozabele/demandas/internal/demand"
)

// Store implementa demand.Store e as duas consultas auxiliares.
type Store struct {
	mu          sync.RWMutex
	demands     map[string]demand.Demand
	users       map[string]demand.User
	departments map[string]demand.Department
}

func New() *Store {
	return &Store{
		demands:     make(map[string]demand.Demand),
		users:       make(map[string]demand.User),
		departments: make(map[string]demand.Department),
	}
}

// PutUser registra ou substitui um usuário.
func (s *Store) PutUser(u demand.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// PutDepartment registra ou substitui uma secretaria.
func (s *Store) PutDepartment(d demand.Department) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.departments[d.ID] = d
}

// Put grava a demanda como está, sem gerar id.
func (s *Store) Put(d demand.Demand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.demands[d.ID] = d.Apply(demand.Input{})
}

func (s *Store) FindByID(_ context.Context, id string, populate ...demand.Reference) (demand.Demand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.demands[id]
	if !ok {
		return demand.Demand{}, demand.ErrNoDocument
	}
	return s.populate(d, populate), nil
}

func (s *Store) Find(_ context.Context, filter demand.Filter, page demand.PageRequest, populate ...demand.Reference) (*demand.Page, error) {
	page = page.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]demand.Demand, 0)
	for _, d := range s.demands {
		if filter.Match(d) {
			matched = append(matched, d)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		if page.SortAsc {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	total := int64(len(matched))
	start := page.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + page.Limit
	if end > len(matched) {
		end = len(matched)
	}

	docs := make([]demand.Demand, 0, end-start)
	for _, d := range matched[start:end] {
		docs = append(docs, s.populate(d, populate))
	}
	return &demand.Page{Docs: docs, Page: page.Page, Limit: page.Limit, TotalDocs: total}, nil
}

func (s *Store) Create(_ context.Context, d demand.Demand) (demand.Demand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d = d.Apply(demand.Input{})
	d.UserDetails, d.DepartmentDetails = nil, nil
	s.demands[d.ID] = d
	return d, nil
}

func (s *Store) UpdateByID(_ context.Context, id string, changes demand.Input, populate ...demand.Reference) (demand.Demand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.demands[id]
	if !ok {
		return demand.Demand{}, demand.ErrNoDocument
	}
	d = d.Apply(changes)
	s.demands[id] = d
	return s.populate(d, populate), nil
}

func (s *Store) DeleteByID(_ context.Context, id string) (demand.Demand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.demands[id]
	if !ok {
		return demand.Demand{}, demand.ErrNoDocument
	}
	delete(s.demands, id)
	return d, nil
}

// ImageRefs lista as referências de imagem gravadas nas demandas.
func (s *Store) ImageRefs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var refs []string
	for _, d := range s.demands {
		if d.RequestImage != "" {
			refs = append(refs, d.RequestImage)
		}
		if d.ResolutionImage != "" {
			refs = append(refs, d.ResolutionImage)
		}
	}
	return refs, nil
}

// Users expõe o Store como demand.UserLookup.
func (s *Store) Users() demand.UserLookup { return userLookup{s} }

// Departments expõe o Store como demand.DepartmentLookup.
func (s *Store) Departments() demand.DepartmentLookup { return departmentLookup{s} }

type userLookup struct{ s *Store }

func (l userLookup) FindByName(_ context.Context, name string) ([]demand.User, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()

	var out []demand.User
	for _, u := range l.s.users {
		if containsFold(u.Name, name) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (l userLookup) FindByIDs(_ context.Context, ids []string) ([]demand.User, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()

	out := make([]demand.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := l.s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type departmentLookup struct{ s *Store }

func (l departmentLookup) FindByType(_ context.Context, t demand.Type) (demand.Department, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()

	var found []demand.Department
	for _, d := range l.s.departments {
		if d.Type == t {
			found = append(found, d)
		}
	}
	if len(found) == 0 {
		return demand.Department{}, demand.ErrNoDocument
	}
	sort.Slice(found, func(i, j int) bool { return found[i].ID < found[j].ID })
	return found[0], nil
}

func (l departmentLookup) FindByName(_ context.Context, name string) ([]demand.Department, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()

	var out []demand.Department
	for _, d := range l.s.departments {
		if containsFold(d.Name, name) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// populate deve ser chamado com o lock já adquirido.
func (s *Store) populate(d demand.Demand, refs []demand.Reference) demand.Demand {
	if demand.Populates(refs, demand.RefUsers) {
		details := make([]demand.UserSummary, 0, len(d.Users))
		for _, id := range d.Users {
			if u, ok := s.users[id]; ok {
				details = append(details, demand.UserSummary{ID: u.ID, Name: u.Name, Email: u.Email})
			}
		}
		d.UserDetails = details
	}
	if demand.Populates(refs, demand.RefDepartments) {
		details := make([]demand.DepartmentSummary, 0, len(d.Departments))
		for _, id := range d.Departments {
			if dep, ok := s.departments[id]; ok {
				details = append(details, demand.DepartmentSummary{ID: dep.ID, Name: dep.Name, Type: dep.Type})
			}
		}
		d.DepartmentDetails = details
	}
	return d
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

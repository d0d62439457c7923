// Package pgstore implementa a persistência de demandas no Postgres.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gestaozabele/demandas/internal/db"
	"github.com/gestaozabele/demandas/internal/demand"
)

//go:embed schema.sql
var schema string

// Nomes usados ao criar as secretarias padrão, uma por tipo.
var defaultDepartments = []demand.Department{
	{Name: "Secretaria de Limpeza Urbana", Type: demand.TypeCollection},
	{Name: "Secretaria de Iluminação Pública", Type: demand.TypeLighting},
	{Name: "Secretaria de Saneamento", Type: demand.TypeSanitation},
	{Name: "Secretaria de Meio Ambiente", Type: demand.TypeTrees},
	{Name: "Secretaria de Proteção Animal", Type: demand.TypeAnimals},
	{Name: "Secretaria de Obras e Pavimentação", Type: demand.TypePaving},
}

// Migrate aplica o schema e garante uma secretaria por tipo, numa transação.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	return db.WithTx(ctx, pool, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, schema); err != nil {
			return fmt.Errorf("pgstore: aplicar schema: %w", err)
		}
		const seed = `
        INSERT INTO secretarias (nome, tipo)
        SELECT $1, $2
        WHERE NOT EXISTS (SELECT 1 FROM secretarias WHERE tipo = $2)`
		for _, dep := range defaultDepartments {
			if _, err := tx.Exec(ctx, seed, dep.Name, string(dep.Type)); err != nil {
				return fmt.Errorf("pgstore: secretaria padrão %s: %w", dep.Type, err)
			}
		}
		return nil
	})
}

// Store implementa demand.Store sobre a tabela demandas.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping é usado pelo /ready.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) FindByID(ctx context.Context, id string, populate ...demand.Reference) (demand.Demand, error) {
	if _, err := uuid.Parse(id); err != nil {
		return demand.Demand{}, demand.ErrNoDocument
	}

	query := `SELECT ` + demandColumns + ` FROM demandas WHERE id = $1`
	d, err := scanDemand(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return demand.Demand{}, mapErr(err)
	}
	docs, err := s.populate(ctx, []demand.Demand{d}, populate)
	if err != nil {
		return demand.Demand{}, err
	}
	return docs[0], nil
}

func (s *Store) Find(ctx context.Context, filter demand.Filter, page demand.PageRequest, populate ...demand.Reference) (*demand.Page, error) {
	page = page.Normalize()
	result := &demand.Page{Docs: []demand.Demand{}, Page: page.Page, Limit: page.Limit}

	where, args, ok := whereClause(filter)
	if !ok {
		return result, nil
	}

	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM demandas`+where, args...).Scan(&result.TotalDocs); err != nil {
		return nil, fmt.Errorf("pgstore: contar demandas: %w", err)
	}

	order := "DESC"
	if page.SortAsc {
		order = "ASC"
	}
	idx := len(args) + 1
	query := fmt.Sprintf(`SELECT %s FROM demandas%s ORDER BY data_criacao %s, id %s LIMIT $%d OFFSET $%d`,
		demandColumns, where, order, order, idx, idx+1)
	args = append(args, page.Limit, page.Offset())

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgstore: listar demandas: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		d, err := scanDemand(rows)
		if err != nil {
			return nil, err
		}
		result.Docs = append(result.Docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result.Docs, err = s.populate(ctx, result.Docs, populate)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) Create(ctx context.Context, d demand.Demand) (demand.Demand, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	users, err := strictUUIDs(d.Users)
	if err != nil {
		return demand.Demand{}, err
	}
	departments, err := strictUUIDs(d.Departments)
	if err != nil {
		return demand.Demand{}, err
	}

	query := `
        INSERT INTO demandas (id, tipo, status, descricao, endereco, data_criacao, usuarios, secretarias,
            resolucao, link_imagem_resolucao, feedback, avaliacao_resolucao, motivo_devolucao, motivo_rejeicao, link_imagem)
        VALUES ($1, $2, $3, $4, $5, $6, $7::uuid[], $8::uuid[], $9, $10, $11, $12, $13, $14, $15)
        RETURNING ` + demandColumns

	row := s.pool.QueryRow(ctx, query,
		d.ID,
		string(d.Type),
		string(d.Status),
		d.Description,
		d.Address,
		d.CreatedAt,
		users,
		departments,
		d.ResolutionNote,
		d.ResolutionImage,
		d.FeedbackScore,
		d.FeedbackNote,
		d.ReturnReason,
		d.RejectionReason,
		d.RequestImage,
	)
	created, err := scanDemand(row)
	if err != nil {
		return demand.Demand{}, fmt.Errorf("pgstore: inserir demanda: %w", err)
	}
	return created, nil
}

func (s *Store) UpdateByID(ctx context.Context, id string, changes demand.Input, populate ...demand.Reference) (demand.Demand, error) {
	if _, err := uuid.Parse(id); err != nil {
		return demand.Demand{}, demand.ErrNoDocument
	}
	set, args, err := setClause(changes)
	if err != nil {
		return demand.Demand{}, err
	}
	if set == "" {
		return s.FindByID(ctx, id, populate...)
	}

	query := `UPDATE demandas SET ` + set + ` WHERE id = $1 RETURNING ` + demandColumns
	d, err := scanDemand(s.pool.QueryRow(ctx, query, append([]any{id}, args...)...))
	if err != nil {
		return demand.Demand{}, mapErr(err)
	}
	docs, err := s.populate(ctx, []demand.Demand{d}, populate)
	if err != nil {
		return demand.Demand{}, err
	}
	return docs[0], nil
}

func (s *Store) DeleteByID(ctx context.Context, id string) (demand.Demand, error) {
	if _, err := uuid.Parse(id); err != nil {
		return demand.Demand{}, demand.ErrNoDocument
	}
	d, err := scanDemand(s.pool.QueryRow(ctx, `DELETE FROM demandas WHERE id = $1 RETURNING `+demandColumns, id))
	if err != nil {
		return demand.Demand{}, mapErr(err)
	}
	return d, nil
}

// ImageRefs lista as referências de imagem gravadas nas demandas.
func (s *Store) ImageRefs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT link_imagem, link_imagem_resolucao
        FROM demandas
        WHERE link_imagem <> '' OR link_imagem_resolucao <> ''`)
	if err != nil {
		return nil, fmt.Errorf("pgstore: listar imagens: %w", err)
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var request, resolution string
		if err := rows.Scan(&request, &resolution); err != nil {
			return nil, err
		}
		if request != "" {
			refs = append(refs, request)
		}
		if resolution != "" {
			refs = append(refs, resolution)
		}
	}
	return refs, rows.Err()
}

func (s *Store) populate(ctx context.Context, docs []demand.Demand, refs []demand.Reference) ([]demand.Demand, error) {
	if len(docs) == 0 || len(refs) == 0 {
		return docs, nil
	}

	if demand.Populates(refs, demand.RefUsers) {
		users, err := s.Users().FindByIDs(ctx, collect(docs, func(d demand.Demand) []string { return d.Users }))
		if err != nil {
			return nil, err
		}
		byID := make(map[string]demand.User, len(users))
		for _, u := range users {
			byID[u.ID] = u
		}
		for i := range docs {
			details := make([]demand.UserSummary, 0, len(docs[i].Users))
			for _, id := range docs[i].Users {
				if u, ok := byID[id]; ok {
					details = append(details, demand.UserSummary{ID: u.ID, Name: u.Name, Email: u.Email})
				}
			}
			docs[i].UserDetails = details
		}
	}

	if demand.Populates(refs, demand.RefDepartments) {
		deps, err := s.Departments().findByIDs(ctx, collect(docs, func(d demand.Demand) []string { return d.Departments }))
		if err != nil {
			return nil, err
		}
		byID := make(map[string]demand.Department, len(deps))
		for _, dep := range deps {
			byID[dep.ID] = dep
		}
		for i := range docs {
			details := make([]demand.DepartmentSummary, 0, len(docs[i].Departments))
			for _, id := range docs[i].Departments {
				if dep, ok := byID[id]; ok {
					details = append(details, demand.DepartmentSummary{ID: dep.ID, Name: dep.Name, Type: dep.Type})
				}
			}
			docs[i].DepartmentDetails = details
		}
	}
	return docs, nil
}

func collect(docs []demand.Demand, ids func(demand.Demand) []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, d := range docs {
		for _, id := range ids(d) {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func scanDemand(row pgx.Row) (demand.Demand, error) {
	var (
		d           demand.Demand
		typ, status string
		feedback    *int
		users, deps []string
	)
	err := row.Scan(
		&d.ID,
		&typ,
		&status,
		&d.Description,
		&d.Address,
		&d.CreatedAt,
		&users,
		&deps,
		&d.ResolutionNote,
		&d.ResolutionImage,
		&feedback,
		&d.FeedbackNote,
		&d.ReturnReason,
		&d.RejectionReason,
		&d.RequestImage,
	)
	if err != nil {
		return demand.Demand{}, err
	}
	d.Type = demand.Type(typ)
	d.Status = demand.Status(status)
	d.CreatedAt = d.CreatedAt.UTC()
	d.FeedbackScore = feedback
	d.Users = nonNil(users)
	d.Departments = nonNil(deps)
	return d, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return demand.ErrNoDocument
	}
	return fmt.Errorf("pgstore: %w", err)
}

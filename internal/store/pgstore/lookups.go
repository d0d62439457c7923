package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gestaozabele/demandas/internal/access"
	"github.com/gestaozabele/demandas/internal/demand"
)

// Users implementa demand.UserLookup.
type Users struct {
	pool *pgxpool.Pool
}

func NewUsers(pool *pgxpool.Pool) *Users {
	return &Users{pool: pool}
}

func (s *Store) Users() *Users { return &Users{pool: s.pool} }

const userColumns = `id::text, nome, email, nivel_acesso, secretarias::text[]`

func (u *Users) FindByName(ctx context.Context, name string) ([]demand.User, error) {
	return u.query(ctx, `SELECT `+userColumns+` FROM usuarios WHERE nome ILIKE $1 ORDER BY nome`, likePattern(name))
}

func (u *Users) FindByIDs(ctx context.Context, ids []string) ([]demand.User, error) {
	valid := validUUIDs(ids)
	if len(valid) == 0 {
		return []demand.User{}, nil
	}
	return u.query(ctx, `SELECT `+userColumns+` FROM usuarios WHERE id = ANY($1::uuid[])`, valid)
}

func (u *Users) query(ctx context.Context, query string, args ...any) ([]demand.User, error) {
	rows, err := u.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgstore: buscar usuários: %w", err)
	}
	defer rows.Close()

	out := []demand.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

func scanUser(row pgx.Row) (demand.User, error) {
	var (
		u     demand.User
		flags access.Flags
		deps  []string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &flags, &deps); err != nil {
		return demand.User{}, err
	}
	u.Flags = flags
	u.Departments = nonNil(deps)
	return u, nil
}

// Departments implementa demand.DepartmentLookup.
type Departments struct {
	pool *pgxpool.Pool
}

func NewDepartments(pool *pgxpool.Pool) *Departments {
	return &Departments{pool: pool}
}

func (s *Store) Departments() *Departments { return &Departments{pool: s.pool} }

func (d *Departments) FindByType(ctx context.Context, t demand.Type) (demand.Department, error) {
	var dep demand.Department
	var typ string
	err := d.pool.QueryRow(ctx, `SELECT id::text, nome, tipo FROM secretarias WHERE tipo = $1 ORDER BY id LIMIT 1`, string(t)).
		Scan(&dep.ID, &dep.Name, &typ)
	if err != nil {
		return demand.Department{}, mapErr(err)
	}
	dep.Type = demand.Type(typ)
	return dep, nil
}

func (d *Departments) FindByName(ctx context.Context, name string) ([]demand.Department, error) {
	return d.query(ctx, `SELECT id::text, nome, tipo FROM secretarias WHERE nome ILIKE $1 ORDER BY nome`, likePattern(name))
}

func (d *Departments) findByIDs(ctx context.Context, ids []string) ([]demand.Department, error) {
	valid := validUUIDs(ids)
	if len(valid) == 0 {
		return []demand.Department{}, nil
	}
	return d.query(ctx, `SELECT id::text, nome, tipo FROM secretarias WHERE id = ANY($1::uuid[])`, valid)
}

func (d *Departments) query(ctx context.Context, query string, args ...any) ([]demand.Department, error) {
	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgstore: buscar secretarias: %w", err)
	}
	defer rows.Close()

	out := []demand.Department{}
	for rows.Next() {
		var dep demand.Department
		var typ string
		if err := rows.Scan(&dep.ID, &dep.Name, &typ); err != nil {
			return nil, err
		}
		dep.Type = demand.Type(typ)
		out = append(out, dep)
	}
	return out, rows.Err()
}

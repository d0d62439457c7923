package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestaozabele/demandas/internal/demand"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	st := New()
	st.PutUser(demand.User{ID: "u1", Name: "Maria Souza", Email: "maria@cidade.gov.br"})
	st.PutUser(demand.User{ID: "u2", Name: "João Lima"})
	st.PutDepartment(demand.Department{ID: "s1", Name: "Iluminação Pública", Type: demand.TypeLighting})

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	st.Put(demand.Demand{ID: "d1", Type: demand.TypeLighting, Status: demand.StatusOpen, CreatedAt: base,
		Users: []string{"u1"}, Departments: []string{"s1"}, RequestImage: "demandas/a.jpg"})
	st.Put(demand.Demand{ID: "d2", Type: demand.TypeLighting, Status: demand.StatusOpen, CreatedAt: base.Add(time.Hour),
		Users: []string{"u2"}, Departments: []string{"s1"}, ResolutionImage: "demandas/b.png"})
	st.Put(demand.Demand{ID: "d3", Type: demand.TypePaving, Status: demand.StatusOpen, CreatedAt: base.Add(2 * time.Hour),
		Users: []string{"u1"}})
	return st
}

func TestFindSortsAndPaginates(t *testing.T) {
	st := seeded(t)
	ctx := context.Background()

	page, err := st.Find(ctx, demand.Filter{}, demand.PageRequest{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.TotalDocs)
	require.Len(t, page.Docs, 2)
	assert.Equal(t, "d3", page.Docs[0].ID)
	assert.Equal(t, "d2", page.Docs[1].ID)

	page, err = st.Find(ctx, demand.Filter{}, demand.PageRequest{Page: 2, Limit: 2, SortAsc: true})
	require.NoError(t, err)
	require.Len(t, page.Docs, 1)
	assert.Equal(t, "d3", page.Docs[0].ID)

	page, err = st.Find(ctx, demand.Filter{}, demand.PageRequest{Page: 9, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, page.Docs)
}

func TestFindAppliesFilter(t *testing.T) {
	st := seeded(t)

	page, err := st.Find(context.Background(), demand.Filter{Owner: "u1", Type: "ilumin"}, demand.PageRequest{})
	require.NoError(t, err)
	require.Len(t, page.Docs, 1)
	assert.Equal(t, "d1", page.Docs[0].ID)

	page, err = st.Find(context.Background(), demand.Filter{Users: &demand.IDSet{}}, demand.PageRequest{})
	require.NoError(t, err)
	assert.Zero(t, page.TotalDocs)
}

func TestPopulate(t *testing.T) {
	st := seeded(t)

	d, err := st.FindByID(context.Background(), "d1", demand.RefUsers, demand.RefDepartments)
	require.NoError(t, err)
	assert.Equal(t, []demand.UserSummary{{ID: "u1", Name: "Maria Souza", Email: "maria@cidade.gov.br"}}, d.UserDetails)
	assert.Equal(t, []demand.DepartmentSummary{{ID: "s1", Name: "Iluminação Pública", Type: demand.TypeLighting}}, d.DepartmentDetails)

	d, err = st.FindByID(context.Background(), "d1")
	require.NoError(t, err)
	assert.Nil(t, d.UserDetails)
}

func TestWritesAndMissingDocuments(t *testing.T) {
	st := seeded(t)
	ctx := context.Background()

	created, err := st.Create(ctx, demand.Demand{Type: demand.TypeTrees, Status: demand.StatusOpen})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	updated, err := st.UpdateByID(ctx, created.ID, demand.Input{Description: demand.Ptr("galho caído")})
	require.NoError(t, err)
	assert.Equal(t, "galho caído", updated.Description)

	_, err = st.DeleteByID(ctx, created.ID)
	require.NoError(t, err)

	_, err = st.FindByID(ctx, created.ID)
	assert.ErrorIs(t, err, demand.ErrNoDocument)
	_, err = st.UpdateByID(ctx, "nada", demand.Input{})
	assert.ErrorIs(t, err, demand.ErrNoDocument)
	_, err = st.DeleteByID(ctx, "nada")
	assert.ErrorIs(t, err, demand.ErrNoDocument)
}

func TestLookupsAndImageRefs(t *testing.T) {
	st := seeded(t)
	ctx := context.Background()

	users, err := st.Users().FindByName(ctx, "maria")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "u1", users[0].ID)

	users, err = st.Users().FindByIDs(ctx, []string{"u2", "x"})
	require.NoError(t, err)
	require.Len(t, users, 1)

	dep, err := st.Departments().FindByType(ctx, demand.TypeLighting)
	require.NoError(t, err)
	assert.Equal(t, "s1", dep.ID)
	_, err = st.Departments().FindByType(ctx, demand.TypeAnimals)
	assert.ErrorIs(t, err, demand.ErrNoDocument)

	refs, err := st.ImageRefs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"demandas/a.jpg", "demandas/b.png"}, refs)
}

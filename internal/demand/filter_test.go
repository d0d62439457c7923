package demand

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsers struct {
	byName map[string][]User
	err    error
	calls  atomic.Int32
}

func (s *stubUsers) FindByName(_ context.Context, name string) ([]User, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.byName[name], nil
}

func (s *stubUsers) FindByIDs(context.Context, []string) ([]User, error) {
	return nil, errors.New("não usado")
}

type stubDepartments struct {
	byName map[string][]Department
	err    error
}

func (s *stubDepartments) FindByType(context.Context, Type) (Department, error) {
	return Department{}, ErrNoDocument
}

func (s *stubDepartments) FindByName(_ context.Context, name string) ([]Department, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byName[name], nil
}

func TestFilterUnknownUserNameMatchesNothing(t *testing.T) {
	b := NewFilterBuilder(&stubUsers{}, &stubDepartments{}).UserName("ninguém")

	filter, err := b.Build(context.Background())
	require.NoError(t, err)
	require.NotNil(t, filter.Users)
	assert.True(t, filter.MatchesNothing())

	d := fullDemand()
	assert.False(t, filter.Match(d))
}

func TestFilterWithoutCriteriaMatchesEverything(t *testing.T) {
	filter, err := NewFilterBuilder(&stubUsers{}, &stubDepartments{}).Build(context.Background())
	require.NoError(t, err)
	assert.False(t, filter.MatchesNothing())
	assert.True(t, filter.Match(fullDemand()))
}

func TestFilterResolvesNamesToIDs(t *testing.T) {
	users := &stubUsers{byName: map[string][]User{"Ana": {{ID: "u1"}, {ID: "u9"}}}}
	deps := &stubDepartments{byName: map[string][]Department{"Ilum": {{ID: "s1"}}}}

	filter, err := NewFilterBuilder(users, deps).
		UserName("Ana").
		DepartmentName("Ilum").
		Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"u1", "u9"}, filter.Users.IDs)
	assert.Equal(t, []string{"s1"}, filter.DepartmentNames.IDs)
	assert.True(t, filter.Match(fullDemand()))

	other := fullDemand()
	other.Departments = []string{"s2"}
	assert.False(t, filter.Match(other))
}

func TestFilterLookupFailureIsInternal(t *testing.T) {
	users := &stubUsers{err: errors.New("conexão recusada")}

	_, err := NewFilterBuilder(users, &stubDepartments{}).UserName("Ana").Build(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInternal)
}

func TestFilterSameCriterionOverwrites(t *testing.T) {
	users := &stubUsers{byName: map[string][]User{"Bia": {{ID: "op1"}}}}

	filter, err := NewFilterBuilder(users, &stubDepartments{}).
		UserName("Ana").
		UserName("Bia").
		Status("Em aberto").
		Status("Em andamento").
		Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), users.calls.Load())
	assert.Equal(t, []string{"op1"}, filter.Users.IDs)
	assert.Equal(t, StatusInProgress, filter.Status)

	filter, err = NewFilterBuilder(users, &stubDepartments{}).
		DateRange("não-é-data", "").
		DateRange("2024-01-01", "2024-01-31").
		Status("Arquivada").
		Status("Concluído").
		Build(context.Background())
	require.NoError(t, err)
	require.NotNil(t, filter.From)
	require.NotNil(t, filter.To)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *filter.From)
	assert.Equal(t, time.Date(2024, 1, 31, 23, 59, 59, 999999999, time.UTC), *filter.To)
	assert.Equal(t, StatusResolved, filter.Status)
}

func TestFilterRejectsInvalidDatesAndStatus(t *testing.T) {
	b := NewFilterBuilder(&stubUsers{}, &stubDepartments{}).DateRange("2024-01-01", "31/01/2024")
	_, err := b.Build(context.Background())
	assert.ErrorIs(t, err, ErrValidation)
	assert.Nil(t, b.filter.From, "limite parcial não fica no filtro")

	_, err = NewFilterBuilder(&stubUsers{}, &stubDepartments{}).Status("Arquivada").Build(context.Background())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestFilterOrderIndependent(t *testing.T) {
	users := &stubUsers{byName: map[string][]User{"Ana": {{ID: "u1"}}}}
	deps := &stubDepartments{}

	a, err := NewFilterBuilder(users, deps).Type("ilum").UserName("Ana").Address("centro").Build(context.Background())
	require.NoError(t, err)
	b, err := NewFilterBuilder(users, deps).Address("centro").UserName("Ana").Type("ilum").Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestFilterDateRangeIsInclusiveUTC(t *testing.T) {
	filter, err := NewFilterBuilder(&stubUsers{}, &stubDepartments{}).
		DateRange("2024-03-01", "2024-03-01").
		Build(context.Background())
	require.NoError(t, err)

	d := fullDemand()
	d.CreatedAt = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, filter.Match(d))
	d.CreatedAt = time.Date(2024, 3, 1, 23, 59, 59, 0, time.UTC)
	assert.True(t, filter.Match(d))
	d.CreatedAt = time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	assert.False(t, filter.Match(d))
	d.CreatedAt = time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC)
	assert.False(t, filter.Match(d))
}

func TestFilterInvalidDate(t *testing.T) {
	_, err := NewFilterBuilder(&stubUsers{}, &stubDepartments{}).DateRange("01/03/2024", "").Build(context.Background())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestFilterAddressMatchesAnySubfield(t *testing.T) {
	filter, err := NewFilterBuilder(&stubUsers{}, &stubDepartments{}).Address("58000").Build(context.Background())
	require.NoError(t, err)
	assert.True(t, filter.Match(fullDemand()))

	filter, err = NewFilterBuilder(&stubUsers{}, &stubDepartments{}).Address("CENTRO").Build(context.Background())
	require.NoError(t, err)
	assert.True(t, filter.Match(fullDemand()))

	filter, err = NewFilterBuilder(&stubUsers{}, &stubDepartments{}).Address("Bessa").Build(context.Background())
	require.NoError(t, err)
	assert.False(t, filter.Match(fullDemand()))
}

func TestFilterTypeIsCaseInsensitiveSubstring(t *testing.T) {
	filter, err := NewFilterBuilder(&stubUsers{}, &stubDepartments{}).Type("ILUMINA").Build(context.Background())
	require.NoError(t, err)
	assert.True(t, filter.Match(fullDemand()))
}

func TestFilterDepartmentAllowList(t *testing.T) {
	filter, err := NewFilterBuilder(&stubUsers{}, &stubDepartments{}).Departments([]string{"s2", "s1"}).Build(context.Background())
	require.NoError(t, err)
	assert.True(t, filter.Match(fullDemand()))

	filter, err = NewFilterBuilder(&stubUsers{}, &stubDepartments{}).Departments([]string{}).Build(context.Background())
	require.NoError(t, err)
	assert.True(t, filter.MatchesNothing())
}

func TestFilterCriteria(t *testing.T) {
	users := &stubUsers{byName: map[string][]User{"Ana": {{ID: "u1"}}}}

	filter, err := NewFilterBuilder(users, &stubDepartments{}).Criteria(Criteria{
		Type:     "Iluminação",
		Status:   "Em andamento",
		From:     "2024-01-01",
		UserName: "Ana",
	}).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Iluminação", filter.Type)
	assert.NotNil(t, filter.From)
	assert.Nil(t, filter.To)
	assert.True(t, filter.Match(fullDemand()))
}

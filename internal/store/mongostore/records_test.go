package mongostore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/gestaozabele/demandas/internal/demand"
)

const (
	hexU1 = "65f1a0000000000000000001"
	hexS1 = "65f1a00000000000000000a1"
	hexS2 = "65f1a00000000000000000a2"
)

func oid(t *testing.T, hex string) primitive.ObjectID {
	t.Helper()
	id, err := primitive.ObjectIDFromHex(hex)
	require.NoError(t, err)
	return id
}

func TestBuildFilterEmpty(t *testing.T) {
	q, ok := buildFilter(demand.Filter{})
	require.True(t, ok)
	assert.Equal(t, bson.M{}, q)
}

func TestBuildFilterMatchesNothing(t *testing.T) {
	_, ok := buildFilter(demand.Filter{Users: &demand.IDSet{}})
	assert.False(t, ok)

	_, ok = buildFilter(demand.Filter{Owner: "não-é-hex"})
	assert.False(t, ok)
}

func TestBuildFilterCombinesClauses(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)

	q, ok := buildFilter(demand.Filter{
		Type:            "ilum.",
		Status:          demand.StatusOpen,
		From:            &from,
		To:              &to,
		Address:         "centro",
		Departments:     &demand.IDSet{IDs: []string{hexS1, "lixo"}},
		DepartmentNames: &demand.IDSet{IDs: []string{hexS2}},
		Owner:           hexU1,
	})
	require.True(t, ok)

	and, ok := q["$and"].([]bson.M)
	require.True(t, ok)
	require.Len(t, and, 7)

	assert.Equal(t, bson.M{"tipo": bson.M{"$regex": `ilum\.`, "$options": "i"}}, and[0])
	assert.Equal(t, bson.M{"status": "Em aberto"}, and[1])
	assert.Equal(t, bson.M{"data_criacao": bson.M{"$gte": from, "$lte": to}}, and[2])

	or := and[3]["$or"].([]bson.M)
	assert.Len(t, or, 5)

	assert.Equal(t, bson.M{"secretarias": bson.M{"$in": []primitive.ObjectID{oid(t, hexS1)}}}, and[4])
	assert.Equal(t, bson.M{"secretarias": bson.M{"$in": []primitive.ObjectID{oid(t, hexS2)}}}, and[5])
	assert.Equal(t, bson.M{"usuarios": oid(t, hexU1)}, and[6])
}

func TestSetDocumentConvertsReferences(t *testing.T) {
	set, err := setDocument(demand.Input{
		Status:       demand.Ptr(demand.StatusInProgress),
		Users:        []string{hexU1},
		RequestImage: demand.Ptr(""),
	})
	require.NoError(t, err)
	assert.Equal(t, bson.M{
		"status":      "Em andamento",
		"usuarios":    []primitive.ObjectID{oid(t, hexU1)},
		"link_imagem": "",
	}, set)

	_, err = setDocument(demand.Input{Users: []string{"x"}})
	assert.Error(t, err)
}

func TestRecordRoundTrip(t *testing.T) {
	d := demand.Demand{
		ID:          hexU1,
		Type:        demand.TypeAnimals,
		Status:      demand.StatusOpen,
		CreatedAt:   time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC),
		Users:       []string{hexU1},
		Departments: []string{hexS1},
	}
	rec, err := fromDomain(d)
	require.NoError(t, err)

	back := rec.toDomain()
	assert.Equal(t, d.ID, back.ID)
	assert.Equal(t, d.Users, back.Users)
	assert.Equal(t, d.Departments, back.Departments)
	assert.Nil(t, back.UserDetails)

	rec.PopulatedUsers = []userRecord{{ID: oid(t, hexU1), Name: "Ana"}}
	assert.Equal(t, []demand.UserSummary{{ID: hexU1, Name: "Ana"}}, rec.toDomain().UserDetails)
}

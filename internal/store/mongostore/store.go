// Package mongostore implementa a persistência de demandas no MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/gestaozabele/demandas/internal/access"
	"github.com/gestaozabele/demandas/internal/demand"
)

const (
	demandsCollection     = "demandas"
	usersCollection       = "usuarios"
	departmentsCollection = "secretarias"

	populatedUsers       = "usuarios_populados"
	populatedDepartments = "secretarias_populadas"
)

// Connect abre o cliente e confirma a conexão com um ping.
func Connect(ctx context.Context, uri, database string) (*mongo.Client, *mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo: conectar: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongo: ping: %w", err)
	}
	return client, client.Database(database), nil
}

// Store implementa demand.Store sobre a coleção demandas.
type Store struct {
	db          *mongo.Database
	demands     *mongo.Collection
	users       *mongo.Collection
	departments *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		db:          db,
		demands:     db.Collection(demandsCollection),
		users:       db.Collection(usersCollection),
		departments: db.Collection(departmentsCollection),
	}
}

// EnsureIndexes cria os índices usados pelas listagens e consultas auxiliares.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.demands.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "usuarios", Value: 1}}},
		{Keys: bson.D{{Key: "secretarias", Value: 1}}},
		{Keys: bson.D{{Key: "data_criacao", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "data_criacao", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("mongo: índices de demandas: %w", err)
	}
	if _, err := s.departments.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "tipo", Value: 1}}}); err != nil {
		return fmt.Errorf("mongo: índices de secretarias: %w", err)
	}
	return nil
}

// Ping é usado pelo /ready.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, readpref.Primary())
}

func (s *Store) FindByID(ctx context.Context, id string, populate ...demand.Reference) (demand.Demand, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return demand.Demand{}, demand.ErrNoDocument
	}

	if len(populate) == 0 {
		var rec demandRecord
		if err := s.demands.FindOne(ctx, bson.M{"_id": oid}).Decode(&rec); err != nil {
			return demand.Demand{}, mapErr(err)
		}
		return rec.toDomain(), nil
	}

	pipeline := append([]bson.M{{"$match": bson.M{"_id": oid}}}, lookupStages(populate)...)
	recs, err := s.aggregate(ctx, pipeline)
	if err != nil {
		return demand.Demand{}, err
	}
	if len(recs) == 0 {
		return demand.Demand{}, demand.ErrNoDocument
	}
	return recs[0].toDomain(), nil
}

func (s *Store) Find(ctx context.Context, filter demand.Filter, page demand.PageRequest, populate ...demand.Reference) (*demand.Page, error) {
	page = page.Normalize()
	result := &demand.Page{Docs: []demand.Demand{}, Page: page.Page, Limit: page.Limit}

	query, ok := buildFilter(filter)
	if !ok {
		return result, nil
	}

	total, err := s.demands.CountDocuments(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("mongo: contar demandas: %w", err)
	}
	result.TotalDocs = total

	order := -1
	if page.SortAsc {
		order = 1
	}
	pipeline := []bson.M{
		{"$match": query},
		{"$sort": bson.D{{Key: "data_criacao", Value: order}, {Key: "_id", Value: order}}},
		{"$skip": int64(page.Offset())},
		{"$limit": int64(page.Limit)},
	}
	pipeline = append(pipeline, lookupStages(populate)...)

	recs, err := s.aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		result.Docs = append(result.Docs, rec.toDomain())
	}
	return result, nil
}

func (s *Store) Create(ctx context.Context, d demand.Demand) (demand.Demand, error) {
	rec, err := fromDomain(d)
	if err != nil {
		return demand.Demand{}, err
	}
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	if _, err := s.demands.InsertOne(ctx, rec); err != nil {
		return demand.Demand{}, fmt.Errorf("mongo: inserir demanda: %w", err)
	}
	return rec.toDomain(), nil
}

func (s *Store) UpdateByID(ctx context.Context, id string, changes demand.Input, populate ...demand.Reference) (demand.Demand, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return demand.Demand{}, demand.ErrNoDocument
	}
	set, err := setDocument(changes)
	if err != nil {
		return demand.Demand{}, err
	}

	var rec demandRecord
	if len(set) == 0 {
		err = s.demands.FindOne(ctx, bson.M{"_id": oid}).Decode(&rec)
	} else {
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		err = s.demands.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&rec)
	}
	if err != nil {
		return demand.Demand{}, mapErr(err)
	}
	if len(populate) > 0 {
		return s.FindByID(ctx, id, populate...)
	}
	return rec.toDomain(), nil
}

func (s *Store) DeleteByID(ctx context.Context, id string) (demand.Demand, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return demand.Demand{}, demand.ErrNoDocument
	}
	var rec demandRecord
	if err := s.demands.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&rec); err != nil {
		return demand.Demand{}, mapErr(err)
	}
	return rec.toDomain(), nil
}

// ImageRefs lista as referências de imagem gravadas nas demandas.
func (s *Store) ImageRefs(ctx context.Context) ([]string, error) {
	query := bson.M{"$or": []bson.M{
		{access.FieldRequestImage: bson.M{"$nin": bson.A{nil, ""}}},
		{access.FieldResolutionImage: bson.M{"$nin": bson.A{nil, ""}}},
	}}
	projection := bson.M{access.FieldRequestImage: 1, access.FieldResolutionImage: 1}

	cursor, err := s.demands.Find(ctx, query, options.Find().SetProjection(projection))
	if err != nil {
		return nil, fmt.Errorf("mongo: listar imagens: %w", err)
	}
	defer cursor.Close(ctx)

	var refs []string
	for cursor.Next(ctx) {
		var rec demandRecord
		if err := cursor.Decode(&rec); err != nil {
			return nil, fmt.Errorf("mongo: decodificar demanda: %w", err)
		}
		if rec.RequestImage != "" {
			refs = append(refs, rec.RequestImage)
		}
		if rec.ResolutionImage != "" {
			refs = append(refs, rec.ResolutionImage)
		}
	}
	return refs, cursor.Err()
}

func (s *Store) aggregate(ctx context.Context, pipeline []bson.M) ([]demandRecord, error) {
	cursor, err := s.demands.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("mongo: consultar demandas: %w", err)
	}
	defer cursor.Close(ctx)

	var recs []demandRecord
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("mongo: decodificar demandas: %w", err)
	}
	return recs, nil
}

func lookupStages(refs []demand.Reference) []bson.M {
	var stages []bson.M
	if demand.Populates(refs, demand.RefUsers) {
		stages = append(stages, bson.M{"$lookup": bson.M{
			"from":         usersCollection,
			"localField":   "usuarios",
			"foreignField": "_id",
			"as":           populatedUsers,
		}})
	}
	if demand.Populates(refs, demand.RefDepartments) {
		stages = append(stages, bson.M{"$lookup": bson.M{
			"from":         departmentsCollection,
			"localField":   "secretarias",
			"foreignField": "_id",
			"as":           populatedDepartments,
		}})
	}
	return stages
}

func mapErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return demand.ErrNoDocument
	}
	return fmt.Errorf("mongo: %w", err)
}

// Users implementa demand.UserLookup.
type Users struct {
	coll *mongo.Collection
}

func NewUsers(db *mongo.Database) *Users {
	return &Users{coll: db.Collection(usersCollection)}
}

func (u *Users) FindByName(ctx context.Context, name string) ([]demand.User, error) {
	return u.find(ctx, bson.M{"nome": containsPattern(name)})
}

func (u *Users) FindByIDs(ctx context.Context, ids []string) ([]demand.User, error) {
	oids := toObjectIDs(ids)
	if len(oids) == 0 {
		return []demand.User{}, nil
	}
	return u.find(ctx, bson.M{"_id": bson.M{"$in": oids}})
}

func (u *Users) find(ctx context.Context, query bson.M) ([]demand.User, error) {
	cursor, err := u.coll.Find(ctx, query, options.Find().SetProjection(bson.M{"senha": 0}))
	if err != nil {
		return nil, fmt.Errorf("mongo: buscar usuários: %w", err)
	}
	defer cursor.Close(ctx)

	var recs []userRecord
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("mongo: decodificar usuários: %w", err)
	}
	out := make([]demand.User, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toDomain())
	}
	return out, nil
}

// Departments implementa demand.DepartmentLookup.
type Departments struct {
	coll *mongo.Collection
}

func NewDepartments(db *mongo.Database) *Departments {
	return &Departments{coll: db.Collection(departmentsCollection)}
}

func (d *Departments) FindByType(ctx context.Context, t demand.Type) (demand.Department, error) {
	var rec departmentRecord
	opts := options.FindOne().SetSort(bson.D{{Key: "_id", Value: 1}})
	if err := d.coll.FindOne(ctx, bson.M{"tipo": string(t)}, opts).Decode(&rec); err != nil {
		return demand.Department{}, mapErr(err)
	}
	return rec.toDomain(), nil
}

func (d *Departments) FindByName(ctx context.Context, name string) ([]demand.Department, error) {
	cursor, err := d.coll.Find(ctx, bson.M{"nome": containsPattern(name)})
	if err != nil {
		return nil, fmt.Errorf("mongo: buscar secretarias: %w", err)
	}
	defer cursor.Close(ctx)

	var recs []departmentRecord
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("mongo: decodificar secretarias: %w", err)
	}
	out := make([]demand.Department, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toDomain())
	}
	return out, nil
}

// Users e Departments compartilham a conexão do Store.
func (s *Store) Users() *Users             { return &Users{coll: s.users} }
func (s *Store) Departments() *Departments { return &Departments{coll: s.departments} }

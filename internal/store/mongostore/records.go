package mongostore

import (
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/gestaozabele/demandas/internal/access"
	"github.com/gestaozabele/demandas/internal/demand"
)

type demandRecord struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty"`
	Type            string               `bson:"tipo"`
	Status          string               `bson:"status"`
	Description     string               `bson:"descricao,omitempty"`
	Address         demand.Address       `bson:"endereco"`
	CreatedAt       time.Time            `bson:"data_criacao"`
	Users           []primitive.ObjectID `bson:"usuarios"`
	Departments     []primitive.ObjectID `bson:"secretarias"`
	ResolutionNote  string               `bson:"resolucao,omitempty"`
	ResolutionImage string               `bson:"link_imagem_resolucao,omitempty"`
	FeedbackScore   *int                 `bson:"feedback,omitempty"`
	FeedbackNote    string               `bson:"avaliacao_resolucao,omitempty"`
	ReturnReason    string               `bson:"motivo_devolucao,omitempty"`
	RejectionReason string               `bson:"motivo_rejeicao,omitempty"`
	RequestImage    string               `bson:"link_imagem,omitempty"`

	PopulatedUsers       []userRecord       `bson:"usuarios_populados,omitempty"`
	PopulatedDepartments []departmentRecord `bson:"secretarias_populadas,omitempty"`
}

type userRecord struct {
	ID          primitive.ObjectID   `bson:"_id"`
	Name        string               `bson:"nome"`
	Email       string               `bson:"email"`
	Flags       access.Flags         `bson:"nivel_acesso"`
	Departments []primitive.ObjectID `bson:"secretarias"`
}

type departmentRecord struct {
	ID   primitive.ObjectID `bson:"_id"`
	Name string             `bson:"nome"`
	Type string             `bson:"tipo"`
}

func (r demandRecord) toDomain() demand.Demand {
	d := demand.Demand{
		ID:              r.ID.Hex(),
		Type:            demand.Type(r.Type),
		Status:          demand.Status(r.Status),
		Description:     r.Description,
		Address:         r.Address,
		CreatedAt:       r.CreatedAt.UTC(),
		Users:           fromObjectIDs(r.Users),
		Departments:     fromObjectIDs(r.Departments),
		ResolutionNote:  r.ResolutionNote,
		ResolutionImage: r.ResolutionImage,
		FeedbackScore:   r.FeedbackScore,
		FeedbackNote:    r.FeedbackNote,
		ReturnReason:    r.ReturnReason,
		RejectionReason: r.RejectionReason,
		RequestImage:    r.RequestImage,
	}
	if r.PopulatedUsers != nil {
		d.UserDetails = make([]demand.UserSummary, 0, len(r.PopulatedUsers))
		for _, u := range r.PopulatedUsers {
			d.UserDetails = append(d.UserDetails, demand.UserSummary{ID: u.ID.Hex(), Name: u.Name, Email: u.Email})
		}
	}
	if r.PopulatedDepartments != nil {
		d.DepartmentDetails = make([]demand.DepartmentSummary, 0, len(r.PopulatedDepartments))
		for _, dep := range r.PopulatedDepartments {
			d.DepartmentDetails = append(d.DepartmentDetails, demand.DepartmentSummary{ID: dep.ID.Hex(), Name: dep.Name, Type: demand.Type(dep.Type)})
		}
	}
	return d
}

func fromDomain(d demand.Demand) (demandRecord, error) {
	rec := demandRecord{
		Type:            string(d.Type),
		Status:          string(d.Status),
		Description:     d.Description,
		Address:         d.Address,
		CreatedAt:       d.CreatedAt,
		ResolutionNote:  d.ResolutionNote,
		ResolutionImage: d.ResolutionImage,
		FeedbackScore:   d.FeedbackScore,
		FeedbackNote:    d.FeedbackNote,
		ReturnReason:    d.ReturnReason,
		RejectionReason: d.RejectionReason,
		RequestImage:    d.RequestImage,
	}
	if d.ID != "" {
		oid, err := primitive.ObjectIDFromHex(d.ID)
		if err != nil {
			return demandRecord{}, fmt.Errorf("mongo: id inválido %q", d.ID)
		}
		rec.ID = oid
	}

	var err error
	if rec.Users, err = strictObjectIDs(d.Users); err != nil {
		return demandRecord{}, err
	}
	if rec.Departments, err = strictObjectIDs(d.Departments); err != nil {
		return demandRecord{}, err
	}
	return rec, nil
}

func (r userRecord) toDomain() demand.User {
	return demand.User{
		ID:          r.ID.Hex(),
		Name:        r.Name,
		Email:       r.Email,
		Flags:       r.Flags,
		Departments: fromObjectIDs(r.Departments),
	}
}

func (r departmentRecord) toDomain() demand.Department {
	return demand.Department{ID: r.ID.Hex(), Name: r.Name, Type: demand.Type(r.Type)}
}

// setDocument converte as alterações no documento do $set.
func setDocument(in demand.Input) (bson.M, error) {
	set := bson.M{}
	for key, value := range in.Fields() {
		switch v := value.(type) {
		case []string:
			oids, err := strictObjectIDs(v)
			if err != nil {
				return nil, err
			}
			set[key] = oids
		case demand.Type:
			set[key] = string(v)
		case demand.Status:
			set[key] = string(v)
		default:
			set[key] = v
		}
	}
	return set, nil
}

// buildFilter traduz o filtro; ok=false quando nada pode casar.
func buildFilter(f demand.Filter) (bson.M, bool) {
	if f.MatchesNothing() {
		return nil, false
	}

	var and []bson.M
	if f.Type != "" {
		and = append(and, bson.M{"tipo": containsPattern(f.Type)})
	}
	if f.Status != "" {
		and = append(and, bson.M{"status": string(f.Status)})
	}
	if f.From != nil || f.To != nil {
		rng := bson.M{}
		if f.From != nil {
			rng["$gte"] = *f.From
		}
		if f.To != nil {
			rng["$lte"] = *f.To
		}
		and = append(and, bson.M{"data_criacao": rng})
	}
	if f.Address != "" {
		pattern := containsPattern(f.Address)
		and = append(and, bson.M{"$or": []bson.M{
			{"endereco.logradouro": pattern},
			{"endereco.cep": pattern},
			{"endereco.bairro": pattern},
			{"endereco.numero": pattern},
			{"endereco.complemento": pattern},
		}})
	}
	if f.Departments != nil {
		and = append(and, bson.M{"secretarias": bson.M{"$in": toObjectIDs(f.Departments.IDs)}})
	}
	if f.DepartmentNames != nil {
		and = append(and, bson.M{"secretarias": bson.M{"$in": toObjectIDs(f.DepartmentNames.IDs)}})
	}
	if f.Users != nil {
		and = append(and, bson.M{"usuarios": bson.M{"$in": toObjectIDs(f.Users.IDs)}})
	}
	if f.Owner != "" {
		oid, err := primitive.ObjectIDFromHex(f.Owner)
		if err != nil {
			return nil, false
		}
		and = append(and, bson.M{"usuarios": oid})
	}

	if len(and) == 0 {
		return bson.M{}, true
	}
	return bson.M{"$and": and}, true
}

func containsPattern(text string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(text), "$options": "i"}
}

// toObjectIDs descarta ids malformados; eles não casariam com nada.
func toObjectIDs(ids []string) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			out = append(out, oid)
		}
	}
	return out
}

func strictObjectIDs(ids []string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return nil, fmt.Errorf("mongo: id inválido %q", id)
		}
		out = append(out, oid)
	}
	return out, nil
}

func fromObjectIDs(oids []primitive.ObjectID) []string {
	out := make([]string, 0, len(oids))
	for _, oid := range oids {
		out = append(out, oid.Hex())
	}
	return out
}

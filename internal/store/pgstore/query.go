package pgstore

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/gestaozabele/demandas/internal/access"
	"github.com/gestaozabele/demandas/internal/demand"
)

const demandColumns = `id::text, tipo, status, descricao, endereco, data_criacao, usuarios::text[], secretarias::text[],
        resolucao, link_imagem_resolucao, feedback, avaliacao_resolucao, motivo_devolucao, motivo_rejeicao, link_imagem`

var addressKeys = []string{"logradouro", "cep", "bairro", "numero", "complemento"}

// Colunas graváveis; o nome da coluna é o próprio nome do campo.
var writableColumns = map[string]bool{
	access.FieldType:            true,
	access.FieldStatus:          true,
	access.FieldDescription:     true,
	access.FieldAddress:         true,
	access.FieldCreatedAt:       true,
	access.FieldUsers:           true,
	access.FieldDepartments:     true,
	access.FieldResolutionNote:  true,
	access.FieldResolutionImage: true,
	access.FieldFeedbackScore:   true,
	access.FieldFeedbackNote:    true,
	access.FieldReturnReason:    true,
	access.FieldRejectionReason: true,
	access.FieldRequestImage:    true,
}

// whereClause monta o WHERE a partir do filtro; ok=false quando nada pode casar.
func whereClause(f demand.Filter) (string, []any, bool) {
	if f.MatchesNothing() {
		return "", nil, false
	}

	var (
		clauses []string
		args    []any
		idx     = 1
	)
	add := func(format string, value any) {
		clauses = append(clauses, strings.ReplaceAll(format, "$?", fmt.Sprintf("$%d", idx)))
		args = append(args, value)
		idx++
	}

	if f.Type != "" {
		add("tipo ILIKE $?", likePattern(f.Type))
	}
	if f.Status != "" {
		add("status = $?", string(f.Status))
	}
	if f.From != nil {
		add("data_criacao >= $?", *f.From)
	}
	if f.To != nil {
		add("data_criacao <= $?", *f.To)
	}
	if f.Address != "" {
		parts := make([]string, 0, len(addressKeys))
		for _, key := range addressKeys {
			parts = append(parts, fmt.Sprintf("endereco->>'%s' ILIKE $?", key))
		}
		add("("+strings.Join(parts, " OR ")+")", likePattern(f.Address))
	}
	if f.Departments != nil {
		add("secretarias && $?::uuid[]", validUUIDs(f.Departments.IDs))
	}
	if f.DepartmentNames != nil {
		add("secretarias && $?::uuid[]", validUUIDs(f.DepartmentNames.IDs))
	}
	if f.Users != nil {
		add("usuarios && $?::uuid[]", validUUIDs(f.Users.IDs))
	}
	if f.Owner != "" {
		if _, err := uuid.Parse(f.Owner); err != nil {
			return "", nil, false
		}
		add("$?::uuid = ANY(usuarios)", f.Owner)
	}

	if len(clauses) == 0 {
		return "", nil, true
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, true
}

// setClause monta o SET do UPDATE a partir de $2; $1 é o id.
func setClause(in demand.Input) (string, []any, error) {
	fields := in.Fields()
	keys := make([]string, 0, len(fields))
	for key := range fields {
		if !writableColumns[key] {
			return "", nil, fmt.Errorf("pgstore: campo %q não gravável", key)
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for i, key := range keys {
		placeholder := fmt.Sprintf("$%d", i+2)
		value := fields[key]
		switch v := value.(type) {
		case []string:
			ids, err := strictUUIDs(v)
			if err != nil {
				return "", nil, err
			}
			value = ids
			placeholder += "::uuid[]"
		case demand.Type:
			value = string(v)
		case demand.Status:
			value = string(v)
		}
		parts = append(parts, fmt.Sprintf("%s = %s", key, placeholder))
		args = append(args, value)
	}
	return strings.Join(parts, ", "), args, nil
}

func likePattern(text string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(text) + "%"
}

func validUUIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func strictUUIDs(ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("pgstore: id inválido %q", id)
		}
		out = append(out, id)
	}
	return out, nil
}

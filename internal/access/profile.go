package access

// Chaves de topo de uma demanda, na forma em que saem do serviço.
const (
	FieldID              = "_id"
	FieldType            = "tipo"
	FieldStatus          = "status"
	FieldDescription     = "descricao"
	FieldAddress         = "endereco"
	FieldCreatedAt       = "data_criacao"
	FieldUsers           = "usuarios"
	FieldDepartments     = "secretarias"
	FieldResolutionNote  = "resolucao"
	FieldResolutionImage = "link_imagem_resolucao"
	FieldFeedbackScore   = "feedback"
	FieldFeedbackNote    = "avaliacao_resolucao"
	FieldReturnReason    = "motivo_devolucao"
	FieldRejectionReason = "motivo_rejeicao"
	FieldRequestImage    = "link_imagem"
)

// Operation identifica uma operação do ciclo de vida da demanda.
type Operation string

const (
	OpCreate  Operation = "criar"
	OpUpdate  Operation = "atualizar"
	OpAssign  Operation = "atribuir"
	OpReturn  Operation = "devolver"
	OpResolve Operation = "resolver"
	OpDelete  Operation = "remover"
	OpList    Operation = "listar"
	OpGet     Operation = "buscar"
)

var coreFields = []string{
	FieldID,
	FieldType,
	FieldStatus,
	FieldDescription,
	FieldAddress,
	FieldCreatedAt,
	FieldUsers,
	FieldRequestImage,
}

var resolutionFields = []string{
	FieldResolutionNote,
	FieldResolutionImage,
	FieldFeedbackScore,
	FieldFeedbackNote,
}

var visibleFields = map[Role][]string{
	Administrator: concat(coreFields, []string{FieldDepartments}, resolutionFields, []string{FieldReturnReason, FieldRejectionReason}),
	Secretary:     concat(coreFields, []string{FieldDepartments}, resolutionFields, []string{FieldReturnReason, FieldRejectionReason}),
	Operator:      concat(coreFields, resolutionFields, []string{FieldReturnReason, FieldRejectionReason}),
	Citizen:       concat(coreFields, resolutionFields, []string{FieldRejectionReason}),
}

// O administrador não passa pelos portões de update e resolve.
var permissions = map[Role]map[Operation]bool{
	Administrator: {OpCreate: true, OpReturn: true, OpDelete: true, OpList: true, OpGet: true},
	Secretary:     {OpAssign: true, OpReturn: true, OpList: true, OpGet: true},
	Operator:      {OpReturn: true, OpResolve: true, OpList: true, OpGet: true},
	Citizen:       {OpCreate: true, OpUpdate: true, OpDelete: true, OpList: true, OpGet: true},
	// Sem papel só lê, e a saída cai na projeção de fallback (demand.Redact);
	// nenhum campo fora dela é entregue.
	None: {OpList: true, OpGet: true},
}

// Fields devolve a lista ordenada de campos visíveis para o papel.
// Para None a lista é vazia.
func Fields(role Role) []string {
	fields := visibleFields[role]
	out := make([]string, len(fields))
	copy(out, fields)
	return out
}

// Allowed consulta a tabela de permissões por papel.
func Allowed(role Role, op Operation) bool {
	return permissions[role][op]
}

func concat(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

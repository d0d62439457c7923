package access

// Flags espelha o campo nivel_acesso do usuário: papéis independentes.
type Flags struct {
	Cidadao       bool `json:"cidadao" bson:"cidadao"`
	Operador      bool `json:"operador" bson:"operador"`
	Secretario    bool `json:"secretario" bson:"secretario"`
	Administrador bool `json:"administrador" bson:"administrador"`
}

// Role é o papel efetivo de quem chama o serviço.
type Role int

const (
	None Role = iota
	Citizen
	Operator
	Secretary
	Administrator
)

// Precedence define a ordem de resolução quando mais de um papel está marcado.
var Precedence = [...]Role{Administrator, Secretary, Operator, Citizen}

// Resolve escolhe o primeiro papel marcado segundo Precedence.
func Resolve(flags Flags) Role {
	for _, role := range Precedence {
		if flags.has(role) {
			return role
		}
	}
	return None
}

func (f Flags) has(role Role) bool {
	switch role {
	case Administrator:
		return f.Administrador
	case Secretary:
		return f.Secretario
	case Operator:
		return f.Operador
	case Citizen:
		return f.Cidadao
	}
	return false
}

func (r Role) String() string {
	switch r {
	case Administrator:
		return "administrador"
	case Secretary:
		return "secretario"
	case Operator:
		return "operador"
	case Citizen:
		return "cidadao"
	}
	return "nenhum"
}

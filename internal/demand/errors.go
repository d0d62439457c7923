package demand

import "errors"

// Categorias de erro expostas pelo serviço. Use errors.Is para classificar.
var (
	ErrValidation = errors.New("dados inválidos")
	ErrNotFound   = errors.New("demanda não encontrada")
	ErrForbidden  = errors.New("acesso negado")
	ErrInternal   = errors.New("erro interno")
)

// ErrNoDocument é devolvido pelos adaptadores de persistência quando o
// documento não existe.
var ErrNoDocument = errors.New("documento não encontrado")

// Error carrega a categoria, a mensagem pública e a causa (quando houver).
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Is permite errors.Is(err, ErrForbidden) e afins.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Invalid cria erro de validação (400).
func Invalid(message string) error {
	return &Error{Kind: ErrValidation, Message: message}
}

// NotFound cria erro de recurso inexistente (404).
func NotFound() error {
	return &Error{Kind: ErrNotFound, Message: ErrNotFound.Error()}
}

// Forbidden cria erro de permissão (403).
func Forbidden(message string) error {
	return &Error{Kind: ErrForbidden, Message: message}
}

// Internal envolve falhas inesperadas de colaboradores (500).
func Internal(message string, err error) error {
	return &Error{Kind: ErrInternal, Message: message, Err: err}
}

// PublicMessage devolve a mensagem segura para o cliente.
func PublicMessage(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ErrInternal.Error()
}

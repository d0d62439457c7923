package demand

import "github.com/gestaozabele/demandas/internal/access"

// Document é a representação de saída de uma demanda, chaveada pelo nome do campo.
type Document map[string]any

// DefaultFallbackFields é a projeção usada quando o chamador não tem papel.
var DefaultFallbackFields = []string{access.FieldID, access.FieldType, access.FieldStatus}

// Redact projeta doc nos campos visíveis para role. Sem papel, usa fallback.
// Não altera doc; aplicar duas vezes dá o mesmo resultado.
func Redact(role access.Role, doc Document, fallback []string) Document {
	allowed := access.Fields(role)
	if role == access.None {
		allowed = fallback
	}

	out := make(Document, len(allowed))
	for _, field := range allowed {
		if v, ok := doc[field]; ok {
			out[field] = v
		}
	}
	return out
}

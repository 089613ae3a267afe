package reconcile

import (
	"context"

	"github.com/dropDatabas3/pgmesh/internal/spock"
)

// SyncPolicy decide, por edge nuevo o reparado, si la suscripción pide
// copia inicial de datos. La heurística mira la reference table en el
// subscriber: vacía ⇒ hay que seedear (true); con filas ⇒ no re-copiar
// (false), para no duplicar filas ya presentes.
type SyncPolicy struct {
	// ReferenceTable primera tabla del listado deseado. Vacía ⇒ nunca
	// auto-seedear: sin forma de chequear vacuidad, la respuesta
	// conservadora es false.
	ReferenceTable string
}

// Decide consulta el subscriber-to-be. El error se devuelve para que el
// caller loguee; ante la duda la decisión sigue siendo false.
func (p SyncPolicy) Decide(ctx context.Context, subscriber spock.Surface) (bool, error) {
	if p.ReferenceTable == "" {
		return false, nil
	}
	has, err := subscriber.HasRows(ctx, p.ReferenceTable)
	if err != nil {
		return false, err
	}
	return !has, nil
}

package reconcile

import (
	"context"

	"github.com/dropDatabas3/pgmesh/internal/observability/logger"
	"github.com/dropDatabas3/pgmesh/internal/spock"
)

// WithRepairMode ejecuta fn con el subscriber en repair mode: mientras
// una suscripción se (re)construye, el subscriber tolera writes en
// conflicto que normalmente rechazaría. El disable corre en todo camino
// de salida, también cuando fn falla.
//
// Un enable fallido no aborta fn: perder la ventana de tolerancia es
// preferible a dejar el edge sin crear. Un disable fallido se loguea y
// no pisa el error de fn.
func WithRepairMode(ctx context.Context, subscriber spock.Surface, fn func() error) error {
	log := logger.From(ctx)
	if err := subscriber.RepairMode(ctx, true); err != nil {
		log.Warn("repair mode enable failed, continuing without repair window", logger.Err(err))
	}
	defer func() {
		if err := subscriber.RepairMode(ctx, false); err != nil {
			log.Warn("repair mode disable failed", logger.Err(err))
		}
	}()
	return fn()
}

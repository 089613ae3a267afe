package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dropDatabas3/pgmesh/internal/observability/logger"
	"github.com/dropDatabas3/pgmesh/internal/spock"
	"github.com/dropDatabas3/pgmesh/internal/topology"
)

// EdgeReconciler repara un edge dirigido por vez. Máquina de estados por
// pass:
//
//	ABSENT → (create) → {SYNCING → ACTIVE | ACTIVE}
//	ACTIVE(target correcto) → ACTIVE (no-op)
//	ACTIVE(target stale o down) → DROPPING → ABSENT → (create)
//
// Estados terminales por pass: ACTIVE o SKIPPED (fallo transitorio,
// reintentado en el próximo pass). No existe FAILED terminal.
type EdgeReconciler struct {
	SetName string
	Policy  SyncPolicy
}

// ReconcileEdge corre el procedimiento de decisión para (src, tgt).
// Nunca devuelve error: todo resultado, incluso el skip, es un valor
// del reporte. La convergencia es best-effort por edge.
func (r *EdgeReconciler) ReconcileEdge(ctx context.Context, src, tgt spock.Surface, edge topology.Edge) EdgeResult {
	res := EdgeResult{
		Edge:   edge.Name(),
		Source: edge.Src.Name,
		Target: edge.Tgt.Name,
	}
	log := logger.From(ctx).With(
		logger.Edge(res.Edge),
		logger.Source(res.Source),
		logger.Target(res.Target),
	)

	// 1. Lookup del edge en el subscriber.
	sub, err := src.GetSubscription(ctx, res.Edge)
	if err != nil {
		return r.skip(log, res, "subscription lookup failed", err)
	}

	prevStatus := topology.StatusUnknown
	if sub != nil {
		// 2. Identidad actual del target y status vivo.
		tgtNode, err := tgt.GetNode(ctx, edge.Tgt.NodeName())
		if err != nil {
			return r.skip(log, res, "target node lookup failed", err)
		}
		status, err := src.SubscriptionStatus(ctx, res.Edge)
		if err != nil {
			log.Warn("subscription status unavailable", logger.Err(err))
			status = topology.StatusUnknown
		}

		// 3. Repair condition: target recreado (id mismatch o nodo
		// ausente) o suscripción caída.
		stale := tgtNode == nil || sub.TargetNodeID != tgtNode.ID || status == topology.StatusDown
		if !stale {
			log.Debug("edge exists and is correct", logger.Status(string(status)))
			res.Action = ActionConverged
			return res
		}

		reason := "status down"
		if tgtNode == nil {
			reason = "target node missing"
		} else if sub.TargetNodeID != tgtNode.ID {
			reason = fmt.Sprintf("target node id mismatch (recorded %d, current %d)", sub.TargetNodeID, tgtNode.ID)
		}
		log.Info("edge is stale, dropping", logger.String("why", reason))

		if err := r.dropWithFallback(ctx, src, res.Edge, log); err != nil {
			return r.skip(log, res, "stale edge drop failed", err)
		}
		res.Dropped = true
		res.Reason = reason
		prevStatus = status
	}

	// 4. Create path: sync policy + repair window + create + enable.
	syncData, err := r.Policy.Decide(ctx, src)
	if err != nil {
		// conservador: sin poder chequear vacuidad, no auto-seedear
		log.Warn("sync policy check failed, defaulting to no initial copy", logger.Err(err))
		syncData = false
	}
	res.SyncRequested = syncData

	err = WithRepairMode(ctx, src, func() error {
		if err := src.CreateSubscription(ctx, res.Edge, edge.Tgt.DSN(), []string{r.SetName}, syncData, nil); err != nil {
			return fmt.Errorf("create: %w", err)
		}
		if err := src.EnableSubscription(ctx, res.Edge, false); err != nil {
			return fmt.Errorf("enable: %w", err)
		}
		if syncData || prevStatus == topology.StatusInitializing {
			// la espera es best-effort: su fallo no invalida el edge
			if err := src.WaitForSync(ctx, res.Edge); err != nil {
				log.Warn("initial sync wait failed or unsupported, edge degraded", logger.Err(err))
				res.SyncState = SyncUnknown
			} else {
				res.SyncState = SyncComplete
			}
		}
		return nil
	})
	if err != nil {
		// 5. Create/enable falló: repair mode ya fue liberado por el
		// guard; el edge queda ausente y se reintenta.
		return r.skip(log, res, "subscription create failed", err)
	}

	if res.Dropped {
		res.Action = ActionRecreated
		log.Info("edge recreated", logger.Bool("sync_requested", syncData))
	} else {
		res.Action = ActionCreated
		log.Info("edge created", logger.Bool("sync_requested", syncData))
	}
	return res
}

// dropWithFallback cadena de escalamiento del drop: directo, y si falla,
// disable inmediato + drop. Si ambos fallan el edge se saltea este pass.
func (r *EdgeReconciler) dropWithFallback(ctx context.Context, src spock.Surface, name string, log *zap.Logger) error {
	err := src.DropSubscription(ctx, name, false)
	if err == nil {
		return nil
	}
	log.Warn("direct drop failed, trying disable first", logger.Err(err))
	if err := src.DisableSubscription(ctx, name, true); err != nil {
		return fmt.Errorf("disable: %w", err)
	}
	if err := src.DropSubscription(ctx, name, true); err != nil {
		return fmt.Errorf("drop after disable: %w", err)
	}
	return nil
}

func (r *EdgeReconciler) skip(log *zap.Logger, res EdgeResult, reason string, err error) EdgeResult {
	log.Warn("edge skipped this pass", logger.String("why", reason), logger.Err(err))
	res.Action = ActionSkipped
	res.Reason = reason
	res.Err = err.Error()
	return res
}

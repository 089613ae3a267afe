package reconcile

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/pgmesh/internal/observability/logger"
	"github.com/dropDatabas3/pgmesh/internal/spock"
	"github.com/dropDatabas3/pgmesh/internal/topology"
	"github.com/dropDatabas3/pgmesh/internal/util"
)

// reconcileNode asegura el registro del cluster en el fabric y poda el
// drift destructivo: nodos fuera del desired set y suscripciones cuyo
// provider ya no existe o no está deseado. Los drops son irreversibles
// a propósito — se converge al estado deseado, no se preserva drift.
//
// Invariante post-reconciliación: el set de node names existentes en el
// cluster es subconjunto del desired set normalizado, y el nodo propio
// existe.
func reconcileNode(ctx context.Context, surf spock.Surface, c topology.Cluster, desired map[string]bool, res *ClusterResult) error {
	log := logger.From(ctx).With(logger.Cluster(c.Name), logger.Component("nodes"))

	// 1. Cleanup: nodos que no están en el desired set normalizado.
	nodes, err := surf.ListNodes(ctx)
	if err != nil {
		return fmt.Errorf("list nodes: %w", err)
	}
	for _, n := range nodes {
		if desired[topology.NormalizeName(n.Name)] {
			continue
		}
		if err := surf.DropNode(ctx, n.Name, true); err != nil {
			// best-effort: el próximo pass lo reintenta
			log.Warn("stale node drop failed", logger.Node(n.Name), logger.Err(err))
			continue
		}
		log.Info("stale node dropped", logger.Node(n.Name))
		res.NodesDropped = append(res.NodesDropped, n.Name)
	}

	// Suscripciones cuyo provider resuelto está ausente o fuera del
	// desired set: topología vieja que no debe lingerear.
	subs, err := surf.ListSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}
	for _, s := range subs {
		orphan := s.TargetNodeName == "" || !desired[topology.NormalizeName(s.TargetNodeName)]
		if !orphan {
			continue
		}
		if err := surf.DropSubscription(ctx, s.Name, true); err != nil {
			log.Warn("orphan subscription drop failed", logger.Edge(s.Name), logger.Err(err))
			continue
		}
		log.Info("orphan subscription dropped", logger.Edge(s.Name), logger.Target(s.TargetNodeName))
		res.SubsDropped = append(res.SubsDropped, s.Name)
	}

	// 2. Create-if-absent: el existence check precede al create, así que
	// "already exists" nunca llega a ser un error.
	name := c.NodeName()
	existing, err := surf.GetNode(ctx, name)
	if err != nil {
		return fmt.Errorf("get node %s: %w", name, err)
	}
	if existing != nil {
		return nil
	}
	if err := surf.CreateNode(ctx, name, c.DSN()); err != nil {
		return fmt.Errorf("create node %s: %w", name, err)
	}
	log.Info("node registered", logger.Node(name), logger.String("dsn", util.MaskDSN(c.DSN())))
	res.NodeCreated = true
	return nil
}

package reconcile

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/pgmesh/internal/observability/logger"
	"github.com/dropDatabas3/pgmesh/internal/spock"
	"github.com/dropDatabas3/pgmesh/internal/topology"
)

// reconcileRepSet asegura que el replication set exista y que cada tabla
// deseada sea miembro. El create de tablas es un fallback mínimo para
// laboratorio; en producción las tablas las maneja el dueño del schema.
// Todas las operaciones son create-if-absent.
func reconcileRepSet(ctx context.Context, surf spock.Surface, c topology.Cluster, set string, tables []string, res *ClusterResult) error {
	log := logger.From(ctx).With(logger.Cluster(c.Name), logger.Component("repsets"), logger.RepSet(set))

	exists, err := surf.RepSetExists(ctx, set)
	if err != nil {
		return fmt.Errorf("repset exists: %w", err)
	}
	if !exists {
		if err := surf.CreateRepSet(ctx, set); err != nil {
			return fmt.Errorf("create repset: %w", err)
		}
		log.Info("replication set created")
		res.RepSetCreated = true
	}

	for _, table := range tables {
		if err := spock.ValidateIdent(table); err != nil {
			return fmt.Errorf("table %q: %w", table, err)
		}
		texists, err := surf.TableExists(ctx, table)
		if err != nil {
			return fmt.Errorf("table exists %s: %w", table, err)
		}
		if !texists {
			if err := surf.CreateTable(ctx, table); err != nil {
				return fmt.Errorf("create table %s: %w", table, err)
			}
			log.Info("table created", logger.Table(table))
			res.TablesCreated = append(res.TablesCreated, table)
		}

		member, err := surf.TableInRepSet(ctx, set, table)
		if err != nil {
			return fmt.Errorf("membership %s: %w", table, err)
		}
		if !member {
			if err := surf.AddTableToRepSet(ctx, set, table, false); err != nil {
				return fmt.Errorf("add table %s: %w", table, err)
			}
			log.Info("table added to replication set", logger.Table(table))
			res.TablesAdded = append(res.TablesAdded, table)
		}
	}
	return nil
}

package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/pgmesh/internal/metrics"
	"github.com/dropDatabas3/pgmesh/internal/observability/logger"
	"github.com/dropDatabas3/pgmesh/internal/spock"
	"github.com/dropDatabas3/pgmesh/internal/topology"
)

// Runner orquesta un pass completo de reconciliación. Un solo hilo
// lógico: clusters probeados y reconciliados en secuencia, edges en
// iteración anidada source-outer/target-inner. El O(N²) de llamadas
// remotas es visible e intencional.
//
// Asume a lo sumo un proceso reconciliando un mismo set de clusters a
// la vez (ver runlock para la variante enforced).
type Runner struct {
	Clusters []topology.Cluster
	Tables   []string
	SetName  string

	Connect spock.Connector
	Probe   *Prober

	// ReportPath si no es vacío, el reporte de cada pass se persiste
	// como JSON (escritura atómica). El fallo de escritura se loguea y
	// no afecta el resultado del pass.
	ReportPath string
}

// Run ejecuta un pass. Devuelve error solo ante fallos que impiden el
// pass entero (readiness con timeout, conexión inicial); los fallos por
// edge o por cluster quedan en el reporte, no en el error.
func (r *Runner) Run(ctx context.Context) (*RunReport, error) {
	started := time.Now()
	runID := uuid.NewString()
	log := logger.With(logger.RunID(runID))
	ctx = logger.ToContext(ctx, log)

	report := &RunReport{RunID: runID, StartedAt: started}
	desired := topology.NodeNameSet(r.Clusters)
	edges := topology.DesiredEdges(r.Clusters)

	log.Info("reconciliation pass started",
		logger.Count(len(r.Clusters)),
		logger.Any("desired_edges", len(edges)),
	)
	metrics.RunsTotal.Inc()
	metrics.EdgesDesired.Set(float64(len(edges)))
	defer func() {
		metrics.RunDuration.Observe(time.Since(started).Seconds())
	}()

	// Readiness de todos los clusters antes de reconciliar nada: los
	// pasos siguientes asumen conectividad.
	for _, c := range r.Clusters {
		if err := r.Probe.AwaitReady(ctx, c, r.Connect); err != nil {
			return nil, fmt.Errorf("readiness: %w", err)
		}
	}

	// Una surface por cluster por pass; sin reuso entre passes.
	surfaces := make(map[string]spock.Surface, len(r.Clusters))
	defer func() {
		for _, s := range surfaces {
			s.Close()
		}
	}()
	for _, c := range r.Clusters {
		s, err := r.Connect(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("connect %s: %w", c.Name, err)
		}
		surfaces[c.Name] = s
	}

	// Fase 1: nodos y replication sets en TODOS los clusters antes de
	// cualquier trabajo de suscripciones — la creación de edges necesita
	// las identidades de nodo estables.
	for _, c := range r.Clusters {
		res := ClusterResult{Cluster: c.Name, Node: c.NodeName()}
		err := reconcileNode(ctx, surfaces[c.Name], c, desired, &res)
		if err == nil {
			err = reconcileRepSet(ctx, surfaces[c.Name], c, r.SetName, r.Tables, &res)
		}
		if err != nil {
			log.Warn("cluster reconciliation incomplete", logger.Cluster(c.Name), logger.Err(err))
			res.Err = err.Error()
		}
		if res.NodeCreated {
			metrics.NodesCreated.Inc()
		}
		metrics.NodesDropped.Add(float64(len(res.NodesDropped)))
		report.Clusters = append(report.Clusters, res)
	}

	// Fase 2: el edge set completo, en orden fijo.
	er := &EdgeReconciler{
		SetName: r.SetName,
		Policy:  SyncPolicy{ReferenceTable: r.referenceTable()},
	}
	converged := 0
	for _, edge := range edges {
		res := er.ReconcileEdge(ctx, surfaces[edge.Src.Name], surfaces[edge.Tgt.Name], edge)
		report.Edges = append(report.Edges, res)

		switch res.Action {
		case ActionCreated, ActionRecreated:
			metrics.EdgesCreated.Inc()
			converged++
		case ActionConverged:
			converged++
		case ActionSkipped:
			metrics.EdgesSkipped.Inc()
		}
		if res.Dropped {
			metrics.EdgesDropped.Inc()
		}
	}
	metrics.EdgesConverged.Set(float64(converged))

	report.FinishedAt = time.Now()
	report.DurationMs = time.Since(started).Milliseconds()

	log.Info("reconciliation pass completed",
		logger.Any("converged", converged),
		logger.Any("skipped", report.CountAction(ActionSkipped)),
		logger.Bool("fully_converged", report.Converged()),
		logger.DurationMs(time.Since(started).Milliseconds()),
	)

	if r.ReportPath != "" {
		if err := report.WriteFile(r.ReportPath); err != nil {
			log.Warn("report write failed", logger.Err(err))
		}
	}
	return report, nil
}

func (r *Runner) referenceTable() string {
	if len(r.Tables) == 0 {
		return ""
	}
	return r.Tables[0]
}

// Package reconcile implementa el pass de convergencia: registra nodos,
// asegura replication sets y membresía de tablas, y repara el edge set
// de suscripciones hasta alcanzar el full mesh deseado. Cada pass es
// stateless: todo el estado se re-deriva consultando los clusters.
package reconcile

import (
	"encoding/json"
	"time"

	"github.com/dropDatabas3/pgmesh/internal/util/atomicwrite"
)

// EdgeAction qué hizo el pass con un edge.
type EdgeAction string

const (
	// ActionConverged el edge existía y estaba correcto; no se tocó.
	ActionConverged EdgeAction = "converged"
	// ActionCreated el edge no existía y se creó.
	ActionCreated EdgeAction = "created"
	// ActionRecreated el edge estaba stale: se dropeó y se volvió a crear.
	ActionRecreated EdgeAction = "recreated"
	// ActionSkipped fallo transitorio; el próximo pass lo reintenta.
	ActionSkipped EdgeAction = "skipped"
)

// SyncState resultado de la espera de copia inicial.
type SyncState string

const (
	// SyncNotRequested no se pidió copia inicial ni había que esperarla.
	SyncNotRequested SyncState = ""
	// SyncComplete la copia inicial terminó dentro del pass.
	SyncComplete SyncState = "complete"
	// SyncUnknown el wait no está disponible o falló: el edge queda
	// activo pero degradado, a re-chequear en el próximo pass.
	SyncUnknown SyncState = "unknown"
)

// EdgeResult resultado por edge. Los fallos son valores, no logs
// tragados: el reporte completo es observable y testeable.
type EdgeResult struct {
	Edge          string     `json:"edge"`
	Source        string     `json:"source"`
	Target        string     `json:"target"`
	Action        EdgeAction `json:"action"`
	Dropped       bool       `json:"dropped,omitempty"`
	SyncRequested bool       `json:"sync_requested,omitempty"`
	SyncState     SyncState  `json:"sync_state,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Err           string     `json:"error,omitempty"`
}

// ClusterResult resultado por cluster de la fase de nodos/repsets.
type ClusterResult struct {
	Cluster       string   `json:"cluster"`
	Node          string   `json:"node"`
	NodeCreated   bool     `json:"node_created,omitempty"`
	NodesDropped  []string `json:"nodes_dropped,omitempty"`
	SubsDropped   []string `json:"subs_dropped,omitempty"`
	RepSetCreated bool     `json:"repset_created,omitempty"`
	TablesCreated []string `json:"tables_created,omitempty"`
	TablesAdded   []string `json:"tables_added,omitempty"`
	Err           string   `json:"error,omitempty"`
}

// RunReport reporte estructurado de un pass completo.
type RunReport struct {
	RunID      string          `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	DurationMs int64           `json:"duration_ms"`
	Clusters   []ClusterResult `json:"clusters"`
	Edges      []EdgeResult    `json:"edges"`
}

// Converged true si ningún edge quedó skipped y no hubo errores de
// cluster. El proceso igual termina "pass completed" aunque esto dé
// false: el contrato es eventually-convergent, no all-or-nothing.
func (r *RunReport) Converged() bool {
	for _, c := range r.Clusters {
		if c.Err != "" {
			return false
		}
	}
	for _, e := range r.Edges {
		if e.Action == ActionSkipped {
			return false
		}
	}
	return true
}

// CountAction cantidad de edges con la acción dada.
func (r *RunReport) CountAction(a EdgeAction) int {
	n := 0
	for _, e := range r.Edges {
		if e.Action == a {
			n++
		}
	}
	return n
}

// WriteFile persiste el reporte como JSON con escritura atómica.
func (r *RunReport) WriteFile(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return atomicwrite.AtomicWriteFile(path, data, 0o644)
}

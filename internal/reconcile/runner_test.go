package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/dropDatabas3/pgmesh/internal/topology"
)

func newTestRunner(f *fakeFabric, clusters []topology.Cluster, tables []string) *Runner {
	return &Runner{
		Clusters: clusters,
		Tables:   tables,
		SetName:  "default",
		Connect:  f.connector(),
		Probe:    NewProber(time.Millisecond, 2*time.Second),
	}
}

func findEdge(t *testing.T, rep *RunReport, name string) EdgeResult {
	t.Helper()
	for _, e := range rep.Edges {
		if e.Edge == name {
			return e
		}
	}
	t.Fatalf("edge %s not in report", name)
	return EdgeResult{}
}

// Scenario A: cold start. Tres clusters vacíos convergen en un pass a
// 3 nodos, repset default con t1, y 6 suscripciones con copia inicial.
func TestColdStart_FullMesh(t *testing.T) {
	f, clusters := newFakeFabric("a", "b", "c")
	r := newTestRunner(f, clusters, []string{"t1"})

	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.Converged() {
		t.Fatalf("expected full convergence, report: %+v", rep)
	}
	if got := rep.CountAction(ActionCreated); got != 6 {
		t.Fatalf("created edges = %d, want 6", got)
	}
	for _, name := range []string{"a", "b", "c"} {
		fc := f.clusters[name]
		if _, ok := fc.nodes[name]; !ok {
			t.Fatalf("cluster %s missing its node", name)
		}
		if !fc.repsets["default"] || !fc.members["default|t1"] {
			t.Fatalf("cluster %s missing repset/membership", name)
		}
		if len(fc.subs) != 2 {
			t.Fatalf("cluster %s has %d subs, want 2", name, len(fc.subs))
		}
	}
	for _, e := range rep.Edges {
		if !e.SyncRequested {
			t.Fatalf("edge %s should request initial copy on cold start", e.Edge)
		}
		if e.SyncState != SyncComplete {
			t.Fatalf("edge %s sync state = %q", e.Edge, e.SyncState)
		}
	}
}

// Scenario B: steady state. Un segundo pass sobre el estado convergido
// no produce ningún create ni drop adicional.
func TestSteadyState_Idempotent(t *testing.T) {
	f, clusters := newFakeFabric("a", "b", "c")
	r := newTestRunner(f, clusters, []string{"t1"})

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	before := f.sideEffects()

	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := f.sideEffects(); got != before {
		t.Fatalf("second run produced side effects: %d -> %d", before, got)
	}
	if got := rep.CountAction(ActionConverged); got != 6 {
		t.Fatalf("converged edges = %d, want 6", got)
	}
	for _, e := range rep.Edges {
		if e.Dropped {
			t.Fatalf("edge %s dropped on steady state", e.Edge)
		}
	}
}

// Scenario C: drift repair. El nodo b se recrea externamente con id
// nuevo; solo los edges que apuntan a b se dropean y recrean, exactamente
// una vez.
func TestDriftRepair_StaleTargetNodeID(t *testing.T) {
	f, clusters := newFakeFabric("a", "b", "c")
	r := newTestRunner(f, clusters, []string{"t1"})
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	f.dropAndRecreateNode("b")
	dropsBefore := map[string]int{}
	for n, fc := range f.clusters {
		dropsBefore[n] = fc.subDrops
	}

	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"sub_a_to_b", "sub_c_to_b"} {
		e := findEdge(t, rep, name)
		if e.Action != ActionRecreated || !e.Dropped {
			t.Fatalf("edge %s = %+v, want recreated", name, e)
		}
	}
	for _, name := range []string{"sub_b_to_a", "sub_b_to_c", "sub_a_to_c", "sub_c_to_a"} {
		e := findEdge(t, rep, name)
		if e.Action != ActionConverged {
			t.Fatalf("edge %s = %+v, want converged (unaffected)", name, e)
		}
	}
	// exactamente un drop por subscriber afectado
	if got := f.clusters["a"].subDrops - dropsBefore["a"]; got != 1 {
		t.Fatalf("a dropped %d subs, want 1", got)
	}
	if got := f.clusters["c"].subDrops - dropsBefore["c"]; got != 1 {
		t.Fatalf("c dropped %d subs, want 1", got)
	}
	if got := f.clusters["b"].subDrops - dropsBefore["b"]; got != 0 {
		t.Fatalf("b dropped %d subs, want 0", got)
	}

	// el pass siguiente es no-op
	before := f.sideEffects()
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.sideEffects() != before {
		t.Fatal("repair was not convergent")
	}
}

// Cleanup correctness: sacar un cluster del desired set dropea su nodo
// y todos los edges que lo tocan en los clusters restantes.
func TestClusterRemoval_Cleanup(t *testing.T) {
	f, clusters := newFakeFabric("a", "b", "c")
	r := newTestRunner(f, clusters, []string{"t1"})
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	// c sale del desired set
	r.Clusters = clusters[:2]
	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"a", "b"} {
		fc := f.clusters[name]
		if _, ok := fc.nodes["c"]; ok {
			t.Fatalf("cluster %s still references node c", name)
		}
		for sname := range fc.subs {
			if sname == topology.EdgeName(name, "c") {
				t.Fatalf("cluster %s still has edge to c", name)
			}
		}
		if len(fc.subs) != 1 {
			t.Fatalf("cluster %s has %d subs, want 1", name, len(fc.subs))
		}
	}
	if len(rep.Edges) != 2 {
		t.Fatalf("desired edges = %d, want 2", len(rep.Edges))
	}
	if got := rep.CountAction(ActionConverged); got != 2 {
		t.Fatalf("surviving edges should be untouched, report: %+v", rep.Edges)
	}
}

// Sync heuristic: subscriber con filas en la reference table no pide
// copia inicial; subscriber vacío sí.
func TestSyncPolicy_Heuristic(t *testing.T) {
	f, clusters := newFakeFabric("a", "b")
	f.clusters["a"].tables["t1"] = true
	f.clusters["a"].rows["t1"] = 42

	r := newTestRunner(f, clusters, []string{"t1"})
	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if e := findEdge(t, rep, "sub_a_to_b"); e.SyncRequested {
		t.Fatalf("a has rows, edge should not request copy: %+v", e)
	}
	if e := findEdge(t, rep, "sub_b_to_a"); !e.SyncRequested {
		t.Fatalf("b is empty, edge should request copy: %+v", e)
	}
}

// Sin reference table configurada la política nunca auto-seedea.
func TestSyncPolicy_NoReferenceTable(t *testing.T) {
	f, clusters := newFakeFabric("a", "b")
	r := newTestRunner(f, clusters, nil)
	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range rep.Edges {
		if e.SyncRequested {
			t.Fatalf("edge %s requested copy with no reference table", e.Edge)
		}
	}
}

// Open question resuelto: wait_for_sync no disponible ⇒ el edge queda
// activo pero con sync state unknown (degradado), nunca skipped.
func TestWaitForSync_Degraded(t *testing.T) {
	f, clusters := newFakeFabric("a", "b")
	f.clusters["a"].failWait = true

	r := newTestRunner(f, clusters, []string{"t1"})
	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	e := findEdge(t, rep, "sub_a_to_b")
	if e.Action != ActionCreated || e.SyncState != SyncUnknown {
		t.Fatalf("degraded edge = %+v", e)
	}
	if e := findEdge(t, rep, "sub_b_to_a"); e.SyncState != SyncComplete {
		t.Fatalf("healthy edge = %+v", e)
	}
}

// Readiness con timeout externo: cluster inalcanzable aborta el pass.
func TestReadiness_Timeout(t *testing.T) {
	f, clusters := newFakeFabric("a", "b")
	f.clusters["b"].failConnect = true

	r := newTestRunner(f, clusters, []string{"t1"})
	r.Probe = NewProber(time.Millisecond, 50*time.Millisecond)

	if _, err := r.Run(context.Background()); err == nil {
		t.Fatal("expected readiness error")
	}
}

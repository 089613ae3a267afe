// Package spock consume la superficie de funciones SQL que cada cluster
// expone para manejar replicación lógica (schema spock: node_create,
// sub_create, repair_mode, etc.). El reconciler habla únicamente contra
// la interfaz Surface; la implementación real va sobre pgx.
package spock

import (
	"context"

	"github.com/dropDatabas3/pgmesh/internal/topology"
)

// NodeInfo registro de un nodo en el catálogo del cluster.
type NodeInfo struct {
	ID   int64
	Name string
}

// SubInfo una suscripción tal como existe en el subscriber.
// TargetNodeID es el node id del provider registrado al crearla;
// TargetNodeName queda vacío si el nodo provider ya no resuelve.
type SubInfo struct {
	Name           string
	TargetNodeID   int64
	TargetNodeName string
}

// Surface operaciones remotas contra un cluster. Una Surface representa
// una conexión independiente a un cluster; no se comparte entre clusters.
//
// Idempotencia: las funciones *_create fallan si el objeto existe; el
// caller debe guardar cada create detrás de un existence check.
type Surface interface {
	// Ping chequeo trivial de conectividad.
	Ping(ctx context.Context) error

	// Nodos.
	ListNodes(ctx context.Context) ([]NodeInfo, error)
	// GetNode devuelve nil (sin error) si el nodo no existe.
	GetNode(ctx context.Context, name string) (*NodeInfo, error)
	CreateNode(ctx context.Context, name, dsn string) error
	// DropNode con cascade elimina también las suscripciones dependientes.
	DropNode(ctx context.Context, name string, cascade bool) error

	// Replication sets y membresía de tablas.
	RepSetExists(ctx context.Context, set string) (bool, error)
	CreateRepSet(ctx context.Context, set string) error
	TableExists(ctx context.Context, table string) (bool, error)
	CreateTable(ctx context.Context, table string) error
	TableInRepSet(ctx context.Context, set, table string) (bool, error)
	AddTableToRepSet(ctx context.Context, set, table string, syncStructure bool) error

	// Suscripciones.
	ListSubscriptions(ctx context.Context) ([]SubInfo, error)
	// GetSubscription devuelve nil (sin error) si no existe.
	GetSubscription(ctx context.Context, name string) (*SubInfo, error)
	CreateSubscription(ctx context.Context, name, providerDSN string, sets []string, syncData bool, forwardOrigins []string) error
	DropSubscription(ctx context.Context, name string, ifExists bool) error
	DisableSubscription(ctx context.Context, name string, immediate bool) error
	EnableSubscription(ctx context.Context, name string, immediate bool) error
	SubscriptionStatus(ctx context.Context, name string) (topology.SubStatus, error)
	// WaitForSync bloquea hasta que termine la copia inicial. Puede no
	// estar disponible según la versión del engine; el error se trata
	// como degradación, no como fallo del edge.
	WaitForSync(ctx context.Context, name string) error

	// RepairMode togglea la tolerancia a conflictos del subscriber.
	RepairMode(ctx context.Context, enabled bool) error

	// HasRows true si la tabla tiene al menos una fila (sync policy).
	HasRows(ctx context.Context, table string) (bool, error)

	Close()
}

// Connector abre una Surface hacia un cluster. Los tests inyectan fakes;
// producción usa Dial (pgx).
type Connector func(ctx context.Context, c topology.Cluster) (Surface, error)

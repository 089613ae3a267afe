package spock

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/pgmesh/internal/topology"
)

// Conn implementación de Surface sobre pgx. Una Conn por cluster por
// pass; el pool es chico a propósito (el reconciler es secuencial).
type Conn struct {
	pool *pgxpool.Pool
}

// New abre una Conn contra el DSN dado. No valida conectividad: usar
// Ping para eso (la readiness probe lo hace en loop).
func New(ctx context.Context, dsn string) (*Conn, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	// Reconciliación secuencial: no necesitamos más de un par de conns.
	pcfg.MaxConns = 2
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	return &Conn{pool: pool}, nil
}

// Dial es el Connector de producción: abre una Surface hacia el primario
// del cluster usando su connection descriptor.
func Dial(ctx context.Context, c topology.Cluster) (Surface, error) {
	return New(ctx, c.DSN())
}

var _ Surface = (*Conn)(nil)

// Close cierra el pool subyacente (idempotente).
func (c *Conn) Close() {
	if c != nil && c.pool != nil {
		c.pool.Close()
	}
}

func (c *Conn) Ping(ctx context.Context) error {
	var one int
	return c.pool.QueryRow(ctx, `SELECT 1`).Scan(&one)
}

// ---------- NODOS ----------

func (c *Conn) ListNodes(ctx context.Context) ([]NodeInfo, error) {
	const q = `
SELECT node_id, node_name
FROM spock.node
ORDER BY node_name;`
	rows, err := c.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NodeInfo
	for rows.Next() {
		var n NodeInfo
		if err := rows.Scan(&n.ID, &n.Name); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (c *Conn) GetNode(ctx context.Context, name string) (*NodeInfo, error) {
	const q = `
SELECT node_id, node_name
FROM spock.node
WHERE node_name = $1;`
	var n NodeInfo
	err := c.pool.QueryRow(ctx, q, name).Scan(&n.ID, &n.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (c *Conn) CreateNode(ctx context.Context, name, dsn string) error {
	const q = `SELECT spock.node_create(node_name := $1, dsn := $2);`
	_, err := c.pool.Exec(ctx, q, name, dsn)
	return err
}

// DropNode elimina el nodo. Con cascade primero baja las suscripciones
// que referencian al nodo (el engine no permite dropear un provider con
// suscripciones colgando).
func (c *Conn) DropNode(ctx context.Context, name string, cascade bool) error {
	if cascade {
		const qsubs = `
SELECT s.sub_name
FROM spock.subscription s
JOIN spock.node n ON n.node_id = s.sub_origin
WHERE n.node_name = $1;`
		rows, err := c.pool.Query(ctx, qsubs, name)
		if err != nil {
			return err
		}
		var subs []string
		for rows.Next() {
			var s string
			if err := rows.Scan(&s); err != nil {
				rows.Close()
				return err
			}
			subs = append(subs, s)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		for _, s := range subs {
			if err := c.DropSubscription(ctx, s, true); err != nil {
				return fmt.Errorf("cascade drop sub %s: %w", s, err)
			}
		}
	}
	const q = `SELECT spock.node_drop($1, true);`
	_, err := c.pool.Exec(ctx, q, name)
	return err
}

// ---------- REPLICATION SETS ----------

func (c *Conn) RepSetExists(ctx context.Context, set string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM spock.replication_set WHERE set_name = $1);`
	var ok bool
	err := c.pool.QueryRow(ctx, q, set).Scan(&ok)
	return ok, err
}

func (c *Conn) CreateRepSet(ctx context.Context, set string) error {
	const q = `SELECT spock.repset_create($1);`
	_, err := c.pool.Exec(ctx, q, set)
	return err
}

func (c *Conn) TableExists(ctx context.Context, table string) (bool, error) {
	const q = `SELECT to_regclass($1) IS NOT NULL;`
	var ok bool
	err := c.pool.QueryRow(ctx, q, table).Scan(&ok)
	return ok, err
}

// CreateTable fallback mínimo para entornos de laboratorio; en producción
// las tablas las maneja el dueño del schema, no este reconciler.
func (c *Conn) CreateTable(ctx context.Context, table string) error {
	if err := ValidateIdent(table); err != nil {
		return err
	}
	q := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id         bigint GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	payload    jsonb,
	updated_at timestamptz NOT NULL DEFAULT now()
);`, QuoteIdent(table))
	_, err := c.pool.Exec(ctx, q)
	return err
}

func (c *Conn) TableInRepSet(ctx context.Context, set, table string) (bool, error) {
	// join entre el set y la relación de membresía; acepta nombre pelado
	// o schema-qualified.
	const q = `
SELECT EXISTS (
	SELECT 1
	FROM spock.tables t
	WHERE t.set_name = $1
	  AND (t.relname = $2 OR t.nspname || '.' || t.relname = $2)
);`
	var ok bool
	err := c.pool.QueryRow(ctx, q, set, table).Scan(&ok)
	return ok, err
}

func (c *Conn) AddTableToRepSet(ctx context.Context, set, table string, syncStructure bool) error {
	const q = `SELECT spock.repset_add_table(set_name := $1, relation := $2::regclass, synchronize_data := $3);`
	_, err := c.pool.Exec(ctx, q, set, table, syncStructure)
	return err
}

// ---------- SUSCRIPCIONES ----------

func (c *Conn) ListSubscriptions(ctx context.Context) ([]SubInfo, error) {
	const q = `
SELECT s.sub_name, s.sub_origin, COALESCE(n.node_name, '')
FROM spock.subscription s
LEFT JOIN spock.node n ON n.node_id = s.sub_origin
ORDER BY s.sub_name;`
	rows, err := c.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SubInfo
	for rows.Next() {
		var s SubInfo
		if err := rows.Scan(&s.Name, &s.TargetNodeID, &s.TargetNodeName); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (c *Conn) GetSubscription(ctx context.Context, name string) (*SubInfo, error) {
	const q = `
SELECT s.sub_name, s.sub_origin, COALESCE(n.node_name, '')
FROM spock.subscription s
LEFT JOIN spock.node n ON n.node_id = s.sub_origin
WHERE s.sub_name = $1;`
	var s SubInfo
	err := c.pool.QueryRow(ctx, q, name).Scan(&s.Name, &s.TargetNodeID, &s.TargetNodeName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Conn) CreateSubscription(ctx context.Context, name, providerDSN string, sets []string, syncData bool, forwardOrigins []string) error {
	if forwardOrigins == nil {
		forwardOrigins = []string{}
	}
	const q = `
SELECT spock.sub_create(
	subscription_name := $1,
	provider_dsn      := $2,
	replication_sets  := $3,
	synchronize_data  := $4,
	forward_origins   := $5
);`
	_, err := c.pool.Exec(ctx, q, name, providerDSN, sets, syncData, forwardOrigins)
	return err
}

func (c *Conn) DropSubscription(ctx context.Context, name string, ifExists bool) error {
	const q = `SELECT spock.sub_drop($1, $2);`
	_, err := c.pool.Exec(ctx, q, name, ifExists)
	return err
}

func (c *Conn) DisableSubscription(ctx context.Context, name string, immediate bool) error {
	const q = `SELECT spock.sub_disable($1, $2);`
	_, err := c.pool.Exec(ctx, q, name, immediate)
	return err
}

func (c *Conn) EnableSubscription(ctx context.Context, name string, immediate bool) error {
	const q = `SELECT spock.sub_enable($1, $2);`
	_, err := c.pool.Exec(ctx, q, name, immediate)
	return err
}

func (c *Conn) SubscriptionStatus(ctx context.Context, name string) (topology.SubStatus, error) {
	const q = `SELECT status FROM spock.sub_show_status($1) LIMIT 1;`
	var raw string
	err := c.pool.QueryRow(ctx, q, name).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return topology.StatusUnknown, nil
	}
	if err != nil {
		return topology.StatusUnknown, err
	}
	return topology.ParseSubStatus(raw), nil
}

func (c *Conn) WaitForSync(ctx context.Context, name string) error {
	const q = `SELECT spock.sub_wait_for_sync($1);`
	_, err := c.pool.Exec(ctx, q, name)
	return err
}

func (c *Conn) RepairMode(ctx context.Context, enabled bool) error {
	const q = `SELECT spock.repair_mode($1);`
	_, err := c.pool.Exec(ctx, q, enabled)
	return err
}

func (c *Conn) HasRows(ctx context.Context, table string) (bool, error) {
	if err := ValidateIdent(table); err != nil {
		return false, err
	}
	q := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s LIMIT 1);`, QuoteIdent(table))
	var ok bool
	err := c.pool.QueryRow(ctx, q).Scan(&ok)
	return ok, err
}

package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/dropDatabas3/pgmesh/internal/spock"
	"github.com/dropDatabas3/pgmesh/internal/topology"
)

// fakeFabric simula un set de clusters con su catálogo spock en memoria.
// Los node ids son globales y monotónicos, así un nodo recreado cambia
// de identidad igual que en el engine real.
type fakeFabric struct {
	clusters map[string]*fakeCluster
	nextID   int64
}

func newFakeFabric(names ...string) (*fakeFabric, []topology.Cluster) {
	f := &fakeFabric{clusters: map[string]*fakeCluster{}}
	var specs []topology.Cluster
	for _, n := range names {
		f.clusters[n] = &fakeCluster{
			fabric:  f,
			name:    n,
			nodes:   map[string]*spock.NodeInfo{},
			repsets: map[string]bool{},
			tables:  map[string]bool{},
			members: map[string]bool{},
			subs:    map[string]*fakeSub{},
			rows:    map[string]int{},
			status:  map[string]topology.SubStatus{},
		}
		specs = append(specs, topology.Cluster{
			Name:     n,
			Host:     n + ".db.svc",
			Database: "meshdb",
			Cred:     topology.Credential{User: "repl", Password: "pw"},
		})
	}
	return f, specs
}

func (f *fakeFabric) connector() spock.Connector {
	return func(ctx context.Context, c topology.Cluster) (spock.Surface, error) {
		fc, ok := f.clusters[c.Name]
		if !ok {
			return nil, fmt.Errorf("unknown cluster %s", c.Name)
		}
		if fc.failConnect {
			return nil, errors.New("connection refused")
		}
		return fc, nil
	}
}

// byDSN resuelve el cluster provider a partir de su connection
// descriptor, como hace sub_create con el provider_dsn.
func (f *fakeFabric) byDSN(dsn string) *fakeCluster {
	for _, c := range f.clusters {
		if dsn == (topology.Cluster{
			Name: c.name, Host: c.name + ".db.svc", Database: "meshdb",
			Cred: topology.Credential{User: "repl", Password: "pw"},
		}).DSN() {
			return c
		}
	}
	return nil
}

// dropAndRecreateNode simula drift externo: el nodo del cluster se
// recrea con identidad nueva.
func (f *fakeFabric) dropAndRecreateNode(cluster string) {
	c := f.clusters[cluster]
	name := topology.NormalizeName(cluster)
	delete(c.nodes, name)
	f.nextID++
	c.nodes[name] = &spock.NodeInfo{ID: f.nextID, Name: name}
}

type fakeSub struct {
	name         string
	targetNodeID int64
	enabled      bool
	sets         []string
	syncData     bool
}

type fakeCluster struct {
	fabric *fakeFabric
	name   string

	nodes   map[string]*spock.NodeInfo
	repsets map[string]bool
	tables  map[string]bool
	members map[string]bool // set + "|" + table
	subs    map[string]*fakeSub
	rows    map[string]int
	status  map[string]topology.SubStatus

	repairMode     bool
	repairEnables  int
	repairDisables int

	// contadores de side effects (idempotencia)
	nodeCreates int
	nodeDrops   int
	subCreates  int
	subDrops    int

	// inyección de fallos
	failConnect    bool
	failDropDirect bool
	failDropAlways bool
	failDisable    bool
	failCreateSub  bool
	failWait       bool
	failHasRows    bool
}

var _ spock.Surface = (*fakeCluster)(nil)

func (c *fakeCluster) Close() {}

func (c *fakeCluster) Ping(ctx context.Context) error { return nil }

func (c *fakeCluster) ListNodes(ctx context.Context) ([]spock.NodeInfo, error) {
	var out []spock.NodeInfo
	for _, n := range c.nodes {
		out = append(out, *n)
	}
	return out, nil
}

func (c *fakeCluster) GetNode(ctx context.Context, name string) (*spock.NodeInfo, error) {
	n, ok := c.nodes[name]
	if !ok {
		return nil, nil
	}
	cp := *n
	return &cp, nil
}

func (c *fakeCluster) CreateNode(ctx context.Context, name, dsn string) error {
	if _, ok := c.nodes[name]; ok {
		return fmt.Errorf("node %s already exists", name)
	}
	c.fabric.nextID++
	c.nodes[name] = &spock.NodeInfo{ID: c.fabric.nextID, Name: name}
	c.nodeCreates++
	return nil
}

func (c *fakeCluster) DropNode(ctx context.Context, name string, cascade bool) error {
	n, ok := c.nodes[name]
	if !ok {
		return nil
	}
	if cascade {
		for sname, s := range c.subs {
			if s.targetNodeID == n.ID {
				delete(c.subs, sname)
				c.subDrops++
			}
		}
	}
	delete(c.nodes, name)
	c.nodeDrops++
	return nil
}

func (c *fakeCluster) RepSetExists(ctx context.Context, set string) (bool, error) {
	return c.repsets[set], nil
}

func (c *fakeCluster) CreateRepSet(ctx context.Context, set string) error {
	if c.repsets[set] {
		return fmt.Errorf("repset %s already exists", set)
	}
	c.repsets[set] = true
	return nil
}

func (c *fakeCluster) TableExists(ctx context.Context, table string) (bool, error) {
	return c.tables[table], nil
}

func (c *fakeCluster) CreateTable(ctx context.Context, table string) error {
	c.tables[table] = true
	return nil
}

func (c *fakeCluster) TableInRepSet(ctx context.Context, set, table string) (bool, error) {
	return c.members[set+"|"+table], nil
}

func (c *fakeCluster) AddTableToRepSet(ctx context.Context, set, table string, syncStructure bool) error {
	if c.members[set+"|"+table] {
		return fmt.Errorf("table %s already in %s", table, set)
	}
	c.members[set+"|"+table] = true
	return nil
}

func (c *fakeCluster) ListSubscriptions(ctx context.Context) ([]spock.SubInfo, error) {
	var out []spock.SubInfo
	for _, s := range c.subs {
		out = append(out, c.subInfo(s))
	}
	return out, nil
}

func (c *fakeCluster) subInfo(s *fakeSub) spock.SubInfo {
	info := spock.SubInfo{Name: s.name, TargetNodeID: s.targetNodeID}
	for _, n := range c.nodes {
		if n.ID == s.targetNodeID {
			info.TargetNodeName = n.Name
		}
	}
	return info
}

func (c *fakeCluster) GetSubscription(ctx context.Context, name string) (*spock.SubInfo, error) {
	s, ok := c.subs[name]
	if !ok {
		return nil, nil
	}
	info := c.subInfo(s)
	return &info, nil
}

func (c *fakeCluster) CreateSubscription(ctx context.Context, name, providerDSN string, sets []string, syncData bool, forwardOrigins []string) error {
	if c.failCreateSub {
		return errors.New("injected create failure")
	}
	if _, ok := c.subs[name]; ok {
		return fmt.Errorf("subscription %s already exists", name)
	}
	provider := c.fabric.byDSN(providerDSN)
	if provider == nil {
		return fmt.Errorf("provider unreachable: %s", providerDSN)
	}
	pnode, ok := provider.nodes[topology.NormalizeName(provider.name)]
	if !ok {
		return fmt.Errorf("provider %s has no node", provider.name)
	}
	// el engine registra (o refresca) la interface del provider en el
	// subscriber
	cp := *pnode
	c.nodes[pnode.Name] = &cp
	c.subs[name] = &fakeSub{name: name, targetNodeID: pnode.ID, sets: sets, syncData: syncData}
	c.status[name] = topology.StatusUp
	c.subCreates++
	return nil
}

func (c *fakeCluster) DropSubscription(ctx context.Context, name string, ifExists bool) error {
	if c.failDropAlways || (c.failDropDirect && !ifExists) {
		return errors.New("injected drop failure")
	}
	if _, ok := c.subs[name]; !ok {
		if ifExists {
			return nil
		}
		return fmt.Errorf("subscription %s does not exist", name)
	}
	delete(c.subs, name)
	delete(c.status, name)
	c.subDrops++
	return nil
}

func (c *fakeCluster) DisableSubscription(ctx context.Context, name string, immediate bool) error {
	if c.failDisable {
		return errors.New("injected disable failure")
	}
	if s, ok := c.subs[name]; ok {
		s.enabled = false
	}
	return nil
}

func (c *fakeCluster) EnableSubscription(ctx context.Context, name string, immediate bool) error {
	if s, ok := c.subs[name]; ok {
		s.enabled = true
	}
	return nil
}

func (c *fakeCluster) SubscriptionStatus(ctx context.Context, name string) (topology.SubStatus, error) {
	if st, ok := c.status[name]; ok {
		return st, nil
	}
	return topology.StatusUnknown, nil
}

func (c *fakeCluster) WaitForSync(ctx context.Context, name string) error {
	if c.failWait {
		return errors.New("sub_wait_for_sync not supported on this engine version")
	}
	return nil
}

func (c *fakeCluster) RepairMode(ctx context.Context, enabled bool) error {
	c.repairMode = enabled
	if enabled {
		c.repairEnables++
	} else {
		c.repairDisables++
	}
	return nil
}

func (c *fakeCluster) HasRows(ctx context.Context, table string) (bool, error) {
	if c.failHasRows {
		return false, errors.New("injected query failure")
	}
	if !c.tables[table] {
		return false, fmt.Errorf("relation %q does not exist", table)
	}
	return c.rows[table] > 0, nil
}

// sideEffects total de creates+drops de nodos y suscripciones, para los
// tests de idempotencia.
func (f *fakeFabric) sideEffects() int {
	total := 0
	for _, c := range f.clusters {
		total += c.nodeCreates + c.nodeDrops + c.subCreates + c.subDrops
	}
	return total
}

// Package topology modela la topología deseada de replicación:
// clusters, nodos, y el conjunto de edges (suscripciones dirigidas)
// que forman el full mesh.
package topology

import (
	"fmt"
	"strings"
)

// Credential credenciales ya resueltas para un cluster.
// La resolución (env lookup, literal) ocurre una sola vez en config.Load.
type Credential struct {
	User     string
	Password string
}

// Cluster un cluster de la topología deseada.
// Inmutable durante el run; identidad = Name.
type Cluster struct {
	Name     string
	Host     string
	Port     int
	Database string
	Cred     Credential
}

// NodeName devuelve el nombre normalizado del nodo para este cluster.
func (c Cluster) NodeName() string {
	return NormalizeName(c.Name)
}

// DSN construye el connection descriptor (keyword/value) hacia el primario.
// Los valores pasan por escapeDSNValue; nunca se interpola texto sin escapar.
func (c Cluster) DSN() string {
	port := c.Port
	if port == 0 {
		port = 5432
	}
	parts := []string{
		"host=" + escapeDSNValue(c.Host),
		fmt.Sprintf("port=%d", port),
		"dbname=" + escapeDSNValue(c.Database),
		"user=" + escapeDSNValue(c.Cred.User),
	}
	if c.Cred.Password != "" {
		parts = append(parts, "password="+escapeDSNValue(c.Cred.Password))
	}
	return strings.Join(parts, " ")
}

// escapeDSNValue escapa un valor para el formato keyword/value de libpq.
// Valores con espacios, comillas o vacíos van entre comillas simples.
func escapeDSNValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " '\\") {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// NormalizeName normaliza un nombre de cluster a nombre de nodo:
// minúsculas, y toda corrida de caracteres no alfanuméricos colapsa a "_".
// "PG-Cluster-1" → "pg_cluster_1".
func NormalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	pendingSep := false
	for _, r := range strings.ToLower(name) {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !alnum {
			if b.Len() > 0 {
				pendingSep = true
			}
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Edge una suscripción dirigida: Src (subscriber) se suscribe a Tgt (provider).
type Edge struct {
	Src Cluster
	Tgt Cluster
}

// Name nombre determinístico del edge, derivado de ambos extremos.
func (e Edge) Name() string {
	return EdgeName(e.Src.Name, e.Tgt.Name)
}

// EdgeName deriva el nombre de la suscripción src→tgt.
// Scenario típico: EdgeName("a", "b") == "sub_a_to_b".
func EdgeName(src, tgt string) string {
	return "sub_" + NormalizeName(src) + "_to_" + NormalizeName(tgt)
}

// DesiredEdges genera el conjunto completo de pares ordenados (src, tgt)
// con src ≠ tgt: N·(N-1) edges, en orden source-outer / target-inner.
// El orden es parte del contrato: los side effects de la reconciliación
// deben ser predecibles.
func DesiredEdges(clusters []Cluster) []Edge {
	if len(clusters) < 2 {
		return nil
	}
	edges := make([]Edge, 0, len(clusters)*(len(clusters)-1))
	for _, src := range clusters {
		for _, tgt := range clusters {
			if src.Name == tgt.Name {
				continue
			}
			edges = append(edges, Edge{Src: src, Tgt: tgt})
		}
	}
	return edges
}

// NodeNameSet devuelve el set de nombres de nodo normalizados deseados.
func NodeNameSet(clusters []Cluster) map[string]bool {
	set := make(map[string]bool, len(clusters))
	for _, c := range clusters {
		set[c.NodeName()] = true
	}
	return set
}

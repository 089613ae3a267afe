package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS ESTÁNDAR - TOPOLOGÍA
// =================================================================================

// Cluster crea un campo para el nombre del cluster.
func Cluster(v string) zap.Field {
	return zap.String("cluster", v)
}

// Node crea un campo para el nombre de nodo normalizado.
func Node(v string) zap.Field {
	return zap.String("node", v)
}

// Edge crea un campo para el nombre de la suscripción (edge src→tgt).
func Edge(v string) zap.Field {
	return zap.String("edge", v)
}

// Source crea un campo para el cluster subscriber del edge.
func Source(v string) zap.Field {
	return zap.String("source", v)
}

// Target crea un campo para el cluster provider del edge.
func Target(v string) zap.Field {
	return zap.String("target", v)
}

// Table crea un campo para el nombre de tabla.
func Table(v string) zap.Field {
	return zap.String("table", v)
}

// RepSet crea un campo para el replication set.
func RepSet(v string) zap.Field {
	return zap.String("repset", v)
}

// Status crea un campo para el status de una suscripción.
func Status(v string) zap.Field {
	return zap.String("status", v)
}

// RunID crea un campo para el id del pass de reconciliación.
func RunID(v string) zap.Field {
	return zap.String("run_id", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op crea un campo para la operación actual.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// Duration crea un campo para una duración.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// DurationMs crea un campo para una duración en milisegundos.
func DurationMs(v int64) zap.Field {
	return zap.Int64("duration_ms", v)
}

// Count crea un campo para un conteo.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// Any crea un campo genérico para cualquier tipo.
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}

// String crea un campo string genérico.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}

// Bool crea un campo bool genérico.
func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}

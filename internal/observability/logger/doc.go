// Package logger provides a singleton Zap logger with context-based scoping.
//
// # Design Decisions
//
//   - Singleton: Una sola instancia global inicializada con Init().
//   - Context Scoping: Cada pass de reconciliación puede llevar un logger
//     "scoped" con campos propios (run_id, cluster, etc.) sin crear un
//     nuevo core.
//   - Environments: "dev" usa consola con colores, "prod" usa JSON.
//   - Levels: debug, info, warn, error (configurable vía log.level).
//
// # Usage
//
// Inicialización (una vez en main.go):
//
//	logger.Init(logger.Config{
//	    Env:   cfg.App.Env,   // "dev" o "prod"
//	    Level: cfg.Log.Level, // "debug", "info", "warn", "error"
//	})
//	defer logger.Sync()
//
// En los reconcilers (con contexto):
//
//	log := logger.From(ctx)
//	log.Info("edge repaired", logger.Edge(name), logger.Target(tgt))
//
// Sin contexto (fallback a singleton):
//
//	logger.L().Info("reconciliation pass started")
package logger

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/pgmesh/internal/config"
	"github.com/dropDatabas3/pgmesh/internal/httpapi"
	"github.com/dropDatabas3/pgmesh/internal/metrics"
	"github.com/dropDatabas3/pgmesh/internal/observability/logger"
	"github.com/dropDatabas3/pgmesh/internal/reconcile"
	"github.com/dropDatabas3/pgmesh/internal/runlock"
	"github.com/dropDatabas3/pgmesh/internal/spock"
)

// version se setea en build time via -ldflags.
var version = "dev"

func main() {
	// .env opcional para desarrollo (credenciales via env:VAR)
	_ = godotenv.Load()

	var cfgPath string

	root := &cobra.Command{
		Use:   "pgmesh",
		Short: "Reconciliador de topología full-mesh de replicación lógica",
		Long: `pgmesh establece y repara continuamente una topología full-mesh de
replicación lógica entre clusters Postgres independientes: registra
nodos, asegura replication sets y membresía de tablas, y converge el
edge set de suscripciones al estado deseado.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "pgmesh.yaml", "ruta del archivo de configuración YAML")

	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Ejecuta un pass de reconciliación y termina",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, runner, err := setup(cfgPath, false)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rep, err := runPass(ctx, cfg, runner)
			if err != nil {
				return err
			}
			if rep.RunID == "" {
				// lock en manos de otro proceso
				return nil
			}
			// el proceso reporta "pass completed" aunque haya edges
			// salteados; la convergencia es eventual, no transaccional
			fmt.Printf("pass %s: %d converged, %d created, %d recreated, %d skipped\n",
				rep.RunID,
				rep.CountAction(reconcile.ActionConverged),
				rep.CountAction(reconcile.ActionCreated),
				rep.CountAction(reconcile.ActionRecreated),
				rep.CountAction(reconcile.ActionSkipped),
			)
			return nil
		},
	}

	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Reconciliación periódica + HTTP (healthz, metrics, report)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, runner, err := setup(cfgPath, true)
			if err != nil {
				return err
			}
			return runDaemon(cmd.Context(), cfg, runner)
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Muestra nodos y suscripciones de cada cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup(cfgPath, false)
			if err != nil {
				return err
			}
			return printStatus(cmd.Context(), cfg)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Versión del binario",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("pgmesh", version)
		},
	}

	root.AddCommand(reconcileCmd, daemonCmd, statusCmd, versionCmd)

	err := root.Execute()
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// setup carga config, inicializa logger y métricas, y arma el Runner.
func setup(cfgPath string, daemon bool) (*config.Config, *reconcile.Runner, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}

	logger.Init(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.Log.Level,
		Version: version,
	})

	if err := metrics.RegisterMesh(nil); err != nil {
		return nil, nil, fmt.Errorf("register metrics: %w", err)
	}

	clusters, err := cfg.ResolveClusters()
	if err != nil {
		return nil, nil, err
	}

	probe := reconcile.NewProber(cfg.Readiness.Interval, cfg.Readiness.Timeout)
	if daemon {
		// en modo daemon un cluster sano no se re-probea en cada loop
		probe = reconcile.NewCachedProber(cfg.Readiness.Interval, cfg.Readiness.Timeout, cfg.Daemon.Interval)
	}

	runner := &reconcile.Runner{
		Clusters:   clusters,
		Tables:     cfg.Tables,
		SetName:    config.DefaultRepSet,
		Connect:    spock.Dial,
		Probe:      probe,
		ReportPath: cfg.Report.Path,
	}
	return cfg, runner, nil
}

// runPass corre un pass, tomando el run lock si está habilitado.
// Devuelve nil report (sin error) cuando otro proceso tiene el lock.
func runPass(ctx context.Context, cfg *config.Config, runner *reconcile.Runner) (*reconcile.RunReport, error) {
	log := logger.L()

	if cfg.Lock.Enabled {
		locker, err := runlock.New(runlock.Config{
			Addr: cfg.Lock.RedisAddr,
			DB:   cfg.Lock.RedisDB,
			Key:  cfg.Lock.Key,
			TTL:  cfg.Lock.TTL,
		})
		if err != nil {
			return nil, err
		}
		defer locker.Close()

		ok, err := locker.TryAcquire(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			log.Warn("another reconciler holds the run lock, skipping pass")
			return &reconcile.RunReport{}, nil
		}
		defer func() {
			if err := locker.Release(context.Background()); err != nil {
				log.Warn("run lock release failed", logger.Err(err))
			}
		}()
	}

	return runner.Run(ctx)
}

// runDaemon supervisa el loop de reconciliación y el server HTTP.
func runDaemon(parent context.Context, cfg *config.Config, runner *reconcile.Runner) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.L()
	var lastReport atomic.Pointer[reconcile.RunReport]

	srv := &http.Server{
		Addr:         cfg.Daemon.Addr,
		Handler:      httpapi.New(lastReport.Load),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server listening", logger.String("addr", cfg.Daemon.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.Daemon.Interval)
		defer ticker.Stop()
		for {
			rep, err := runPass(ctx, cfg, runner)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				// un pass fallido no tumba el daemon; se reintenta
				log.Error("reconciliation pass failed", logger.Err(err))
			} else if rep.RunID != "" {
				lastReport.Store(rep)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	return g.Wait()
}

// printStatus imprime el estado observado de cada cluster.
func printStatus(ctx context.Context, cfg *config.Config) error {
	clusters, err := cfg.ResolveClusters()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	for _, c := range clusters {
		surf, err := spock.Dial(ctx, c)
		if err != nil {
			fmt.Fprintf(w, "%s\tUNREACHABLE\t%v\n", c.Name, err)
			continue
		}
		nodes, err := surf.ListNodes(ctx)
		if err != nil {
			surf.Close()
			fmt.Fprintf(w, "%s\tERROR\t%v\n", c.Name, err)
			continue
		}
		subs, _ := surf.ListSubscriptions(ctx)

		fmt.Fprintf(w, "cluster %s\tnodes=%d\tsubs=%d\n", c.Name, len(nodes), len(subs))
		for _, n := range nodes {
			fmt.Fprintf(w, "  node\t%s\tid=%d\n", n.Name, n.ID)
		}
		for _, s := range subs {
			st, err := surf.SubscriptionStatus(ctx, s.Name)
			if err != nil {
				st = "unknown"
			}
			fmt.Fprintf(w, "  sub\t%s\t-> %s\t%s\n", s.Name, s.TargetNodeName, st)
		}
		surf.Close()
	}
	return nil
}

package reconcile

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dropDatabas3/pgmesh/internal/observability/logger"
	"github.com/dropDatabas3/pgmesh/internal/spock"
	"github.com/dropDatabas3/pgmesh/internal/topology"
)

// Prober espera a que el primario de un cluster acepte conexiones.
// Con Timeout == 0 espera indefinidamente ("wait forever for the
// primary"); la cancelación del contexto sigue cortando la espera.
type Prober struct {
	Interval time.Duration
	Timeout  time.Duration

	// cache opcional de resultados positivos (modo daemon): un cluster
	// que respondió hace menos del TTL no se re-probea en cada loop.
	cache *gocache.Cache
}

// NewProber crea una probe sin cache (modo one-shot).
func NewProber(interval, timeout time.Duration) *Prober {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Prober{Interval: interval, Timeout: timeout}
}

// NewCachedProber crea una probe con cache TTL de readiness positiva.
func NewCachedProber(interval, timeout, ttl time.Duration) *Prober {
	p := NewProber(interval, timeout)
	p.cache = gocache.New(ttl, 2*ttl)
	return p
}

// AwaitReady bloquea hasta que el cluster responda un ping trivial.
// Cada intento abre su propia conexión y la cierra; no se reusa sesión
// entre intentos.
func (p *Prober) AwaitReady(ctx context.Context, c topology.Cluster, connect spock.Connector) error {
	if p.cache != nil {
		if _, ok := p.cache.Get(c.Name); ok {
			return nil
		}
	}

	log := logger.From(ctx).With(logger.Cluster(c.Name))

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	attempt := 0
	for {
		attempt++
		err := p.tryOnce(ctx, c, connect)
		if err == nil {
			if attempt > 1 {
				log.Info("cluster ready", logger.Count(attempt))
			}
			if p.cache != nil {
				p.cache.SetDefault(c.Name, true)
			}
			return nil
		}
		log.Debug("cluster not ready yet", logger.Err(err), logger.Count(attempt))

		select {
		case <-ctx.Done():
			return fmt.Errorf("cluster %s not ready: %w (last: %v)", c.Name, ctx.Err(), err)
		case <-time.After(p.Interval):
		}
	}
}

func (p *Prober) tryOnce(ctx context.Context, c topology.Cluster, connect spock.Connector) error {
	surf, err := connect(ctx, c)
	if err != nil {
		return err
	}
	defer surf.Close()
	return surf.Ping(ctx)
}

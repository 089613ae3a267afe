// Package runlock implementa un lock advisory opcional sobre Redis para
// que dos procesos reconciliando el mismo set de clusters no corran en
// paralelo. El diseño base asume un solo reconciler a la vez; este lock
// es el cinturón para quien no puede garantizarlo por deployment.
// Deshabilitado, el comportamiento es el documentado: sin enforcement.
package runlock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript borra la key solo si el token sigue siendo el nuestro:
// un lock expirado y re-adquirido por otro proceso no se pisa.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

type Config struct {
	Addr string
	DB   int
	Key  string
	TTL  time.Duration
}

// Locker lock de proceso con token propio y TTL. El TTL cubre el caso
// del proceso muerto con el lock tomado: expira solo.
type Locker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	token  string
}

// New crea el Locker y verifica conectividad con Redis.
func New(cfg Config) (*Locker, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("runlock: redis ping failed: %w", err)
	}
	return &Locker{
		client: rdb,
		key:    cfg.Key,
		ttl:    cfg.TTL,
		token:  uuid.NewString(),
	}, nil
}

// TryAcquire intenta tomar el lock sin bloquear. false = otro proceso
// lo tiene; el caller saltea el pass y reintenta en el próximo ciclo.
func (l *Locker) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("runlock: acquire: %w", err)
	}
	return ok, nil
}

// Release libera el lock solo si todavía es nuestro.
func (l *Locker) Release(ctx context.Context) error {
	if err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("runlock: release: %w", err)
	}
	return nil
}

// Close cierra la conexión a Redis.
func (l *Locker) Close() error {
	return l.client.Close()
}

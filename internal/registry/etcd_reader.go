package registry

import (
	"context"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	syncerrors "github.com/mir00r/haproxy-sync/internal/errors"
	"github.com/mir00r/haproxy-sync/pkg/logger"
)

// EtcdReader implements Reader using the etcd v3 client.
type EtcdReader struct {
	client         *clientv3.Client // thread-safe, shared across calls
	endpoint       string
	prefix         string
	requestTimeout time.Duration
	logger         *logger.Logger
}

// NewEtcdReader connects to the given etcd endpoint and returns a reader
// for all keys under prefix. The dial is bounded by dialTimeout so a dead
// registry fails startup instead of hanging it.
func NewEtcdReader(endpoint, prefix string, dialTimeout, requestTimeout time.Duration, log *logger.Logger) (*EtcdReader, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   []string{endpoint},
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, syncerrors.NewRegistryUnavailableError(endpoint, err)
	}

	return &EtcdReader{
		client:         client,
		endpoint:       endpoint,
		prefix:         prefix,
		requestTimeout: requestTimeout,
		logger:         log.RegistryLogger(endpoint),
	}, nil
}

// Ping verifies the registry is reachable. Used as a startup precondition
// check; a failure here is fatal, the same failure inside the loop is not.
func (r *EtcdReader) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.requestTimeout)
	defer cancel()

	if _, err := r.client.Status(ctx, r.endpoint); err != nil {
		return syncerrors.NewRegistryUnavailableError(r.endpoint, err)
	}
	return nil
}

// ReadAll lists every key under the watched prefix in a single ranged Get.
// The etcd client retries transient connection loss internally; anything
// that still fails within the request timeout surfaces as
// REGISTRY_UNAVAILABLE and is retried on the next tick by the caller.
func (r *EtcdReader) ReadAll(ctx context.Context) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.requestTimeout)
	defer cancel()

	resp, err := r.client.Get(ctx, r.prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, syncerrors.NewRegistryUnavailableError(r.endpoint, err)
	}

	entries := make([]Entry, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		entries = append(entries, Entry{
			Key:   string(kv.Key),
			Value: string(kv.Value),
		})
	}

	r.logger.WithField("entry_count", len(entries)).Debug("Read registry entries")
	return entries, nil
}

// Close releases the etcd client connection.
func (r *EtcdReader) Close() error {
	return r.client.Close()
}

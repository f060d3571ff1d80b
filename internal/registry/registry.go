// Package registry reads the service discovery namespace from etcd.
//
// The registry is a flat key-value namespace maintained by an external
// publisher (typically a container scheduler sidecar):
//
//	Key:   {prefix}/{service}/port       Value: externally advertised port
//	Key:   {prefix}/{service}/{name}     Value: host:port of one backend
//
// This package only reads; registration is someone else's job.
package registry

import "context"

// Entry is a single raw record read from the registry. Entries are
// ephemeral and produced fresh on every poll.
type Entry struct {
	Key   string
	Value string
}

// Reader lists all entries under the watched prefix. A partial or
// interrupted listing must surface as an error, never as a truncated
// result: a truncated topology would remove live backends from the
// generated configuration.
type Reader interface {
	ReadAll(ctx context.Context) ([]Entry, error)
}

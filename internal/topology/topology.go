// Package topology reconstructs the structured service topology from the
// flat registry namespace and detects changes between snapshots.
package topology

import (
	"sort"
	"strings"

	"github.com/mir00r/haproxy-sync/internal/registry"
)

// portKey is the reserved identifier carrying a service's advertised port.
const portKey = "port"

// Endpoint represents one running backend instance of a service.
type Endpoint struct {
	Name    string `json:"name"`
	Address string `json:"addr"`
}

// Service represents one logical service: its advertised port and the set
// of live backend endpoints, keyed by endpoint name.
type Service struct {
	Port      string              `json:"port"`
	Endpoints map[string]Endpoint `json:"endpoints"`
}

// Snapshot maps service names to their topology. A snapshot is rebuilt
// from scratch on every poll so deleted registry keys never linger as
// stale backends.
type Snapshot map[string]Service

// Build parses raw registry entries into a Snapshot. Keys are interpreted
// relative to prefix and must have exactly the two-segment shape
// /{service}/{identifier}; anything else (administrative keys, deeper
// nesting) is skipped by policy, not treated as an error.
//
// The identifier "port" sets the service port, last write wins. Any other
// identifier names a backend endpoint whose address is the entry value;
// duplicate names overwrite. Services that never received a port are
// dropped: without one they cannot be rendered into a frontend. A service
// with a port and zero backends is valid and renders as an empty pool.
func Build(entries []registry.Entry, prefix string) Snapshot {
	services := make(map[string]*Service)

	for _, entry := range entries {
		service, identifier, ok := splitKey(entry.Key, prefix)
		if !ok {
			continue
		}

		svc, exists := services[service]
		if !exists {
			svc = &Service{Endpoints: make(map[string]Endpoint)}
			services[service] = svc
		}

		if identifier == portKey {
			svc.Port = entry.Value
			continue
		}

		svc.Endpoints[identifier] = Endpoint{Name: identifier, Address: entry.Value}
	}

	snapshot := make(Snapshot, len(services))
	for name, svc := range services {
		if svc.Port == "" {
			continue
		}
		snapshot[name] = *svc
	}

	return snapshot
}

// splitKey extracts the service name and identifier from a registry key,
// relative to the watched prefix. Returns ok=false for keys outside the
// prefix or not matching the two-segment shape. The prefix match is a
// path-segment match, not a byte-prefix match: /backends2/port is not
// under /backends.
func splitKey(key, prefix string) (service, identifier string, ok bool) {
	if key != prefix && !strings.HasPrefix(key, prefix+"/") {
		return "", "", false
	}

	rest := strings.Trim(strings.TrimPrefix(key, prefix), "/")
	if rest == "" {
		return "", "", false
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}

	return parts[0], parts[1], true
}

// Equal reports whether two snapshots describe the same topology: the
// same service names, and per service the same port and the same set of
// endpoint name/address pairs. Map-based, so iteration order can never
// produce a spurious difference.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s) != len(other) {
		return false
	}

	for name, svc := range s {
		otherSvc, exists := other[name]
		if !exists {
			return false
		}

		if svc.Port != otherSvc.Port {
			return false
		}

		if len(svc.Endpoints) != len(otherSvc.Endpoints) {
			return false
		}

		for epName, ep := range svc.Endpoints {
			if otherSvc.Endpoints[epName] != ep {
				return false
			}
		}
	}

	return true
}

// ServiceNames returns the service names in sorted order.
func (s Snapshot) ServiceNames() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SortedEndpoints returns the service's endpoints sorted by name. Stable
// ordering keeps rendered output deterministic.
func (svc Service) SortedEndpoints() []Endpoint {
	endpoints := make([]Endpoint, 0, len(svc.Endpoints))
	for _, ep := range svc.Endpoints {
		endpoints = append(endpoints, ep)
	}
	sort.Slice(endpoints, func(i, j int) bool {
		return endpoints[i].Name < endpoints[j].Name
	})
	return endpoints
}

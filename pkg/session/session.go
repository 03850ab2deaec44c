// Package session scopes adapter instances to host sessions. An
// adapter instance is constructed lazily on first use by a
// (session, table) pairing, serves every statement of that pairing,
// and is destroyed no later than session end.
package session

import (
	"time"

	"github.com/txn2/fdw-bridge/pkg/fdw"
)

// Session represents one host session and the adapter instances it
// has materialized.
type Session struct {
	// ID is the unique session identifier.
	ID string

	// CreatedAt is when the session was established.
	CreatedAt time.Time

	// LastActiveAt is the most recent activity timestamp.
	LastActiveAt time.Time

	// ExpiresAt is when the session expires if not touched.
	ExpiresAt time.Time

	// adapters holds live instances by qualified table name. Guarded
	// by the manager's lock.
	adapters map[string]fdw.ForeignData
}

// Tables returns the qualified names of tables this session has
// materialized adapters for.
func (s *Session) Tables() []string {
	names := make([]string, 0, len(s.adapters))
	for name := range s.adapters {
		names = append(names, name)
	}
	return names
}

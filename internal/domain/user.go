package domain

// User represents a wallet that created a token or traded one.
// Corresponds to users table in PostgreSQL.
//
// DisplayName and Role are owned by outside collaborators; this core only
// creates rows lazily on first sighting of an address.
type User struct {
	Address     string  // PRIMARY KEY, normalized wallet address
	DisplayName *string // optional display name (nullable)
	Role        string  // "user" by default
	CreatedAt   int64   // record creation timestamp (ms)
}

// DefaultRole is assigned to users created by the reconciliation core.
const DefaultRole = "user"

// Package models defines the tenant, user, and note entities shared by every
// store backend and the HTTP layer.
//
// # Entities
//
//   - [Tenant]: an isolated customer organization. Its [Plan] decides whether
//     the note cap applies.
//   - [User]: an account that belongs to exactly one tenant and has one [Role].
//   - [Note]: a short text record owned by a user and scoped to the user's tenant.
//
// # Typed IDs
//
// [TenantID], [UserID], and [NoteID] each wrap a UUID and know their table.
// In PostgreSQL they are stored as uuid columns through [database/sql/driver.Valuer]
// and [database/sql.Scanner]. In SurrealDB they marshal to record ids
// (CBOR tag 8 carrying [table, id]), so a note's tenant_id field is a real
// record link and can be traversed in SurrealQL.
//
// On the wire every ID is its canonical UUID string, and JSON field names are
// snake_case.
package models

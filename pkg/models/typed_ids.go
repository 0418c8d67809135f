package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	surrealdb_models "github.com/surrealdb/surrealdb.go/pkg/models"
)

const (
	TenantsTable = "tenants"
	UsersTable   = "users"
	NotesTable   = "notes"
)

// surrealRecordIDTag is the CBOR tag SurrealDB uses for record ids.
const surrealRecordIDTag = 8

// TenantID is a typed ID for tenants
type TenantID struct {
	uuid uuid.UUID
}

func NewTenantID() TenantID                     { return TenantID{uuid: uuid.New()} }
func NewTenantIDFromUUID(id uuid.UUID) TenantID { return TenantID{uuid: id} }

func ParseTenantID(s string) (TenantID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return TenantID{}, fmt.Errorf("invalid tenant ID: %w", err)
	}
	return TenantID{uuid: id}, nil
}

func (t TenantID) UUID() uuid.UUID { return t.uuid }
func (t TenantID) String() string  { return t.uuid.String() }
func (t TenantID) IsZero() bool    { return t.uuid == uuid.Nil }

func (t TenantID) RecordID() surrealdb_models.RecordID {
	return surrealdb_models.RecordID{Table: TenantsTable, ID: t.uuid.String()}
}

func (t TenantID) MarshalJSON() ([]byte, error)     { return json.Marshal(t.uuid.String()) }
func (t *TenantID) UnmarshalJSON(data []byte) error { return unmarshalJSONID(data, &t.uuid) }
func (t TenantID) MarshalCBOR() ([]byte, error)     { return marshalCBORID(TenantsTable, t.uuid) }
func (t *TenantID) UnmarshalCBOR(data []byte) error { return unmarshalCBORID(data, TenantsTable, &t.uuid) }
func (t TenantID) Value() (driver.Value, error)     { return valueUUID(t.uuid) }
func (t *TenantID) Scan(value any) error            { return scanUUID(value, &t.uuid) }
func (TenantID) GormDataType() string               { return "uuid" }

// UserID is a typed ID for users
type UserID struct {
	uuid uuid.UUID
}

func NewUserID() UserID                     { return UserID{uuid: uuid.New()} }
func NewUserIDFromUUID(id uuid.UUID) UserID { return UserID{uuid: id} }

func ParseUserID(s string) (UserID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, fmt.Errorf("invalid user ID: %w", err)
	}
	return UserID{uuid: id}, nil
}

func (u UserID) UUID() uuid.UUID { return u.uuid }
func (u UserID) String() string  { return u.uuid.String() }
func (u UserID) IsZero() bool    { return u.uuid == uuid.Nil }

func (u UserID) RecordID() surrealdb_models.RecordID {
	return surrealdb_models.RecordID{Table: UsersTable, ID: u.uuid.String()}
}

func (u UserID) MarshalJSON() ([]byte, error)     { return json.Marshal(u.uuid.String()) }
func (u *UserID) UnmarshalJSON(data []byte) error { return unmarshalJSONID(data, &u.uuid) }
func (u UserID) MarshalCBOR() ([]byte, error)     { return marshalCBORID(UsersTable, u.uuid) }
func (u *UserID) UnmarshalCBOR(data []byte) error { return unmarshalCBORID(data, UsersTable, &u.uuid) }
func (u UserID) Value() (driver.Value, error)     { return valueUUID(u.uuid) }
func (u *UserID) Scan(value any) error            { return scanUUID(value, &u.uuid) }
func (UserID) GormDataType() string               { return "uuid" }

// NoteID is a typed ID for notes
type NoteID struct {
	uuid uuid.UUID
}

func NewNoteID() NoteID                     { return NoteID{uuid: uuid.New()} }
func NewNoteIDFromUUID(id uuid.UUID) NoteID { return NoteID{uuid: id} }

func ParseNoteID(s string) (NoteID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return NoteID{}, fmt.Errorf("invalid note ID: %w", err)
	}
	return NoteID{uuid: id}, nil
}

func (n NoteID) UUID() uuid.UUID { return n.uuid }
func (n NoteID) String() string  { return n.uuid.String() }
func (n NoteID) IsZero() bool    { return n.uuid == uuid.Nil }

func (n NoteID) RecordID() surrealdb_models.RecordID {
	return surrealdb_models.RecordID{Table: NotesTable, ID: n.uuid.String()}
}

func (n NoteID) MarshalJSON() ([]byte, error)     { return json.Marshal(n.uuid.String()) }
func (n *NoteID) UnmarshalJSON(data []byte) error { return unmarshalJSONID(data, &n.uuid) }
func (n NoteID) MarshalCBOR() ([]byte, error)     { return marshalCBORID(NotesTable, n.uuid) }
func (n *NoteID) UnmarshalCBOR(data []byte) error { return unmarshalCBORID(data, NotesTable, &n.uuid) }
func (n NoteID) Value() (driver.Value, error)     { return valueUUID(n.uuid) }
func (n *NoteID) Scan(value any) error            { return scanUUID(value, &n.uuid) }
func (NoteID) GormDataType() string               { return "uuid" }

func unmarshalJSONID(data []byte, target *uuid.UUID) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	*target = id
	return nil
}

func marshalCBORID(table string, id uuid.UUID) ([]byte, error) {
	return cbor.Marshal(cbor.Tag{
		Number:  surrealRecordIDTag,
		Content: []any{table, id.String()},
	})
}

// unmarshalCBORID decodes a SurrealDB record id (tag 8, [table, id]) and checks
// that it points into expectedTable.
func unmarshalCBORID(data []byte, expectedTable string, target *uuid.UUID) error {
	if len(data) == 0 {
		return fmt.Errorf("empty CBOR data")
	}

	// major type 6 is a tag
	if majorType := data[0] >> 5; majorType != 6 {
		return fmt.Errorf("expected CBOR tag for record id, got major type %d", majorType)
	}

	var tag cbor.Tag
	if err := cbor.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("failed to unmarshal CBOR tag: %w", err)
	}
	if tag.Number != surrealRecordIDTag {
		return fmt.Errorf("expected record id tag (%d), got %d", surrealRecordIDTag, tag.Number)
	}

	arr, ok := tag.Content.([]any)
	if !ok || len(arr) != 2 {
		return fmt.Errorf("invalid record id: expected [table, id] array")
	}
	table, ok := arr[0].(string)
	if !ok {
		return fmt.Errorf("invalid record id: table name must be a string")
	}
	if table != expectedTable {
		return fmt.Errorf("expected table %s, got %s", expectedTable, table)
	}
	idStr, ok := arr[1].(string)
	if !ok {
		return fmt.Errorf("invalid record id: id must be a string")
	}

	parsed, err := uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("invalid UUID in record id: %w", err)
	}
	*target = parsed
	return nil
}

func valueUUID(id uuid.UUID) (driver.Value, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	return id.String(), nil
}

func scanUUID(value any, target *uuid.UUID) error {
	switch v := value.(type) {
	case nil:
		*target = uuid.Nil
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return err
		}
		*target = id
	case []byte:
		// pgx hands back the 16 raw bytes for uuid columns scanned as []byte
		if len(v) == 16 {
			id, err := uuid.FromBytes(v)
			if err != nil {
				return err
			}
			*target = id
			return nil
		}
		id, err := uuid.ParseBytes(v)
		if err != nil {
			return err
		}
		*target = id
	case [16]byte:
		*target = uuid.UUID(v)
	default:
		return fmt.Errorf("cannot scan type %T into UUID", value)
	}
	return nil
}

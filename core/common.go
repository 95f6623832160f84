package core

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Operation represents an action a requester performs on a resource, one of Create, Read, Update, Delete, List
type Operation string

// all supported operations
const (
	OperationCreate Operation = "create"
	OperationRead   Operation = "read"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
	OperationList   Operation = "list"
)

// AllOperations lists every operation, used by unconditional admin grants
var AllOperations = []Operation{
	OperationCreate,
	OperationRead,
	OperationUpdate,
	OperationDelete,
	OperationList,
}

// UnmarshalJSON is a custom JSON unmarshaller
func (o *Operation) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*o = Operation(s)
	switch *o {
	case OperationCreate, OperationRead, OperationUpdate, OperationDelete, OperationList:
		return nil
	default:
		return fmt.Errorf("%s is not valid Operation", s)
	}
}

// Record is one row of a resource table, keyed by column name.
type Record map[string]any

// Common column names shared by most resource tables
const (
	FieldID           = "ID"
	FieldDateCreated  = "dateCreated"
	FieldDateModified = "dateModified"
	FieldAuthorID     = "authorID"
)

// Int64 returns the named field as an int64. Numeric values of any width
// and numeric strings are accepted.
func (r Record) Int64(field string) (int64, bool) {
	if r == nil {
		return 0, false
	}
	switch v := r[field].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		return int64(v), true
	case json.Number:
		i, err := v.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(v, 10, 64)
		return i, err == nil
	case []byte:
		i, err := strconv.ParseInt(string(v), 10, 64)
		return i, err == nil
	}
	return 0, false
}

// ID returns the record identifier, or zero if the record has none
func (r Record) ID() int64 {
	id, _ := r.Int64(FieldID)
	return id
}

// String returns the named field as a string
func (r Record) String(field string) string {
	switch v := r[field].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Clone returns a shallow copy of the record
func (r Record) Clone() Record {
	c := make(Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

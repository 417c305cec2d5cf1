package internal

// QueryType defines the possible queries for the state machine.
type QueryType uint8

const (
	QueryTGet       QueryType = iota // Retrieve a string value by key.
	QueryTHas                        // Check if a key exists.
	QueryTHGet                       // Retrieve a hash field.
	QueryTKeys                       // List the keys matching a glob pattern.
	QueryTGetDBInfo                  // Retrieve metadata about the database underlying the machine.
)

func (q QueryType) String() string {
	switch q {
	case QueryTGet:
		return "Get"
	case QueryTHas:
		return "Has"
	case QueryTHGet:
		return "HGet"
	case QueryTKeys:
		return "Keys"
	case QueryTGetDBInfo:
		return "GetDBInfo"
	default:
		return "Unknown"
	}
}

// Query defines the structure for lookup requests (read-only) sent via SyncRead or ReadStale
type Query struct {
	Type  QueryType // The type of Query to perform.
	Key   string    // The key or glob pattern for the Query (emtpy for some queries).
	Field string    // The hash field (QueryTHGet only).
}

// QueryResult is the result of a QueryTGet or QueryTHGet operation.
// All other query results are primitive types or predefined structs (bool, []string, db.DatabaseInfo).
type QueryResult struct {
	Ok    bool
	Value []byte
}

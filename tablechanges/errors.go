package tablechanges

import "fmt"

// UnsupportedError reports a table feature that prevents reading the change
// feed at a commit. Distinct from generic parse failures so callers can give
// an actionable message.
type UnsupportedError struct {
	Version uint64
	Feature string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("change data feed not supported at version %d: %s", e.Version, e.Feature)
}

// IncompatibleSchemaError reports a schema change within the requested change
// feed range. Both schema strings are carried for diagnostics.
type IncompatibleSchemaError struct {
	Version      uint64
	TableSchema  string
	CommitSchema string
}

func (e *IncompatibleSchemaError) Error() string {
	return fmt.Sprintf(
		"change data feed schema changed at version %d: table schema %s, commit schema %s",
		e.Version, e.TableSchema, e.CommitSchema)
}

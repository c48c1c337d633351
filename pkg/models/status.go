package models

// PageStatus represents the export status of a page in the build database
type PageStatus string

const (
	PageStatusUnset     PageStatus = ""          // Zero value = unset/unknown
	PageStatusExported  PageStatus = "exported"  // Page written to the outputs in this or an earlier run
	PageStatusUnchanged PageStatus = "unchanged" // Incremental run found the same content hash
	PageStatusFailure   PageStatus = "failure"   // Page failed to load
	PageStatusNotFound  PageStatus = "not_found" // Slug not in database
	PageStatusDBError   PageStatus = "db_error"  // Database error occurred
)

// String implements fmt.Stringer for logging
func (s PageStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a value that can be persisted
func (s PageStatus) IsValid() bool {
	switch s {
	case PageStatusExported, PageStatusUnchanged, PageStatusFailure:
		return true
	}
	return false
}

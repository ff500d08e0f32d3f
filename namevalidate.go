package sawitdb

import "regexp"

// identifierPattern is the whitelist user-facing table/column identifiers
// must match.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,31}$`)

// reservedNames may never be used as a user-facing table name, even if
// they otherwise match identifierPattern.
var reservedNames = map[string]bool{
	"_indexes": true,
	"_system":  true,
	"_schema":  true,
	"null":     true,
	"true":     true,
	"false":    true,
}

// indexesTableName is the system table tracking persisted indexes.
const indexesTableName = "_indexes"

// isInternalName reports whether name is a system table, which bypasses
// the reserved-name check and is hidden from SHOW TABLES.
func isInternalName(name string) bool {
	return len(name) > 0 && name[0] == '_'
}

// validateUserName enforces the identifier whitelist and reserved-name set
// for a user-facing table or column name. Internal names (leading "_")
// bypass this check entirely -- they are only ever created by the engine
// itself.
func validateUserName(name string) error {
	if isInternalName(name) {
		return nil
	}
	if !identifierPattern.MatchString(name) {
		return ErrNameInvalid
	}
	if reservedNames[name] {
		return ErrNameInvalid
	}
	return nil
}

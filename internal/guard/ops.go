package guard

// EnvProduction is the environment name the deny-list applies to.
const EnvProduction = "production"

// deniedOperations is the fixed list of bulk/cascade operations that are
// never allowed in production, regardless of caller identity.
var deniedOperations = map[string]bool{
	"bulk_delete_users":      true,
	"truncate_conversations": true,
	"drop_all_tables":        true,
	"cascade_delete_team":    true,
	"purge_messages":         true,
}

// IsOperationAllowed reports whether a named operation may run in the given
// environment. Denied operations are a hard stop with no override.
func IsOperationAllowed(operation, environment string) bool {
	if environment == EnvProduction && deniedOperations[operation] {
		return false
	}
	return true
}

// DeniedOperations lists the deny-list entries, for display in tooling.
func DeniedOperations() []string {
	ops := make([]string, 0, len(deniedOperations))
	for op := range deniedOperations {
		ops = append(ops, op)
	}
	return ops
}

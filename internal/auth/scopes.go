package auth

// Public-API scopes. Every /api/v1 handler re-checks its scope before doing
// any work; possession of a valid token alone grants nothing.
const (
	ScopeReadLeaves    = "read:leaves"
	ScopeWriteLeaves   = "write:leaves"
	ScopeReadTasks     = "read:tasks"
	ScopeWriteTasks    = "write:tasks"
	ScopeReadExpenses  = "read:expenses"
	ScopeReadReminders = "read:reminders"
)

// KnownScopes is the catalog offered when minting API tokens.
var KnownScopes = []string{
	ScopeReadLeaves,
	ScopeWriteLeaves,
	ScopeReadTasks,
	ScopeWriteTasks,
	ScopeReadExpenses,
	ScopeReadReminders,
}

// ValidScope reports whether the scope name is part of the catalog.
func ValidScope(scope string) bool {
	for _, s := range KnownScopes {
		if s == scope {
			return true
		}
	}
	return false
}

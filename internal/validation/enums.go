package validation

// Enum values accepted by the console.
var (
	ValidMemberRoles     = []string{"admin", "user", "leader"}
	ValidOnProcessFilter = []string{"all", "none", "issue", "receive", "both"}
)

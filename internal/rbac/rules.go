package rbac

const (
	RoleJudge    = "judge"
	RoleDirector = "director"
	RoleAdmin    = "admin"
)

// Default policy. Ownership checks (a judge touching someone else's
// packet) happen in the services; this table gates by role only.
var RolePermissions = map[string][]string{
	RoleJudge: {
		"packet:create",
		"packet:save",
		"packet:submit",
		"packet:position",
		"packet:delete-own",
		"packet:view-own",
		"packet:transcribe",
		"submission:save",
		"submission:submit",
		"submission:view-own",
		"user:change_password",
	},
	RoleDirector: {
		"scores:view-released",
		"user:change_password",
	},
	RoleAdmin: {
		"*", // everything
	},
}

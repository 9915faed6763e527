package enums

// ActorRole is the capability class of whoever is calling the engine.
type ActorRole string

const (
	ActorRoleGuest    ActorRole = "guest"
	ActorRoleCustomer ActorRole = "customer"
	ActorRoleOperator ActorRole = "operator"
)

var validActorRoles = []ActorRole{
	ActorRoleGuest,
	ActorRoleCustomer,
	ActorRoleOperator,
}

func (r ActorRole) String() string { return string(r) }

func (r ActorRole) IsValid() bool { return known(validActorRoles, r) }

func ParseActorRole(value string) (ActorRole, error) {
	return parse("actor role", validActorRoles, value)
}

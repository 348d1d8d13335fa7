package session

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleSeller Role = "SELLER"
	RoleUser   Role = "USER"
)

type Capability int

const (
	CapStorefront Capability = iota + 1
	CapSellerConsole
	CapAdminConsole
)

func (c Capability) String() string {
	switch c {
	case CapStorefront:
		return "storefront"
	case CapSellerConsole:
		return "seller_console"
	case CapAdminConsole:
		return "admin_console"
	default:
		return fmt.Sprintf("capability(%d)", int(c))
	}
}

var grants = map[Role]map[Capability]bool{
	RoleAdmin:  {CapStorefront: true, CapSellerConsole: true, CapAdminConsole: true},
	RoleSeller: {CapStorefront: true, CapSellerConsole: true},
	RoleUser:   {CapStorefront: true},
}

// aliases maps spellings some backends use onto the canonical role.
var aliases = map[Role]Role{
	"CUSTOMER": RoleUser,
}

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if canon, ok := aliases[r]; ok {
		r = canon
	}
	if _, ok := grants[r]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

func (r Role) Can(c Capability) bool {
	return grants[r][c]
}

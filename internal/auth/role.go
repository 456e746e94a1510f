package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Role is the closed set of user types the service knows about.
type Role string

const (
	RoleStaff          Role = "staff"
	RoleDepartmentHead Role = "hod"
	RoleStudent        Role = "student"
)

// ErrUnknownRole is returned when a role string is outside the closed set.
var ErrUnknownRole = errors.New("unknown role")

// ParseRole maps a role string to a Role. "department_head" is accepted as an alias of "hod".
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "staff":
		return RoleStaff, nil
	case "hod", "department_head":
		return RoleDepartmentHead, nil
	case "student":
		return RoleStudent, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStaff, RoleDepartmentHead, RoleStudent:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// UnmarshalJSON rejects unknown roles so a token carrying one fails to decode.
func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

package auth

// Authorize allows the request iff the claim's role is one of roles. An empty set denies.
func Authorize(claims Claims, roles ...Role) error {
	for _, r := range roles {
		if claims.Role == r {
			return nil
		}
	}
	return ErrForbidden
}

// AuthorizeStudentResource restricts students to resources carrying their own admission number.
// Other roles are not constrained here.
func AuthorizeStudentResource(claims Claims, admissionNo string) error {
	if claims.Role != RoleStudent {
		return nil
	}
	if claims.AdmissionNo == "" || claims.AdmissionNo != admissionNo {
		return ErrForbidden
	}
	return nil
}

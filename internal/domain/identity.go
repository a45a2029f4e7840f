package domain

// Identity is the authenticated principal attached to a request.
// A nil *Identity means the request is anonymous.
type Identity struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"displayName,omitempty"`
	Role        string   `json:"role,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// RoleSet returns Role and Roles merged, without duplicates or empty values.
func (i *Identity) RoleSet() []string {
	if i == nil {
		return nil
	}
	seen := make(map[string]bool, len(i.Roles)+1)
	out := make([]string, 0, len(i.Roles)+1)
	for _, r := range append([]string{i.Role}, i.Roles...) {
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

// HasAnyRole reports whether the identity holds at least one of the given roles.
func (i *Identity) HasAnyRole(allowed ...string) bool {
	for _, have := range i.RoleSet() {
		for _, want := range allowed {
			if have == want {
				return true
			}
		}
	}
	return false
}

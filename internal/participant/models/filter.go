package models

// Filter selects participants in list queries. TenantName narrows the
// query to one tenant; an empty value spans all tenants (global scope).
type Filter struct {
	TenantName string
	State      State
	Name       string
	Limit      int
	Offset     int
}

package models

// Filter selects tenants in list queries. An empty Status lists every
// non-deleted tenant.
type Filter struct {
	Status Status
	Name   string
	Limit  int
	Offset int
}

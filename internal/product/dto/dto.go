package dto

type ProductFilters struct {
	OwnerID  string
	IsActive *bool
	Search   string
	Page     int
	PageSize int
}

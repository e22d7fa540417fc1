package authz

const (
	RoleTenantAdmin   = "tenant-admin"
	RoleCatalogEditor = "catalog-editor"
	RoleAnonymous     = "anonymous"
)

const (
	ActionRead  = "read"
	ActionAdmin = "admin"
)

const DomainGlobal = "global"

const (
	ObjectCatalogFormSchema   = "catalog.form-schema"
	ObjectCatalogAttributes   = "catalog.attributes"
	ObjectCatalogLevelConfigs = "catalog.level-configs"
)

package constants

const (
	AppStorefront          = "storefront"
	AppCartService         = "cart-service"
	AppOrderService        = "order-service"
	AppNotificationService = "notification-service"
	AppMigrate             = "migrate"

	AudienceUser = "audience-user"
	IssuerAuth   = "storefront-auth"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

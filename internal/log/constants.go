package log

const (
	KeyAppName            = "app"
	KeyCacheKey           = "cacheKey"
	KeyCart               = "cart"
	KeyCartLine           = "cartLine"
	KeyCartLineID         = "cartLineId"
	KeyCartLines          = "cartLines"
	KeyCheckoutState      = "checkoutState"
	KeyConfig             = "config"
	KeyDbURL              = "dbUrl"
	KeyFeedback           = "feedback"
	KeyNotification       = "notification"
	KeyOrder              = "order"
	KeyOrderID            = "orderId"
	KeyOrderLines         = "orderLines"
	KeyOrders             = "orders"
	KeyOrderStatus        = "orderStatus"
	KeyPathValues         = "pathValues"
	KeyProcess            = "process"
	KeyProductID          = "productId"
	KeyQuantity           = "quantity"
	KeyQueue              = "queue"
	KeyRequest            = "request"
	KeyRequestBody        = "requestBody"
	KeyRequestHeader      = "requestHeader"
	KeyRequestHost        = "host"
	KeyRequestID          = "requestId"
	KeyRequestIp          = "requesterIP"
	KeyRequestMethod      = "requestMethod"
	KeyRequestURI         = "requestURI"
	KeyRequestURL         = "requestURL"
	KeyResponse           = "response"
	KeySpanID             = "spanId"
	KeyStatusCode         = "statusCode"
	KeyTag                = "tag"
	KeyToken              = "token"
	KeyTotalAmount        = "totalAmount"
	KeyTraceID            = "traceId"
	KeyUserID             = "userId"
)

// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess       = "success"
	KeyInternalError = "error.internal"
	KeyInvalidInput  = "error.invalid_input"
	KeyUpstream      = "error.upstream"
	KeyRateLimited   = "error.rate_limited"

	// Authentication
	KeyAuthRequired           = "auth.required"
	KeyAuthInvalidToken       = "auth.invalid_token"
	KeyAuthTokenExpired       = "auth.token_expired"
	KeyAuthInvalidCredentials = "auth.invalid_credentials"
	KeyAuthUserExists         = "auth.user_exists"
	KeyAuthGoogleDisabled     = "auth.google_disabled"
	KeyAuthGoogleInvalid      = "auth.google_invalid"
	KeyAuthGoogleUnavailable  = "auth.google_unavailable"
	KeyAdminAccessDenied      = "admin.access_denied"

	// Users
	KeyUserNotFound = "user.not_found"

	// Images
	KeyImageNotFound      = "image.not_found"
	KeyImageUploaded      = "image.uploaded"
	KeyImageDeleted       = "image.deleted"
	KeyImageInvalidFile   = "image.invalid_file"
	KeyImageTooLarge      = "image.too_large"
	KeyImageInvalidPrice  = "image.invalid_price"
	KeyImageNotPurchased  = "image.not_purchased"
	KeyImageStorageFailed = "image.storage_failed"

	// Payments
	KeyPaymentNotFound     = "payment.not_found"
	KeyPaymentNotCompleted = "payment.not_completed"
	KeyPaymentNotYours     = "payment.not_yours"
	KeyPaymentEmptyCart    = "payment.empty_cart"
	KeyPaymentGateway      = "payment.gateway_error"
	KeyPaymentInvalidEvent = "payment.invalid_event"

	// Favorites
	KeyFavoriteAdded   = "favorite.added"
	KeyFavoriteRemoved = "favorite.removed"

	// Validation
	KeyValidationInvalid = "validation.invalid"
)

package usercontext

// Shared Locals/session keys used across controllers and middlewares
const (
	LocalsKey        = "USER_CONTEXT"
	KeyUserID        = "user_id"
	KeyEmail         = "email"
	KeyUsername      = "username"
	KeyIsAdmin       = "isAdmin"
	KeyIssuedAt      = "issued_at"
	KeyFromProtected = "from_protected"
	// KeyCSRF holds the session's anti-forgery token for templates and JSON clients.
	KeyCSRF = "csrf"
)

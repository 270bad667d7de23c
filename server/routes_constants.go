package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteIndex = "/"

	// Auth Routes - Sign in & Sign out
	RouteLogin     = "/login"
	RouteLogout    = "/logout"
	RouteMagicLink = "/auth/magic-link"
	RouteCallback  = "/auth/callback"
	RouteOAuth     = "/auth/oauth"
	RouteRefresh   = "/auth/refresh"

	// Auth Routes - Signup
	RouteSignup = "/signup"

	// Protected Routes
	RouteDashboard      = "/dashboard"
	RouteDashboardPages = "/dashboard/{page...}"

	// API Routes
	RouteAPIAuthEvents       = "/api/auth/events"
	RouteAPIAssistant        = "/api/assistant"
	RouteAPIValidatePassword = "/api/validate-password"

	// Static Asset Routes (patterns)
	RouteStaticCSS = "/css/{file}"
	RouteStaticJS  = "/js/{file}"
)

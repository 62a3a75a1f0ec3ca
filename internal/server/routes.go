package server

// ClientRoute is one page of the single-page client and the access it needs.
type ClientRoute struct {
	Path            string `json:"path"`
	Name            string `json:"name"`
	RequiresSession bool   `json:"requires_session"`
	RequiresAdmin   bool   `json:"requires_admin"`
}

// ClientRoutes is the navigation surface the API serves data for.
var ClientRoutes = []ClientRoute{
	{Path: "/", Name: "home"},
	{Path: "/auth", Name: "auth"},
	{Path: "/product/:id", Name: "product"},
	{Path: "/dashboard", Name: "dashboard", RequiresSession: true},
	{Path: "/chat/:conversationId", Name: "chat", RequiresSession: true},
	{Path: "/seller/:sellerId", Name: "seller"},
	{Path: "/ai-assistant", Name: "ai-assistant"},
	{Path: "/admin", Name: "admin", RequiresSession: true, RequiresAdmin: true},
	{Path: "/category/:category", Name: "category"},
	{Path: "/sell", Name: "sell", RequiresSession: true},
	{Path: "*", Name: "not-found"},
}

package handlers

import (
	"net/http"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

// NewRouter wires all routes under /api.
// withAuth rejects requests without a valid access token, withOptionalAuth
// only attaches the principal when one is present.
func NewRouter(
	auth *AuthHandler,
	recipes *RecipeHandler,
	withAuth func(http.Handler) http.Handler,
	withOptionalAuth func(http.Handler) http.Handler,
	middlewares ...func(http.Handler) http.Handler,
) http.Handler {
	protected := func(h http.HandlerFunc) http.Handler { return withAuth(h) }
	public := func(h http.HandlerFunc) http.Handler { return withOptionalAuth(h) }

	api := http.NewServeMux()

	api.HandleFunc("POST /auth/register", auth.register)
	api.HandleFunc("POST /auth/login", auth.login)
	api.HandleFunc("POST /auth/refresh", auth.refresh)
	api.Handle("POST /auth/logout", protected(auth.logout))
	api.Handle("POST /auth/change-password", protected(auth.changePassword))
	api.Handle("GET /auth/me", protected(auth.me))

	api.Handle("GET /recipes", public(recipes.list))
	api.Handle("POST /recipes", protected(recipes.create))
	api.HandleFunc("GET /recipes/categories", recipes.categories)
	api.Handle("GET /recipes/stats", protected(recipes.stats))
	api.Handle("GET /recipes/my", protected(recipes.listOwn))
	api.Handle("GET /recipes/{id}", public(recipes.get))
	api.Handle("PATCH /recipes/{id}", protected(recipes.update))
	api.Handle("DELETE /recipes/{id}", protected(recipes.del))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))

	return chain(root, middlewares...)
}

package server

import (
	"context"
	"net/http"

	"foodgram/internal/handlers"
	applog "foodgram/internal/log"
)

func newRouter() http.Handler {
	mux := http.NewServeMux()
	applog.Debug(context.Background(), "registering http routes")
	mux.HandleFunc("/healthz", handlers.Health)
	applog.Debug(context.Background(), "route registered", "path", "/healthz")
	mux.HandleFunc("/api/auth/token/login/", handlers.TokenLogin)
	mux.Handle("/api/auth/token/logout/", handlers.RequireAuthentication(http.HandlerFunc(handlers.TokenLogout)))
	applog.Debug(context.Background(), "route registered", "path", "/api/auth/token/", "protected", true)
	mux.HandleFunc("/api/users/", handlers.Users)
	applog.Debug(context.Background(), "route registered", "path", "/api/users/")
	mux.HandleFunc("/api/tags/", handlers.Tags)
	mux.HandleFunc("/api/ingredients/", handlers.Ingredients)
	applog.Debug(context.Background(), "route registered", "path", "/api/tags/", "readOnly", true)
	mux.HandleFunc("/api/recipes/", handlers.Recipes)
	applog.Debug(context.Background(), "route registered", "path", "/api/recipes/")
	return mux
}

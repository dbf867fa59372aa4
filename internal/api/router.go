package api

import (
	"context"
	"net/http"

	_ "github.com/rohits-web03/passkeyd/docs"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/rohits-web03/passkeyd/internal/api/handlers"
	"github.com/rohits-web03/passkeyd/internal/api/middleware"
	"github.com/rohits-web03/passkeyd/internal/config"
	"github.com/rohits-web03/passkeyd/internal/utils"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Deps is everything the router hands requests to.
type Deps struct {
	Config   config.Config
	Log      *zap.Logger
	Auth     *handlers.AuthHandler
	Vault    *handlers.VaultHandler
	Verifier middleware.TokenVerifier
	// Ping checks the database for /health. Optional.
	Ping func(ctx context.Context) error
}

func SetupRouter(d Deps) http.Handler {
	mainMux := http.NewServeMux()
	c := cors.New(d.Config.CorsOptions())
	protect := middleware.Authenticate(d.Verifier)

	// ---------- PUBLIC ROUTES ----------
	mainMux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		utils.JSONResponse(w, http.StatusOK, utils.Payload{
			Success: true,
			Message: "passkeyd vault API",
			Data:    map[string]string{"docs": "/docs/index.html"},
		})
	})
	mainMux.Handle("GET /health", handlers.Health(d.Ping))
	mainMux.Handle("GET /docs/", httpSwagger.WrapHandler)

	authMux := http.NewServeMux()
	authMux.HandleFunc("POST /salt", d.Auth.FetchSalt)
	authMux.HandleFunc("POST /register", d.Auth.Register)
	authMux.HandleFunc("POST /login", d.Auth.Login)
	authMux.HandleFunc("POST /logout", d.Auth.Logout)
	authMux.Handle("GET /me", protect(http.HandlerFunc(d.Auth.Me)))
	authMux.Handle("DELETE /me", protect(http.HandlerFunc(d.Auth.DeleteAccount)))

	mainMux.Handle("/api/v1/auth/",
		http.StripPrefix("/api/v1/auth", authMux),
	)

	// ---------- PROTECTED ROUTES ----------
	vaultMux := http.NewServeMux()
	vaultMux.HandleFunc("GET /api/v1/vault", d.Vault.Get)
	vaultMux.HandleFunc("POST /api/v1/vault", d.Vault.Create)
	vaultMux.HandleFunc("PUT /api/v1/vault", d.Vault.Update)
	vaultMux.HandleFunc("DELETE /api/v1/vault", d.Vault.Delete)
	vaultMux.HandleFunc("GET /api/v1/vault/export", d.Vault.Export)

	mainMux.Handle("/api/v1/vault", protect(vaultMux))
	mainMux.Handle("/api/v1/vault/", protect(vaultMux))

	d.Log.Info("router initialized")
	handler := c.Handler(mainMux)
	handler = middleware.Logger(d.Log)(handler)
	return handler
}

package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/stellarvision/launcherd/internal/launcher/domain"
	"github.com/stellarvision/launcherd/internal/launcher/kv"
	"github.com/stellarvision/launcherd/internal/launcher/service"
	"github.com/stellarvision/launcherd/internal/launcher/store"
	"github.com/stellarvision/launcherd/internal/launcher/ws"
	"github.com/stellarvision/launcherd/pkg/httpx"
	"github.com/stellarvision/launcherd/pkg/jwtx"
	"github.com/stellarvision/launcherd/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store
	kv    kv.Store

	UserService       *service.UserService
	TokenService      *service.TokenService
	LaunchCodeService *service.LaunchCodeService
	BlocklistService  *service.BlocklistService
	GameService       *service.GameService

	Gateway         *ws.Gateway
	Creds           *ws.CredStore
	ExchangeCredTTL time.Duration
}

func NewRouter(
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	kvStore kv.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		kv:           kvStore,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerLauncher()
	r.registerGames()
	r.registerUsers()
	r.registerSocket()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) authn() httpx.Middleware {
	return httpx.AuthnMiddleware(r.verifier, r.BlocklistService)
}

func (r *Router) registerAuth() {
	loginHandler := &LoginHandler{
		UserService:  r.UserService,
		TokenService: r.TokenService,
	}

	// POST /login - strict rate limit by IP (password guessing surface)
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(loginHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	logoutHandler := &LogoutHandler{BlocklistService: r.BlocklistService}
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(logoutHandler,
			r.authn(),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerLauncher() {
	runHandler := &RunHandler{LaunchCodeService: r.LaunchCodeService}
	r.Mux.Handle("POST /v1/launcher/run",
		httpx.Chain(runHandler,
			r.authn(),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	// POST /launcher/auth - public, strict by IP (single-use code guessing)
	exchangeHandler := &ExchangeHandler{
		LaunchCodeService: r.LaunchCodeService,
		TokenService:      r.TokenService,
		Creds:             r.Creds,
		CredTTL:           r.ExchangeCredTTL,
	}
	r.Mux.Handle("POST /v1/launcher/auth",
		httpx.Chain(exchangeHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	commandsHandler := &CommandsHandler{Gateway: r.Gateway}
	r.Mux.Handle("POST /v1/launcher/commands",
		httpx.Chain(commandsHandler,
			r.authn(),
			httpx.RequireAnyRole(domain.RoleAdmin, domain.RoleDev),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	sessionsHandler := &SessionsHandler{Gateway: r.Gateway}
	r.Mux.Handle("GET /v1/launcher/sessions",
		httpx.Chain(sessionsHandler,
			r.authn(),
			httpx.RequireAnyRole(domain.RoleAdmin, domain.RoleDev),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerGames() {
	h := &GameLicenseHandler{GameService: r.GameService}
	r.Mux.Handle("POST /v1/game/license",
		httpx.Chain(h,
			r.authn(),
			httpx.RequireAnyRole(domain.RoleUser, domain.RoleAdmin, domain.RoleDev),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerUsers() {
	h := &UsersHandler{UserService: r.UserService}
	r.Mux.Handle("POST /v1/users",
		httpx.Chain(h,
			r.authn(),
			httpx.RequireAnyRole(domain.RoleAdmin),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSocket() {
	// The gateway authenticates with the exchange credential, not a bearer
	// token, so it sits outside the authn chain.
	r.Mux.Handle("GET /socket", r.Gateway)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.kv),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

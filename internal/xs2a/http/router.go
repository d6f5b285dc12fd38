package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/metrics"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/service"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/store"
	"github.com/aussiebroadwan/xs2a/pkg/httpx"
	"github.com/aussiebroadwan/xs2a/pkg/jwtx"
	"github.com/aussiebroadwan/xs2a/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	metrics      *metrics.Metrics

	store                store.Store
	AuthorisationService *service.AuthorisationService
	ConsentService       *service.ConsentService
	PaymentService       *service.PaymentService
	BasketService        *service.BasketService
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		metrics:      m,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}
	if m != nil {
		r.middlewares = append(r.middlewares, m.Instrument)
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerConsents()
	r.registerPayments()
	r.registerSigningBaskets()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// secured authenticates the TPP, checks its role and applies the limit.
func (r *Router) secured(h http.HandlerFunc, limit httpx.Middleware, roles ...string) http.Handler {
	return httpx.Chain(h,
		httpx.AuthnMiddleware(r.verifier),
		httpx.RequireAnyRole(roles...),
		limit,
	)
}

// registerAuthorisations mounts the authorisation sub-resource of the
// objects under base ("{id}" names the object token).
func (r *Router) registerAuthorisations(base, sub string, t domain.AuthorisationType, roles ...string) {
	h := &AuthorisationsHandler{AuthorisationService: r.AuthorisationService, Type: t}
	collection := base + "/{id}/" + sub
	item := collection + "/{authorisationId}"

	// starting and reading are cheap; PSU data carries credentials
	r.Mux.Handle("POST "+collection, r.secured(h.HandleStart, httpx.RateLimitByTpp(httpx.ResourceLimit), roles...))
	r.Mux.Handle("GET "+collection, r.secured(h.HandleList, httpx.RateLimitByTpp(httpx.ResourceLimit), roles...))
	r.Mux.Handle("GET "+item, r.secured(h.HandleStatus, httpx.RateLimitByTpp(httpx.ResourceLimit), roles...))
	r.Mux.Handle("PUT "+item, r.secured(h.HandleUpdate, httpx.RateLimitByTppAndPsu(httpx.ScaLimit), roles...))
}

func (r *Router) registerObjectStatus(base string, t domain.AuthorisationType, roles ...string) {
	h := &AuthorisationsHandler{AuthorisationService: r.AuthorisationService, Type: t}
	r.Mux.Handle("GET "+base+"/{id}/status", r.secured(h.HandleObjectStatus, httpx.RateLimitByTpp(httpx.ResourceLimit), roles...))
}

func (r *Router) registerConsents() {
	h := &ConsentsHandler{ConsentService: r.ConsentService}

	r.Mux.Handle("POST /v1/consents",
		r.secured(h.HandleCreate, httpx.RateLimitByTpp(httpx.ResourceLimit), jwtx.RoleAISP))
	r.registerObjectStatus("/v1/consents", domain.AuthorisationAIS, jwtx.RoleAISP)
	r.registerAuthorisations("/v1/consents", "authorisations", domain.AuthorisationAIS, jwtx.RoleAISP)

	r.Mux.Handle("POST /v1/funds-confirmation-consents",
		r.secured(h.HandleCreateFundsConfirmation, httpx.RateLimitByTpp(httpx.ResourceLimit), jwtx.RolePIISP))
	r.registerObjectStatus("/v1/funds-confirmation-consents", domain.AuthorisationPIIS, jwtx.RolePIISP)
	r.registerAuthorisations("/v1/funds-confirmation-consents", "authorisations", domain.AuthorisationPIIS, jwtx.RolePIISP)
}

func (r *Router) registerPayments() {
	h := &PaymentsHandler{PaymentService: r.PaymentService}

	for _, pt := range []domain.PaymentType{domain.PaymentSingle, domain.PaymentPeriodic, domain.PaymentBulk} {
		base := "/v1/" + string(pt) + "/{product}"
		r.Mux.Handle("POST "+base,
			r.secured(h.HandleInitiate(pt), httpx.RateLimitByTpp(httpx.ResourceLimit), jwtx.RolePISP))
		r.registerObjectStatus(base, domain.AuthorisationPISCreation, jwtx.RolePISP)
		r.registerAuthorisations(base, "authorisations", domain.AuthorisationPISCreation, jwtx.RolePISP)
		r.registerAuthorisations(base, "cancellation-authorisations", domain.AuthorisationPISCancellation, jwtx.RolePISP)
	}
}

func (r *Router) registerSigningBaskets() {
	h := &BasketsHandler{BasketService: r.BasketService}

	r.Mux.Handle("POST /v1/signing-baskets",
		r.secured(h.HandleCreate, httpx.RateLimitByTpp(httpx.ResourceLimit), jwtx.RoleAISP, jwtx.RolePISP))
	r.registerObjectStatus("/v1/signing-baskets", domain.AuthorisationSigningBasket, jwtx.RoleAISP, jwtx.RolePISP)
	r.registerAuthorisations("/v1/signing-baskets", "authorisations", domain.AuthorisationSigningBasket, jwtx.RoleAISP, jwtx.RolePISP)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	if r.metrics != nil {
		r.Mux.Handle("GET /metrics", r.metrics.Handler())
	}
}

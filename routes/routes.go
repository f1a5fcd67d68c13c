package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/mbolis/leadform/app"
	"github.com/mbolis/leadform/httpx"
	"github.com/mbolis/leadform/routes/middlewares"
)

// Wire builds the HTTP handler. limiter guards the unauthenticated endpoints.
func Wire(app app.App, limiter *httpx.RateLimiter) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.RequestID)
	if app.TrustProxy {
		// client addresses come from the proxy headers
		root.Use(middleware.RealIP)
	}
	root.Use(httpx.AccessLog, middleware.Recoverer)

	root.Mount("/api", apiRouter(app, limiter))

	return root
}

func apiRouter(app app.App, limiter *httpx.RateLimiter) http.Handler {
	api := chi.NewRouter()

	// embeddable on any landing page
	public := cors.New(cors.Options{
		AllowedOrigins: app.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Authorization", "Content-Type", "If-None-Match"},
		ExposedHeaders: []string{"ETag"},
		MaxAge:         600,
	})

	api.Group(func(r chi.Router) {
		r.Use(public.Handler)
		if limiter != nil {
			r.Use(limiter.Middleware)
		}

		r.Post("/register", Register(app))
		r.Post("/login", Login(app))
		r.Post("/refresh", Refresh(app))

		r.With(httpx.WithETag).Get("/f/{slug}", PublicGetForm(app))
		r.Post("/f/{slug}/events", PublicRecordEvent(app))
		r.Post("/f/{slug}/navigate", PublicNavigate(app))
		r.Post("/f/{slug}/submissions", PublicSubmitForm(app))
	})

	api.Post("/payments/paystack/webhook", PaystackWebhook(app))

	api.Route("/admin", func(r chi.Router) {
		r.Use(middlewares.Owner(app.TokenSecret))

		r.Get("/me", Me(app))
		r.Get("/templates", ListTemplates(app))

		// CRUD form
		r.Post("/forms", CreateForm(app))
		r.Get("/forms", ListForms(app))
		r.Get(`/forms/{id:^\d+$}`, GetForm(app))
		r.Put(`/forms/{id:^\d+$}`, UpdateForm(app))
		r.Delete(`/forms/{id:^\d+$}`, DeleteForm(app))

		r.Post(`/forms/{id:^\d+$}/publish`, PublishForm(app, true))
		r.Post(`/forms/{id:^\d+$}/unpublish`, PublishForm(app, false))
		r.Post(`/forms/{id:^\d+$}/duplicate`, DuplicateForm(app))

		r.Get(`/forms/{id:^\d+$}/submissions`, ListSubmissions(app))
		r.Get(`/forms/{id:^\d+$}/submissions/{sid}`, GetSubmission(app))
		r.Get(`/forms/{id:^\d+$}/export`, ExportSubmissions(app))
		r.Get(`/forms/{id:^\d+$}/analytics`, FormAnalytics(app))
		r.Get("/analytics", DashboardAnalytics(app))

		r.Post("/billing/verify", VerifyPayment(app))

		r.Get("/integrations", ListIntegrations(app))
		r.Post("/integrations", CreateIntegration(app))
		r.Delete(`/integrations/{id:^\d+$}`, DeleteIntegration(app))
		r.Post("/integrations/token", IssueAPIToken(app))
	})

	api.Route("/hooks", func(r chi.Router) {
		r.Use(middlewares.APIToken(app.APITokens))

		r.Get("/forms", HookListForms(app))
		r.Get(`/forms/{id:^\d+$}/submissions`, HookPollSubmissions(app))
	})

	return api
}

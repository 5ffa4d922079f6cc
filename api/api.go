// Package api provides the HTTP API of the billing backend: account
// registration and login, payment detail management, subscription setup and
// the payment provider webhook endpoints.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"

	"github.com/hatchpay/billing-backend/db"
	"github.com/hatchpay/billing-backend/log"
	"github.com/hatchpay/billing-backend/notifications"
	"github.com/hatchpay/billing-backend/stripe"
)

const (
	jwtExpiration = 360 * time.Hour // 15 days
	passwordSalt  = "hatchpay365"   // salt for password hashing
)

type Config struct {
	Host    string
	Port    int
	Secret  string
	DB      *db.MongoStorage
	Billing *stripe.Service
	// MailService is used for the welcome email on registration. Billing
	// notifications go through the billing service itself.
	MailService notifications.NotificationService
	// WebhookBase is the path prefix of the webhook endpoints. Empty means
	// DefaultWebhookBase.
	WebhookBase string
}

// API type represents the API HTTP server with JWT authentication capabilities.
type API struct {
	db          *db.MongoStorage
	auth        *jwtauth.JWTAuth
	host        string
	port        int
	router      *chi.Mux
	billing     *stripe.Service
	mail        notifications.NotificationService
	secret      string
	webhookBase string
}

// New creates a new API HTTP server. It does not start the server. Use Start() for that.
func New(conf *Config) *API {
	if conf == nil {
		return nil
	}
	webhookBase := conf.WebhookBase
	if webhookBase == "" {
		webhookBase = DefaultWebhookBase
	}
	return &API{
		db:          conf.DB,
		auth:        jwtauth.New("HS256", []byte(conf.Secret), nil),
		host:        conf.Host,
		port:        conf.Port,
		billing:     conf.Billing,
		mail:        conf.MailService,
		secret:      conf.Secret,
		webhookBase: webhookBase,
	}
}

// Start starts the API HTTP server (non blocking).
func (a *API) Start() {
	go func() {
		if err := http.ListenAndServe(fmt.Sprintf("%s:%d", a.host, a.port), a.initRouter()); err != nil {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
}

// Router returns the HTTP router, initializing it first if needed.
func (a *API) Router() http.Handler {
	if a.router == nil {
		return a.initRouter()
	}
	return a.router
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Throttle(100))
	r.Use(middleware.Timeout(45 * time.Second))

	// protected routes
	r.Group(func(r chi.Router) {
		// seek, verify and validate JWT tokens
		r.Use(jwtauth.Verifier(a.auth))
		// handle valid JWT tokens
		r.Use(a.authenticator)
		// refresh the token
		log.Infow("new route", "method", "POST", "path", authRefreshTokenEndpoint)
		r.Post(authRefreshTokenEndpoint, a.refreshTokenHandler)
		// get account information
		log.Infow("new route", "method", "GET", "path", accountsMeEndpoint)
		r.Get(accountsMeEndpoint, a.accountInfoHandler)
		// get the card on file
		log.Infow("new route", "method", "GET", "path", billingCardEndpoint)
		r.Get(billingCardEndpoint, a.cardInfoHandler)
		// save payment details
		log.Infow("new route", "method", "POST", "path", billingCardEndpoint)
		r.Post(billingCardEndpoint, a.saveCardHandler)
		// subscribe to a plan
		log.Infow("new route", "method", "POST", "path", billingSubscribeEndpoint)
		r.Post(billingSubscribeEndpoint, a.subscribeHandler)
		// list subscriptions
		log.Infow("new route", "method", "GET", "path", billingSubscriptionsEndpoint)
		r.Get(billingSubscriptionsEndpoint, a.subscriptionsHandler)
		// cancel and remove a subscription
		log.Infow("new route", "method", "DELETE", "path", billingSubscriptionEndpoint)
		r.Delete(billingSubscriptionEndpoint, a.deleteSubscriptionHandler)
	})

	// Public routes
	r.Group(func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
			if _, err := w.Write([]byte(".")); err != nil {
				log.Warnw("failed to write ping response", "error", err)
			}
		})
		// login
		log.Infow("new route", "method", "POST", "path", authLoginEndpoint)
		r.Post(authLoginEndpoint, a.authLoginHandler)
		// register account
		log.Infow("new route", "method", "POST", "path", accountsEndpoint)
		r.Post(accountsEndpoint, a.registerHandler)
		// public billing configuration
		log.Infow("new route", "method", "GET", "path", billingConfigEndpoint)
		r.Get(billingConfigEndpoint, a.billingConfigHandler)
		// payment provider webhooks
		successEndpoint := a.webhookBase + webhookSuccessPath
		log.Infow("new route", "method", "POST", "path", successEndpoint)
		r.Post(successEndpoint, a.webhookSuccessHandler)
		failedEndpoint := a.webhookBase + webhookFailedPath
		log.Infow("new route", "method", "POST", "path", failedEndpoint)
		r.Post(failedEndpoint, a.webhookFailedHandler)
	})
	a.router = r
	return r
}

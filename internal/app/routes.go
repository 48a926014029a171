package app

import (
	"net/http"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/handler"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/middleware"
)

func (app *Application) routes() http.Handler {
	mux := http.NewServeMux()

	middlewareRepo := middleware.New(app.errorHandler, app.Logger, app.DB.Driver(), &app.Config, app.Limiter)

	healthHandler := handler.NewHealthCheckHandler(app.errorHandler)
	authHandler := handler.NewAuthHandler(app.DB, app.errorHandler, app.helper, app.Mailer, &app.Config)
	driverHandler := handler.NewDriverHandler(app.DB, app.errorHandler)
	merchantHandler := handler.NewMerchantHandler(app.DB, app.errorHandler, app.helper, app.FileUploader)
	perkHandler := handler.NewPerkHandler(app.DB, app.errorHandler)
	discoveryHandler := handler.NewDiscoveryHandler(app.DB, app.errorHandler, app.Cache, app.Zones, app.Nrel, app.Overpass, app.Places, app.Smartcar)
	walletHandler := handler.NewWalletHandler(app.DB, app.errorHandler, app.helper)
	novaHandler := handler.NewNovaHandler(app.DB, app.errorHandler, app.helper)
	arrivalHandler := handler.NewArrivalHandler(app.DB, app.errorHandler, app.helper, app.Kafka, app.Smartcar, app.Zones, &app.Config)
	smsHandler := handler.NewSmsHandler(app.DB, app.errorHandler, app.helper, app.Kafka)

	mux.HandleFunc("GET /status", healthHandler.HandleHealthCheck)

	mux.HandleFunc("POST /v1/auth/register", authHandler.HandleAuthRegister)
	mux.HandleFunc("POST /v1/auth/login", authHandler.HandleAuthLogin)
	mux.HandleFunc("GET /v1/auth/verify", authHandler.HandleVerifyAccount)
	mux.HandleFunc("PATCH /v1/auth/password", middlewareRepo.RequireAuthenticatedDriver(authHandler.HandleChangePassword))

	mux.HandleFunc("GET /v1/drivers/me", middlewareRepo.RequireAuthenticatedDriver(driverHandler.HandleDriverProfile))
	mux.HandleFunc("PATCH /v1/drivers/me/vehicle", middlewareRepo.RequireAuthenticatedDriver(driverHandler.HandleUpdateVehicle))

	mux.HandleFunc("POST /v1/merchants", middlewareRepo.RequireAuthenticatedDriver(merchantHandler.HandleCreateMerchant))
	mux.HandleFunc("GET /v1/merchants", merchantHandler.HandleListMerchants)
	mux.HandleFunc("GET /v1/merchants/{id}", merchantHandler.HandleGetMerchant)
	mux.HandleFunc("PATCH /v1/merchants/{id}", middlewareRepo.RequireAuthenticatedDriver(merchantHandler.HandleUpdateMerchant))
	mux.HandleFunc("POST /v1/merchants/{id}/logo", middlewareRepo.RequireAuthenticatedDriver(merchantHandler.HandleUploadMerchantLogo))
	mux.HandleFunc("GET /v1/merchants/{id}/billing-events", middlewareRepo.RequireAuthenticatedDriver(merchantHandler.HandleMerchantBillingEvents))

	mux.HandleFunc("POST /v1/merchants/{id}/perks", middlewareRepo.RequireAuthenticatedDriver(perkHandler.HandleCreatePerk))
	mux.HandleFunc("GET /v1/merchants/{id}/perks", perkHandler.HandleListMerchantPerks)
	mux.HandleFunc("PATCH /v1/perks/{id}/status", middlewareRepo.RequireAuthenticatedDriver(perkHandler.HandleSetPerkStatus))

	mux.HandleFunc("GET /v1/chargers/nearby", discoveryHandler.HandleNearbyChargers)
	mux.HandleFunc("POST /v1/intents", middlewareRepo.RequireAuthenticatedDriver(discoveryHandler.HandleCreateIntent))
	mux.HandleFunc("GET /v1/intents/latest", middlewareRepo.RequireAuthenticatedDriver(discoveryHandler.HandleLatestIntent))

	mux.HandleFunc("GET /v1/wallets/me", middlewareRepo.RequireAuthenticatedDriver(walletHandler.HandleMyWallet))
	mux.HandleFunc("GET /v1/wallets/me/transactions", middlewareRepo.RequireAuthenticatedDriver(walletHandler.HandleMyTransactions))
	mux.HandleFunc("GET /v1/admin/wallets/{id}/reconciliation", middlewareRepo.RequireAdmin(walletHandler.HandleReconcileWallet))
	mux.HandleFunc("POST /v1/admin/wallets/{id}/hold", middlewareRepo.RequireAdmin(walletHandler.HandleHoldWallet))

	mux.HandleFunc("POST /v1/nova/grants", middlewareRepo.RequireAdmin(novaHandler.HandleGrantNova))
	mux.HandleFunc("POST /v1/nova/redemptions", middlewareRepo.RequireAuthenticatedDriver(novaHandler.HandleRedeemNova))
	mux.HandleFunc("GET /v1/nova/movements/{key}", middlewareRepo.RequireAuthenticatedDriver(novaHandler.HandleGetMovement))

	mux.HandleFunc("POST /v1/arrivals", middlewareRepo.RequireAuthenticatedDriver(arrivalHandler.HandleStartArrival))
	mux.HandleFunc("GET /v1/arrivals/{id}", middlewareRepo.RequireAuthenticatedDriver(arrivalHandler.HandleGetArrival))
	mux.HandleFunc("POST /v1/arrivals/{id}/pings", middlewareRepo.RequireAuthenticatedDriver(arrivalHandler.HandlePingArrival))
	mux.HandleFunc("POST /v1/arrivals/{id}/cancel", middlewareRepo.RequireAuthenticatedDriver(arrivalHandler.HandleCancelArrival))

	// Twilio posts form-encoded webhooks; no bearer token on this route.
	mux.HandleFunc("POST /v1/webhooks/twilio/sms", smsHandler.HandleInboundSms)

	return middlewareRepo.LogAccess(middlewareRepo.RecoverPanic(middlewareRepo.RateLimit(middlewareRepo.Authenticate(mux))))
}

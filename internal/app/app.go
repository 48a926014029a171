package app

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/cache"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/config"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/env"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/errHandler"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/file"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/geo"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/helper"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/hubspot"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/nrel"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/overpass"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/places"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/ratelimit"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/repository"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/smartcar"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/smtp"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/stream"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/twilio"
	"github.com/joho/godotenv"
)

// Essential services and resources are exposed to the application
// this makes it possible for methods to have access to these items as and when they need them
type Application struct {
	Config       config.Config
	DB           repository.Database
	Logger       *slog.Logger
	Mailer       *smtp.Mailer
	WG           sync.WaitGroup
	errorHandler *errHandler.ErrorRepository
	helper       *helper.HelperRepository
	Kafka        *stream.KafkaStream
	FileUploader *file.FileUploader
	Cache        *cache.Cache
	Limiter      *ratelimit.Limiter
	Zones        geo.Zones
	Nrel         *nrel.Client
	Overpass     *overpass.Client
	Places       *places.Client
	Smartcar     *smartcar.Client
	Messenger    twilio.Messenger
	Crm          hubspot.Sender
}

func NewApplication(logger *slog.Logger) (*Application, error) {
	if err := godotenv.Load(); err != nil {
		logger.Error("Error loading .env file", "error", err)
	}

	var cfg config.Config

	// config values are loaded from the .env file
	// Default values are provided for these items and these should strictly be values for development mode only
	// make sure no production-level value is exposed as default value here
	cfg.BaseURL = env.GetString("BASE_URL", "http://localhost:4444")
	cfg.HttpPort = env.GetInt("HTTP_PORT", 4444)
	cfg.Env = env.GetString("ENV", "development")

	cfg.Db.Dsn = env.GetString("DB_DSN", "user:pass@localhost:5432/nerava")
	cfg.Db.Automigrate = env.GetBool("DB_AUTOMIGRATE", true)

	cfg.Jwt.SecretKey = env.GetString("JWT_SECRET_KEY", "ajf5nx3qmp6zquevllxocxqvyz42ypuo")

	if emails := env.GetString("ADMIN_EMAILS", ""); emails != "" {
		cfg.Admin.Emails = strings.Split(emails, ",")
	}

	// server errors won't be sent via email if the NOTIFICATIONS_EMAIL wasn't set in the .env file
	cfg.Notifications.Email = env.GetString("NOTIFICATIONS_EMAIL", "")

	cfg.Smtp.Host = env.GetString("SMTP_HOST", "example.smtp.host")
	cfg.Smtp.Port = env.GetInt("SMTP_PORT", 25)
	cfg.Smtp.Username = env.GetString("SMTP_USERNAME", "example_username")
	cfg.Smtp.Password = env.GetString("SMTP_PASSWORD", "pa55word")
	cfg.Smtp.From = env.GetString("SMTP_FROM", "Nerava <no_reply@nerava.app>")

	cfg.Redis.Addr = env.GetString("REDIS_ADDR", "localhost:6379")
	cfg.Redis.DB = env.GetInt("REDIS_DB", 0)

	cfg.KafkaServers = env.GetString("KAFKA_SERVERS", "localhost:9092")

	cfg.RateLimit.Enabled = env.GetBool("RATE_LIMIT_ENABLED", true)
	cfg.RateLimit.Rps = env.GetFloat("RATE_LIMIT_RPS", 10)
	cfg.RateLimit.Burst = env.GetInt("RATE_LIMIT_BURST", 20)

	cfg.Geofence.ChargerInnerM = env.GetFloat("GEOFENCE_CHARGER_INNER_M", 75)
	cfg.Geofence.ChargerOuterM = env.GetFloat("GEOFENCE_CHARGER_OUTER_M", 250)
	cfg.Geofence.ApproachM = env.GetFloat("GEOFENCE_APPROACH_M", 1000)
	cfg.Geofence.MerchantZoneM = env.GetFloat("GEOFENCE_MERCHANT_ZONE_M", 150)
	cfg.Geofence.PingTimeout = env.GetDuration("GEOFENCE_PING_TIMEOUT", 90*time.Second)
	cfg.Geofence.SessionTTL = env.GetDuration("GEOFENCE_SESSION_TTL", 2*time.Hour)
	cfg.Geofence.QualifiedVisitFeeCents = int64(env.GetInt("QUALIFIED_VISIT_FEE_CENTS", 200))

	cfg.Places.ApiKey = env.GetString("GOOGLE_PLACES_API_KEY", "")
	cfg.Nrel.ApiKey = env.GetString("NREL_API_KEY", "DEMO_KEY")
	cfg.Overpass.BaseURL = env.GetString("OVERPASS_BASE_URL", "")

	cfg.Smartcar.ClientID = env.GetString("SMARTCAR_CLIENT_ID", "")
	cfg.Smartcar.ClientSecret = env.GetString("SMARTCAR_CLIENT_SECRET", "")

	cfg.Twilio.AccountSid = env.GetString("TWILIO_ACCOUNT_SID", "")
	cfg.Twilio.AuthToken = env.GetString("TWILIO_AUTH_TOKEN", "")
	cfg.Twilio.From = env.GetString("TWILIO_FROM", "")

	cfg.Hubspot.AccessToken = env.GetString("HUBSPOT_ACCESS_TOKEN", "")

	cfg.FileUploader.ApiKey = env.GetString("CLOUDINARY_API_KEY", "")
	cfg.FileUploader.CloudName = env.GetString("CLOUDINARY_CLOUD_NAME", "")
	cfg.FileUploader.ApiSecret = env.GetString("CLOUDINARY_API_SECRET", "")

	db, err := repository.New(cfg.Db.Dsn, cfg.Db.Automigrate)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	mailer, err := smtp.NewMailer(cfg.Smtp.Host, cfg.Smtp.Port, cfg.Smtp.Username, cfg.Smtp.Password, cfg.Smtp.From)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mailer: %w", err)
	}

	errorHandler := errHandler.New(cfg.Notifications.Email, cfg.BaseURL, mailer, logger)

	app := &Application{
		Config:       cfg,
		DB:           db,
		Logger:       logger,
		Mailer:       mailer,
		errorHandler: errorHandler,
		Kafka:        stream.New(cfg.KafkaServers),
		FileUploader: file.New(cfg.FileUploader.CloudName, cfg.FileUploader.ApiKey, cfg.FileUploader.ApiSecret),
		Cache:        cache.New(cfg.Redis.Addr, cfg.Redis.DB),
		Limiter:      ratelimit.New(cfg.RateLimit.Rps, cfg.RateLimit.Burst),
		Zones: geo.Zones{
			ChargerInnerM: cfg.Geofence.ChargerInnerM,
			ChargerOuterM: cfg.Geofence.ChargerOuterM,
			ApproachM:     cfg.Geofence.ApproachM,
			MerchantZoneM: cfg.Geofence.MerchantZoneM,
		},
		Nrel:      nrel.New(cfg.Nrel.ApiKey),
		Overpass:  overpass.New(cfg.Overpass.BaseURL),
		Places:    places.New(cfg.Places.ApiKey),
		Smartcar:  smartcar.New(),
		Messenger: twilio.New(cfg.Twilio.AccountSid, cfg.Twilio.AuthToken, cfg.Twilio.From),
		Crm:       hubspot.New(cfg.Hubspot.AccessToken),
	}

	app.helper = helper.New(&app.Config.BaseURL, &app.WG, errorHandler)

	return app, nil
}

// Helper exposes the shared helper so workers started from main can reuse
// the same background-task wait group.
func (app *Application) Helper() *helper.HelperRepository {
	return app.helper
}

package config

import "time"

type Config struct {
	BaseURL  string
	HttpPort int
	Env      string
	Db       struct {
		Dsn         string
		Automigrate bool
	}
	Jwt struct {
		SecretKey string
	}
	Admin struct {
		Emails []string
	}
	Notifications struct {
		Email string
	}
	Smtp struct {
		Host     string
		Port     int
		Username string
		Password string
		From     string
	}
	Redis struct {
		Addr string
		DB   int
	}
	KafkaServers string
	RateLimit    struct {
		Enabled bool
		Rps     float64
		Burst   int
	}
	Geofence struct {
		ChargerInnerM          float64
		ChargerOuterM          float64
		ApproachM              float64
		MerchantZoneM          float64
		PingTimeout            time.Duration
		SessionTTL             time.Duration
		QualifiedVisitFeeCents int64
	}
	Places struct {
		ApiKey string
	}
	Nrel struct {
		ApiKey string
	}
	Overpass struct {
		BaseURL string
	}
	Smartcar struct {
		ClientID     string
		ClientSecret string
	}
	Twilio struct {
		AccountSid string
		AuthToken  string
		From       string
	}
	Hubspot struct {
		AccessToken string
	}
	FileUploader struct {
		CloudName string
		ApiKey    string
		ApiSecret string
	}
}

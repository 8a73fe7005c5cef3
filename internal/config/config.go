package config

import "time"

type Config struct {
	Environment    Environment
	Log            Log
	HTTP           HTTPServer
	BaseURL        string        `env:"BASE_URL" envDefault:"http://localhost:3000"`
	DatabaseDriver string        `env:"DATABASE_DRIVER" envDefault:"mysql"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	RenderTimeout  time.Duration `env:"RENDER_TIMEOUT" envDefault:"5s"`
	AdminJWTSecret string        `env:"ADMIN_JWT_SECRET"`

	Paytr     Paytr     `envPrefix:"PAYTR_"`
	Reconcile Reconcile `envPrefix:"RECONCILE_"`
	RateLimit RateLimit `envPrefix:"RATE_LIMIT_"`
	Email     Email     `envPrefix:"EMAIL_"`
}

type Paytr struct {
	MerchantID   string        `env:"MERCHANT_ID,notEmpty"`
	MerchantKey  string        `env:"MERCHANT_KEY,notEmpty"`
	MerchantSalt string        `env:"MERCHANT_SALT,notEmpty"`
	StatusURL    string        `env:"STATUS_URL" envDefault:"https://www.paytr.com/odeme/durum-sorgu"`
	QueryTimeout time.Duration `env:"QUERY_TIMEOUT" envDefault:"10s"`

	// iFrame checkout
	TokenURL       string `env:"TOKEN_URL" envDefault:"https://www.paytr.com/odeme/api/get-token"`
	IframeURL      string `env:"IFRAME_URL" envDefault:"https://www.paytr.com/odeme/guvenli/"`
	OkURL          string `env:"MERCHANT_OK_URL"`
	FailURL        string `env:"MERCHANT_FAIL_URL"`
	TestMode       bool   `env:"TEST_MODE" envDefault:"false"`
	DebugOn        bool   `env:"DEBUG_ON" envDefault:"false"`
	Lang           string `env:"LANGUAGE" envDefault:"tr"`
	Currency       string `env:"CURRENCY" envDefault:"TL"`
	TimeoutLimit   int    `env:"TIMEOUT_LIMIT" envDefault:"30"`
	NoInstallment  int    `env:"NO_INSTALLMENT" envDefault:"0"`
	MaxInstallment int    `env:"MAX_INSTALLMENT" envDefault:"0"`
}

type Reconcile struct {
	Enabled        bool          `env:"ENABLED" envDefault:"true"`
	Interval       time.Duration `env:"INTERVAL" envDefault:"5m"`
	PendingTimeout time.Duration `env:"PENDING_TIMEOUT" envDefault:"15m"`
	BatchSize      int           `env:"BATCH_SIZE" envDefault:"100"`
	Concurrency    int           `env:"CONCURRENCY" envDefault:"4"`
	// unsettled orders older than this are cancelled
	MaxPendingAge time.Duration `env:"MAX_PENDING_AGE" envDefault:"24h"`
}

type RateLimit struct {
	Strategy string `env:"STRATEGY" envDefault:"fixed_window"`

	PageViewMax    int           `env:"PAGE_VIEW_MAX" envDefault:"1000"`
	PageViewWindow time.Duration `env:"PAGE_VIEW_WINDOW" envDefault:"1m"`
	CheckoutMax    int           `env:"CHECKOUT_MAX" envDefault:"50"`
	CheckoutWindow time.Duration `env:"CHECKOUT_WINDOW" envDefault:"1h"`
	APIMax         int           `env:"API_MAX" envDefault:"1000"`
	APIWindow      time.Duration `env:"API_WINDOW" envDefault:"1m"`
}

type Email struct {
	APIURL  string        `env:"API_URL" envDefault:"https://api.resend.com/emails"`
	APIKey  string        `env:"API_KEY"`
	From    string        `env:"FROM" envDefault:"Gizli Mesaj <noreply@gizlimesaj.app>"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}

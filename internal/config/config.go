package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Portal
	PortalHomeURL  string
	PortalLoginURL string

	// Scrape
	ScrapeTimeout   time.Duration
	ScrapeMaxSize   int64
	ScrapeRateLimit float64 // ポータルへのリクエストレート（req/sec）

	// Retry
	MaxAttempts int

	// Email (送信元は全アカウント共通)
	EmailSender   string
	EmailPassword string
	SMTPHost      string
	SMTPPort      int

	// Session
	SessionKeyFile string
	SessionTTL     time.Duration
	DataDir        string

	// Logging
	SyncLogRetentionDays int

	// Server (serveモードのみ)
	ServerPort   string
	SyncInterval time.Duration

	// Accounts
	Accounts []AccountConfig
}

// AccountConfig は1アカウント分の設定。
// ACCOUNT_NAME_1、PORTAL_USERNAME_1のように連番サフィックス付き
// 環境変数から読み込む。連番が途切れた時点で打ち切る。
type AccountConfig struct {
	ID             string
	Name           string
	PortalUsername string
	PortalPassword string
	EmailRecipient string
	CookiesFile    string

	// Notifications
	NotificationsEnabled bool
	UseSmartFusion       bool
	UrgentThresholdHours int
	MorningSummary       bool
	MorningTime          string // "HH:MM"
	EveningSummary       bool
	EveningTime          string // "HH:MM"
	FeedURL              string // 課題フィード（RSS）を使う場合のみ設定
}

// timePattern は"HH:MM"形式の検証用。
var timePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定、またはアカウントが1件も構成されていない場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.PortalHomeURL = os.Getenv("PORTAL_HOME_URL")
	if cfg.PortalHomeURL == "" {
		missing = append(missing, "PORTAL_HOME_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.PortalLoginURL = getEnvString("PORTAL_LOGIN_URL", cfg.PortalHomeURL)
	cfg.ScrapeTimeout = getEnvDuration("SCRAPE_TIMEOUT", 60*time.Second)
	cfg.ScrapeMaxSize = getEnvInt64("SCRAPE_MAX_SIZE", 5242880)
	cfg.ScrapeRateLimit = getEnvFloat("SCRAPE_RATE_LIMIT", 1.0)
	cfg.MaxAttempts = getEnvInt("MAX_ATTEMPTS", 3)
	cfg.EmailSender = getEnvString("EMAIL_SENDER", "")
	cfg.EmailPassword = getEnvString("EMAIL_PASSWORD", "")
	cfg.SMTPHost = getEnvString("SMTP_HOST", "smtp.gmail.com")
	cfg.SMTPPort = getEnvInt("SMTP_PORT", 587)
	cfg.SessionKeyFile = getEnvString("SESSION_KEY_FILE", ".cookie_key")
	cfg.SessionTTL = getEnvDuration("SESSION_TTL", 7*24*time.Hour)
	cfg.DataDir = getEnvString("DATA_DIR", "data")
	cfg.SyncLogRetentionDays = getEnvInt("SYNC_LOG_RETENTION_DAYS", 90)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.SyncInterval = getEnvDuration("SYNC_INTERVAL", 6*time.Hour)

	accounts, err := loadAccounts(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("no accounts configured: set PORTAL_USERNAME_1 at minimum")
	}
	cfg.Accounts = accounts

	// 通知が有効なアカウントが1つでもあれば送信元設定は必須
	for _, a := range cfg.Accounts {
		if a.NotificationsEnabled && (cfg.EmailSender == "" || cfg.EmailPassword == "") {
			return nil, fmt.Errorf("EMAIL_SENDER and EMAIL_PASSWORD are required when notifications are enabled (account %s)", a.Name)
		}
	}

	return cfg, nil
}

// loadAccounts は連番サフィックス付き環境変数からアカウント設定を読み込む。
// PORTAL_USERNAME_nが未設定になった時点で打ち切る。
func loadAccounts(dataDir string) ([]AccountConfig, error) {
	var accounts []AccountConfig

	for n := 1; ; n++ {
		username := os.Getenv(fmt.Sprintf("PORTAL_USERNAME_%d", n))
		if username == "" {
			break
		}

		suffix := strconv.Itoa(n)
		a := AccountConfig{
			ID:             "account" + suffix,
			Name:           getEnvString("ACCOUNT_NAME_"+suffix, "Account"+suffix),
			PortalUsername: username,
			PortalPassword: os.Getenv("PORTAL_PASSWORD_" + suffix),
			EmailRecipient: os.Getenv("EMAIL_RECIPIENT_" + suffix),
			CookiesFile:    fmt.Sprintf("%s/account%s/cookies.enc", dataDir, suffix),

			NotificationsEnabled: getEnvBool("NOTIFICATIONS_ENABLED_"+suffix, true),
			UseSmartFusion:       getEnvBool("SMART_FUSION_"+suffix, true),
			UrgentThresholdHours: getEnvInt("URGENT_THRESHOLD_"+suffix, 24),
			MorningSummary:       getEnvBool("MORNING_SUMMARY_"+suffix, true),
			MorningTime:          getEnvString("MORNING_TIME_"+suffix, "08:00"),
			EveningSummary:       getEnvBool("EVENING_SUMMARY_"+suffix, true),
			EveningTime:          getEnvString("EVENING_TIME_"+suffix, "22:00"),
			FeedURL:              getEnvString("ASSIGNMENT_FEED_URL_"+suffix, ""),
		}

		if a.PortalPassword == "" {
			return nil, fmt.Errorf("PORTAL_PASSWORD_%d is not set for account %s", n, a.Name)
		}
		if a.NotificationsEnabled && a.EmailRecipient == "" {
			return nil, fmt.Errorf("EMAIL_RECIPIENT_%d is not set for account %s", n, a.Name)
		}
		if !timePattern.MatchString(a.MorningTime) {
			return nil, fmt.Errorf("MORNING_TIME_%d must be HH:MM, got %q", n, a.MorningTime)
		}
		if !timePattern.MatchString(a.EveningTime) {
			return nil, fmt.Errorf("EVENING_TIME_%d must be HH:MM, got %q", n, a.EveningTime)
		}
		if a.UrgentThresholdHours <= 0 {
			return nil, fmt.Errorf("URGENT_THRESHOLD_%d must be positive, got %d", n, a.UrgentThresholdHours)
		}

		accounts = append(accounts, a)
	}

	return accounts, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

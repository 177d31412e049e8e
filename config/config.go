package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// JWT (tokens are issued by the external auth service; we only verify)
	JWTSecret string

	// Server
	Port   string
	AppEnv string

	// Scheduling grid
	SlotMinutes      int // drop grid / suggestion scan increment
	DayOpenMinute    int // visible day window, minutes from midnight
	DayCloseMinute   int
	PixelsPerMinute  float64
	MinSessionHeight float64

	// Conflict suggestions
	MaxSuggestions     int
	MaxTimeSuggestions int
	ScanHorizon        time.Duration

	// Conflict-check coalescing
	DebounceWindow time.Duration

	// Feature toggles
	UseRedisNotifications bool
	SkipMigrate           bool

	// Logging
	LogLevel string
	LogFile  string
}

func (c *Config) GetDSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?charset=utf8mb4&parseTime=True&loc=Local"
}

var AppConfig *Config

func LoadConfig() {
	useSSM := getEnv("USE_SSM", "false") == "true"

	var paramMap map[string]string

	// Stage & base path for SSM (allows multi-env without code changes)
	basePath := getEnv("SSM_BASE_PATH", "/classboard")
	stage := getEnv("STAGE", getEnv("APP_ENV", "production"))
	basePath = strings.TrimRight(basePath, "/")
	prefix := basePath + "/" + stage

	if useSSM {
		sess, err := session.NewSession(&aws.Config{Region: aws.String(getEnv("AWS_REGION", "ap-southeast-1"))})
		if err != nil {
			log.Fatal("Failed to create AWS session:", err)
		}
		log.Printf("Using AWS SSM Parameter Store (prefix=%s)", prefix)
		paramMap = fetchSSMParameters(ssm.New(sess), prefix)
	} else {
		if err := godotenv.Load(); err != nil {
			log.Println("Warning: .env file not found, using environment variables")
		}
	}

	// Helper accessor respecting map / env fallback
	getVal := func(key, def string) string {
		if useSSM {
			uk := strings.ToUpper(key)
			if v, ok := paramMap[uk]; ok && v != "" {
				return v
			}
		}
		return getEnv(strings.ToUpper(key), def)
	}

	AppConfig = &Config{
		DBHost:     getVal("DB_HOST", "localhost"),
		DBPort:     getVal("DB_PORT", "3306"),
		DBUser:     getVal("DB_USER", "root"),
		DBPassword: getVal("DB_PASSWORD", ""),
		DBName:     getVal("DB_NAME", "classboard_go"),

		RedisHost:     getVal("REDIS_HOST", "localhost"),
		RedisPort:     getVal("REDIS_PORT", "6379"),
		RedisPassword: getVal("REDIS_PASSWORD", ""),

		JWTSecret: getVal("JWT_SECRET", "your_super_secret_jwt_key"),

		Port:   getVal("PORT", "3000"),
		AppEnv: getVal("APP_ENV", "development"),

		SlotMinutes:      getIntVal(getVal, "SLOT_MINUTES", 30),
		DayOpenMinute:    getIntVal(getVal, "DAY_OPEN_MINUTE", 8*60),
		DayCloseMinute:   getIntVal(getVal, "DAY_CLOSE_MINUTE", 21*60),
		PixelsPerMinute:  getFloatVal(getVal, "PIXELS_PER_MINUTE", 1),
		MinSessionHeight: getFloatVal(getVal, "MIN_SESSION_HEIGHT", 18),

		MaxSuggestions:     getIntVal(getVal, "MAX_SUGGESTIONS", 5),
		MaxTimeSuggestions: getIntVal(getVal, "MAX_TIME_SUGGESTIONS", 3),
		ScanHorizon:        getDurationVal(getVal, "SCAN_HORIZON", 8*time.Hour),

		DebounceWindow: getDurationVal(getVal, "DEBOUNCE_WINDOW", 300*time.Millisecond),

		UseRedisNotifications: strings.ToLower(getVal("USE_REDIS_NOTIFICATIONS", "false")) == "true",
		SkipMigrate:           strings.ToLower(getVal("SKIP_MIGRATE", "false")) == "true",

		LogLevel: getVal("LOG_LEVEL", "info"),
		LogFile:  getVal("LOG_FILE", "logs/app.log"),
	}

	if AppConfig.DayCloseMinute <= AppConfig.DayOpenMinute {
		log.Fatal("DAY_CLOSE_MINUTE must be after DAY_OPEN_MINUTE")
	}
	validateConfig(AppConfig, useSSM)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntVal(getVal func(string, string) string, key string, def int) int {
	raw := getVal(key, strconv.Itoa(def))
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Fatalf("Invalid %s: %v", key, err)
	}
	return n
}

func getFloatVal(getVal func(string, string) string, key string, def float64) float64 {
	raw := getVal(key, strconv.FormatFloat(def, 'f', -1, 64))
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Fatalf("Invalid %s: %v", key, err)
	}
	return f
}

func getDurationVal(getVal func(string, string) string, key string, def time.Duration) time.Duration {
	raw := getVal(key, def.String())
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Fatalf("Invalid %s: %v", key, err)
	}
	return d
}

// fetchSSMParameters reads all parameters under prefix and returns a map
// with UPPERCASE keys.
func fetchSSMParameters(client *ssm.SSM, prefix string) map[string]string {
	out := make(map[string]string)
	next := aws.String("")
	for {
		in := &ssm.GetParametersByPathInput{
			Path:           aws.String(prefix),
			WithDecryption: aws.Bool(true),
			Recursive:      aws.Bool(true),
		}
		if *next != "" {
			in.NextToken = next
		}
		resp, err := client.GetParametersByPath(in)
		if err != nil {
			log.Printf("Warning: unable to fetch SSM parameters for prefix %s: %v", prefix, err)
			break
		}
		for _, p := range resp.Parameters {
			if p.Name == nil || p.Value == nil {
				continue
			}
			name := *p.Name
			key := name
			if idx := strings.LastIndex(name, "/"); idx >= 0 {
				key = name[idx+1:]
			}
			if key == "" {
				continue
			}
			out[strings.ToUpper(key)] = *p.Value
		}
		if resp.NextToken == nil || *resp.NextToken == "" {
			break
		}
		next = resp.NextToken
	}
	return out
}

func validateConfig(c *Config, usedSSM bool) {
	// Only enforce stricter rules in production
	if strings.ToLower(c.AppEnv) != "production" {
		return
	}
	required := map[string]string{
		"DB_PASSWORD": c.DBPassword,
		"JWT_SECRET":  c.JWTSecret,
	}
	for k, v := range required {
		if strings.TrimSpace(v) == "" {
			log.Fatalf("Missing required secret %s in production (SSM=%v)", k, usedSSM)
		}
	}
	if len(c.JWTSecret) < 16 {
		log.Fatal("JWT_SECRET too short (min 16 chars)")
	}
}

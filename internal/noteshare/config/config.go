package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	App        AppConfig        `json:"app" yaml:"app"`
	API        APIConfig        `json:"api" yaml:"api"`
	Store      StoreConfig      `json:"store" yaml:"store"`
	Security   SecurityConfig   `json:"security" yaml:"security"`
	Gemini     GeminiConfig     `json:"gemini" yaml:"gemini"`
	Monitoring MonitoringConfig `json:"monitoring" yaml:"monitoring"`
}

// AppConfig represents application configuration
type AppConfig struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Debug       bool   `json:"debug"`
	LogLevel    string `json:"log_level"`
	LogFormat   string `json:"log_format"`
	LogFile     string `json:"log_file"`
	Environment string `json:"environment"`
}

// APIConfig represents API configuration
type APIConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	CORSOrigins    []string `json:"cors_origins"`
	MaxRequestSize int64    `json:"max_request_size"`
	Timeout        int      `json:"timeout"`
}

// StoreConfig 笔记存储配置
type StoreConfig struct {
	Driver        string        `json:"driver"`
	URL           string        `json:"url"`
	Retention     time.Duration `json:"retention"`
	SweepInterval time.Duration `json:"sweep_interval"`
	PoolSize      int           `json:"pool_size"`
}

// SecurityConfig 密码生成与哈希配置
type SecurityConfig struct {
	SecretBytes int `json:"secret_bytes"`
	BcryptCost  int `json:"bcrypt_cost"`
}

// GeminiConfig represents Gemini configuration
type GeminiConfig struct {
	APIKey      string        `json:"-"`
	Model       string        `json:"model"`
	BaseURL     string        `json:"base_url"`
	Timeout     time.Duration `json:"timeout"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

// MonitoringConfig represents monitoring configuration
type MonitoringConfig struct {
	EnableMetrics bool `json:"enable_metrics"`
}

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"

	DefaultRetention = 7 * 24 * time.Hour
)

// Load loads configuration from YAML files and environment variables
func Load() *Config {
	configDir := getEnv("CONFIG_DIR", "config")
	yamlConfig := loadYAMLConfig(configDir)

	config := &Config{}

	config.App = AppConfig{
		Name:        getEnvWithYAML("APP_NAME", yamlConfig, "app.name", "noteshare"),
		Version:     getEnvWithYAML("APP_VERSION", yamlConfig, "app.version", "1.0.0"),
		Debug:       getEnvBoolWithYAML("DEBUG", yamlConfig, "app.debug", false),
		LogLevel:    getEnvWithYAML("LOG_LEVEL", yamlConfig, "app.log_level", "info"),
		LogFormat:   getEnvWithYAML("LOG_FORMAT", yamlConfig, "app.log_format", "json"),
		LogFile:     getEnvWithYAML("LOG_FILE", yamlConfig, "app.log_file", ""),
		Environment: getEnvWithYAML("ENVIRONMENT", yamlConfig, "app.environment", "development"),
	}

	port := getEnvIntWithYAML("API_PORT", yamlConfig, "api.port", 5001)
	if os.Getenv("API_PORT") == "" {
		port = getEnvInt("PORT", port)
	}
	config.API = APIConfig{
		Host:           getEnvWithYAML("API_HOST", yamlConfig, "api.host", "0.0.0.0"),
		Port:           port,
		CORSOrigins:    getEnvSliceWithYAML("API_CORS_ORIGINS", yamlConfig, "api.cors_origins", []string{"*"}),
		MaxRequestSize: getEnvInt64WithYAML("MAX_REQUEST_SIZE", yamlConfig, "api.max_request_size", 64<<10),
		Timeout:        getEnvIntWithYAML("API_TIMEOUT", yamlConfig, "api.timeout", 60),
	}

	storeURL := getEnvWithYAML("STORE_URL", yamlConfig, "store.url", "")
	if storeURL == "" {
		storeURL = firstNonEmpty(os.Getenv("REDIS_URL"), os.Getenv("DATABASE_URL"))
	}
	config.Store = StoreConfig{
		Driver:        strings.ToLower(getEnvWithYAML("STORE_DRIVER", yamlConfig, "store.driver", inferDriver(storeURL))),
		URL:           storeURL,
		Retention:     getEnvDurationWithYAML("NOTE_RETENTION", yamlConfig, "store.retention", DefaultRetention),
		SweepInterval: getEnvDurationWithYAML("SWEEP_INTERVAL", yamlConfig, "store.sweep_interval", 10*time.Minute),
		PoolSize:      getEnvIntWithYAML("STORE_POOL_SIZE", yamlConfig, "store.pool_size", 20),
	}

	config.Security = SecurityConfig{
		SecretBytes: getEnvIntWithYAML("SECRET_BYTES", yamlConfig, "security.secret_bytes", 9),
		BcryptCost:  getEnvIntWithYAML("BCRYPT_COST", yamlConfig, "security.bcrypt_cost", 10),
	}

	config.Gemini = GeminiConfig{
		APIKey:      getEnvWithYAML("GEMINI_API_KEY", yamlConfig, "gemini.api_key", ""),
		Model:       getEnvWithYAML("GEMINI_MODEL", yamlConfig, "gemini.model", "gemini-flash-latest"),
		BaseURL:     getEnvWithYAML("GEMINI_BASE_URL", yamlConfig, "gemini.base_url", "https://generativelanguage.googleapis.com/v1beta"),
		Timeout:     getEnvDurationWithYAML("GEMINI_TIMEOUT", yamlConfig, "gemini.timeout", 30*time.Second),
		Temperature: getEnvFloat64WithYAML("GEMINI_TEMPERATURE", yamlConfig, "gemini.temperature", 0.3),
		MaxTokens:   getEnvIntWithYAML("GEMINI_MAX_TOKENS", yamlConfig, "gemini.max_tokens", 512),
	}

	config.Monitoring = MonitoringConfig{
		EnableMetrics: getEnvBoolWithYAML("ENABLE_METRICS", yamlConfig, "monitoring.enable_metrics", false),
	}

	return config
}

// Validate 检查配置是否可用
func (c *Config) Validate() error {
	var errs []error

	urlDriver, urlOK := driverForURL(c.Store.URL)
	switch c.Store.Driver {
	case DriverMemory:
	case DriverRedis, DriverSQLite:
		switch {
		case c.Store.URL == "":
			errs = append(errs, fmt.Errorf("store driver %q requires STORE_URL", c.Store.Driver))
		case !urlOK:
			errs = append(errs, fmt.Errorf("unsupported store URL scheme %q", urlScheme(c.Store.URL)))
		case urlDriver != c.Store.Driver:
			errs = append(errs, fmt.Errorf("store URL scheme %q does not match driver %q", urlScheme(c.Store.URL), c.Store.Driver))
		}
	default:
		if !urlOK {
			errs = append(errs, fmt.Errorf("unsupported store URL scheme %q", urlScheme(c.Store.URL)))
		} else {
			errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
		}
	}
	if c.Store.Retention <= 0 {
		errs = append(errs, errors.New("note retention must be positive"))
	}
	if c.Store.SweepInterval <= 0 {
		errs = append(errs, errors.New("sweep interval must be positive"))
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid api port %d", c.API.Port))
	}
	if c.Gemini.Timeout <= 0 {
		errs = append(errs, errors.New("gemini timeout must be positive"))
	}
	// the HTTP write timeout must outlive the AI call so its error reaches the client
	if c.API.Timeout > 0 && c.Gemini.Timeout >= time.Duration(c.API.Timeout)*time.Second {
		errs = append(errs, fmt.Errorf("gemini timeout %s must be shorter than api timeout %ds", c.Gemini.Timeout, c.API.Timeout))
	}

	return errors.Join(errs...)
}

// Addr 监听地址
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// LogLevel 日志级别，DEBUG 开启时强制为 debug
func (c *Config) LogLevel() string {
	if c.App.Debug {
		return "debug"
	}
	return c.App.LogLevel
}

// inferDriver 根据连接串推断存储类型，无法识别时为空
func inferDriver(url string) string {
	driver, _ := driverForURL(url)
	return driver
}

// driverForURL 只识别 redis 与 sqlite 的连接串，其余 scheme 一律拒绝
func driverForURL(url string) (string, bool) {
	switch {
	case url == "":
		return DriverMemory, true
	case hasAnyPrefix(url, "redis://", "rediss://", "unix://"):
		return DriverRedis, true
	case hasAnyPrefix(url, "sqlite://", "sqlite3://", "file:"), url == ":memory:", !strings.Contains(url, "://"):
		return DriverSQLite, true
	}
	return "", false
}

// urlScheme 只返回 scheme，避免把凭据写进错误信息
func urlScheme(url string) string {
	if scheme, _, found := strings.Cut(url, "://"); found {
		return scheme
	}
	return url
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// loadYAMLConfig loads configuration from YAML files
func loadYAMLConfig(configDir string) map[string]interface{} {
	yamlConfig := make(map[string]interface{})

	appConfigPath := filepath.Join(configDir, "app_config.yaml")
	if data, err := os.ReadFile(appConfigPath); err == nil {
		var config map[string]interface{}
		if err := yaml.Unmarshal(data, &config); err == nil && config != nil {
			yamlConfig = config
		}
	}

	return yamlConfig
}

// getEnvWithYAML gets environment variable with YAML fallback
func getEnvWithYAML(envKey string, yamlConfig map[string]interface{}, yamlPath, defaultValue string) string {
	if value := os.Getenv(envKey); value != "" {
		return value
	}

	if yamlValue := getYAMLValue(yamlConfig, yamlPath); yamlValue != "" {
		return yamlValue
	}

	return defaultValue
}

// getEnvIntWithYAML gets integer environment variable with YAML fallback
func getEnvIntWithYAML(envKey string, yamlConfig map[string]interface{}, yamlPath string, defaultValue int) int {
	if value := os.Getenv(envKey); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}

	if yamlValue := getYAMLValue(yamlConfig, yamlPath); yamlValue != "" {
		if intValue, err := strconv.Atoi(yamlValue); err == nil {
			return intValue
		}
	}

	return defaultValue
}

// getEnvInt64WithYAML gets int64 environment variable with YAML fallback
func getEnvInt64WithYAML(envKey string, yamlConfig map[string]interface{}, yamlPath string, defaultValue int64) int64 {
	if value := os.Getenv(envKey); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}

	if yamlValue := getYAMLValue(yamlConfig, yamlPath); yamlValue != "" {
		if intValue, err := strconv.ParseInt(yamlValue, 10, 64); err == nil {
			return intValue
		}
	}

	return defaultValue
}

// getEnvFloat64WithYAML gets float64 environment variable with YAML fallback
func getEnvFloat64WithYAML(envKey string, yamlConfig map[string]interface{}, yamlPath string, defaultValue float64) float64 {
	if value := os.Getenv(envKey); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}

	if yamlValue := getYAMLValue(yamlConfig, yamlPath); yamlValue != "" {
		if floatValue, err := strconv.ParseFloat(yamlValue, 64); err == nil {
			return floatValue
		}
	}

	return defaultValue
}

// getEnvBoolWithYAML gets boolean environment variable with YAML fallback
func getEnvBoolWithYAML(envKey string, yamlConfig map[string]interface{}, yamlPath string, defaultValue bool) bool {
	if value := os.Getenv(envKey); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}

	if yamlValue := getYAMLValue(yamlConfig, yamlPath); yamlValue != "" {
		if boolValue, err := strconv.ParseBool(yamlValue); err == nil {
			return boolValue
		}
	}

	return defaultValue
}

// getEnvDurationWithYAML 接受 Go duration ("168h") 或整数秒 ("604800")
func getEnvDurationWithYAML(envKey string, yamlConfig map[string]interface{}, yamlPath string, defaultValue time.Duration) time.Duration {
	if d, ok := parseDuration(os.Getenv(envKey)); ok {
		return d
	}
	if d, ok := parseDuration(getYAMLValue(yamlConfig, yamlPath)); ok {
		return d
	}
	return defaultValue
}

func parseDuration(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, true
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d, true
	}
	return 0, false
}

// getEnvSliceWithYAML gets string slice environment variable with YAML fallback
func getEnvSliceWithYAML(envKey string, yamlConfig map[string]interface{}, yamlPath string, defaultValue []string) []string {
	if value := os.Getenv(envKey); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if p := strings.TrimSpace(part); p != "" {
				result = append(result, p)
			}
		}
		return result
	}

	if yamlValue := getYAMLSlice(yamlConfig, yamlPath); yamlValue != nil {
		return yamlValue
	}

	return defaultValue
}

// getYAMLValue gets value from YAML config using dot notation path.
// Scalars of any type are returned in their string form.
func getYAMLValue(config map[string]interface{}, path string) string {
	value, ok := lookupYAML(config, path)
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case int, int64, float64, bool:
		return fmt.Sprint(v)
	}
	return ""
}

// getYAMLSlice gets string slice from YAML config using dot notation path
func getYAMLSlice(config map[string]interface{}, path string) []string {
	value, ok := lookupYAML(config, path)
	if !ok {
		return nil
	}
	slice, ok := value.([]interface{})
	if !ok {
		return nil
	}
	result := make([]string, 0, len(slice))
	for _, item := range slice {
		if str, ok := item.(string); ok {
			result = append(result, str)
		}
	}
	return result
}

func lookupYAML(config map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	current := config

	for i, part := range parts {
		if i == len(parts)-1 {
			value, ok := current[part]
			return value, ok
		}
		next, ok := current[part].(map[string]interface{})
		if !ok {
			return nil, false
		}
		current = next
	}
	return nil, false
}

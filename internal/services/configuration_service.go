package services

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"chathistory/internal/logger"
)

// ConfigurationServiceName is the registry name of the ConfigurationService.
const ConfigurationServiceName = "configuration"

// EnvPrefix prefixes every environment variable read by chathistory.
const EnvPrefix = "CHATHISTORY"

// Configuration keys. Persistent CLI flags use the same names.
const (
	KeyDatabase = "database"
	KeyHome     = "home"
	KeyTheme    = "theme"
	KeyLogLevel = "log-level"
	KeyLogFile  = "log-file"
	KeyPlain    = "plain"
)

const (
	appDirName     = "chathistory"
	configFileName = "config.yaml"
	dotEnvFileName = ".env"
	databaseName   = "data.sqlite3"
)

// Config is the resolved configuration for one invocation.
type Config struct {
	Database string
	Home     string
	Theme    string
	LogLevel string
	LogFile  string
	Plain    bool
}

// ConfigPaths represents configuration file paths and their loading status
type ConfigPaths struct {
	ConfigDir        string // Configuration directory path
	ConfigFile       string // config.yaml path
	ConfigFileLoaded bool   // Whether config.yaml was read
	ConfigEnvPath    string // Config .env file path
	ConfigEnvLoaded  bool   // Whether config .env was loaded
	LocalEnvPath     string // Local .env file path
	LocalEnvLoaded   bool   // Whether local .env was loaded
}

// ConfigurationService resolves chathistory settings.
// Priority (highest to lowest): flags > environment > local .env > config .env > config.yaml > defaults
type ConfigurationService struct {
	initialized bool
	v           *viper.Viper
	configDir   string
	workDir     string
	getenv      func(string) string
	paths       ConfigPaths
}

// ConfigOption configures a ConfigurationService.
type ConfigOption func(*ConfigurationService)

// WithConfigDir overrides the directory holding config.yaml and the config .env.
func WithConfigDir(dir string) ConfigOption {
	return func(c *ConfigurationService) {
		c.configDir = dir
	}
}

// WithWorkDir overrides the directory searched for the local .env.
func WithWorkDir(dir string) ConfigOption {
	return func(c *ConfigurationService) {
		c.workDir = dir
	}
}

// WithGetenv replaces the environment lookup used for default directories.
func WithGetenv(getenv func(string) string) ConfigOption {
	return func(c *ConfigurationService) {
		if getenv != nil {
			c.getenv = getenv
		}
	}
}

// NewConfigurationService creates a new ConfigurationService instance.
func NewConfigurationService(options ...ConfigOption) *ConfigurationService {
	c := &ConfigurationService{
		initialized: false,
		v:           viper.New(),
		getenv:      os.Getenv,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Name returns the service name "configuration" for registration.
func (c *ConfigurationService) Name() string {
	return ConfigurationServiceName
}

// BindFlags binds every flag of flags to the configuration key of the same name.
func (c *ConfigurationService) BindFlags(flags *pflag.FlagSet) error {
	if err := c.v.BindPFlags(flags); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}
	return nil
}

// Initialize loads configuration sources in priority order (lowest to highest).
func (c *ConfigurationService) Initialize() error {
	if c.initialized {
		return nil
	}

	if c.configDir == "" {
		c.configDir = c.defaultConfigDir()
	}
	if c.workDir == "" {
		if wd, err := os.Getwd(); err == nil {
			c.workDir = wd
		}
	}
	c.paths = ConfigPaths{ConfigDir: c.configDir}

	c.loadDefaults()

	c.v.SetEnvPrefix(EnvPrefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	if err := c.loadConfigFile(); err != nil {
		return err
	}

	if c.configDir != "" {
		loaded, err := c.loadDotEnv(filepath.Join(c.configDir, dotEnvFileName))
		if err != nil {
			return fmt.Errorf("failed to load config .env: %w", err)
		}
		c.paths.ConfigEnvPath, c.paths.ConfigEnvLoaded = filepath.Join(c.configDir, dotEnvFileName), loaded
	}

	if c.workDir != "" {
		loaded, err := c.loadDotEnv(filepath.Join(c.workDir, dotEnvFileName))
		if err != nil {
			return fmt.Errorf("failed to load local .env: %w", err)
		}
		c.paths.LocalEnvPath, c.paths.LocalEnvLoaded = filepath.Join(c.workDir, dotEnvFileName), loaded
	}

	c.initialized = true
	logger.Debug("Configuration loaded", "config_dir", c.configDir, "database", c.v.GetString(KeyDatabase))
	return nil
}

func (c *ConfigurationService) loadDefaults() {
	home, err := os.UserHomeDir()
	if err != nil {
		logger.Debug("Home directory unavailable", "error", err)
	}

	c.v.SetDefault(KeyDatabase, filepath.Join(c.defaultDataDir(home), appDirName, databaseName))
	c.v.SetDefault(KeyHome, home)
	c.v.SetDefault(KeyTheme, "default")
	c.v.SetDefault(KeyLogLevel, "")
	c.v.SetDefault(KeyLogFile, "")
	c.v.SetDefault(KeyPlain, false)
}

func (c *ConfigurationService) loadConfigFile() error {
	if c.configDir == "" {
		return nil
	}

	path := filepath.Join(c.configDir, configFileName)
	c.paths.ConfigFile = path
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	c.v.SetConfigFile(path)
	if err := c.v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	c.paths.ConfigFileLoaded = true
	return nil
}

// loadDotEnv merges CHATHISTORY_* values of a .env file into the config layer, below
// real environment variables. A missing file is not an error.
func (c *ConfigurationService) loadDotEnv(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read .env file %s: %w", path, err)
	}

	envMap, err := godotenv.Unmarshal(string(data))
	if err != nil {
		return false, fmt.Errorf("failed to parse .env file %s: %w", path, err)
	}

	settings := make(map[string]interface{})
	for key, value := range envMap {
		if name, ok := configKeyForEnv(key); ok {
			settings[name] = value
		}
	}
	if len(settings) == 0 {
		return true, nil
	}

	if err := c.v.MergeConfigMap(settings); err != nil {
		return false, fmt.Errorf("failed to merge .env file %s: %w", path, err)
	}
	return true, nil
}

// configKeyForEnv maps CHATHISTORY_LOG_LEVEL to log-level.
func configKeyForEnv(envKey string) (string, bool) {
	prefix := EnvPrefix + "_"
	if !strings.HasPrefix(envKey, prefix) {
		return "", false
	}
	name := strings.ToLower(strings.TrimPrefix(envKey, prefix))
	return strings.ReplaceAll(name, "_", "-"), name != ""
}

func (c *ConfigurationService) defaultConfigDir() string {
	if dir := c.getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appDirName)
}

func (c *ConfigurationService) defaultDataDir(home string) string {
	if dir := c.getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	return filepath.Join(home, ".local", "share")
}

// Config returns the resolved configuration.
func (c *ConfigurationService) Config() (Config, error) {
	if !c.initialized {
		return Config{}, fmt.Errorf("configuration service not initialized")
	}
	return Config{
		Database: c.v.GetString(KeyDatabase),
		Home:     c.v.GetString(KeyHome),
		Theme:    c.v.GetString(KeyTheme),
		LogLevel: c.v.GetString(KeyLogLevel),
		LogFile:  c.v.GetString(KeyLogFile),
		Plain:    c.v.GetBool(KeyPlain),
	}, nil
}

// GetConfigPaths returns the configuration files considered and whether each was loaded.
func (c *ConfigurationService) GetConfigPaths() ConfigPaths {
	return c.paths
}

// GetGlobalConfigurationService returns the configuration service registered for the current command.
func GetGlobalConfigurationService() (*ConfigurationService, error) {
	serviceInterface, err := GetGlobalRegistry().GetService(ConfigurationServiceName)
	if err != nil {
		return nil, fmt.Errorf("configuration service not registered: %w", err)
	}

	configService, ok := serviceInterface.(*ConfigurationService)
	if !ok {
		return nil, fmt.Errorf("service is not a ConfigurationService")
	}

	return configService, nil
}

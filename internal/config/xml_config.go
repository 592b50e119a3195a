// Package config provides XML-based configuration management for air-gapped deployment.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"LadderScan"`

	// Server configuration
	Server ServerConfig `xml:"Server"`

	// Storage configuration
	Storage StorageConfig `xml:"Storage"`

	// Conversion and scanning configuration
	Conversion ConversionConfig `xml:"Conversion"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port               int     `xml:"Port" validate:"min=1,max=65535"`
	BindAddress        string  `xml:"BindAddress" validate:"required"`
	EnableCORS         bool    `xml:"EnableCORS"`
	AllowOrigins       string  `xml:"AllowOrigins"`
	ReadTimeout        int     `xml:"ReadTimeoutSeconds" validate:"min=1"`
	WriteTimeout       int     `xml:"WriteTimeoutSeconds" validate:"min=1"`
	IdleTimeout        int     `xml:"IdleTimeoutSeconds" validate:"min=1"`
	BodyLimit          string  `xml:"BodyLimit" validate:"required"`
	RateLimitPerSecond float64 `xml:"RateLimitPerSecond" validate:"min=0"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory      string `xml:"DataDirectory" validate:"required"`
	UploadsDirectory   string `xml:"UploadsDirectory" validate:"required"`
	ConvertedDirectory string `xml:"ConvertedDirectory" validate:"required"`
	ResultsDirectory   string `xml:"ResultsDirectory" validate:"required"`
	DatabaseFile       string `xml:"DatabaseFile"`
	EnablePersistence  bool   `xml:"EnablePersistence"`
}

// ConversionConfig contains ladder conversion and pattern scanning settings
type ConversionConfig struct {
	Strategy               string `xml:"Strategy" validate:"oneof=trace positional"`
	MaxConcurrentFiles     int    `xml:"MaxConcurrentFiles" validate:"min=1,max=64"`
	SessionTimeoutMinutes  int    `xml:"SessionTimeoutMinutes" validate:"min=1"`
	CleanupIntervalMinutes int    `xml:"CleanupIntervalMinutes" validate:"min=1"`
	AllowedExtensions      string `xml:"AllowedExtensions" validate:"required"`
	PatternsFile           string `xml:"PatternsFile"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel             string `xml:"LogLevel" validate:"oneof=debug info warn error"`
	LogFormat            string `xml:"LogFormat" validate:"oneof=text json"`
	EnableRequestLogging bool   `xml:"EnableRequestLogging"`
	DuckDBThreads        int    `xml:"DuckDBThreads" validate:"min=1"`
	DuckDBMemoryLimit    string `xml:"DuckDBMemoryLimit" validate:"required"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:               8090,
			BindAddress:        "0.0.0.0",
			EnableCORS:         true,
			AllowOrigins:       "*",
			ReadTimeout:        30,
			WriteTimeout:       30,
			IdleTimeout:        120,
			BodyLimit:          "64M",
			RateLimitPerSecond: 20,
		},
		Storage: StorageConfig{
			DataDirectory:      "./data",
			UploadsDirectory:   "./data/uploads",
			ConvertedDirectory: "./data/converted",
			ResultsDirectory:   "./data/analysis_results",
			DatabaseFile:       "./data/ladderscan.duckdb",
			EnablePersistence:  true,
		},
		Conversion: ConversionConfig{
			Strategy:               "trace",
			MaxConcurrentFiles:     4,
			SessionTimeoutMinutes:  30,
			CleanupIntervalMinutes: 5,
			AllowedExtensions:      ".xml,.l5x",
			PatternsFile:           "",
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			LogFormat:            "text",
			EnableRequestLogging: true,
			DuckDBThreads:        2,
			DuckDBMemoryLimit:    "512MB",
		},
	}
}

// LoadConfig loads configuration from XML file
func LoadConfig(configPath string) (*AppConfig, error) {
	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		config.applyEnvironmentOverrides()
		config.resolvePaths(filepath.Dir(configPath))
		return config, config.Validate()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start from defaults so sections missing from the file keep sane values
	config := DefaultConfig()
	if err := xml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- Ladder Logic Scanner Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

var validate = validator.New()

// Validate checks field ranges and enumerations
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	// PORT override
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	// DATA_DIR moves every storage directory under the new root
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
		c.Storage.UploadsDirectory = filepath.Join(dataDir, "uploads")
		c.Storage.ConvertedDirectory = filepath.Join(dataDir, "converted")
		c.Storage.ResultsDirectory = filepath.Join(dataDir, "analysis_results")
		c.Storage.DatabaseFile = filepath.Join(dataDir, "ladderscan.duckdb")
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = strings.ToLower(level)
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	for _, p := range []*string{
		&c.Storage.DataDirectory,
		&c.Storage.UploadsDirectory,
		&c.Storage.ConvertedDirectory,
		&c.Storage.ResultsDirectory,
		&c.Storage.DatabaseFile,
		&c.Conversion.PatternsFile,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetUploadDir returns the absolute uploads directory path
func (c *AppConfig) GetUploadDir() string {
	return c.Storage.UploadsDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// GetAllowedExtensions returns the lower-cased upload extensions
func (c *AppConfig) GetAllowedExtensions() []string {
	var exts []string
	for _, ext := range strings.Split(c.Conversion.AllowedExtensions, ",") {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	return exts
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
		c.Storage.ConvertedDirectory,
		c.Storage.ResultsDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

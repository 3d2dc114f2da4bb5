package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeClaude()
	if err := c.normalizeLibrary(); err != nil {
		return err
	}
	if err := c.normalizeIdentify(); err != nil {
		return err
	}
	if err := c.normalizeLearning(); err != nil {
		return err
	}
	if err := c.normalizeServer(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderOpenRouter
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.VisionModel = strings.TrimSpace(c.LLM.VisionModel)
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	if c.LLM.Referer == "" {
		c.LLM.Referer = defaultLLMReferer
	}
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.MaxRetries < 0 {
		c.LLM.MaxRetries = 0
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeClaude() {
	c.Claude.APIKey = strings.TrimSpace(c.Claude.APIKey)
	if c.Claude.APIKey == "" {
		if value, ok := os.LookupEnv("ANTHROPIC_API_KEY"); ok {
			c.Claude.APIKey = strings.TrimSpace(value)
		}
	}
	c.Claude.Model = strings.TrimSpace(c.Claude.Model)
	if c.Claude.Model == "" {
		c.Claude.Model = defaultClaudeModel
	}
	if c.Claude.MaxTokens <= 0 {
		c.Claude.MaxTokens = defaultClaudeMaxTokens
	}
	if c.Claude.TimeoutSeconds <= 0 {
		c.Claude.TimeoutSeconds = defaultClaudeTimeoutSeconds
	}
}

func (c *Config) normalizeLibrary() error {
	c.Library.Backend = strings.ToLower(strings.TrimSpace(c.Library.Backend))
	if c.Library.Backend == "" {
		c.Library.Backend = LibraryBackendSQLite
	}
	if strings.TrimSpace(c.Library.Path) == "" {
		c.Library.Path = defaultLibraryPath
	}
	var err error
	if c.Library.Path, err = expandPath(c.Library.Path); err != nil {
		return fmt.Errorf("library.path: %w", err)
	}
	c.Library.RedisAddr = strings.TrimSpace(c.Library.RedisAddr)
	if value, ok := os.LookupEnv("REDIS_ADDR"); ok && strings.TrimSpace(value) != "" {
		c.Library.RedisAddr = strings.TrimSpace(value)
	}
	if c.Library.RedisAddr == "" {
		c.Library.RedisAddr = defaultLibraryRedisAddr
	}
	if c.Library.RedisPassword == "" {
		if value, ok := os.LookupEnv("REDIS_PASSWORD"); ok {
			c.Library.RedisPassword = strings.TrimSpace(value)
		}
	}
	if value, ok := os.LookupEnv("REDIS_DB"); ok {
		if db, convErr := strconv.Atoi(strings.TrimSpace(value)); convErr == nil {
			c.Library.RedisDB = db
		}
	}
	if strings.TrimSpace(c.Library.KeyPrefix) == "" {
		c.Library.KeyPrefix = defaultLibraryKeyPrefix
	}
	return nil
}

func (c *Config) normalizeIdentify() error {
	c.Identify.UserAgent = strings.TrimSpace(c.Identify.UserAgent)
	if c.Identify.UserAgent == "" {
		c.Identify.UserAgent = defaultUserAgent
	}
	if c.Identify.MaxPageBytes <= 0 {
		c.Identify.MaxPageBytes = defaultMaxPageBytes
	}
	if c.Identify.FetchRetries < 0 {
		c.Identify.FetchRetries = 0
	}
	if strings.TrimSpace(c.Identify.BrandCatalogPath) != "" {
		var err error
		if c.Identify.BrandCatalogPath, err = expandPath(c.Identify.BrandCatalogPath); err != nil {
			return fmt.Errorf("identify.brand_catalog_path: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeLearning() error {
	if strings.TrimSpace(c.Learning.Path) == "" {
		c.Learning.Path = defaultLearningPath
	}
	var err error
	if c.Learning.Path, err = expandPath(c.Learning.Path); err != nil {
		return fmt.Errorf("learning.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeServer() error {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultServerBind
	}
	c.Server.Mode = strings.ToLower(strings.TrimSpace(c.Server.Mode))
	if c.Server.Mode == "" {
		c.Server.Mode = defaultServerMode
	}
	c.Server.StatsSchedule = strings.TrimSpace(c.Server.StatsSchedule)
	origins := make([]string, 0, len(c.Server.AllowedOrigins))
	seen := make(map[string]struct{}, len(c.Server.AllowedOrigins))
	for _, origin := range c.Server.AllowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" {
			continue
		}
		if _, ok := seen[origin]; ok {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	c.Server.AllowedOrigins = origins
	if strings.TrimSpace(c.Server.LockPath) == "" {
		c.Server.LockPath = defaultServerLockPath
	}
	var err error
	if c.Server.LockPath, err = expandPath(c.Server.LockPath); err != nil {
		return fmt.Errorf("server.lock_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

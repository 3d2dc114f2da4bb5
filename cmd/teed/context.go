package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/brettericmartin/teed-sub011/internal/config"
	"github.com/brettericmartin/teed-sub011/internal/learning"
	"github.com/brettericmartin/teed-sub011/internal/library"
	"github.com/brettericmartin/teed-sub011/internal/logging"
	"github.com/brettericmartin/teed-sub011/internal/pipeline"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configFile bool
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configFile = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// withPipeline opens the pipeline for the duration of fn.
func (c *commandContext) withPipeline(ctx context.Context, fn func(*pipeline.Pipeline) error) (err error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}
	p, err := pipeline.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := p.Close(); err == nil {
			err = closeErr
		}
	}()
	return fn(p)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

// wantJSON reports whether output should be JSON: requested explicitly, or
// stdout is not a terminal.
func wantJSON(cmd *cobra.Command, explicit bool) bool {
	return explicit || !isTerminal(cmd.OutOrStdout())
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

// withCorrections opens the correction store for the duration of fn.
func (c *commandContext) withCorrections(cmd *cobra.Command, fn func(*learning.Store) error) (err error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	if !cfg.Learning.Enabled {
		return errors.New("learning is disabled in the configuration")
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}
	store, err := learning.OpenStore(cmd.Context(), cfg.Learning.Path, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); err == nil {
			err = closeErr
		}
	}()
	return fn(store)
}

// withLibrary opens the library store for the duration of fn.
func (c *commandContext) withLibrary(cmd *cobra.Command, fn func(library.Store) error) (err error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}
	store, err := library.Open(cmd.Context(), cfg.Library, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); err == nil {
			err = closeErr
		}
	}()
	return fn(store)
}

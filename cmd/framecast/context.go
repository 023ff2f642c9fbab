package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"framecast/internal/config"
)

type commandContext struct {
	configFlag *string
	remoteFlag *string
	tokenFlag  *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, remoteFlag, tokenFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		remoteFlag: remoteFlag,
		tokenFlag:  tokenFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) remoteURL() string {
	if c.remoteFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.remoteFlag)
}

func (c *commandContext) remote() bool {
	return c.remoteURL() != ""
}

func (c *commandContext) token() string {
	if c.tokenFlag != nil && strings.TrimSpace(*c.tokenFlag) != "" {
		return strings.TrimSpace(*c.tokenFlag)
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.Paths.APIToken
	}
	return ""
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// withInvoker runs fn against the daemon named by --remote, or against an
// in-process runtime that is closed when fn returns.
func (c *commandContext) withInvoker(cmd *cobra.Command, fn func(invoker) error) error {
	if c.remote() {
		inv, err := newRemoteInvoker(c.remoteURL(), c.token())
		if err != nil {
			return err
		}
		defer inv.Close()
		return fn(inv)
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	inv, err := openLocalInvoker(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer inv.Close()
	return fn(inv)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

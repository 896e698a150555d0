package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"webgrab/pkg/config"
	"webgrab/pkg/export"
	"webgrab/pkg/extract"
	"webgrab/pkg/fetch"
)

// app holds the wired-up components shared by the commands.
type app struct {
	cfg       *config.Settings
	log       *logrus.Logger
	fetcher   *fetch.Fetcher
	robots    *fetch.RobotsPolicy // nil when respect_robots_txt is false
	limiter   *fetch.RateLimiter
	extractor *extract.Extractor
}

// buildApp loads configuration, configures logging, and constructs the
// HTTP fetch stack used by every command.
func buildApp(cmd *cobra.Command) (*app, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})

	levelStr, _ := cmd.Flags().GetString("loglevel")
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using 'info'", levelStr)
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	warnings, err := cfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var proxies *fetch.ProxyPool
	if cfg.UseProxies {
		proxies, err = fetch.NewProxyPool(cfg.Proxies, log)
		if err != nil {
			return nil, fmt.Errorf("building proxy pool: %w", err)
		}
	}

	client := fetch.NewClient(cfg.HTTPClientSettings, cfg.Timeout, proxies, log)
	agents := fetch.NewUserAgentPicker(cfg.UserAgent, cfg.UserAgentPool, cfg.RotateUserAgents)
	fetcher := fetch.NewFetcher(client, cfg, agents, proxies, log)
	limiter := fetch.NewRateLimiter(cfg.CrawlDelay, log)

	var robots *fetch.RobotsPolicy
	if cfg.RespectRobotsTxt {
		robots = fetch.NewRobotsPolicy(fetcher, limiter, cfg, log.WithField("component", "robots"))
	} else {
		log.Warn("respect_robots_txt is false: robots.txt will be ignored")
	}

	return &app{
		cfg:       cfg,
		log:       log,
		fetcher:   fetcher,
		robots:    robots,
		limiter:   limiter,
		extractor: extract.NewExtractor(log.WithField("component", "extract")),
	}, nil
}

// exportFormats parses the configured export format names.
func (a *app) exportFormats() ([]export.Format, error) {
	formats := make([]export.Format, 0, len(a.cfg.ExportFormats))
	for _, f := range a.cfg.ExportFormats {
		format, err := export.ParseFormat(f)
		if err != nil {
			return nil, err
		}
		formats = append(formats, format)
	}
	return formats, nil
}

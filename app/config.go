package app

import (
	"fmt"
	"strings"

	coreconfig "github.com/m3rciful/newsbot/core/config"
	coredatabase "github.com/m3rciful/newsbot/core/database"
	"github.com/m3rciful/newsbot/news/events"
	"github.com/m3rciful/newsbot/news/render"
	"github.com/m3rciful/newsbot/news/source"
)

// RenderConfig selects the document format sent to users.
type RenderConfig struct {
	Format string `yaml:"format" envconfig:"RENDER_FORMAT"`
}

// Config is the full bot configuration: the reusable core plus news settings.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	News     source.Config       `yaml:"news"`
	Render   RenderConfig        `yaml:"render"`
	Events   events.Config       `yaml:"events"`
}

// CoreConfig exposes the embedded core configuration to the runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// LoadConfig reads path, overlays the environment and validates the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func normalize(cfg *Config) error {
	cfg.Database.Driver = cfg.Database.DriverName()
	switch cfg.Database.Driver {
	case coredatabase.DriverPostgres, coredatabase.DriverMemory:
	case coredatabase.DriverSQLite:
		if strings.TrimSpace(cfg.Database.Path) == "" {
			return fmt.Errorf("database.path is required when database.driver is %q", coredatabase.DriverSQLite)
		}
	default:
		return fmt.Errorf("invalid database.driver %q; allowed: postgres, sqlite3, memory", cfg.Database.Driver)
	}

	format := strings.ToLower(strings.TrimSpace(cfg.Render.Format))
	if format == "" {
		format = render.FormatPDF
	}
	if format != render.FormatPDF && format != render.FormatXLSX {
		return fmt.Errorf("invalid render.format %q; allowed: pdf, xlsx", cfg.Render.Format)
	}
	cfg.Render.Format = format

	if cfg.News.Timeout < 0 {
		return fmt.Errorf("news.timeout must be >= 0")
	}
	return nil
}

package main

import (
	"bufio"
	"context"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/Ido77/tarot-capital/internal/fetcher"
	"github.com/Ido77/tarot-capital/internal/pipeline"
	"github.com/Ido77/tarot-capital/internal/store"
	"github.com/Ido77/tarot-capital/pkg/ninjas"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.Path
		if dsn == "" {
			dsn = "tarot.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initRunner() (*pipeline.Runner, error) {
	if cfg.Ninjas.Key == "" {
		return nil, eris.New("API Ninjas key is required (TAROT_NINJAS_KEY)")
	}

	market := ninjas.NewClient(cfg.Ninjas.Key, ninjas.WithBaseURL(cfg.Ninjas.BaseURL))
	fetch := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent: cfg.EDGAR.UserAgent,
	})
	return pipeline.New(cfg, market, fetch), nil
}

// watchlist is the YAML ticker file layout: a name plus a ticker list.
type watchlist struct {
	Name    string   `yaml:"name"`
	Tickers []string `yaml:"tickers"`
}

// loadTickers reads a ticker list from a file. YAML watchlists (.yaml/.yml)
// carry a tickers key; anything else is treated as plain text, one ticker
// per line, with #-comments.
func loadTickers(path string) ([]string, error) {
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrap(err, "read watchlist")
		}
		var wl watchlist
		if err := yaml.Unmarshal(data, &wl); err != nil {
			return nil, eris.Wrap(err, "parse watchlist")
		}
		return wl.Tickers, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open ticker file")
	}
	defer f.Close()

	var tickers []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tickers = append(tickers, line)
	}
	return tickers, eris.Wrap(scanner.Err(), "read ticker file")
}

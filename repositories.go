package main

import (
	"fmt"
	"net/url"

	"github.com/himanshub16/upnext-jukebox/acquire"
	"github.com/rs/zerolog"
)

// AssetRepository is an asset index backed by a database.
type AssetRepository interface {
	acquire.Index
	close()
}

type memoryRepository struct {
	*acquire.MemoryIndex
}

func (memoryRepository) close() {}

// openAssetRepository picks a backend from the DB_URL scheme.
func openAssetRepository(dbURL string, log zerolog.Logger) (AssetRepository, error) {
	scheme, err := dbScheme(dbURL)
	if err != nil {
		return nil, err
	}
	log.Info().Str("scheme", scheme).Msg("opening asset index")

	switch scheme {
	case "memory":
		return memoryRepository{acquire.NewMemoryIndex()}, nil
	case "sqlite":
		u, _ := url.Parse(dbURL)
		return NewSQLiteRepository(u.Host + u.Path)
	case "postgres":
		return NewPostgresRepository(dbURL)
	}
	return nil, fmt.Errorf("no repository for scheme %q", scheme)
}

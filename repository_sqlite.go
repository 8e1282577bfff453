package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/himanshub16/upnext-jukebox/acquire"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db *sqlx.DB
}

var _ AssetRepository = (*SQLiteRepository)(nil)

func (r *SQLiteRepository) FindAsset(ctx context.Context, id string) (*acquire.Record, error) {
	query := `
	  select id, path, title, artist, duration, thumbnail, created_at
	  from assets where id = ?;`

	rec := &acquire.Record{}
	err := r.db.GetContext(ctx, rec, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find asset %s: %w", id, err)
	}
	return rec, nil
}

func (r *SQLiteRepository) SaveAsset(ctx context.Context, rec acquire.Record) error {
	query := `
	  insert into assets (id, path, title, artist, duration, thumbnail, created_at)
	  values (:id, :path, :title, :artist, :duration, :thumbnail, :created_at)
	  on conflict(id) do update
	     set path = excluded.path,
	         title = excluded.title,
	         artist = excluded.artist,
	         duration = excluded.duration,
	         thumbnail = excluded.thumbnail;`

	if _, err := r.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("save asset %s: %w", rec.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) close() {
	r.db.Close()
}

func NewSQLiteRepository(filePath string) (*SQLiteRepository, error) {
	db, err := sqlx.Open("sqlite3", filePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", filePath, err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	// make sure the required tables exist
	createAssetsTableQuery := `
	  create table if not exists assets (
	    id         text primary key,
	    path       text not null,
	    title      text not null default '',
	    artist     text not null default '',
	    duration   integer not null default 0,
	    thumbnail  text not null default '',
	    created_at integer not null
	  );`
	if _, err := db.Exec(createAssetsTableQuery); err != nil {
		db.Close()
		return nil, fmt.Errorf("create assets table: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

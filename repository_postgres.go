package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/himanshub16/upnext-jukebox/acquire"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type PostgresRepository struct {
	db *sqlx.DB
}

var _ AssetRepository = (*PostgresRepository)(nil)

func (r *PostgresRepository) FindAsset(ctx context.Context, id string) (*acquire.Record, error) {
	query := `
	  select id, path, title, artist, duration, thumbnail, created_at
	  from assets where id = $1;`

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

func (r *PostgresRepository) SaveAsset(ctx context.Context, rec acquire.Record) error {
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

func (r *PostgresRepository) close() {
	r.db.Close()
}

func NewPostgresRepository(dbURL string) (*PostgresRepository, error) {
	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	createAssetsTableQuery := `
	  create table if not exists assets (
	    id         varchar(64) primary key,
	    path       text not null,
	    title      text not null default '',
	    artist     text not null default '',
	    duration   bigint not null default 0,
	    thumbnail  text not null default '',
	    created_at bigint not null
	  );`
	if _, err := db.Exec(createAssetsTableQuery); err != nil {
		db.Close()
		return nil, fmt.Errorf("create assets table: %w", err)
	}
	return &PostgresRepository{db: db}, nil
}

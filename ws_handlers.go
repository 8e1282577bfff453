package main

// this file wires websocket events to the jukebox service

import (
	"context"

	"github.com/himanshub16/upnext-jukebox/gateway"
	"github.com/himanshub16/upnext-jukebox/jukebox"
	"github.com/rs/zerolog"
)

func registerJukeboxEvents(hub *gateway.Hub, service jukebox.Service, log zerolog.Logger) {
	log = log.With().Str("component", "events").Logger()

	hub.OnConnect(func(c *gateway.Conn) {
		service.WithState(func(state jukebox.State) {
			hub.NotifyOne(c.ID, jukebox.EventState, state)
		})
	})

	hub.OnAsync(jukebox.EventSearch, func(ctx context.Context, req gateway.Request) (gateway.Map, error) {
		body := struct {
			Query string `json:"query"`
			Limit int    `json:"limit"`
		}{}
		if err := req.Bind(&body); err != nil {
			return nil, badPayload()
		}
		results, err := service.Search(ctx, req.Conn.Who, body.Query, body.Limit)
		if err != nil {
			return nil, err
		}
		return gateway.Map{"results": results}, nil
	})

	hub.OnAsync(jukebox.EventAddSong, func(ctx context.Context, req gateway.Request) (gateway.Map, error) {
		body := struct {
			URL     string `json:"url"`
			ID      string `json:"id"`
			AddedBy string `json:"addedBy"`
		}{}
		if err := req.Bind(&body); err != nil {
			return nil, badPayload()
		}
		input := body.URL
		if input == "" {
			input = body.ID
		}
		message, err := service.Submit(ctx, req.Conn.Who, input, body.AddedBy)
		if err != nil {
			return nil, err
		}
		return gateway.Map{"message": message}, nil
	})

	hub.On(jukebox.EventGetState, func(_ context.Context, req gateway.Request) (gateway.Map, error) {
		var state jukebox.State
		service.WithState(func(s jukebox.State) {
			state = s
			hub.NotifyOne(req.Conn.ID, jukebox.EventNowPlaying, s.NowPlaying)
			hub.NotifyOne(req.Conn.ID, jukebox.EventQueueUpdate, s.Queue)
			hub.NotifyOne(req.Conn.ID, jukebox.EventProcessing, s.IsProcessing)
			hub.NotifyOne(req.Conn.ID, jukebox.EventVolumeChange, jukebox.VolumePayload{Volume: s.Volume})
		})
		return gateway.Map{"state": state}, nil
	})

	hub.On(jukebox.EventSync, func(_ context.Context, req gateway.Request) (gateway.Map, error) {
		report := service.Sync()
		hub.NotifyOne(req.Conn.ID, jukebox.EventSync, report)
		return gateway.Map{"sync": report}, nil
	})

	hub.On(jukebox.EventSetVolume, func(_ context.Context, req gateway.Request) (gateway.Map, error) {
		body := struct {
			Volume *float64 `json:"volume"`
		}{}
		if err := req.Bind(&body); err != nil || body.Volume == nil {
			return nil, jukebox.WithReason(jukebox.ErrInvalidInput, "Volume must be a number between 0 and 1.")
		}
		if err := service.SetVolume(*body.Volume); err != nil {
			return nil, err
		}
		return gateway.Map{"volume": service.Volume()}, nil
	})

	hub.On(jukebox.EventGetVolume, func(_ context.Context, req gateway.Request) (gateway.Map, error) {
		volume := service.Volume()
		hub.NotifyOne(req.Conn.ID, jukebox.EventVolumeChange, jukebox.VolumePayload{Volume: volume})
		return gateway.Map{"volume": volume}, nil
	})

	hub.On(jukebox.EventSkip, func(_ context.Context, req gateway.Request) (gateway.Map, error) {
		skipped, err := service.Skip(req.Conn.Who)
		if err != nil {
			return nil, err
		}
		return gateway.Map{"skipped": skipped.Summary()}, nil
	})

	// the server timer decides when a song ends
	hub.On(jukebox.EventSongEnded, func(_ context.Context, req gateway.Request) (gateway.Map, error) {
		log.Debug().Str("conn", req.Conn.ID).Msg("client reported song end")
		return gateway.Map{}, nil
	})
}

func badPayload() error {
	return jukebox.WithReason(jukebox.ErrInvalidInput, "Could not read that request.")
}

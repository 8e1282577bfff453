package main

// this file contains implementation of HTTP handlers - REST API

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/himanshub16/upnext-jukebox/gateway"
	"github.com/himanshub16/upnext-jukebox/jukebox"
	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"
	"github.com/rs/zerolog"
)

type RouterConfig struct {
	Service      jukebox.Service
	Hub          *gateway.Hub
	JWTSecret    []byte
	TokenTTL     time.Duration
	MusicDir     string
	PublicPrefix string
	Logger       zerolog.Logger
}

type handlers struct {
	service   jukebox.Service
	hub       *gateway.Hub
	jwtSecret []byte
	tokenTTL  time.Duration
	log       zerolog.Logger
}

func NewHTTPRouter(cfg RouterConfig) *echo.Echo {
	h := &handlers{
		service:   cfg.Service,
		hub:       cfg.Hub,
		jwtSecret: cfg.JWTSecret,
		tokenTTL:  cfg.TokenTTL,
		log:       cfg.Logger.With().Str("component", "http").Logger(),
	}

	r := echo.New()
	r.HideBanner = true
	r.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "method=${method}, uri=${uri}, status=${status}\n",
	}))
	r.Use(middleware.Recover())

	if cfg.MusicDir != "" {
		r.Static(cfg.PublicPrefix, cfg.MusicDir)
	}

	router := r.Group("/api")
	router.GET("/health", h.healthCheckHandler)
	router.POST("/login", h.loginHandler)

	jukeboxGroup := router.Group("/jukebox")
	jukeboxGroup.Use(middleware.JWT(h.jwtSecret))
	{
		jukeboxGroup.GET("/state", h.stateHandler)
		jukeboxGroup.GET("/sync", h.syncHandler)
		jukeboxGroup.GET("/search", h.searchHandler)
		jukeboxGroup.POST("/songs", h.addSongHandler)
		jukeboxGroup.GET("/volume", h.getVolumeHandler)
		jukeboxGroup.POST("/volume", h.setVolumeHandler)
		jukeboxGroup.POST("/skip", h.skipHandler)
	}

	// browsers cannot set headers on a websocket handshake
	r.GET("/ws", h.websocketHandler, middleware.JWTWithConfig(middleware.JWTConfig{
		SigningKey:  h.jwtSecret,
		TokenLookup: "query:token",
	}))

	return r
}

func (h *handlers) healthCheckHandler(c echo.Context) error {
	return c.String(http.StatusOK, "I am up and running!")
}

func (h *handlers) loginHandler(c echo.Context) error {
	u := User{}
	if err := c.Bind(&u); err != nil {
		return h.fail(c, jukebox.WithReason(jukebox.ErrInvalidInput, "Missing form data."))
	}
	if u.UserID == "" {
		u.UserID = uuid.NewString()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, u.claims(h.tokenTTL))
	t, err := token.SignedString(h.jwtSecret)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"token": t,
		"user":  u,
	})
}

func (h *handlers) stateHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.State())
}

func (h *handlers) syncHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.Sync())
}

func (h *handlers) searchHandler(c echo.Context) error {
	who, err := requesterFromContext(c)
	if err != nil {
		return err
	}
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return h.fail(c, jukebox.WithReason(jukebox.ErrInvalidInput, "limit must be a number."))
		}
	}

	results, err := h.service.Search(c.Request().Context(), who, c.QueryParam("q"), limit)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"results": results,
	})
}

func (h *handlers) addSongHandler(c echo.Context) error {
	form := struct {
		URL     string `form:"url"`
		ID      string `form:"id"`
		AddedBy string `form:"added_by"`
	}{}
	if err := c.Bind(&form); err != nil {
		return h.fail(c, jukebox.WithReason(jukebox.ErrInvalidInput, "Missing form data."))
	}
	who, err := requesterFromContext(c)
	if err != nil {
		return err
	}

	input := form.URL
	if input == "" {
		input = form.ID
	}
	message, err := h.service.Submit(c.Request().Context(), who, input, form.AddedBy)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": message,
	})
}

func (h *handlers) getVolumeHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, jukebox.VolumePayload{Volume: h.service.Volume()})
}

func (h *handlers) setVolumeHandler(c echo.Context) error {
	volume, err := strconv.ParseFloat(c.FormValue("volume"), 64)
	if err != nil {
		return h.fail(c, jukebox.WithReason(jukebox.ErrInvalidInput, "Volume must be a number between 0 and 1."))
	}
	if err := h.service.SetVolume(volume); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"volume":  h.service.Volume(),
	})
}

func (h *handlers) skipHandler(c echo.Context) error {
	who, err := requesterFromContext(c)
	if err != nil {
		return err
	}
	skipped, err := h.service.Skip(who)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"skipped": skipped.Summary(),
	})
}

func (h *handlers) websocketHandler(c echo.Context) error {
	who, err := requesterFromContext(c)
	if err != nil {
		return err
	}
	// the upgrader has already answered the client when this fails
	if err := h.hub.Serve(c.Response(), c.Request(), who); err != nil {
		h.log.Debug().Err(err).Str("user_id", who.ID).Msg("websocket closed")
	}
	return nil
}

// fail writes the uniform failure body.
func (h *handlers) fail(c echo.Context, err error) error {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("uri", c.Request().RequestURI).Msg("request failed")
	}
	return c.JSON(status, echo.Map{
		"success": false,
		"error":   jukebox.Reason(err),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, jukebox.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, jukebox.ErrInvalidInput), errors.Is(err, jukebox.ErrInvalidDuration):
		return http.StatusBadRequest
	case errors.Is(err, jukebox.ErrResolutionFailed), errors.Is(err, jukebox.ErrAcquisitionFailed):
		return http.StatusBadGateway
	case errors.Is(err, jukebox.ErrNothingPlaying):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func requesterFromContext(c echo.Context) (jukebox.Requester, error) {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return jukebox.Requester{}, echo.ErrUnauthorized
	}
	u, err := userFromToken(token)
	if err != nil {
		return jukebox.Requester{}, echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	return u.Requester(), nil
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"slices"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ghostchat-server/internal/config"
	"github.com/vovakirdan/ghostchat-server/internal/core"
	"github.com/vovakirdan/ghostchat-server/internal/proto"
)

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub             core.Hub
	log             *zerolog.Logger
	acceptOptions   *websocket.AcceptOptions
	maxMessageBytes int64
	rateLimit       int
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub core.Hub, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	opts := &websocket.AcceptOptions{}
	if len(cfg.AllowedOrigins) == 0 || slices.Contains(cfg.AllowedOrigins, "*") {
		opts.InsecureSkipVerify = true
	} else {
		opts.OriginPatterns = cfg.AllowedOrigins
	}
	l := logger.With().Str("module", "ws").Logger()
	return &WSHandler{
		hub:             hub,
		log:             &l,
		acceptOptions:   opts,
		maxMessageBytes: cfg.MaxMessageBytes,
		rateLimit:       cfg.RateLimit,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, h.acceptOptions)
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.maxMessageBytes > 0 {
		conn.SetReadLimit(h.maxMessageBytes)
	}

	client := core.NewClient(uuid.NewString())
	if !h.hub.RegisterClient(client) {
		h.log.Warn().Str("client_id", client.ID).Msg("hub stopped, refusing connection")
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.hub.UnregisterClient(client)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newRateLimiter(h.rateLimit)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				h.log.Debug().Str("client_id", client.ID).Msg("ws closed by peer")
			default:
				h.log.Warn().Err(err).Str("client_id", client.ID).Msg("read ws inbound")
			}
			return err
		}

		if !limiter.allow() {
			h.log.Warn().Str("client_id", client.ID).Msg("inbound frame rate limited")
			if err := h.writeError(ctx, conn, core.NewCoreError(core.ErrCodeRateLimited, "too many messages")); err != nil {
				return err
			}
			continue
		}

		if typ != websocket.MessageText {
			if err := h.reject(ctx, conn, client, core.NewCoreError(core.ErrCodeBadRequest, "text frames only")); err != nil {
				return err
			}
			continue
		}

		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			if err := h.reject(ctx, conn, client, core.NewCoreError(core.ErrCodeBadRequest, "invalid json")); err != nil {
				return err
			}
			continue
		}

		cmd, cerr := inboundToCommand(inbound)
		if cerr != nil {
			if err := h.reject(ctx, conn, client, cerr); err != nil {
				return err
			}
			continue
		}

		select {
		case client.Commands <- cmd:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// reject logs a protocol violation and tells the sender; the connection stays open.
func (h *WSHandler) reject(ctx context.Context, conn *websocket.Conn, client *core.Client, cerr *core.CoreError) error {
	h.log.Warn().Str("client_id", client.ID).Str("code", cerr.Code).Msg(cerr.Message)
	return h.writeError(ctx, conn, cerr)
}

func (h *WSHandler) writeError(ctx context.Context, conn *websocket.Conn, cerr *core.CoreError) error {
	return wsjson.Write(ctx, conn, errorOutbound(cerr))
}

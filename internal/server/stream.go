package server

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	complaintdomain "github.com/smallbiznis/grievance-portal/internal/complaint/domain"
	"github.com/smallbiznis/grievance-portal/internal/complaint/guard"
	"github.com/smallbiznis/grievance-portal/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	streamMaxAge     = 15 * time.Minute
)

// statusUpdate is pushed whenever the complaint's status changes.
type statusUpdate struct {
	ID              int64                  `json:"id"`
	Status          complaintdomain.Status `json:"status"`
	AIResponse      *string                `json:"aiResponse,omitempty"`
	ComplexityScore *int                   `json:"complexityScore,omitempty"`
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
}

// checkOrigin accepts same-host requests and the configured frontend.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	if public, err := url.Parse(s.cfg.PublicBaseURL); err == nil && public.Host != "" {
		return strings.EqualFold(u.Host, public.Host)
	}
	return false
}

// StreamComplaint pushes status updates over a websocket until the
// complaint is resolved or the client goes away.
func (s *Server) StreamComplaint(c *gin.Context) {
	id, err := parseComplaintID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	current, err := s.complaintSvc.Get(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	conn, err := s.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		return
	}
	defer conn.Close()

	log := logger.FromContext(ctx).With(zap.Int64("complaint_id", id))

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(cmp *complaintdomain.Complaint) error {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		return conn.WriteJSON(statusUpdate{
			ID:              cmp.ID,
			Status:          cmp.Status,
			AIResponse:      cmp.AIResponse,
			ComplexityScore: cmp.ComplexityScore,
		})
	}

	if err := send(current); err != nil {
		return
	}

	poll := time.NewTicker(s.streamInterval)
	defer poll.Stop()
	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()
	deadline := time.NewTimer(streamMaxAge)
	defer deadline.Stop()

	for !guard.IsTerminal(current.Status) {
		select {
		case <-closed:
			return
		case <-deadline.C:
			log.Debug("complaint stream reached max age")
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-poll.C:
			next, err := s.complaintSvc.Get(ctx, id)
			if err != nil {
				log.Warn("complaint stream poll failed", zap.Error(err))
				continue
			}
			if next.Status == current.Status {
				continue
			}
			current = next
			if err := send(current); err != nil {
				return
			}
		}
	}

	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "resolved"))
}

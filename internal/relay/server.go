// Package relay hosts the local helper server for the chat client: the
// agent file upload endpoint that stages files for runtime import, a
// WebSocket feed mirroring conversation state, and a health check.
package relay

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/gorilla/websocket"

	"github.com/agentchat/agentchat/internal/service"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Server is the upload relay and state mirror.
type Server struct {
	echo      *echo.Echo
	hub       *Hub
	uploadDir string
	upgrader  websocket.Upgrader
}

// NewServer creates the relay server. Uploaded files are staged under
// uploadDir for the runtime to import by path.
func NewServer(uploadDir string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:      e,
		hub:       NewHub(),
		uploadDir: uploadDir,
		upgrader: websocket.Upgrader{
			// Local helper server, same trust domain as the client.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	e.POST("/api/upload", s.handleUpload)
	e.GET("/ws", s.handleWebSocket)
	e.GET("/health", s.handleHealth)

	go s.hub.Run()
	return s
}

// StateChanged implements service.Notifier by mirroring every snapshot to
// the WebSocket subscribers.
func (s *Server) StateChanged(snap service.Snapshot) {
	if err := s.hub.BroadcastJSON(snap); err != nil {
		s.echo.Logger.Errorf("failed to broadcast state: %v", err)
	}
}

// Start runs the server on the given port, blocking until shutdown.
func (s *Server) Start(port int) error {
	return s.echo.Start(fmt.Sprintf(":%d", port))
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":      "healthy",
		"subscribers": s.hub.ConnectionCount(),
	})
}

// handleUpload stages an agent YAML file so the runtime can import it by
// path. Only .yaml and .yml files are accepted.
func (s *Server) handleUpload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "no file provided",
		})
	}

	name := fileHeader.Filename
	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".yaml" && ext != ".yml" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "only YAML files (.yaml, .yml) are supported",
		})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to read uploaded file",
		})
	}
	defer src.Close()

	// Timestamp prefix keeps concurrent uploads of the same file apart.
	stagedName := fmt.Sprintf("%d_%s", time.Now().UnixMilli(), filepath.Base(name))
	stagedPath := filepath.Join(s.uploadDir, stagedName)

	dst, err := os.Create(stagedPath)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to stage file",
		})
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(stagedPath)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to write file",
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success":  true,
		"filePath": stagedPath,
		"fileName": name,
	})
}

func (s *Server) handleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade websocket: %w", err)
	}

	conn := s.hub.NewConnection(ws)
	s.hub.Register(conn)

	go s.writePump(conn)
	go s.readPump(conn)
	return nil
}

func (s *Server) writePump(conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case data, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames; the feed is one-way. Its job is to
// notice the peer going away and unregister.
func (s *Server) readPump(conn *Connection) {
	defer s.hub.Unregister(conn)
	for {
		if _, _, err := conn.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Handler exposes the underlying HTTP handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

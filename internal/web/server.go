// Package web serves a minimal local chat page over WebSocket, as a
// fallback transport when Telegram is unreachable.
package web

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/adavila/ada/internal/agent"
	"github.com/adavila/ada/internal/llm"
	"github.com/adavila/ada/internal/tools"
)

// Server hosts the chat page and its WebSocket endpoint. Access is
// guarded by a single bearer token checked against a bcrypt hash, so
// the config file never holds the cleartext.
type Server struct {
	loop      *agent.Loop
	tokenHash string
	logger    *slog.Logger
	upgrader  websocket.Upgrader
}

// NewServer creates the web transport.
func NewServer(loop *agent.Loop, tokenHash string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		loop:      loop,
		tokenHash: tokenHash,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// Handler returns the route mux: the chat page at / and the socket at
// /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/ws", s.handleSocket)
	return mux
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("web transport started", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

// authorized checks the presented token against the stored bcrypt
// hash. An empty hash disables the transport entirely.
func (s *Server) authorized(token string) bool {
	if s.tokenHash == "" || token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(s.tokenHash), []byte(token)) == nil
}

// outbound is the JSON frame pushed to the browser.
type outbound struct {
	Type    string `json:"type"` // text, image, typing
	Text    string `json:"text,omitempty"`
	Caption string `json:"caption,omitempty"`
	MIME    string `json:"mime,omitempty"`
	Data    string `json:"data,omitempty"` // base64 image payload
}

type inbound struct {
	Text string `json:"text"`
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r.URL.Query().Get("token")) {
		s.logger.Warn("web socket rejected", "remote", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	session := r.URL.Query().Get("session")
	if session == "" {
		session = "main"
	}
	conversationID := "web:" + session

	messenger := &socketMessenger{conn: conn}
	s.logger.Info("web session opened", "conversation", conversationID, "remote", r.RemoteAddr)

	for {
		var in inbound
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("web session error", "error", err)
			}
			return
		}
		if in.Text == "" {
			continue
		}

		ctx := tools.WithMessenger(r.Context(), messenger)
		reply := s.loop.Respond(ctx, conversationID, llm.UserText(in.Text))
		if err := messenger.SendText(ctx, conversationID, reply); err != nil {
			s.logger.Warn("web send failed", "error", err)
			return
		}
	}
}

// socketMessenger fans tool and reply output back down one WebSocket.
// Gorilla connections allow a single concurrent writer, hence the
// mutex.
type socketMessenger struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (m *socketMessenger) send(frame outbound) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn.WriteJSON(frame)
}

func (m *socketMessenger) SendText(ctx context.Context, conversationID, text string) error {
	return m.send(outbound{Type: "text", Text: text})
}

func (m *socketMessenger) SendImage(ctx context.Context, conversationID string, img tools.Image, caption string) error {
	return m.send(outbound{
		Type:    "image",
		Caption: caption,
		MIME:    img.MIME,
		Data:    base64.StdEncoding.EncodeToString(img.Data),
	})
}

func (m *socketMessenger) SendTyping(ctx context.Context, conversationID string) error {
	return m.send(outbound{Type: "typing"})
}

// HashToken produces the bcrypt hash stored in the config file for the
// web token. Exposed for the init command.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// LocalURL builds the address shown to the user at startup.
func LocalURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(host, port))
}

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http/httptest"
	"polyglot-chat/domain"
	"polyglot-chat/infrastructure/health"
	"polyglot-chat/infrastructure/websocket"
	"polyglot-chat/observability"
	"polyglot-chat/runtime"
	"polyglot-chat/runtime/workers"
	"polyglot-chat/translation"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	gorilla "github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const readTimeout = 3 * time.Second

// Frame is the union of every frame the relay writes.
type Frame struct {
	Type           string `json:"type"`
	Msg            string `json:"msg"`
	From           string `json:"from"`
	Text           string `json:"text"`
	FromLang       string `json:"from_lang"`
	TranslatedText string `json:"translated_text"`
	ToLang         string `json:"to_lang"`
}

type BaseRelaySuite struct {
	suite.Suite
	Config    Config
	InProcess bool
	stop      func()
}

// SetupSuite loads the environment configuration and, without RELAY_URL,
// boots a relay backed by the offline phrasebook.
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.RelayURL != "" {
		return
	}
	s.InProcess = true
	s.startRelay()
}

func (s *BaseRelaySuite) TearDownSuite() {
	if s.stop != nil {
		s.stop()
	}
}

func (s *BaseRelaySuite) startRelay() {
	log := logs.GetLoggerFromLevel(slog.LevelWarn)
	monitoring := observability.NewMonitoringManager(log)
	cache, err := translation.OpenBadgerCache(time.Minute)
	s.Require().NoError(err)
	gateway := translation.NewGateway(log, translation.NewPhrasebook(), cache, monitoring, time.Second)

	orchestrator, err := runtime.NewOrchestrator(log, workers.NewSupervisor(log, workers.DefaultRestartInterval),
		runtime.NewRegistry(), gateway, nil, monitoring, nil, "", time.Second,
		runtime.Options{NumWorkers: 2, BufferSize: 32, ModerationEnabled: true, CharReplacement: '*'})
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = orchestrator.Start(ctx) }()

	wsServer := websocket.NewServer(ctx, log, orchestrator, monitoring, websocket.DefaultConfig())
	httpServer := httptest.NewServer(wsServer.Router())
	s.Config.RelayURL = "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws"

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	healthServer := health.NewServer(log)
	healthServer.SetServing(true)
	go func() { _ = healthServer.Serve(listener) }()
	s.Config.HealthAddr = listener.Addr().String()

	s.stop = func() {
		healthServer.Stop()
		wsServer.Shutdown()
		httpServer.Close()
		orchestrator.Stop()
		cancel()
		_ = cache.Close()
	}
}

// Participant is one websocket client in the room.
type Participant struct {
	s    *BaseRelaySuite
	t    *testing.T
	name string
	conn *gorilla.Conn
}

// Join prints a colorized header, dials the relay and sends the join frame.
func (s *BaseRelaySuite) Join(t *testing.T, name, lang string) *Participant {
	header := fmt.Sprintf("  ====== %s joins (%s) ======", name, lang)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)

	conn, _, err := gorilla.DefaultDialer.Dial(s.Config.RelayURL, nil)
	s.Require().NoError(err, "Failed to connect to relay at "+s.Config.RelayURL)
	p := &Participant{s: s, t: t, name: name, conn: conn}
	p.write(map[string]string{"type": domain.FrameJoin, "name": name, "lang": lang})
	return p
}

func (p *Participant) Say(text string) {
	p.write(map[string]string{"type": domain.FrameMessage, "text": text})
}

func (p *Participant) Leave() {
	_ = p.conn.WriteMessage(gorilla.CloseMessage,
		gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, "bye"))
	_ = p.conn.Close()
}

// Expect reads frames until one matches, failing after readTimeout.
func (p *Participant) Expect(match func(Frame) bool) Frame {
	deadline := time.Now().Add(readTimeout)
	p.s.Require().NoError(p.conn.SetReadDeadline(deadline))
	for {
		_, raw, err := p.conn.ReadMessage()
		p.s.Require().NoError(err, "%s did not receive the expected frame", p.name)
		var frame Frame
		p.s.Require().NoError(json.Unmarshal(raw, &frame))
		if p.s.Config.DebugFrames {
			p.t.Logf("%s <- %s", p.name, raw)
		}
		if match(frame) {
			return frame
		}
	}
}

func (p *Participant) ExpectSystem(msg string) Frame {
	return p.Expect(func(f Frame) bool { return f.Type == domain.FrameSystem && f.Msg == msg })
}

func (p *Participant) ExpectChatFrom(from string) Frame {
	return p.Expect(func(f Frame) bool { return f.Type == domain.FrameChat && f.From == from })
}

func (p *Participant) write(frame map[string]string) {
	p.s.Require().NoError(p.conn.WriteJSON(frame))
}

// WithHealth provides a gRPC health client within a contextual test step.
func (s *BaseRelaySuite) WithHealth(name string, fn func(ctx context.Context, client healthpb.HealthClient)) {
	if s.Config.HealthAddr == "" {
		s.T().Skip("RELAY_HEALTH_ADDR not set")
	}
	s.T().Log(name)
	conn, err := grpc.NewClient(s.Config.HealthAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	s.Require().NoError(err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	fn(ctx, healthpb.NewHealthClient(conn))
}

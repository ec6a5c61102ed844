package transport

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/danielpatrickdp/exergate/internal/governance"
)

// #region sensor-server
// SensorServer ingests heart-rate frames over a websocket. Every frame
// updates the roster and requests an evaluation; frame arrival is the
// zone-change trigger path.
type SensorServer struct {
	roster   Roster
	engine   Engine
	nowFn    func() time.Time
	upgrader websocket.Upgrader
}

// NewSensorServer creates the ingestion endpoint.
func NewSensorServer(roster Roster, engine Engine) *SensorServer {
	return &SensorServer{
		roster: roster,
		engine: engine,
		nowFn:  time.Now,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// SetClock replaces the time source, for replay and tests.
func (s *SensorServer) SetClock(nowFn func() time.Time) {
	s.nowFn = nowFn
}

// ServeHTTP upgrades the connection and consumes frames until disconnect.
func (s *SensorServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] sensor upgrade: %v", err)
		return
	}
	defer conn.Close()
	log.Printf("[WS] sensor connected (%s)", conn.RemoteAddr())

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[WS] sensor disconnected (%s): %v", conn.RemoteAddr(), err)
			return
		}
		var frame SensorFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("[WS] malformed sensor frame: %v", err)
			continue
		}
		s.Ingest(frame)
	}
}

// Ingest applies one frame. Exposed for the replay harness, which feeds
// frames without a websocket.
func (s *SensorServer) Ingest(frame SensorFrame) {
	if frame.ParticipantID == "" {
		return
	}
	s.roster.ReportHeartRate(frame.ParticipantID, frame.HeartRateBpm, s.nowFn())
	s.engine.Evaluate(governance.TriggerZoneChange)
}

// #endregion sensor-server

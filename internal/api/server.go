package api

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"speakline/ai"
	"speakline/audio"
	"speakline/internal/config"
	"speakline/session"
	"speakline/timeline"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server транспортный слой UI: WebSocket для фронтенда и gRPC stream
// для нативных оболочек. Оба транспорта говорят одними Message и
// обслуживаются общим обработчиком команд.
type Server struct {
	Config    *config.Config
	Processor *ai.Processor
	Capture   *audio.Capture
	Recorder  *session.Recorder

	clients map[*websocket.Conn]bool
	streams map[Control_StreamServer]bool
	mu      sync.Mutex
}

func NewServer(cfg *config.Config, proc *ai.Processor, capture *audio.Capture, recorder *session.Recorder) *Server {
	s := &Server{
		Config:    cfg,
		Processor: proc,
		Capture:   capture,
		Recorder:  recorder,
		clients:   make(map[*websocket.Conn]bool),
		streams:   make(map[Control_StreamServer]bool),
	}
	s.setupCallbacks()
	return s
}

// Start запускает gRPC в фоне и блокируется на HTTP сервере
func (s *Server) Start() {
	go s.startGRPCServer()

	http.HandleFunc("/ws", s.handleWebSocket)

	log.Printf("Backend listening on :%s", s.Config.Port)
	if err := http.ListenAndServe(":"+s.Config.Port, nil); err != nil {
		log.Fatal("ListenAndServe:", err)
	}
}

func (s *Server) setupCallbacks() {
	// Таймлайн обновился (троттлинг на стороне процессора)
	s.Processor.SetTimelineCallback(func(segments []timeline.Segment) {
		s.broadcast(Message{Type: "timeline", Segments: segments})
	})

	// Текущий спикер сменился
	s.Processor.Handler().SetSpeakerChangedCallback(func(id timeline.SpeakerID) {
		s.broadcast(Message{Type: "speaker_changed", Speaker: &id})
	})

	// Состав спикеров изменился (промоушен, рекластеризация, сброс)
	s.Processor.Handler().SetEmbeddingsUpdatedCallback(func() {
		s.broadcast(Message{Type: "speakers_updated", Status: s.status()})
	})
}

func (s *Server) broadcast(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Глобальная блокировка сериализует записи во все соединения:
	// WriteJSON не потокобезопасен per-connection
	for conn := range s.clients {
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("Write error: %v", err)
			conn.Close()
			delete(s.clients, conn)
		}
	}
	for stream := range s.streams {
		if err := stream.Send(&msg); err != nil {
			log.Printf("Stream send error: %v", err)
			delete(s.streams, stream)
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Upgrade:", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	reply := func(msg Message) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("Write error: %v", err)
		}
	}

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			log.Println("Read:", err)
			break
		}
		s.handleCommand(msg, reply)
	}
}

func (s *Server) status() *Status {
	tl := s.Processor.Timeline()
	h := s.Processor.Handler()
	st := &Status{
		Started:         tl.Started(),
		Running:         tl.IsRunning(),
		Time:            tl.Now(),
		Speakers:        h.ActiveSpeakers(),
		PendingCount:    h.PendingCount(),
		TotalEmbeddings: h.TotalEmbeddings(),
		PendingEnabled:  h.PendingEnabled(),
		SegmentCount:    tl.Len(),
	}
	if s.Recorder != nil {
		st.RecordingID = s.Recorder.SessionID()
	}
	return st
}

// handleCommand исполняет команду UI и отвечает через reply.
// Общий для WebSocket и gRPC транспортов.
func (s *Server) handleCommand(msg Message, reply func(Message)) {
	switch msg.Type {
	case "start":
		if s.Recorder != nil && !s.Recorder.Active() {
			if id, err := s.Recorder.Begin(); err != nil {
				log.Printf("Failed to start recording: %v", err)
			} else {
				reply(Message{Type: "recording_started", SessionID: id})
			}
		}
		s.Processor.Start()
		reply(Message{Type: "started", Status: s.status()})

	case "pause":
		s.Processor.Pause()
		reply(Message{Type: "paused", Status: s.status()})

	case "resume":
		s.Processor.Resume()
		reply(Message{Type: "resumed", Status: s.status()})

	case "reset":
		if s.Recorder != nil && s.Recorder.Active() {
			if err := s.Recorder.Finish(s.Processor.Timeline().Segments()); err != nil {
				log.Printf("Failed to finish recording: %v", err)
			}
		}
		s.Processor.Reset()
		if s.Capture != nil {
			s.Capture.ClearBuffer()
		}
		reply(Message{Type: "reset_done", Status: s.status()})

	case "recluster":
		if !s.Processor.Recluster(msg.Target) {
			reply(Message{Type: "error", Error: "not enough embeddings to recluster"})
			return
		}
		reply(Message{Type: "reclustered", Status: s.status(), Segments: s.Processor.Timeline().Segments()})

	case "toggle_pending":
		enabled := s.Processor.Handler().TogglePending()
		reply(Message{Type: "pending_toggled", Enabled: &enabled})

	case "toggle_embedding_update":
		enabled := s.Processor.Handler().ToggleEmbeddingUpdate()
		reply(Message{Type: "embedding_update_toggled", Enabled: &enabled})

	case "status":
		reply(Message{Type: "status", Status: s.status()})

	case "get_segments":
		reply(Message{Type: "timeline", Segments: s.Processor.Timeline().Segments()})

	case "speaker_at":
		id := s.Processor.Timeline().SpeakerAt(msg.Time)
		reply(Message{Type: "speaker_at", Speaker: &id, Time: msg.Time})

	case "attribute_words":
		words := make([]Word, len(msg.Words))
		copy(words, msg.Words)
		for i := range words {
			words[i].Speaker = s.Processor.Timeline().DominantSpeakerInRange(words[i].Start, words[i].End)
		}
		reply(Message{Type: "words_attributed", Words: words})

	case "get_devices":
		if s.Capture == nil {
			reply(Message{Type: "error", Error: "capture not available"})
			return
		}
		devices, err := s.Capture.ListDevices()
		if err != nil {
			reply(Message{Type: "error", Error: err.Error()})
			return
		}
		reply(Message{Type: "devices", Devices: devices})

	case "set_device":
		if s.Capture == nil {
			reply(Message{Type: "error", Error: "capture not available"})
			return
		}
		if err := s.Capture.SetDevice(msg.DeviceID); err != nil {
			reply(Message{Type: "error", Error: err.Error()})
			return
		}
		reply(Message{Type: "device_set", DeviceID: msg.DeviceID})

	default:
		reply(Message{Type: "error", Error: "unknown message type: " + msg.Type})
	}
}

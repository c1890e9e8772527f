package server

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/becomeliminal/nim-rag/core"
)

// Frame types.
const (
	FrameMessage  = "message"
	FrameClear    = "clear"
	FrameSettings = "settings"

	FrameAnswer = "answer"
	FrameError  = "error"
	FrameOK     = "ok"
)

// ClientFrame is a message from the chat client.
type ClientFrame struct {
	Type        string   `json:"type"`
	Content     string   `json:"content,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	Model       string   `json:"model,omitempty"`
}

// ServerFrame is a message to the chat client.
type ServerFrame struct {
	Type    string        `json:"type"`
	Content string        `json:"content,omitempty"`
	Trace   []*core.Trace `json:"trace,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[SERVER] Upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[SERVER] Client connected from %s", r.RemoteAddr)
	ctx := r.Context()

	for {
		var frame ClientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[SERVER] Read failed: %v", err)
			}
			return
		}

		reply := s.handleFrame(ctx, frame)
		if err := conn.WriteJSON(reply); err != nil {
			log.Printf("[SERVER] Write failed: %v", err)
			return
		}
	}
}

func (s *Server) handleFrame(ctx context.Context, frame ClientFrame) ServerFrame {
	switch frame.Type {
	case FrameMessage:
		question := strings.TrimSpace(frame.Content)
		if question == "" {
			return ServerFrame{Type: FrameError, Content: "empty message"}
		}
		ans := s.agent.Ask(ctx, question)
		if ans.Err != nil {
			return ServerFrame{Type: FrameError, Content: ans.Text}
		}
		return ServerFrame{Type: FrameAnswer, Content: ans.Text, Trace: ans.Traces}

	case FrameClear:
		s.agent.ClearMemory()
		return ServerFrame{Type: FrameOK}

	case FrameSettings:
		if frame.Model != "" {
			if err := s.agent.SetModel(ctx, frame.Model); err != nil {
				return ServerFrame{Type: FrameError, Content: err.Error()}
			}
		}
		if frame.Temperature != nil || frame.TopK != nil {
			if err := s.agent.UpdateSettings(frame.Temperature, frame.TopK); err != nil {
				return ServerFrame{Type: FrameError, Content: err.Error()}
			}
		}
		return ServerFrame{Type: FrameOK}

	default:
		return ServerFrame{Type: FrameError, Content: "unknown frame type: " + frame.Type}
	}
}

// wsclient is a manual test client: it connects to the service, uploads a
// source image, starts tracking, and streams live frames at a fixed rate,
// printing every server message it gets back.
package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

const frameIntervalMs = 200

type serverMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Message   string          `json:"message"`
	Text      string          `json:"text"`
	Data      json.RawMessage `json:"data"`
}

func main() {
	serverAddr := flag.String("server", "ws://localhost:8080/ws", "websocket endpoint")
	sourcePath := flag.String("source", "testdata/source.png", "source image (PNG or JPEG)")
	framePath := flag.String("frame", "", "live frame to stream repeatedly (defaults to the source image)")
	frames := flag.Int("frames", 20, "number of frames to stream")
	trackIndex := flag.Int("track", -1, "element index to lock onto, -1 for none")
	flag.Parse()

	if *framePath == "" {
		*framePath = *sourcePath
	}

	source, err := os.ReadFile(*sourcePath)
	if err != nil {
		log.Fatalf("Failed to read source image: %v", err)
	}
	frame, err := os.ReadFile(*framePath)
	if err != nil {
		log.Fatalf("Failed to read frame image: %v", err)
	}
	sourceB64 := base64.StdEncoding.EncodeToString(source)
	frameB64 := base64.StdEncoding.EncodeToString(frame)

	ws, _, err := websocket.DefaultDialer.Dial(*serverAddr, nil)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer ws.Close()

	var connected serverMessage
	if err := ws.ReadJSON(&connected); err != nil {
		log.Fatalf("Failed to read handshake: %v", err)
	}
	if connected.Type != "connected" {
		log.Fatalf("Unexpected handshake message: %s", connected.Type)
	}
	sid := connected.SessionID
	log.Printf("Connected, session %s", sid)

	// Print everything the server sends while we stream.
	go func() {
		for {
			var msg serverMessage
			if err := ws.ReadJSON(&msg); err != nil {
				return
			}
			switch msg.Type {
			case "error":
				log.Printf("<- error: %s", msg.Message)
			case "speak_text":
				log.Printf("<- speak: %q", msg.Text)
			case "step_response", "screen_info_response", "proximity_chirp":
				log.Printf("<- %s: %s", msg.Type, truncate(msg.Data, 200))
			default:
				log.Printf("<- %s", msg.Type)
			}
		}
	}()

	send := func(v any) {
		if err := ws.WriteJSON(v); err != nil {
			log.Fatalf("Write failed: %v", err)
		}
	}

	send(map[string]any{"type": "start_session", "session_id": sid})
	send(map[string]any{"type": "set_source_image", "session_id": sid, "image": sourceB64})
	time.Sleep(500 * time.Millisecond)

	send(map[string]any{"type": "debug_request_start_tracking_touchscreen", "session_id": sid})
	if *trackIndex >= 0 {
		send(map[string]any{"type": "track_element", "session_id": sid, "element_index": *trackIndex})
	}

	log.Printf("Streaming %d frames at %dms intervals", *frames, frameIntervalMs)
	for i := 0; i < *frames; i++ {
		send(map[string]any{"type": "step", "session_id": sid, "image": frameB64})
		time.Sleep(frameIntervalMs * time.Millisecond)
	}

	send(map[string]any{"type": "stop_session", "session_id": sid})
	time.Sleep(500 * time.Millisecond)
	log.Println("Done")
}

func truncate(raw json.RawMessage, n int) string {
	s := string(raw)
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

type IngestResponse struct {
	StreamID     string    `json:"stream_id"`
	PayloadBytes int       `json:"payload_bytes"`
	ReceivedAt   time.Time `json:"received_at"`
}

func ingestHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read payload", http.StatusBadRequest)
		return
	}

	streamID := r.Header.Get("X-Stream-ID")
	log.Printf("Received payload: stream=%s bytes=%d", streamID, len(payload))

	resp := IngestResponse{
		StreamID:     streamID,
		PayloadBytes: len(payload),
		ReceivedAt:   time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Standalone media processor stub for local development. Point the service at
// it with PROCESSOR_ENDPOINT=http://localhost:9000/ingest.
func main() {
	http.HandleFunc("/ingest", ingestHandler)

	addr := ":9000"
	fmt.Printf("Test processor server listening on %s\n", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal(err)
	}
}

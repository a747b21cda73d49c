package main

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

const sampleHandler = `def handler(event, context):
    payload = event["body"]
    email = payload["email"]
    return {"statusCode": 200, "body": email}
`

type logLine struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

type knowledgeHit struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Snippet   string  `json:"snippet"`
	Relevance float64 `json:"relevance"`
}

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/v1/blobs/source", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(sampleHandler))
	})

	mux.HandleFunc("/api/v1/blobs/artifact", func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		entry, _ := zw.Create("handler.py")
		_, _ = entry.Write([]byte(sampleHandler))
		_ = zw.Close()
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(buf.Bytes())
	})

	mux.HandleFunc("/api/v1/logs/query", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		now := time.Now()
		writeJSON(w, map[string]any{
			"lines": []logLine{
				{Timestamp: now.Add(-5 * time.Minute), Message: "START RequestId: R1"},
				{Timestamp: now.Add(-5 * time.Minute), Message: "received event body={\"name\": \"jo\"}"},
				{Timestamp: now.Add(-5 * time.Minute), Message: "KeyError: 'email'"},
				{Timestamp: now.Add(-5 * time.Minute), Message: "REPORT RequestId: R1 Duration: 12.3 ms"},
				{Timestamp: now.Add(-4 * time.Minute), Message: "START RequestId: R2"},
				{Timestamp: now.Add(-4 * time.Minute), Message: "REPORT RequestId: R2 Duration: 8.1 ms"},
			},
		})
	})

	mux.HandleFunc("/api/v1/search", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		writeJSON(w, map[string]any{
			"hits": []knowledgeHit{
				{ID: "kb-101", Title: "KeyError on missing request fields", Snippet: "Validate required fields before indexing into the event body.", Relevance: 0.91},
				{ID: "kb-204", Title: "Defensive payload parsing", Snippet: "Use .get with defaults for optional fields.", Relevance: 0.74},
			},
		})
	})

	logger := log.New(log.Writer(), "backends-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    ":9090",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :9090")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func enforcePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

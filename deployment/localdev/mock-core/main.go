package main

import (
	"encoding/json"
	"hash/fnv"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"
)

type incident struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	User        string    `json:"user"`
	Channel     string    `json:"channel"`
	Department  string    `json:"department"`
	Destination string    `json:"destination"`
	Policy      string    `json:"policy"`
	RuleNames   []string  `json:"rule_names"`
	Severity    int       `json:"severity"`
}

type incidentQuery struct {
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

var (
	users        = []string{"alice", "bob", "carol", "dave"}
	channels     = []string{"Email", "Web", "Endpoint"}
	departments  = []string{"engineering", "finance", "sales"}
	destinations = []string{"gmail.com", "dropbox.com", "usb-device"}
	rules        = [][]string{{"pci-card-number"}, {"ssn-pattern", "bulk-export"}, {"source-code"}}
)

// generate produces a deterministic synthetic incident stream for the
// window, roughly six incidents per day with a burst on the last two days.
func generate(q incidentQuery) []incident {
	var out []incident
	for day := q.Start.Truncate(24 * time.Hour); day.Before(q.End); day = day.Add(24 * time.Hour) {
		perDay := 6
		if q.End.Sub(day) < 48*time.Hour {
			perDay = 18
		}
		for i := 0; i < perDay; i++ {
			ts := day.Add(time.Duration(i) * 97 * time.Minute)
			if ts.Before(q.Start) || !ts.Before(q.End) {
				continue
			}
			seed := hashOf(ts.Format(time.RFC3339))
			inc := incident{
				ID:          ts.Format("20060102") + "-" + users[seed%uint32(len(users))] + "-" + strconv.Itoa(i),
				Timestamp:   ts,
				User:        users[seed%uint32(len(users))],
				Channel:     channels[(seed>>2)%uint32(len(channels))],
				Department:  departments[(seed>>4)%uint32(len(departments))],
				Destination: destinations[(seed>>6)%uint32(len(destinations))],
				Policy:      "default-dlp-policy",
				RuleNames:   rules[(seed>>8)%uint32(len(rules))],
				Severity:    int(seed%10) + 1,
			}
			if !matches(q, inc) {
				continue
			}
			out = append(out, inc)
		}
	}
	return out
}

func matches(q incidentQuery, inc incident) bool {
	switch q.EntityType {
	case "":
		return true
	case "user":
		return inc.User == q.EntityID
	case "channel":
		return inc.Channel == q.EntityID
	case "department":
		return inc.Department == q.EntityID
	case "destination":
		return inc.Destination == q.EntityID
	case "rule":
		for _, name := range inc.RuleNames {
			if name == q.EntityID {
				return true
			}
		}
	}
	return false
}

func main() {
	var mu sync.Mutex
	var storedResults []json.RawMessage

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/v1/incidents/query", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		var q incidentQuery
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]any{"incidents": generate(q)})
	})

	mux.HandleFunc("/api/v1/analysis/results", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		body := json.RawMessage{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		storedResults = append(storedResults, body)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("/api/v1/analysis/results/query", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		mu.Lock()
		results := make([]json.RawMessage, len(storedResults))
		copy(results, storedResults)
		mu.Unlock()
		writeJSON(w, map[string]any{"results": results})
	})

	mux.HandleFunc("/api/v1/analysis/results/patterns", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	logger := log.New(log.Writer(), "core-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    ":8080",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :8080")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func hashOf(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
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

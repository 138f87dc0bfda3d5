// Package dashboard serves the Insights and Profile screens over HTTP.
package dashboard

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"io/fs"
	"math"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/nimdanitro/dht-poller/pkg/sensor"
	"github.com/nimdanitro/dht-poller/pkg/settings"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

//go:embed templates
var assets embed.FS

//go:embed static
var staticFiles embed.FS

var pages = template.Must(template.ParseFS(assets, "templates/*.html"))

type ReadingSource interface {
	Snapshot() sensor.Reading
}

type RelayFirer interface {
	Fire(ctx context.Context)
}

type Options struct {
	Refresh     time.Duration
	CORSOrigins []string
	Logger      *zap.Logger
}

type server struct {
	readings ReadingSource
	relay    RelayFirer
	form     *settings.Form
	refresh  time.Duration
	log      *zap.Logger
}

// NewHandler wires the routes of the UI.
func NewHandler(src ReadingSource, relay RelayFirer, form *settings.Form, opts Options) http.Handler {
	s := &server{
		readings: src,
		relay:    relay,
		form:     form,
		refresh:  opts.Refresh,
		log:      opts.Logger,
	}
	if s.log == nil {
		s.log = zap.L()
	}
	if s.refresh <= 0 {
		s.refresh = 5 * time.Second
	}

	static, _ := fs.Sub(staticFiles, "static")

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleInsights).Methods(http.MethodGet)
	r.HandleFunc("/profile", s.handleProfile).Methods(http.MethodGet)
	r.HandleFunc("/profile", s.handleProfileUpdate).Methods(http.MethodPost)
	r.HandleFunc("/fan", s.handleFan).Methods(http.MethodPost)
	r.HandleFunc("/api/readings", s.handleReadings).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	c := cors.New(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	})
	return otelhttp.NewHandler(c.Handler(r), "dashboard")
}

func NewServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (s *server) handleInsights(w http.ResponseWriter, r *http.Request) {
	// reload the page as often as the poller refreshes the reading
	w.Header().Set("Refresh", strconv.Itoa(int(math.Ceil(s.refresh.Seconds()))))
	s.render(w, "insights.html", struct{ Reading sensor.Reading }{s.readings.Snapshot()})
}

func (s *server) handleProfile(w http.ResponseWriter, r *http.Request) {
	s.render(w, "profile.html", struct{ DeviceURL string }{s.form.Value()})
}

func (s *server) handleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	s.form.Set(r.PostForm.Get("url"))
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

func (s *server) handleFan(w http.ResponseWriter, r *http.Request) {
	// the request context ends with this handler, the relay call must not
	s.relay.Fire(context.WithoutCancel(r.Context()))
	if isFormPost(r) {
		// back to the page the button is on, without any confirmation
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (s *server) handleReadings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.readings.Snapshot())
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		s.log.Error("cannot render page", zap.String("page", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func isFormPost(r *http.Request) bool {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct == "application/x-www-form-urlencoded" || ct == "multipart/form-data"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/dyike/StockAnalyzerAI/consts"
	"github.com/dyike/StockAnalyzerAI/internal/crew"
	"github.com/dyike/StockAnalyzerAI/internal/research"
)

//go:embed templates/*.html
var templateFS embed.FS

type Server struct {
	kicker crew.Kicker
	logger *slog.Logger
	now    func() time.Time
	page   *template.Template
	md     goldmark.Markdown
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithClock sets the clock the date window is computed from.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

func NewServer(kicker crew.Kicker, opts ...Option) *Server {
	s := &Server{
		kicker: kicker,
		logger: slog.Default(),
		now:    time.Now,
		page:   template.Must(template.ParseFS(templateFS, "templates/index.html")),
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /{$}", s.handleResearch)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("web server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type pageData struct {
	Ticker string
	Start  string
	End    string
	Min    string
	Max    string
	Error  string
	Result *pageResult
}

type pageResult struct {
	Final template.HTML
	Price template.HTML
	News  template.HTML
}

func (s *Server) formData(b research.Bounds) pageData {
	return pageData{
		Start: b.DefaultStart.Format(consts.DateLayout),
		End:   b.Max.Format(consts.DateLayout),
		Min:   b.Min.Format(consts.DateLayout),
		Max:   b.Max.Format(consts.DateLayout),
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, s.formData(research.BoundsAt(s.now())))
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	bounds := research.BoundsAt(s.now())
	data := s.formData(bounds)

	if err := r.ParseForm(); err != nil {
		data.Error = "Invalid form submission"
		s.render(w, http.StatusBadRequest, data)
		return
	}
	data.Ticker = r.PostFormValue(consts.Input_Ticket)
	if v := r.PostFormValue(consts.Input_DtStart); v != "" {
		data.Start = v
	}
	if v := r.PostFormValue(consts.Input_DtEnd); v != "" {
		data.End = v
	}

	req, err := parseRequest(data.Ticker, data.Start, data.End, bounds)
	if err == nil {
		err = req.Validate(bounds)
	}
	if err != nil {
		data.Error = err.Error()
		s.render(w, http.StatusBadRequest, data)
		return
	}

	logger := s.logger.With("ticker", req.Ticker, "dt_start", data.Start, "dt_end", data.End)
	logger.Info("research requested")

	result, err := s.kicker.Kickoff(r.Context(), req.Inputs())
	if err == nil && (result == nil || len(result.TasksOutputs) < 2) {
		err = errors.New("research finished without the analyst reports")
	}
	if err != nil {
		logger.Error("research failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data.Result = &pageResult{
		Final: s.markdown(result.FinalOutput),
		Price: s.markdown(result.TasksOutputs[0].ExportedOutput),
		News:  s.markdown(result.TasksOutputs[1].ExportedOutput),
	}
	s.render(w, http.StatusOK, data)
}

func parseRequest(ticker, start, end string, b research.Bounds) (research.Request, error) {
	req := research.Request{Ticker: ticker}
	if strings.TrimSpace(ticker) == "" {
		return req, research.ErrEmptyTicker
	}
	var err error
	if req.Start, err = research.ParseDate(start, b.DefaultStart); err != nil {
		return req, err
	}
	if req.End, err = research.ParseDate(end, b.Max); err != nil {
		return req, err
	}
	return req, nil
}

func (s *Server) markdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}

func (s *Server) render(w http.ResponseWriter, status int, data pageData) {
	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		s.logger.Error("render page", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

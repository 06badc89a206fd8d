package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/spektr-org/askcel/analyst"
	"github.com/spektr-org/askcel/export"
	"github.com/spektr-org/askcel/sheet"
	"github.com/spektr-org/askcel/translator"
	"github.com/spektr-org/askcel/visual"
)

const multipartMemory = 8 << 20

func (s *Server) workspace(r *http.Request) *workspace {
	return s.sessions.get(r.Context(), sessionID(r.Context()))
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.count(),
	})
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	ws := s.workspace(r)
	ws.mu.Lock()
	p := ws.page(r, r.URL.Query().Get("tab"))
	ws.mu.Unlock()
	renderHTML(w, http.StatusOK, appPage(p))
}

// settings connects the session to a provider. An empty key falls back to
// the server default translator, which may be none.
func (s *Server) settings(w http.ResponseWriter, r *http.Request) {
	ws := s.workspace(r)
	ws.mu.Lock()
	defer ws.mu.Unlock()

	provider := strings.ToLower(strings.TrimSpace(r.FormValue("provider")))
	if provider == "" {
		provider = translator.ProviderOpenAI
	}
	key := strings.TrimSpace(r.FormValue("api_key"))
	model := strings.TrimSpace(r.FormValue("model"))
	if provider != translator.ProviderOpenAI && provider != translator.ProviderGemini {
		p := ws.page(r, tabQuery)
		p.notify("error", fmt.Sprintf("Unknown provider %q", provider))
		renderHTML(w, http.StatusBadRequest, appPage(p))
		return
	}

	var t translator.Translator
	if key != "" {
		cfg := translator.Config{Provider: provider, APIKey: key, Model: model, Logger: s.logger.Named("translator")}
		if provider == translator.ProviderOpenAI {
			cfg.BaseURL = s.cfg.OpenAIBaseURL
		}
		var err error
		t, err = s.newTranslator(r.Context(), cfg)
		if err != nil {
			p := ws.page(r, tabQuery)
			p.notify("error", "Could not configure "+provider+": "+err.Error())
			renderHTML(w, http.StatusBadRequest, appPage(p))
			return
		}
	} else {
		t = s.defaultTranslator
	}

	connectErr := ws.analyst.Connect(r.Context(), t)
	ws.provider, ws.model, ws.keySet = provider, model, key != ""
	s.sessions.save(r.Context(), ws)

	p := ws.page(r, tabQuery)
	switch {
	case connectErr != nil:
		s.logger.Warn("provider check failed", zap.String("provider", provider), zap.Error(connectErr))
		p.notify("warning", "Could not reach "+provider+", using basic mode: "+connectErr.Error())
	case t == nil:
		p.notify("info", "No API key set, using basic mode.")
	default:
		p.notify("success", "Connected to "+provider+", AI mode enabled.")
	}
	renderHTML(w, http.StatusOK, appPage(p))
}

// upload loads a spreadsheet into the session. Without a file, a sheet
// choice reloads the previous upload on that sheet.
func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	ws := s.workspace(r)
	ws.mu.Lock()
	defer ws.mu.Unlock()

	fail := func(status int, msg string) {
		p := ws.page(r, tabQuery)
		p.notify("error", msg)
		renderHTML(w, status, appPage(p))
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes())
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			fail(http.StatusRequestEntityTooLarge, fmt.Sprintf("File is larger than %d MB.", s.cfg.MaxUploadMB))
			return
		}
		fail(http.StatusBadRequest, "Could not read upload: "+err.Error())
		return
	}
	sheetName := r.FormValue("sheet")

	data, name := ws.upload, ws.fileName
	file, hdr, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		if data, err = io.ReadAll(file); err != nil {
			fail(http.StatusBadRequest, "Could not read upload: "+err.Error())
			return
		}
		name = filepath.Base(hdr.Filename)
	case errors.Is(err, http.ErrMissingFile) && len(data) > 0 && sheetName != "":
	default:
		fail(http.StatusBadRequest, "Choose a file to upload.")
		return
	}

	frame, err := sheet.Load(bytes.NewReader(data), name, sheet.LoadOptions{Sheet: sheetName})
	if err != nil {
		fail(http.StatusUnprocessableEntity, "Error loading file: "+err.Error())
		return
	}
	if err := ws.analyst.Load(r.Context(), frame); err != nil {
		fail(http.StatusUnprocessableEntity, "Error reading columns: "+err.Error())
		return
	}

	ws.fileName, ws.sheet, ws.upload = name, frame.Sheet, data
	ws.last, ws.lastQuestion = nil, ""
	s.sessions.save(r.Context(), ws)
	s.logger.Info("file loaded",
		zap.String("session", ws.id),
		zap.String("file", name),
		zap.String("sheet", frame.Sheet),
		zap.Int("rows", len(frame.Rows)))

	p := ws.page(r, tabQuery)
	p.notify("success", fmt.Sprintf("Loaded %d rows from %s.", len(frame.Rows), name))
	renderHTML(w, http.StatusOK, appPage(p))
}

func (s *Server) ask(w http.ResponseWriter, r *http.Request) {
	ws := s.workspace(r)
	ws.mu.Lock()
	defer ws.mu.Unlock()

	question := strings.TrimSpace(r.FormValue("question"))
	answer, err := ws.analyst.Ask(r.Context(), question)
	if err != nil {
		p := ws.page(r, tabQuery)
		p.Question = question
		p.notify("error", err.Error())
		renderHTML(w, askStatus(err), appPage(p))
		return
	}

	ws.last, ws.lastQuestion = answer, question
	s.sessions.save(r.Context(), ws)

	p := ws.page(r, tabQuery)
	if answer.FellBack {
		p.notify("warning", "The AI query failed, switched to basic mode.")
	}
	renderHTML(w, http.StatusOK, appPage(p))
}

func askStatus(err error) int {
	switch {
	case errors.Is(err, analyst.ErrNoData), errors.Is(err, analyst.ErrEmptyQuestion):
		return http.StatusBadRequest
	case errors.Is(err, analyst.ErrBasicQuery):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// visualize shows the chart form and, once a type is chosen, the chart.
func (s *Server) visualize(w http.ResponseWriter, r *http.Request) {
	ws := s.workspace(r)
	ws.mu.Lock()
	defer ws.mu.Unlock()

	q := r.URL.Query()
	req := visual.Request{
		Type:   q.Get("type"),
		X:      q.Get("x"),
		Y:      q.Get("y"),
		Color:  q.Get("color"),
		Title:  q.Get("title"),
		Scheme: q.Get("scheme"),
	}
	p := ws.page(r, tabVisualize)
	p.Visual = req
	if req.Type == "" {
		renderHTML(w, http.StatusOK, appPage(p))
		return
	}

	fig, err := visual.Build(ws.analyst.Frame(), req)
	if err == nil {
		p.VisualChart, err = fig.HTML()
	}
	if err != nil {
		p.notify("error", "Error creating visualization: "+err.Error())
		renderHTML(w, http.StatusBadRequest, appPage(p))
		return
	}
	renderHTML(w, http.StatusOK, appPage(p))
}

// exportAnswer downloads the last answer. After a restart the last question is
// asked again.
func (s *Server) exportAnswer(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	contentType, ok := export.Formats[format]
	if !ok {
		renderHTML(w, http.StatusNotFound, errorPage(http.StatusNotFound, "Unknown export format "+format))
		return
	}

	ws := s.workspace(r)
	ws.mu.Lock()
	defer ws.mu.Unlock()

	answer := ws.last
	if answer == nil && ws.lastQuestion != "" {
		var err error
		if answer, err = ws.analyst.Ask(r.Context(), ws.lastQuestion); err != nil {
			s.logger.Warn("re-ask for export", zap.String("session", ws.id), zap.Error(err))
		}
		ws.last = answer
	}
	if answer == nil {
		p := ws.page(r, tabQuery)
		p.notify("error", "Ask a question before exporting.")
		renderHTML(w, http.StatusBadRequest, appPage(p))
		return
	}

	var buf bytes.Buffer
	var err error
	switch format {
	case "csv":
		err = export.CSV(&buf, answer.Result)
	case "xlsx":
		err = export.Excel(&buf, export.Table(answer.Result))
	case "pdf":
		err = export.PDF(&buf, export.ReportFor(answer.Question, answer.Result))
	}
	if err != nil {
		s.logger.Error("export", zap.String("format", format), zap.Error(err))
		p := ws.page(r, tabQuery)
		p.notify("error", "Export failed: "+err.Error())
		renderHTML(w, http.StatusInternalServerError, appPage(p))
		return
	}
	download(w, contentType, "query_results."+format, buf.Bytes())
}

// exportData downloads every row of the loaded sheet as a workbook.
func (s *Server) exportData(w http.ResponseWriter, r *http.Request) {
	ws := s.workspace(r)
	ws.mu.Lock()
	defer ws.mu.Unlock()

	var buf bytes.Buffer
	if err := export.Frame(&buf, ws.analyst.Frame()); err != nil {
		p := ws.page(r, tabQuery)
		p.notify("error", "Export failed: "+err.Error())
		renderHTML(w, http.StatusBadRequest, appPage(p))
		return
	}
	name := strings.TrimSuffix(ws.fileName, filepath.Ext(ws.fileName)) + ".xlsx"
	download(w, export.Formats["xlsx"], name, buf.Bytes())
}

func download(w http.ResponseWriter, contentType, name string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Package proxy implements C7: the reverse-proxy surface mounted at
// /proxy/llm/* and /proxy/render/*, forwarding to the local LLM and RENDER
// services while recording stats, commlog entries and job-slot state
// non-destructively, matching spec.md §4.7's ten numbered behaviors.
//
// Grounded on the teacher's security-gateway reverse-proxy Director
// pattern (internal/security-gateway/application/gateway_service.go) and
// its gateway proxyHandler (internal/gateway/handlers.go), adapted from a
// single upstream target into two fixed local targets with job-tracking
// and streaming-token-counting layered on top.
package proxy

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/DimaJoyti/node-agent/internal/commlog"
	"github.com/DimaJoyti/node-agent/internal/stats"
	"github.com/DimaJoyti/node-agent/pkg/logger"
)

const (
	generationTimeout = 300 * time.Second
	defaultTimeout    = 30 * time.Second
	streamChunkBuf    = 64 * 1024
)

// Service identifies which local backend a request targets.
type Service string

const (
	ServiceLLM    Service = "llm"
	ServiceRender Service = "render"
)

// Target is one proxied backend's wiring: its local port, telemetry sinks
// and job tracker.
type Target struct {
	Port  int
	Stats *stats.Engine
	Log   *commlog.Ring
	Jobs  *JobTracker
}

// Handler serves both proxy mount points.
type Handler struct {
	llm    Target
	render Target
	client *http.Client
	log    *logger.Logger
}

// New builds a Handler wired to both backends.
func New(llm, render Target, log *logger.Logger) *Handler {
	return &Handler{
		llm:    llm,
		render: render,
		client: &http.Client{},
		log:    log,
	}
}

// ServeLLM handles one request under /proxy/llm/.
func (h *Handler) ServeLLM(w http.ResponseWriter, r *http.Request, subpath string) {
	h.serve(w, r, ServiceLLM, h.llm, subpath)
}

// ServeRender handles one request under /proxy/render/.
func (h *Handler) ServeRender(w http.ResponseWriter, r *http.Request, subpath string) {
	h.serve(w, r, ServiceRender, h.render, subpath)
}

// serve implements spec.md §4.7 steps 1-10 for one inbound request.
func (h *Handler) serve(w http.ResponseWriter, r *http.Request, svc Service, target Target, subpath string) {
	started := time.Now()

	bodyBytes, err := readBody(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	decoded := decodeJSONBody(bodyBytes)
	_, tracked := h.trackJob(svc, target, subpath, decoded, started)

	targetURL := fmt.Sprintf("http://127.0.0.1:%d/%s", target.Port, strings.TrimPrefix(subpath, "/"))
	if r.URL.RawQuery != "" {
		targetURL += "?" + r.URL.RawQuery
	}

	timeout := defaultTimeout
	if svc == ServiceLLM && isGenerationPath(subpath) {
		timeout = generationTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	upstreamReq, err := http.NewRequestWithContext(ctx, r.Method, targetURL, bytes.NewReader(bodyBytes))
	if err != nil {
		h.finish(target, svc, subpath, started, false, err.Error(), 0, decoded, nil, tracked)
		writeJSONError(w, http.StatusInternalServerError, "failed to build upstream request")
		return
	}
	copyRequestHeaders(upstreamReq.Header, r.Header)

	resp, err := h.client.Do(upstreamReq)
	if err != nil {
		errMsg := upstreamErrorMessage(err)
		h.finish(target, svc, subpath, started, false, errMsg, 0, decoded, nil, tracked)
		writeJSONError(w, http.StatusInternalServerError, errMsg)
		return
	}
	defer resp.Body.Close()

	respSummary, tokens, writeErr := h.relay(w, resp, svc, subpath)
	success := writeErr == nil && resp.StatusCode >= 200 && resp.StatusCode < 300
	errMsg := ""
	if writeErr != nil {
		errMsg = writeErr.Error()
	} else if !success {
		errMsg = fmt.Sprintf("upstream status %d", resp.StatusCode)
	}
	h.finish(target, svc, subpath, started, success, errMsg, tokens, decoded, respSummary, tracked)
}

// finish records stats, commlog and job-slot completion for one request.
// Runs regardless of outcome, matching spec.md §4.7 step 9's "on response
// completion (any path)" wording.
func (h *Handler) finish(target Target, svc Service, subpath string, started time.Time, success bool, errMsg string, tokens int64, reqPayload interface{}, respSummary interface{}, tracked bool) {
	now := time.Now()
	durationMs := now.Sub(started).Milliseconds()

	if target.Stats != nil {
		target.Stats.Record(now, durationMs, success, errMsg, tokens)
	}
	if target.Log != nil {
		params := commlog.AppendParams{
			Endpoint:   string(svc) + "/" + strings.TrimPrefix(subpath, "/"),
			Direction:  commlog.DirectionReceive,
			Payload:    reqPayload,
			Response:   respSummary,
			DurationMs: &durationMs,
			Error:      errMsg,
		}
		target.Log.Append(now, params)
	}
	if tracked && target.Jobs != nil {
		status := "ok"
		if !success {
			status = "error"
		}
		target.Jobs.Complete(status, now)
	}
}

// trackJob decides whether this call should occupy the job slot, per
// spec.md §4.7 step 4: LLM generate/chat calls and RENDER prompt
// submissions are tracked; everything else (tag listing, health pings,
// queue inspection) passes through untracked.
func (h *Handler) trackJob(svc Service, target Target, subpath string, decoded interface{}, now time.Time) (*Job, bool) {
	if target.Jobs == nil {
		return nil, false
	}

	switch svc {
	case ServiceLLM:
		if !isGenerationPath(subpath) {
			return nil, false
		}
		model, prompt := "", ""
		if m, ok := decoded.(map[string]interface{}); ok {
			if v, ok := m["model"].(string); ok {
				model = v
			}
			prompt = extractPromptPreview(m)
		}
		jobType := "generate"
		if strings.Contains(subpath, "chat") {
			jobType = "chat"
		}
		return target.Jobs.Start(jobType, model, prompt, 0, now), true

	case ServiceRender:
		if !strings.Contains(subpath, "prompt") {
			return nil, false
		}
		nodes := 0
		if m, ok := decoded.(map[string]interface{}); ok {
			if graph, ok := m["prompt"].(map[string]interface{}); ok {
				nodes = len(graph)
			}
		}
		return target.Jobs.Start("render", "", "", nodes, now), true
	}
	return nil, false
}

func extractPromptPreview(m map[string]interface{}) string {
	if p, ok := m["prompt"].(string); ok {
		return truncatePreview(p)
	}
	if msgs, ok := m["messages"].([]interface{}); ok && len(msgs) > 0 {
		if first, ok := msgs[0].(map[string]interface{}); ok {
			if content, ok := first["content"].(string); ok {
				return truncatePreview(content)
			}
		}
	}
	return ""
}

const promptPreviewLen = 100

func truncatePreview(s string) string {
	if len(s) <= promptPreviewLen {
		return s
	}
	return s[:promptPreviewLen]
}

func isGenerationPath(subpath string) bool {
	return strings.Contains(subpath, "generate") || strings.Contains(subpath, "chat")
}

// relay streams or copies the upstream response to the client depending
// on its shape, returning a value suitable for commlog summarization and
// the accumulated token count (LLM streaming only).
func (h *Handler) relay(w http.ResponseWriter, resp *http.Response, svc Service, subpath string) (interface{}, int64, error) {
	copyResponseHeaders(w.Header(), resp.Header)

	contentType := resp.Header.Get("Content-Type")
	isStreaming := svc == ServiceLLM && isGenerationPath(subpath) && resp.ContentLength < 0

	switch {
	case isStreaming:
		return h.relayStream(w, resp)
	case svc == ServiceRender && isBinaryContentType(contentType):
		return h.relayBinary(w, resp, contentType)
	default:
		return h.relayBuffered(w, resp)
	}
}

// relayStream forwards newline-delimited JSON chunks (the LLM service's
// streaming format) line-by-line, flushing after each write, and tallies a
// whitespace-split token count from each chunk's "response" field.
func (h *Handler) relayStream(w http.ResponseWriter, resp *http.Response) (interface{}, int64, error) {
	w.WriteHeader(resp.StatusCode)
	flusher, _ := w.(http.Flusher)

	reader := bufio.NewReaderSize(resp.Body, streamChunkBuf)
	var tokens int64
	var lastChunk map[string]interface{}

	for {
		line, readErr := reader.ReadBytes('\n')
		if len(line) > 0 {
			if _, writeErr := w.Write(line); writeErr != nil {
				return summarizeLastChunk(lastChunk), tokens, writeErr
			}
			if flusher != nil {
				flusher.Flush()
			}

			trimmed := bytes.TrimSpace(line)
			if len(trimmed) > 0 {
				var chunk map[string]interface{}
				if err := json.Unmarshal(trimmed, &chunk); err == nil {
					lastChunk = chunk
					if text, ok := chunk["response"].(string); ok && text != "" {
						tokens += int64(len(strings.Fields(text)))
					}
				}
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return summarizeLastChunk(lastChunk), tokens, nil
			}
			return summarizeLastChunk(lastChunk), tokens, readErr
		}
	}
}

func summarizeLastChunk(chunk map[string]interface{}) interface{} {
	if chunk == nil {
		return nil
	}
	return chunk
}

// relayBinary streams image/video/audio/octet-stream payloads verbatim.
func (h *Handler) relayBinary(w http.ResponseWriter, resp *http.Response, contentType string) (interface{}, int64, error) {
	w.Header().Set("Content-Type", contentType)
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		w.Header().Set("Content-Length", cl)
	}
	w.WriteHeader(resp.StatusCode)
	n, err := io.Copy(w, resp.Body)
	return fmt.Sprintf("<binary %s, %d bytes>", contentType, n), 0, err
}

// relayBuffered reads the full JSON/text body and forwards it, returning
// the decoded payload (falling back to the raw string) for commlog.
func (h *Handler) relayBuffered(w http.ResponseWriter, resp *http.Response) (interface{}, int64, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return nil, 0, err
	}
	w.WriteHeader(resp.StatusCode)
	if _, writeErr := w.Write(body); writeErr != nil {
		return decodeJSONBody(body), 0, writeErr
	}
	return decodeJSONBody(body), 0, nil
}

func isBinaryContentType(contentType string) bool {
	for _, prefix := range []string{"image/", "video/", "audio/", "application/octet-stream"} {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}

// decodeJSONBody returns the parsed JSON value for commlog summarization,
// or the raw string when the body isn't valid JSON, matching spec.md
// §4.4's "non-JSON bodies still get a best-effort string summary" rule.
func decodeJSONBody(body []byte) interface{} {
	if len(body) == 0 {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(body, &v); err == nil {
		return v
	}
	return string(body)
}

func copyRequestHeaders(dst, src http.Header) {
	for key, values := range src {
		if strings.EqualFold(key, "Host") {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

func copyResponseHeaders(dst, src http.Header) {
	for key, values := range src {
		if strings.EqualFold(key, "Content-Length") || strings.EqualFold(key, "Transfer-Encoding") {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

func upstreamErrorMessage(err error) string {
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return err.Error()
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

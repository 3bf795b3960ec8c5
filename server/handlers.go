package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/poiesic/profmatch/answer"
	"github.com/poiesic/profmatch/core"
	"github.com/poiesic/profmatch/ingestion"
)

// ScrapeRequest is the ingestion entry point body.
type ScrapeRequest struct {
	URL string `json:"url"`
}

// ScrapeResponse is returned when a submission reaches Done.
type ScrapeResponse struct {
	Status string                 `json:"status"`
	Record *core.InstructorRecord `json:"record,omitempty"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Status    string `json:"status"`
	Detail    string `json:"detail"`
	Stage     string `json:"stage,omitempty"`
	Retryable bool   `json:"retryable"`
}

// statusFor maps an error to the HTTP status the caller sees.
func statusFor(err error) int {
	switch {
	case core.IsUserError(err),
		errors.Is(err, answer.ErrEmptyHistory),
		errors.Is(err, core.ErrInvalidMessage):
		return http.StatusUnprocessableEntity
	case core.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) fail(c echo.Context, err error) error {
	resp := ErrorResponse{
		Status:    "error",
		Detail:    err.Error(),
		Retryable: core.IsTransient(err),
	}
	var stageErr *ingestion.StageError
	if errors.As(err, &stageErr) {
		resp.Stage = string(stageErr.Stage)
		resp.Detail = stageErr.Err.Error()
	}
	return c.JSON(statusFor(err), resp)
}

func badRequest(c echo.Context, detail string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Status: "error", Detail: detail})
}

// bindFailed renders a binder error: 415 for a non-JSON body, 400 otherwise.
func bindFailed(c echo.Context, err error) error {
	code, detail := http.StatusBadRequest, err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		detail = fmt.Sprint(he.Message)
		if he.Code == http.StatusUnsupportedMediaType {
			code = he.Code
		}
	}
	return c.JSON(code, ErrorResponse{Status: "error", Detail: "invalid request body: " + detail})
}

func (s *Server) scrape(c echo.Context) error {
	var req ScrapeRequest
	if err := c.Bind(&req); err != nil {
		return bindFailed(c, err)
	}
	url := strings.TrimSpace(req.URL)
	if url == "" {
		return badRequest(c, "url is required")
	}

	outcome, err := s.deps.Ingester.Ingest(c.Request().Context(), url, s.cfg.IngestRetries+1, s.cfg.RetryDelay)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, ScrapeResponse{Status: "success", Record: outcome.Record})
}

// chat streams the reply as chunked text/plain. Errors before the first chunk
// are JSON; a failure after it appends an interruption notice to the body.
func (s *Server) chat(c echo.Context) error {
	var history []core.ConversationMessage
	if err := c.Bind(&history); err != nil {
		return bindFailed(c, err)
	}

	turn, err := s.deps.Answerer.Answer(c.Request().Context(), history)
	if err != nil {
		return s.fail(c, err)
	}

	resp := c.Response()
	started := false
	begin := func() {
		resp.Header().Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
		resp.Header().Set(echo.HeaderXContentTypeOptions, "nosniff")
		resp.Header().Set(echo.HeaderCacheControl, "no-cache")
		resp.WriteHeader(http.StatusOK)
		started = true
	}

	for chunk, err := range turn.All() {
		if err != nil {
			if !started {
				return s.fail(c, err)
			}
			s.logger.Warn("chat stream interrupted", "err", err)
			reason := strings.TrimPrefix(err.Error(), core.ErrGenerationInterrupted.Error()+": ")
			fmt.Fprintf(resp, "\n[generation interrupted: %s]\n", reason)
			resp.Flush()
			return nil
		}
		if !started {
			begin()
		}
		if _, werr := resp.Write([]byte(chunk)); werr != nil {
			s.logger.Debug("client went away", "err", werr)
			return nil
		}
		resp.Flush()
	}

	if !started {
		begin()
	}
	return nil
}

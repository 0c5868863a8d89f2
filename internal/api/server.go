// Package api exposes the mutation pipeline over HTTP.
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/peforge/internal/logger"
	"github.com/samcharles93/peforge/internal/mutator"
	"github.com/samcharles93/peforge/internal/pipeline"
	"github.com/samcharles93/peforge/internal/version"
	"github.com/samcharles93/peforge/pkg/pe"
)

const (
	HeaderReportID = "X-Peforge-Report-Id"
	HeaderSeed     = "X-Peforge-Seed"
	HeaderChanged  = "X-Peforge-Changed-Bytes"

	DefaultMaxBody int64 = 256 << 20
)

type Config struct {
	// MaxBody caps uploaded images in bytes. Zero means DefaultMaxBody.
	// A mutate request holds about twice this much while the pipeline runs.
	MaxBody int64
	// DefaultModules is used when a request names none.
	DefaultModules []string
	Log            logger.Logger
	// Seed returns the seed for requests that omit one.
	Seed func() uint64
}

type Server struct {
	maxBody  int64
	defaults []string
	log      logger.Logger
	seed     func() uint64
}

func NewServer(cfg Config) *Server {
	s := &Server{
		maxBody:  cfg.MaxBody,
		defaults: cfg.DefaultModules,
		log:      cfg.Log,
		seed:     cfg.Seed,
	}
	if s.maxBody <= 0 {
		s.maxBody = DefaultMaxBody
	}
	if s.log == nil {
		s.log = logger.Discard()
	}
	if s.seed == nil {
		s.seed = pipeline.RandomSeed
	}
	return s
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/v1/modules", s.handleModules)
	e.GET("/v1/version", s.handleVersion)
	e.POST("/v1/inspect", s.handleInspect)
	e.POST("/v1/mutate", s.handleMutate)
}

func (s *Server) handleModules(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"modules": mutator.Names()})
}

func (s *Server) handleVersion(c *echo.Context) error {
	return c.JSON(http.StatusOK, version.Resolve())
}

func (s *Server) handleInspect(c *echo.Context) error {
	body, err := s.readBody(c)
	if err != nil {
		return s.writeBodyError(c, err)
	}
	f, err := pe.Parse(body)
	if err != nil {
		return writeError(c, http.StatusUnprocessableEntity, "invalid_structure_error", err.Error(), "")
	}
	return c.JSON(http.StatusOK, f.Summary())
}

func (s *Server) handleMutate(c *echo.Context) error {
	names := mutator.ParseList(c.QueryParam("modules"))
	if len(names) == 0 {
		names = s.defaults
	}
	mods, err := mutator.Select(names)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	seed, err := s.parseSeed(c.QueryParam("seed"))
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	body, err := s.readBody(c)
	if err != nil {
		return s.writeBodyError(c, err)
	}

	p := pipeline.New(mods, s.log)
	rep, err := p.Run(c.Request().Context(), body, seed)
	if err != nil {
		module := ""
		var me *pipeline.ModuleError
		if errors.As(err, &me) {
			module = me.Module
		}
		if errors.Is(err, mutator.ErrInvalidStructure) || isParseError(err) {
			return writeError(c, http.StatusUnprocessableEntity, "invalid_structure_error", err.Error(), module)
		}
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), module)
	}

	h := c.Response().Header()
	h.Set(HeaderReportID, rep.ID)
	h.Set(HeaderSeed, strconv.FormatUint(rep.Seed, 10))
	h.Set(HeaderChanged, strconv.Itoa(rep.Changed()))
	return c.Blob(http.StatusOK, echo.MIMEOctetStream, body)
}

func (s *Server) parseSeed(raw string) (uint64, error) {
	if raw == "" {
		return s.seed(), nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, newInvalidRequest(fmt.Sprintf("invalid seed %q", raw))
	}
	return v, nil
}

func (s *Server) readBody(c *echo.Context) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, s.maxBody+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > s.maxBody {
		return nil, ErrBodyTooLarge
	}
	if len(body) == 0 {
		return nil, newInvalidRequest("empty request body")
	}
	return body, nil
}

func (s *Server) writeBodyError(c *echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrBodyTooLarge):
		return writeError(c, http.StatusRequestEntityTooLarge, "invalid_request_error",
			fmt.Sprintf("body exceeds %d bytes", s.maxBody), "")
	case errors.Is(err, ErrInvalidRequest):
		return writeBadRequest(c, err.Error())
	default:
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "")
	}
}

func isParseError(err error) bool {
	return errors.Is(err, pe.ErrCorruptFile) ||
		errors.Is(err, pe.ErrInvalidDOSMagic) ||
		errors.Is(err, pe.ErrInvalidSignature)
}

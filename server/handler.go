package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ahmed123sa/whatsapp-auto/backend"
	"github.com/Ahmed123sa/whatsapp-auto/contexthelper"
	"github.com/Ahmed123sa/whatsapp-auto/model"
	"github.com/Ahmed123sa/whatsapp-auto/storage"
	"github.com/Ahmed123sa/whatsapp-auto/workflow"
)

// Provisioner creates client groups.
type Provisioner interface {
	Provision(ctx context.Context, req model.GroupProvisionRequest) (*model.ProvisionResult, error)
}

// SessionStatus exposes the backend session.
type SessionStatus interface {
	Snapshot() model.Session
}

// GroupInfoReader reads a group roster from the backend.
type GroupInfoReader interface {
	GetGroupInfo(ctx context.Context, group backend.GroupHandle) (*model.GroupInfo, error)
}

type Server struct {
	port    int64
	engine  Provisioner
	session SessionStatus
	s       storage.Storage
	groups  GroupInfoReader
	infos   *cache.Cache // nil disables caching
	e       *echo.Echo
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Ready    bool               `json:"ready"`
	State    model.SessionState `json:"state"`
	QR       string             `json:"qr,omitempty"`
	Identity string             `json:"identity,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

// NewServer returns a new server. Group roster lookups are cached for infoTTL.
func NewServer(port int64, engine Provisioner, session SessionStatus, s storage.Storage, groups GroupInfoReader, infoTTL time.Duration, logger *log.Logger) *Server {
	srv := &Server{
		port:    port,
		engine:  engine,
		session: session,
		s:       s,
		groups:  groups,
		e:       echo.New(),
	}
	if infoTTL > 0 {
		srv.infos = cache.New(infoTTL, 2*infoTTL)
	}
	srv.e.HideBanner = true
	if logger != nil {
		srv.e.Logger = logger
	}
	srv.routes()
	return srv
}

func (s *Server) routes() {
	e := s.e
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	//enable cors
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit("1M"))
	e.GET("/ping", s.Ping)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	api := e.Group("/api")
	api.GET("/status", s.GetStatus)
	api.POST("/create-group", s.CreateGroup)
	api.GET("/groups", s.ListGroups)
	api.GET("/groups/:groupID", s.GetGroup)
}

func (s *Server) StartServer() error {
	err := s.e.Start(fmt.Sprintf(":%d", s.port))
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) StopServer() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	return s.e.Shutdown(ctx)
}

func (s *Server) Ping(c echo.Context) error {
	return c.String(http.StatusOK, "Group provisioner is running")
}

// GetStatus reports readiness and, while pairing, the challenge to render as a QR code.
func (s *Server) GetStatus(c echo.Context) error {
	snap := s.session.Snapshot()
	resp := StatusResponse{
		Ready:    snap.IsReady(),
		State:    snap.State,
		Identity: snap.BackendIdentity,
	}
	if snap.State == model.SessionAwaitingPairing {
		resp.QR = snap.PairingChallenge
	}
	return c.JSON(http.StatusOK, resp)
}

// CreateGroup provisions a group for a client. Follow-up work continues after the response.
func (s *Server) CreateGroup(c echo.Context) error {
	if contexthelper.CheckCancellation(c.Request().Context()) != nil {
		return c.NoContent(http.StatusRequestTimeout)
	}
	var req model.GroupProvisionRequest
	if err := c.Bind(&req); err != nil {
		c.Logger().Error(err)
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
	}
	req.ReceivedAt = time.Now()
	result, err := s.engine.Provision(c.Request().Context(), req)
	if err != nil {
		return s.provisionError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) provisionError(c echo.Context, err error) error {
	var werr *workflow.Error
	if !errors.As(err, &werr) {
		c.Logger().Errorf("fail to provision group, err: %s", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal error", Details: err.Error()})
	}
	resp := ErrorResponse{Error: werr.Message}
	status := http.StatusInternalServerError
	switch werr.Kind {
	case workflow.KindMissingInput:
		status = http.StatusBadRequest
	case workflow.KindBackendNotReady:
		status = http.StatusServiceUnavailable
		resp.Message = "Check /api/status and scan the pairing code"
	case workflow.KindInsufficientParticipants:
		status = http.StatusUnprocessableEntity
		resp.Details = werr.Details
	default:
		c.Logger().Errorf("fail to provision group, err: %s", err)
		resp.Details = werr.Details
	}
	return c.JSON(status, resp)
}

// ListGroups returns every provisioned group in creation order.
func (s *Server) ListGroups(c echo.Context) error {
	records, err := s.s.ListRecords(c.Request().Context())
	if err != nil {
		c.Logger().Errorf("fail to list records, err: %s", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to load groups"})
	}
	return c.JSON(http.StatusOK, records)
}

// GetGroup returns the backend roster of a group.
func (s *Server) GetGroup(c echo.Context) error {
	groupID := strings.TrimSpace(c.Param("groupID"))
	if groupID == "" {
		return c.NoContent(http.StatusBadRequest)
	}
	if s.infos != nil {
		if cached, ok := s.infos.Get(groupID); ok {
			return c.JSON(http.StatusOK, cached)
		}
	}
	if !s.session.Snapshot().IsReady() {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Messaging backend is not ready"})
	}
	info, err := s.groups.GetGroupInfo(c.Request().Context(), backend.GroupHandle{ID: groupID})
	if err != nil {
		c.Logger().Errorf("fail to get group %s, err: %s", groupID, err)
		if errors.Is(err, backend.ErrBackendUnavailable) {
			return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Messaging backend is not ready"})
		}
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Failed to load group", Details: err.Error()})
	}
	if s.infos != nil {
		s.infos.SetDefault(groupID, info)
	}
	return c.JSON(http.StatusOK, info)
}

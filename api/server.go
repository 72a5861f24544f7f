package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iov-one/microchan"
	"github.com/iov-one/microchan/crypto"
	"github.com/iov-one/microchan/errors"
	"github.com/iov-one/microchan/x/paychan"
	"github.com/tendermint/tendermint/libs/log"
)

// Service is the channel controller. It is implemented by
// paychan.Controller.
type Service interface {
	Create(context.Context, *paychan.CreateMsg) (*paychan.Channel, error)
	Get(ctx context.Context, id string) (*paychan.Channel, error)
	MakePayment(context.Context, *paychan.PaymentMsg) (*paychan.Payment, error)
	Payments(ctx context.Context, channelID string) ([]*paychan.Payment, error)
	Payment(ctx context.Context, paymentID string) (*paychan.Payment, error)
	UpdateChannel(context.Context, *paychan.UpdateMsg) (*paychan.Channel, error)
	Close(context.Context, *paychan.CloseMsg) (*paychan.Channel, error)
	ChallengeClose(context.Context, *paychan.ChallengeMsg) (*paychan.Channel, error)
	FinalizeClose(ctx context.Context, channelID string) (*paychan.Channel, error)
	DisputeTransaction(context.Context, *paychan.DisputeMsg) (*paychan.Dispute, error)
	ResolveDispute(context.Context, *paychan.ResolveMsg) (*paychan.Dispute, error)
	Disputes(ctx context.Context, channelID string) ([]*paychan.Dispute, error)
	Dispute(ctx context.Context, id int64) (*paychan.Dispute, error)
	Events(ctx context.Context, after uint64, limit int) ([]*paychan.Event, error)
	Stats(context.Context) (*paychan.Stats, error)
	Configuration(context.Context) (*paychan.Configuration, error)
}

var _ Service = (*paychan.Controller)(nil)

// Keys stores the public keys signatures are checked against. It is
// implemented by sigs.Registry.
type Keys interface {
	Register(pub crypto.PublicKey) (microchan.Address, error)
	Key(addr microchan.Address) (crypto.PublicKey, error)
}

// Wallets reports wallet balances. It is implemented by cash.Ledger.
type Wallets interface {
	Balance(addr microchan.Address) (uint64, error)
}

// DefaultMaxEvents limits a single events request.
const DefaultMaxEvents = 1000

// Server serves the HTTP API.
type Server struct {
	svc     Service
	keys    Keys
	wallets Wallets
	logger  log.Logger
	denom   Denomination
	info    map[string]interface{}
	status  map[string]func() interface{}
	debug   bool
	router  *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithDenomination sets how amounts are displayed.
func WithDenomination(d Denomination) Option {
	return func(s *Server) { s.denom = d }
}

// WithInfo adds a value to the GET /info response.
func WithInfo(key string, value interface{}) Option {
	return func(s *Server) { s.info[key] = value }
}

// WithStatus adds a value computed on every GET /info request.
func WithStatus(key string, fn func() interface{}) Option {
	return func(s *Server) { s.status[key] = fn }
}

// WithDebug makes error responses carry the full error message of
// internal errors instead of a generic one.
func WithDebug(debug bool) Option {
	return func(s *Server) { s.debug = debug }
}

// NewServer returns a server with all routes registered.
func NewServer(svc Service, keys Keys, wallets Wallets, opts ...Option) *Server {
	s := &Server{
		svc:     svc,
		keys:    keys,
		wallets: wallets,
		logger:  log.NewNopLogger(),
		info:    make(map[string]interface{}),
		status:  make(map[string]func() interface{}),
	}
	for _, fn := range opts {
		fn(s)
	}
	s.logger = s.logger.With("module", "api")
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(recoverer(s.logger), requestLogger(s.logger))
	r.NoRoute(func(c *gin.Context) {
		s.fail(c, errors.Wrapf(errors.ErrNotFound, "no route %s %s", c.Request.Method, c.Request.URL.Path))
	})

	r.GET("/info", s.getInfo)
	r.GET("/stats", s.getStats)
	r.GET("/events", s.listEvents)

	keys := r.Group("/keys")
	keys.POST("", s.registerKey)
	keys.GET("/:address", s.getKey)
	r.GET("/wallets/:address", s.getWallet)

	r.POST("/channels", s.createChannel)
	ch := r.Group("/channels/:id")
	{
		ch.GET("", s.getChannel)
		ch.GET("/payments", s.listPayments)
		ch.POST("/payments", s.makePayment)
		ch.GET("/payments/:seq", s.getPayment)
		ch.POST("/update", s.updateChannel)
		ch.POST("/close", s.closeChannel)
		ch.POST("/challenge", s.challengeClose)
		ch.POST("/finalize", s.finalizeClose)
		ch.GET("/disputes", s.listDisputes)
		ch.POST("/disputes", s.disputeTransaction)
		ch.POST("/disputes/resolve", s.resolveDispute)
	}
	r.GET("/disputes/:dispute", s.getDispute)
	return r
}

// ServeHTTP makes the server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is canceled, then shuts the
// listener down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- srv.Shutdown(shutdown)
	}()

	s.logger.Info("listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server")
	}
	return <-done
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Code  uint32 `json:"code"`
	Class string `json:"class"`
	Error string `json:"error"`
	// Fields lists the invalid request attributes of a validation error.
	Fields []string `json:"fields,omitempty"`
}

// statusOf maps an error class to the HTTP status code.
func statusOf(c paychan.Class) int {
	switch c {
	case paychan.Validation:
		return http.StatusBadRequest
	case paychan.StateConflict:
		return http.StatusConflict
	case paychan.Authorization:
		return http.StatusForbidden
	case paychan.NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	class := paychan.Classify(err)
	code, msg := errors.ABCIInfo(err, s.debug)
	if class == paychan.Internal {
		s.logger.Error("request failed", "path", c.Request.URL.Path, "err", err)
	}
	resp := errorResponse{
		Code:  code,
		Class: class.String(),
		Error: msg,
	}
	if class == paychan.Validation {
		resp.Fields = errors.Fields(err)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusOf(class), resp)
}

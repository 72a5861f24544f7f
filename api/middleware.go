package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iov-one/microchan"
	"github.com/iov-one/microchan/errors"
	"github.com/tendermint/tendermint/libs/log"
	"go.uber.org/atomic"
)

// recoverer turns a panic in a handler into an internal error response.
func recoverer(logger log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic", "path", c.Request.URL.Path, "recover", fmt.Sprint(r))
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{
					Code:  errors.ErrPanic.ABCICode(),
					Class: "internal",
					Error: "internal error",
				})
			}
		}()
		c.Next()
	}
}

// requestIDHeader is echoed back when the client sets it. Otherwise a
// sequential id is assigned.
const requestIDHeader = "X-Request-ID"

// requestLogger tags the request context with a request id, so that the
// controller logs carry it, and logs every completed request.
func requestLogger(logger log.Logger) gin.HandlerFunc {
	var seq atomic.Uint64
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = strconv.FormatUint(seq.Inc(), 10)
		}
		c.Header(requestIDHeader, id)
		ctx := microchan.WithLogInfo(c.Request.Context(), "request", id)
		c.Request = c.Request.WithContext(ctx)
		c.Next()

		keyvals := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"ip", c.ClientIP(),
		}
		l := microchan.Logger(ctx, logger)
		if len(c.Errors) > 0 {
			l.Debug("request rejected", append(keyvals, "err", c.Errors.String())...)
			return
		}
		l.Debug("request completed", keyvals...)
	}
}

package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// Header is the request ID header honored on ingress and set on egress.
	Header     = "X-Request-ID"
	contextKey = "request_id"

	// maxInboundLen caps caller-supplied IDs so log lines stay bounded.
	maxInboundLen = 64
)

// Middleware propagates the caller's request ID or mints a fresh one, and
// echoes it on the response so clients can quote it in support requests.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if id == "" || len(id) > maxInboundLen {
			id = uuid.NewString()
		}
		c.Set(contextKey, id)
		c.Writer.Header().Set(Header, id)
		c.Next()
	}
}

// Value returns the request ID for the current request, or "".
func Value(c *gin.Context) string {
	id, _ := c.Get(contextKey)
	s, _ := id.(string)
	return s
}

package middleware

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/triloka-construction-api/config"
	"github.com/unrolled/secure"
)

// SecureHeaders sets the standard security response headers and, in
// production, redirects plain HTTP requests to HTTPS.
func SecureHeaders(cfg *config.Config) gin.HandlerFunc {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'; style-src 'self' 'unsafe-inline'",
		SSLRedirect:           cfg.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})

	return func(c *gin.Context) {
		if err := secureMiddleware.Process(c.Writer, c.Request); err != nil {
			// Process has already written the redirect or rejection
			log.Printf("secure headers blocked request: %v", err)
			c.Abort()
			return
		}
		c.Next()
	}
}

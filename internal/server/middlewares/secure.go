package middlewares

import (
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
)

// SecureHeaders sets the usual response hardening headers. HSTS is only sent when serving TLS.
func SecureHeaders(tls bool) gin.HandlerFunc {
	config := secure.Config{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		IENoOpen:           true,
		ReferrerPolicy:     "no-referrer",
	}
	if tls {
		config.STSSeconds = 315360000
		config.STSIncludeSubdomains = true
	}
	return secure.New(config)
}

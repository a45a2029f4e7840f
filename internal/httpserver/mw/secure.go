package mw

import (
	"net/http"

	"github.com/unrolled/secure"
)

// SecureHeaders sets the security response headers. sslRedirect also
// redirects plain HTTP to HTTPS, honouring X-Forwarded-Proto.
func SecureHeaders(sslRedirect bool) func(http.Handler) http.Handler {
	s := secure.New(secure.Options{
		SSLRedirect:          sslRedirect,
		SSLProxyHeaders:      map[string]string{"X-Forwarded-Proto": "https"},
		FrameDeny:            true,
		ContentTypeNosniff:   true,
		BrowserXssFilter:     true,
		ReferrerPolicy:       "no-referrer",
		STSSeconds:           31536000,
		STSIncludeSubdomains: true,
	})
	return s.Handler
}

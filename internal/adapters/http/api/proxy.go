package api

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
)

// ProxyHandler forwards /proxy/* to the configured provider endpoint so
// browser clients can reach it without exposing credentials, with the
// strict quota applied upstream of the forward.
type ProxyHandler struct {
	proxy  *httputil.ReverseProxy
	target *url.URL
}

// NewProxyHandler creates a proxy to target. An empty or invalid target
// disables the endpoint.
func NewProxyHandler(target string) *ProxyHandler {
	h := &ProxyHandler{}
	if target == "" {
		return h
	}
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return h
	}
	h.target = u
	h.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(u)
			pr.Out.URL.Path = strings.TrimPrefix(pr.In.URL.Path, "/proxy")
			pr.Out.Host = u.Host
		},
	}
	return h
}

// HandleProxy responds to any verb under /proxy/.
func (h *ProxyHandler) HandleProxy(w http.ResponseWriter, r *http.Request) {
	if h.proxy == nil {
		writeError(w, http.StatusNotFound, "proxy_disabled")
		return
	}
	h.proxy.ServeHTTP(w, r)
}

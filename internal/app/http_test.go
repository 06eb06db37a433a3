package app

import (
	"net/http"
	"testing"
	"time"
)

func TestNewHTTPClient_Config(t *testing.T) {
	c := newHTTPClient(7 * time.Second)
	if c.Timeout != 7*time.Second {
		t.Fatalf("timeout = %v", c.Timeout)
	}
	tr, ok := c.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected http.Transport")
	}
	if tr == http.DefaultTransport {
		t.Fatalf("transport should not be default")
	}
	if tr.MaxIdleConnsPerHost < 2 || tr.Proxy == nil {
		t.Fatalf("transport = %+v", tr)
	}
}

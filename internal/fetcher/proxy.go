package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// Proxy errors.
var (
	// ErrInvalidProxy is returned for a proxy URL that is not
	// socks5://, http:// or https:// with a host and port.
	ErrInvalidProxy = errors.New("invalid proxy: expected socks5://host:port or http(s)://host:port")

	// ErrProxyUnreachable is returned by CheckProxy when nothing answers
	// at the proxy address.
	ErrProxyUnreachable = errors.New("proxy unreachable")

	// ErrNotSOCKS5 is returned by CheckProxy when the proxy does not speak
	// SOCKS5 without authentication.
	ErrNotSOCKS5 = errors.New("proxy is not a SOCKS5 proxy accepting unauthenticated clients")
)

// maxRedirects is the number of redirects the static renderer follows.
const maxRedirects = 10

// proxyCheckTimeout bounds the SOCKS5 handshake of CheckProxy.
const proxyCheckTimeout = 2 * time.Second

// ParseProxy validates a proxy URL. Credentials in the URL are kept and
// used for SOCKS5 authentication.
func ParseProxy(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProxy, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "socks5", "socks5h", "http", "https":
	default:
		return nil, ErrInvalidProxy
	}
	if u.Hostname() == "" || u.Port() == "" {
		return nil, ErrInvalidProxy
	}
	return u, nil
}

// NewHTTPClient returns the client used by the static renderer: a cookie
// jar, a bounded redirect chain, and, when proxyURL is not empty, every
// connection routed through the proxy.
func NewHTTPClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // documented type

	if proxyURL != "" {
		u, err := ParseProxy(proxyURL)
		if err != nil {
			return nil, err
		}
		if strings.HasPrefix(strings.ToLower(u.Scheme), "socks5") {
			dialer, err := socks5Dialer(u)
			if err != nil {
				return nil, err
			}
			transport.Proxy = nil
			transport.DialContext = dialer.DialContext
		} else {
			transport.Proxy = http.ProxyURL(u)
		}
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

func socks5Dialer(u *url.URL) (proxy.ContextDialer, error) {
	var auth *proxy.Auth
	if u.User != nil {
		password, _ := u.User.Password()
		auth = &proxy.Auth{User: u.User.Username(), Password: password}
	}
	d, err := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("create SOCKS5 dialer: %w", err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, errors.New("SOCKS5 dialer does not support contexts")
	}
	return cd, nil
}

// CheckProxy verifies that a SOCKS5 proxy answers the unauthenticated
// greeting. HTTP proxies are only checked for reachability.
func CheckProxy(ctx context.Context, proxyURL string) error {
	u, err := ParseProxy(proxyURL)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, proxyCheckTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", u.Host)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrProxyUnreachable, u.Host, err)
	}
	defer conn.Close()

	if !strings.HasPrefix(strings.ToLower(u.Scheme), "socks5") || u.User != nil {
		return nil
	}

	if err := conn.SetDeadline(time.Now().Add(proxyCheckTimeout)); err != nil {
		return fmt.Errorf("%w: %v", ErrProxyUnreachable, err)
	}

	// Version 5, one method offered: no authentication.
	if _, err := conn.Write([]byte{0x05, 0x01, 0x00}); err != nil {
		return fmt.Errorf("%w: %v", ErrProxyUnreachable, err)
	}
	reply := make([]byte, 2)
	if _, err := io.ReadFull(conn, reply); err != nil {
		return ErrNotSOCKS5
	}
	if reply[0] != 0x05 || reply[1] != 0x00 {
		return ErrNotSOCKS5
	}
	return nil
}

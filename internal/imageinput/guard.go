package imageinput

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"
)

const maxRedirects = 10

var errNotPublic = errors.New("address is not public")

func isBlockedIP(ip net.IP) bool {
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}

// NewPublicClient returns a client that only connects to public addresses.
// The check runs on the dialed address, so it also covers redirect hops and
// hosts whose DNS answer changes after the first lookup.
func NewPublicClient(timeout time.Duration) *http.Client {
	return newGuardedClient(timeout, isBlockedIP)
}

func newGuardedClient(timeout time.Duration, blocked func(net.IP) bool) *http.Client {
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: dialControl(blocked),
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.Proxy = nil
	tr.DialContext = dialer.DialContext

	return &http.Client{
		Timeout:   timeout,
		Transport: tr,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return checkScheme(req.URL)
		},
	}
}

func dialControl(blocked func(net.IP) bool) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, _ syscall.RawConn) error {
		host, _, err := net.SplitHostPort(address)
		if err != nil {
			return err
		}
		ip := net.ParseIP(host)
		if ip == nil || blocked(ip) {
			return fmt.Errorf("%w: %s", errNotPublic, host)
		}
		return nil
	}
}

func checkScheme(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q not allowed", u.Scheme)
	}
	return nil
}

// checkPublicURL rejects non-http schemes and hosts that currently resolve
// to private, loopback or link-local addresses. It fails fast before any
// request; NewPublicClient enforces the same rule at connect time.
func checkPublicURL(rawURL string) error {
	u, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if err := checkScheme(u); err != nil {
		return err
	}

	host := u.Hostname()
	var ips []net.IP
	if ip := net.ParseIP(host); ip != nil {
		ips = []net.IP{ip}
	} else {
		ips, err = net.LookupIP(host)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", host, err)
		}
	}
	if len(ips) == 0 {
		return fmt.Errorf("no addresses for %s", host)
	}

	for _, ip := range ips {
		if isBlockedIP(ip) {
			return fmt.Errorf("%w: %s", errNotPublic, ip)
		}
	}
	return nil
}

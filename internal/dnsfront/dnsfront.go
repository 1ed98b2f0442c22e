// Package dnsfront is the interception path: a DNS server that consults
// the filtering backend per query. Blocked names get a synthesized
// null-routed answer; everything else is forwarded upstream with
// strict-order failover.
package dnsfront

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/sys/unix"

	"github.com/jroosing/domainguard/internal/engine"
	"github.com/jroosing/domainguard/internal/rules"
)

const (
	blockedTTL     = 60 // short, so unblocking takes effect quickly
	defaultTimeout = 3 * time.Second
)

// Server answers DNS queries against the filtering backend.
type Server struct {
	Logger     *slog.Logger
	Backend    engine.Backend
	Upstreams  []string // tried in order until one answers
	RedirectIP string   // answer for redirect-action decisions
	Timeout    time.Duration

	client  *dns.Client
	mu      sync.Mutex
	servers []*dns.Server
}

// Run binds `workers` UDP listeners on addr with SO_REUSEPORT so the
// kernel spreads queries across them, and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string, workers int) error {
	if workers <= 0 {
		workers = 1
	}
	s.init()

	for i := 0; i < workers; i++ {
		pc, err := listenUDPReusePort(ctx, addr)
		if err != nil {
			s.shutdown()
			return fmt.Errorf("dnsfront: listener %d: %w", i, err)
		}
		srv := &dns.Server{PacketConn: pc, Handler: s}

		s.mu.Lock()
		s.servers = append(s.servers, srv)
		s.mu.Unlock()

		go func(srv *dns.Server) {
			if err := srv.ActivateAndServe(); err != nil && ctx.Err() == nil && s.Logger != nil {
				s.Logger.Error("dns listener exited", "error", err)
			}
		}(srv)
	}

	if s.Logger != nil {
		s.Logger.Info("dns front-end listening", "addr", addr, "workers", workers)
	}

	<-ctx.Done()
	s.shutdown()
	return nil
}

// ServeOn serves on an existing packet connection. Used by tests and by
// callers that manage the socket themselves.
func (s *Server) ServeOn(pc net.PacketConn) error {
	s.init()
	srv := &dns.Server{PacketConn: pc, Handler: s}

	s.mu.Lock()
	s.servers = append(s.servers, srv)
	s.mu.Unlock()

	return srv.ActivateAndServe()
}

// Stop shuts every listener down.
func (s *Server) Stop() {
	s.shutdown()
}

func (s *Server) init() {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	s.client = &dns.Client{Net: "udp", Timeout: timeout}
}

func (s *Server) shutdown() {
	s.mu.Lock()
	servers := s.servers
	s.servers = nil
	s.mu.Unlock()
	for _, srv := range servers {
		_ = srv.Shutdown()
	}
}

// ServeDNS implements dns.Handler.
func (s *Server) ServeDNS(w dns.ResponseWriter, req *dns.Msg) {
	if len(req.Question) == 0 {
		m := new(dns.Msg)
		m.SetRcode(req, dns.RcodeFormatError)
		_ = w.WriteMsg(m)
		return
	}

	q := req.Question[0]
	name := strings.TrimSuffix(q.Name, ".")

	d := s.Backend.ShouldBlock(name, "")
	switch d.Action {
	case rules.ActionBlock:
		s.writeSynthesized(w, req, q, "0.0.0.0", "::")
	case rules.ActionRedirect:
		target := s.RedirectIP
		if target == "" {
			target = "0.0.0.0"
		}
		s.writeSynthesized(w, req, q, target, target)
	default:
		s.forward(w, req)
	}
}

// writeSynthesized answers A/AAAA with the given addresses and anything
// else with an empty NOERROR, so blocked clients fail fast instead of
// retrying.
func (s *Server) writeSynthesized(w dns.ResponseWriter, req *dns.Msg, q dns.Question, v4, v6 string) {
	m := new(dns.Msg)
	m.SetReply(req)

	hdr := dns.RR_Header{Name: q.Name, Class: dns.ClassINET, Ttl: blockedTTL}
	switch q.Qtype {
	case dns.TypeA:
		if ip := net.ParseIP(v4); ip != nil && ip.To4() != nil {
			hdr.Rrtype = dns.TypeA
			m.Answer = append(m.Answer, &dns.A{Hdr: hdr, A: ip.To4()})
		}
	case dns.TypeAAAA:
		if ip := net.ParseIP(v6); ip != nil {
			hdr.Rrtype = dns.TypeAAAA
			m.Answer = append(m.Answer, &dns.AAAA{Hdr: hdr, AAAA: ip.To16()})
		}
	}
	_ = w.WriteMsg(m)
}

// forward relays the query upstream, first answer wins. All upstreams
// failing yields SERVFAIL.
func (s *Server) forward(w dns.ResponseWriter, req *dns.Msg) {
	for _, upstream := range s.Upstreams {
		addr := upstream
		if _, _, err := net.SplitHostPort(addr); err != nil {
			addr = net.JoinHostPort(addr, "53")
		}
		resp, _, err := s.client.Exchange(req, addr)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Debug("upstream exchange failed", "upstream", addr, "error", err)
			}
			continue
		}
		_ = w.WriteMsg(resp)
		return
	}

	m := new(dns.Msg)
	m.SetRcode(req, dns.RcodeServerFailure)
	_ = w.WriteMsg(m)
}

// listenUDPReusePort creates a UDP listener with SO_REUSEPORT enabled so
// multiple listeners can bind the same address and the kernel load
// balances between them.
func listenUDPReusePort(ctx context.Context, addr string) (net.PacketConn, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
		},
	}
	return lc.ListenPacket(ctx, "udp", addr)
}

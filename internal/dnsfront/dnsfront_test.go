package dnsfront

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jroosing/domainguard/internal/database"
	"github.com/jroosing/domainguard/internal/rules"
)

// stubBackend implements engine.Backend for handler-level tests.
type stubBackend struct {
	blocked    map[string]bool
	redirected map[string]bool
}

func (b *stubBackend) Initialize(context.Context) error     { return nil }
func (b *stubBackend) LoadBlocklists(context.Context) error { return nil }
func (b *stubBackend) ApplyChanges(context.Context) error   { return nil }
func (b *stubBackend) Revert(context.Context) error         { return nil }
func (b *stubBackend) Statistics() (database.Stats, error)  { return database.Stats{}, nil }

func (b *stubBackend) ShouldBlock(domain, _ string) rules.Decision {
	if b.blocked[domain] {
		return rules.Decision{Action: rules.ActionBlock, Reason: rules.ReasonBlocklistMatch}
	}
	if b.redirected[domain] {
		return rules.Decision{Action: rules.ActionRedirect, Reason: rules.ReasonCustomRule}
	}
	return rules.Decision{Action: rules.ActionAllow, Reason: rules.ReasonNotBlocked}
}

// startUpstream runs a fake upstream that answers every A query with
// 198.51.100.7.
func startUpstream(t *testing.T) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &dns.Server{
		PacketConn: pc,
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
			m := new(dns.Msg)
			m.SetReply(req)
			if len(req.Question) > 0 && req.Question[0].Qtype == dns.TypeA {
				m.Answer = append(m.Answer, &dns.A{
					Hdr: dns.RR_Header{
						Name: req.Question[0].Name, Rrtype: dns.TypeA,
						Class: dns.ClassINET, Ttl: 300,
					},
					A: net.ParseIP("198.51.100.7").To4(),
				})
			}
			_ = w.WriteMsg(m)
		}),
	}
	go func() { _ = srv.ActivateAndServe() }()
	t.Cleanup(func() { _ = srv.Shutdown() })

	return pc.LocalAddr().String()
}

func startFront(t *testing.T, s *Server) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() { _ = s.ServeOn(pc) }()
	t.Cleanup(s.Stop)

	return pc.LocalAddr().String()
}

func exchange(t *testing.T, addr, name string, qtype uint16) *dns.Msg {
	t.Helper()

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)

	c := &dns.Client{Net: "udp", Timeout: 2 * time.Second}
	resp, _, err := c.Exchange(m, addr)
	require.NoError(t, err)
	return resp
}

func TestBlockedDomainGetsNullAnswer(t *testing.T) {
	front := &Server{
		Backend:   &stubBackend{blocked: map[string]bool{"ads.example.com": true}},
		Upstreams: nil,
	}
	addr := startFront(t, front)

	resp := exchange(t, addr, "ads.example.com", dns.TypeA)
	require.Len(t, resp.Answer, 1)
	a, ok := resp.Answer[0].(*dns.A)
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0", a.A.String())

	resp = exchange(t, addr, "ads.example.com", dns.TypeAAAA)
	require.Len(t, resp.Answer, 1)
	aaaa, ok := resp.Answer[0].(*dns.AAAA)
	require.True(t, ok)
	assert.Equal(t, "::", aaaa.AAAA.String())
}

func TestBlockedDomainOtherTypesGetEmptyNoError(t *testing.T) {
	front := &Server{
		Backend: &stubBackend{blocked: map[string]bool{"ads.example.com": true}},
	}
	addr := startFront(t, front)

	resp := exchange(t, addr, "ads.example.com", dns.TypeMX)
	assert.Equal(t, dns.RcodeSuccess, resp.Rcode)
	assert.Empty(t, resp.Answer)
}

func TestAllowedDomainForwardsUpstream(t *testing.T) {
	upstream := startUpstream(t)
	front := &Server{
		Backend:   &stubBackend{},
		Upstreams: []string{upstream},
	}
	addr := startFront(t, front)

	resp := exchange(t, addr, "fine.example.org", dns.TypeA)
	require.Len(t, resp.Answer, 1)
	a, ok := resp.Answer[0].(*dns.A)
	require.True(t, ok)
	assert.Equal(t, "198.51.100.7", a.A.String())
}

func TestUpstreamFailover(t *testing.T) {
	upstream := startUpstream(t)
	front := &Server{
		Backend: &stubBackend{},
		// First upstream is unreachable; the second answers.
		Upstreams: []string{"127.0.0.1:1", upstream},
		Timeout:   500 * time.Millisecond,
	}
	addr := startFront(t, front)

	resp := exchange(t, addr, "fine.example.org", dns.TypeA)
	require.Len(t, resp.Answer, 1)
}

func TestAllUpstreamsFailingYieldsServfail(t *testing.T) {
	front := &Server{
		Backend:   &stubBackend{},
		Upstreams: []string{"127.0.0.1:1"},
		Timeout:   300 * time.Millisecond,
	}
	addr := startFront(t, front)

	resp := exchange(t, addr, "fine.example.org", dns.TypeA)
	assert.Equal(t, dns.RcodeServerFailure, resp.Rcode)
}

func TestRedirectAnswersConfiguredTarget(t *testing.T) {
	front := &Server{
		Backend:    &stubBackend{redirected: map[string]bool{"internal.example.com": true}},
		RedirectIP: "192.0.2.10",
	}
	addr := startFront(t, front)

	resp := exchange(t, addr, "internal.example.com", dns.TypeA)
	require.Len(t, resp.Answer, 1)
	a, ok := resp.Answer[0].(*dns.A)
	require.True(t, ok)
	assert.Equal(t, "192.0.2.10", a.A.String())
}

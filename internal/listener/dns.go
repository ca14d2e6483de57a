package listener

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/forcetrace/forcetrace/internal/config"
	"github.com/forcetrace/forcetrace/internal/correlation"
	"github.com/forcetrace/forcetrace/internal/logger"
	"github.com/forcetrace/forcetrace/pkg/types"
)

// DNSListener receives DNS-transport OOB callbacks. A vulnerable target
// resolving <TOKEN>.<callback domain> is often the only signal that comes
// back from egress-filtered environments, and it is much harder for an
// attacker to fabricate than an HTTP ping.
type DNSListener struct {
	cfg    config.DNSConfig
	engine *correlation.Engine
	server *dns.Server
	logger *logger.Logger
}

func NewDNSListener(cfg config.DNSConfig, engine *correlation.Engine, log *logger.Logger) *DNSListener {
	return &DNSListener{
		cfg:    cfg,
		engine: engine,
		logger: log.WithComponent("dns-listener"),
	}
}

// Serve answers queries until Shutdown. Every query gets a NOERROR answer
// regardless of correlation outcome so the resolving side sees nothing
// unusual.
func (l *DNSListener) Serve(ctx context.Context) error {
	mux := dns.NewServeMux()
	mux.HandleFunc(dns.Fqdn(l.cfg.CallbackDomain), l.handleQuery)

	l.server = &dns.Server{
		Addr:    l.cfg.ListenAddr,
		Net:     "udp",
		Handler: mux,
	}

	l.logger.Infow("DNS listener starting",
		"addr", l.cfg.ListenAddr,
		"domain", l.cfg.CallbackDomain,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- l.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return l.server.ShutdownContext(shutdownCtx)
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("dns server failed: %w", err)
		}
		return nil
	}
}

func (l *DNSListener) handleQuery(w dns.ResponseWriter, r *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(r)

	for _, q := range r.Question {
		if q.Qtype == dns.TypeA || q.Qtype == dns.TypeANY {
			rr := &dns.A{
				Hdr: dns.RR_Header{
					Name:   q.Name,
					Rrtype: dns.TypeA,
					Class:  dns.ClassINET,
					Ttl:    60,
				},
				A: net.ParseIP(l.cfg.AnswerIP),
			}
			m.Answer = append(m.Answer, rr)
		}

		if token := l.extractToken(q.Name); token != "" {
			sourceIP := ""
			if addr, ok := w.RemoteAddr().(*net.UDPAddr); ok {
				sourceIP = addr.IP.String()
			}

			// Fire-and-forget: the querying resolver must not wait on
			// the correlation pipeline.
			go l.report(token, sourceIP)
		}
	}

	if err := w.WriteMsg(m); err != nil {
		l.logger.Warnw("failed to write dns reply", "error", err)
	}
}

// extractToken pulls the correlation token from the first label of a
// query under the callback domain. Anything that does not look like a
// token (no underscore separator) is ignored as resolver noise.
func (l *DNSListener) extractToken(qname string) string {
	name := strings.TrimSuffix(strings.ToLower(qname), ".")
	suffix := "." + strings.ToLower(l.cfg.CallbackDomain)
	if !strings.HasSuffix(name, suffix) {
		return ""
	}

	labels := strings.Split(strings.TrimSuffix(name, suffix), ".")
	if len(labels) == 0 {
		return ""
	}
	token := strings.ToUpper(labels[0])
	if !strings.Contains(token, "_") {
		return ""
	}
	// DNS lowercases on the wire; tokens are PREFIX_hex so only the
	// prefix needs restoring, and hex is case-insensitive on lookup.
	parts := strings.SplitN(token, "_", 2)
	return parts[0] + "_" + strings.ToLower(parts[1])
}

func (l *DNSListener) report(token, sourceIP string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	event := &correlation.RawEvent{
		Token:        token,
		CallbackType: types.CallbackDNS,
		SourceIP:     sourceIP,
		ReceivedAt:   time.Now().UTC(),
	}

	result, err := l.engine.HandleCallback(ctx, event)
	if err != nil {
		l.logger.Warnw("dns callback rejected", "token", token, "error", err)
		return
	}
	l.logger.Infow("dns callback processed",
		"token", token,
		"confidence", result.Confidence,
		"score", result.Score,
		"filtered", result.Filtered,
	)
}

package inbound

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/google/uuid"

	"github.com/znz-systems/mailbrief/internal/alias"
)

const maxMessageBytes = 10 * 1024 * 1024

var errNoRecipient = errors.New("no valid recipient")

// Server accepts mail for subscriber aliases over SMTP and records it the
// same way the mailbox poller does.
type Server struct {
	smtpServer *smtp.Server
	recorder   *Recorder
	domain     string
	onStored   func(ctx context.Context, key string)
}

func NewServer(addr, domain string, recorder *Recorder, opts PollerOptions) *Server {
	s := &Server{
		recorder: recorder,
		domain:   strings.ToLower(strings.TrimSpace(domain)),
		onStored: opts.OnStored,
	}

	smtpSrv := smtp.NewServer(s)
	smtpSrv.Addr = addr
	smtpSrv.Domain = s.domain
	smtpSrv.ReadTimeout = 30 * time.Second
	smtpSrv.WriteTimeout = 30 * time.Second
	smtpSrv.MaxMessageBytes = maxMessageBytes
	smtpSrv.MaxRecipients = 1

	s.smtpServer = smtpSrv
	return s
}

func (s *Server) Start() error {
	slog.Info("inbound SMTP server starting", "addr", s.smtpServer.Addr)
	return s.smtpServer.ListenAndServe()
}

func (s *Server) Shutdown() error {
	return s.smtpServer.Close()
}

// NewSession implements smtp.Backend.
func (s *Server) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &session{server: s}, nil
}

// accepts reports whether addr is an alias on the served domain.
func (s *Server) accepts(addr string) bool {
	if _, ok := alias.Decode(addr); !ok {
		return false
	}
	if s.domain == "" {
		return true
	}
	return strings.HasSuffix(addr, "@"+s.domain)
}

type session struct {
	server *Server
	from   string
	to     string
}

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	s.from = from
	return nil
}

func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	addr := strings.ToLower(strings.TrimSpace(to))
	if !s.server.accepts(addr) {
		slog.Warn("inbound email to unknown address", "to", addr)
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 1, 1},
			Message:      "no such recipient",
		}
	}
	s.to = addr
	return nil
}

func (s *session) Data(r io.Reader) error {
	if s.to == "" {
		return errNoRecipient
	}

	raw, err := io.ReadAll(io.LimitReader(r, maxMessageBytes))
	if err != nil {
		return err
	}

	ctx := context.Background()
	key, err := s.server.recorder.Record(ctx, "smtp:"+uuid.NewString(), s.to, raw)
	if err != nil {
		slog.Error("failed to record inbound email", "from", s.from, "to", s.to, "error", err)
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 3, 0},
			Message:      "temporary storage failure",
		}
	}

	slog.Info("inbound email recorded", "from", s.from, "to", s.to, "key", key)
	if s.server.onStored != nil {
		s.server.onStored(ctx, key)
	}
	return nil
}

func (s *session) Reset() {
	s.from = ""
	s.to = ""
}

func (s *session) Logout() error {
	return nil
}

// Package mailbox is a narrow IMAP client for the shared ingestion inbox. It
// exposes only what the poller needs: search unseen, fetch, mark seen and
// logout.
package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/znz-systems/mailbrief/internal/config"
	"github.com/znz-systems/mailbrief/internal/stage"
)

var ErrMessageGone = errors.New("mailbox message no longer exists")

// Session is one authenticated, selected IMAP connection.
type Session interface {
	SearchUnseen(ctx context.Context) ([]imap.UID, error)
	Fetch(ctx context.Context, uid imap.UID) ([]byte, error)
	MarkSeen(ctx context.Context, uid imap.UID) error
	Logout() error
}

// Dialer opens sessions. Sessions are scoped to a single poll run; the
// dialer itself is built once per process.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

type TLSDialer struct {
	cfg       config.MailboxConfig
	tlsConfig *tls.Config
}

func NewDialer(cfg config.MailboxConfig) *TLSDialer {
	return &TLSDialer{
		cfg:       cfg,
		tlsConfig: &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12},
	}
}

func (d *TLSDialer) Dial(ctx context.Context) (Session, error) {
	addr := net.JoinHostPort(d.cfg.Host, strconv.Itoa(d.cfg.Port))
	nd := &net.Dialer{Timeout: d.cfg.Timeout}
	raw, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial imap %s: %w", stage.ErrTransientIO, addr, err)
	}
	conn := tls.Client(raw, d.tlsConfig)

	s := &session{conn: conn, timeout: d.cfg.Timeout}
	if err := s.arm(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: imap tls handshake: %w", stage.ErrTransientIO, err)
	}

	s.client = imapclient.New(conn, nil)
	if err := s.client.Login(d.cfg.Username, d.cfg.Password).Wait(); err != nil {
		s.client.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	if _, err := s.client.Select(d.cfg.Mailbox, nil).Wait(); err != nil {
		s.client.Close()
		return nil, fmt.Errorf("imap select %s: %w", d.cfg.Mailbox, err)
	}
	return s, nil
}

type session struct {
	conn    net.Conn
	client  *imapclient.Client
	timeout time.Duration
}

// arm sets the connection deadline for the next command so that no call
// blocks longer than the configured timeout or the context deadline.
func (s *session) arm(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.conn.SetDeadline(deadline(ctx, time.Now(), s.timeout))
}

func deadline(ctx context.Context, now time.Time, timeout time.Duration) time.Time {
	d := now.Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}

func (s *session) SearchUnseen(ctx context.Context) ([]imap.UID, error) {
	if err := s.arm(ctx); err != nil {
		return nil, err
	}
	data, err := s.client.UIDSearch(&imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("%w: imap search unseen: %w", stage.ErrTransientIO, err)
	}
	return data.AllUIDs(), nil
}

func (s *session) Fetch(ctx context.Context, uid imap.UID) ([]byte, error) {
	if err := s.arm(ctx); err != nil {
		return nil, err
	}
	// Peek keeps the message unseen until it has been stored.
	msgs, err := s.client.Fetch(imap.UIDSetNum(uid), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{{Peek: true}},
	}).Collect()
	if err != nil {
		return nil, fmt.Errorf("%w: imap fetch %d: %w", stage.ErrTransientIO, uid, err)
	}
	if len(msgs) == 0 || len(msgs[0].BodySection) == 0 {
		return nil, fmt.Errorf("%w: uid %d", ErrMessageGone, uid)
	}
	return msgs[0].BodySection[0].Bytes, nil
}

func (s *session) MarkSeen(ctx context.Context, uid imap.UID) error {
	if err := s.arm(ctx); err != nil {
		return err
	}
	err := s.client.Store(imap.UIDSetNum(uid), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil).Close()
	if err != nil {
		return fmt.Errorf("%w: imap mark seen %d: %w", stage.ErrTransientIO, uid, err)
	}
	return nil
}

func (s *session) Logout() error {
	_ = s.conn.SetDeadline(time.Now().Add(s.timeout))
	err := s.client.Logout().Wait()
	if cerr := s.client.Close(); err == nil {
		err = cerr
	}
	return err
}

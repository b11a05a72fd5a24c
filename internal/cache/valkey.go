package cache

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// ValkeyProvider implements Provider against a Valkey/Redis-compatible
// server using a minimal RESP codec. Connections are dialed per command;
// the query volume here (a handful of cache lookups per analysis) does not
// justify pooling.
type ValkeyProvider struct {
	cfg ValkeyConfig
}

// ValkeyConfig holds connection parameters for the Valkey server.
type ValkeyConfig struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxRetries   int
	TLS          bool
}

// NewValkeyProvider creates a Provider and pings the target so bad
// credentials or connectivity fail fast.
func NewValkeyProvider(cfg ValkeyConfig) (*ValkeyProvider, error) {
	if cfg.Addr == "" {
		return nil, errors.New("valkey addr is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 500 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 500 * time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}

	p := &ValkeyProvider{cfg: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	reply, err := p.do(ctx, "PING")
	if err != nil {
		return nil, err
	}
	if !reply.isStatus("PONG") {
		return nil, fmt.Errorf("unexpected PING response: %s", reply.data)
	}
	return p, nil
}

// Get fetches bytes by key, returning ErrCacheMiss when the key is absent.
func (p *ValkeyProvider) Get(ctx context.Context, key string) ([]byte, error) {
	reply, err := p.do(ctx, "GET", key)
	if err != nil {
		return nil, err
	}
	if reply.nil_ {
		return nil, ErrCacheMiss
	}
	return reply.data, nil
}

// Set stores bytes with the provided TTL.
func (p *ValkeyProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := []string{"SET", key, string(value)}
	if ttl > 0 {
		args = append(args, "PX", strconv.FormatInt(ttl.Milliseconds(), 10))
	}
	reply, err := p.do(ctx, args...)
	if err != nil {
		return err
	}
	if !reply.isStatus("OK") {
		return fmt.Errorf("unexpected SET response: %s", reply.data)
	}
	return nil
}

// Del removes a key from the cache.
func (p *ValkeyProvider) Del(ctx context.Context, key string) error {
	_, err := p.do(ctx, "DEL", key)
	return err
}

// Close closes the provider (connections are per-command, nothing to free).
func (p *ValkeyProvider) Close() error { return nil }

type reply struct {
	data []byte
	nil_ bool
}

func (r reply) isStatus(s string) bool {
	return strings.EqualFold(string(r.data), s)
}

// do sends one command, retrying transient network errors with backoff.
func (p *ValkeyProvider) do(ctx context.Context, args ...string) (reply, error) {
	var lastErr error
	for attempt := 0; attempt < p.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return reply{}, ctx.Err()
		}
		r, err := p.roundTrip(ctx, args)
		if err == nil {
			return r, nil
		}
		lastErr = err
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() && attempt < p.cfg.MaxRetries-1 {
			time.Sleep(time.Duration(1<<attempt) * 25 * time.Millisecond)
			continue
		}
		return reply{}, err
	}
	return reply{}, lastErr
}

func (p *ValkeyProvider) roundTrip(ctx context.Context, args []string) (reply, error) {
	conn, err := p.dial(ctx)
	if err != nil {
		return reply{}, err
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	if err := p.handshake(conn, reader, writer); err != nil {
		return reply{}, err
	}
	if err := p.send(conn, writer, args); err != nil {
		return reply{}, err
	}
	return p.receive(conn, reader)
}

func (p *ValkeyProvider) dial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: p.dialDeadline(ctx)}
	if p.cfg.TLS {
		host := p.cfg.Addr
		if h, _, err := net.SplitHostPort(p.cfg.Addr); err == nil {
			host = h
		}
		return tls.DialWithDialer(&dialer, "tcp", p.cfg.Addr, &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: host,
		})
	}
	return dialer.DialContext(ctx, "tcp", p.cfg.Addr)
}

func (p *ValkeyProvider) dialDeadline(ctx context.Context) time.Duration {
	d := p.cfg.DialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && remaining < d {
			return remaining
		}
	}
	return d
}

// handshake authenticates and selects the database on a fresh connection.
func (p *ValkeyProvider) handshake(conn net.Conn, reader *bufio.Reader, writer *bufio.Writer) error {
	if p.cfg.Password != "" {
		cmd := []string{"AUTH", p.cfg.Password}
		if p.cfg.Username != "" {
			cmd = []string{"AUTH", p.cfg.Username, p.cfg.Password}
		}
		if err := p.send(conn, writer, cmd); err != nil {
			return err
		}
		r, err := p.receive(conn, reader)
		if err != nil {
			return err
		}
		if !r.isStatus("OK") {
			return fmt.Errorf("auth failed: %s", r.data)
		}
	}
	if p.cfg.DB > 0 {
		if err := p.send(conn, writer, []string{"SELECT", strconv.Itoa(p.cfg.DB)}); err != nil {
			return err
		}
		r, err := p.receive(conn, reader)
		if err != nil {
			return err
		}
		if !r.isStatus("OK") {
			return fmt.Errorf("select failed: %s", r.data)
		}
	}
	return nil
}

func (p *ValkeyProvider) send(conn net.Conn, writer *bufio.Writer, args []string) error {
	if err := conn.SetWriteDeadline(time.Now().Add(p.cfg.WriteTimeout)); err != nil {
		return err
	}
	fmt.Fprintf(writer, "*%d\r\n", len(args))
	for _, arg := range args {
		fmt.Fprintf(writer, "$%d\r\n%s\r\n", len(arg), arg)
	}
	return writer.Flush()
}

func (p *ValkeyProvider) receive(conn net.Conn, reader *bufio.Reader) (reply, error) {
	if err := conn.SetReadDeadline(time.Now().Add(p.cfg.ReadTimeout)); err != nil {
		return reply{}, err
	}
	prefix, err := reader.ReadByte()
	if err != nil {
		return reply{}, err
	}
	line, err := readLine(reader)
	if err != nil {
		return reply{}, err
	}

	switch prefix {
	case '+', ':':
		return reply{data: line}, nil
	case '-':
		return reply{}, errors.New(string(line))
	case '$':
		size, err := strconv.Atoi(string(line))
		if err != nil {
			return reply{}, err
		}
		if size < 0 {
			return reply{nil_: true}, nil
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(reader, buf); err != nil {
			return reply{}, err
		}
		if buf[size] != '\r' || buf[size+1] != '\n' {
			return reply{}, errors.New("invalid bulk string termination")
		}
		return reply{data: buf[:size]}, nil
	default:
		return reply{}, fmt.Errorf("unexpected RESP prefix %q", prefix)
	}
}

func readLine(reader *bufio.Reader) ([]byte, error) {
	line, err := reader.ReadString('\n')
	if err != nil {
		return nil, err
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return []byte(line), nil
}

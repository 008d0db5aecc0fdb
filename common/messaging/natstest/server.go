// Package natstest runs a minimal in-process NATS server for tests. It speaks
// enough of the core client protocol for publish, header publish and plain
// fan-out subscriptions. Queue groups, auth and clustering are not supported.
package natstest

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

const info = `INFO {"server_id":"natstest","server_name":"natstest","version":"2.10.0",` +
	`"proto":1,"host":"127.0.0.1","port":0,"headers":true,"max_payload":1048576}` + "\r\n"

// Msg is a message a client published to the server.
type Msg struct {
	Subject string
	// Header is the raw header block of an HPUB, empty for PUB.
	Header string
	Data   []byte
}

// Server is a single-node NATS server bound to a loopback port.
type Server struct {
	URL string

	ln net.Listener
	wg sync.WaitGroup

	mu        sync.Mutex
	conns     map[*conn]struct{}
	published []Msg
	closed    bool
}

type conn struct {
	nc net.Conn

	wmu sync.Mutex
	w   *bufio.Writer

	// sid -> subject, guarded by Server.mu
	subs map[string]string
}

// NewServer starts a server and stops it when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("natstest: listen: %v", err)
	}
	s := &Server{
		URL:   "nats://" + ln.Addr().String(),
		ln:    ln,
		conns: make(map[*conn]struct{}),
	}
	s.wg.Add(1)
	go s.accept()
	t.Cleanup(s.Close)
	return s
}

// Close stops accepting and drops every client connection.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	_ = s.ln.Close()
	for c := range s.conns {
		_ = c.nc.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Subscriptions counts live subscriptions across all clients.
func (s *Server) Subscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for c := range s.conns {
		n += len(c.subs)
	}
	return n
}

// WaitForSubscriptions blocks until at least n subscriptions are live.
func (s *Server) WaitForSubscriptions(t testing.TB, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for s.Subscriptions() < n {
		if time.Now().After(deadline) {
			t.Fatalf("natstest: timed out waiting for %d subscriptions, have %d", n, s.Subscriptions())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Published returns every message received so far, in arrival order.
func (s *Server) Published() []Msg {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Msg(nil), s.published...)
}

func (s *Server) accept() {
	defer s.wg.Done()
	for {
		nc, err := s.ln.Accept()
		if err != nil {
			return
		}
		c := &conn{nc: nc, w: bufio.NewWriter(nc), subs: make(map[string]string)}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = nc.Close()
			return
		}
		s.conns[c] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(c)
	}
}

func (s *Server) serve(c *conn) {
	defer s.wg.Done()
	defer s.drop(c)

	if err := c.send([]byte(info)); err != nil {
		return
	}
	r := bufio.NewReader(c.nc)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch strings.ToUpper(fields[0]) {
		case "PING":
			if err := c.send([]byte("PONG\r\n")); err != nil {
				return
			}
		case "SUB":
			// SUB <subject> [queue] <sid>
			if len(fields) < 3 {
				return
			}
			s.mu.Lock()
			c.subs[fields[len(fields)-1]] = fields[1]
			s.mu.Unlock()
		case "UNSUB":
			if len(fields) < 2 {
				return
			}
			s.mu.Lock()
			delete(c.subs, fields[1])
			s.mu.Unlock()
		case "PUB":
			// PUB <subject> [reply] <size>
			if len(fields) < 3 {
				return
			}
			size, err := strconv.Atoi(fields[len(fields)-1])
			if err != nil {
				return
			}
			payload, err := readPayload(r, size)
			if err != nil {
				return
			}
			s.route(fields[1], nil, payload)
		case "HPUB":
			// HPUB <subject> [reply] <header size> <total size>
			if len(fields) < 4 {
				return
			}
			hdr, err := strconv.Atoi(fields[len(fields)-2])
			if err != nil {
				return
			}
			total, err := strconv.Atoi(fields[len(fields)-1])
			if err != nil || hdr > total {
				return
			}
			payload, err := readPayload(r, total)
			if err != nil {
				return
			}
			s.route(fields[1], payload[:hdr], payload[hdr:])
		}
		// CONNECT and PONG need no reply while verbose is off.
	}
}

func (s *Server) drop(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	_ = c.nc.Close()
}

func (s *Server) route(subject string, hdr, data []byte) {
	type delivery struct {
		c   *conn
		sid string
	}

	s.mu.Lock()
	s.published = append(s.published, Msg{
		Subject: subject,
		Header:  string(hdr),
		Data:    append([]byte(nil), data...),
	})
	var out []delivery
	for c := range s.conns {
		for sid, pattern := range c.subs {
			if Match(pattern, subject) {
				out = append(out, delivery{c: c, sid: sid})
			}
		}
	}
	s.mu.Unlock()

	for _, d := range out {
		var frame []byte
		if len(hdr) > 0 {
			frame = fmt.Appendf(nil, "HMSG %s %s %d %d\r\n", subject, d.sid, len(hdr), len(hdr)+len(data))
			frame = append(frame, hdr...)
		} else {
			frame = fmt.Appendf(nil, "MSG %s %s %d\r\n", subject, d.sid, len(data))
		}
		frame = append(frame, data...)
		frame = append(frame, "\r\n"...)
		_ = d.c.send(frame)
	}
}

func (c *conn) send(b []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := c.w.Write(b); err != nil {
		return err
	}
	return c.w.Flush()
}

func readPayload(r *bufio.Reader, n int) ([]byte, error) {
	buf := make([]byte, n+2) // payload plus CRLF
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Match reports whether subject matches pattern. A "*" token matches exactly
// one token and a trailing ">" matches one or more.
func Match(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")
	for i, p := range pt {
		if p == ">" {
			return i == len(pt)-1 && len(st) > i
		}
		if i >= len(st) {
			return false
		}
		if p != "*" && p != st[i] {
			return false
		}
	}
	return len(pt) == len(st)
}

// Package redisstub runs a minimal in-process Redis wire protocol server
// implementing just the counter commands the rate limiter relies on.
package redisstub

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

type Options struct {
	Password string
}

type Server struct {
	opts     Options
	listener net.Listener
	addr     string

	mu     sync.Mutex
	kv     map[string]*entry
	closed chan struct{}
}

type entry struct {
	value  int64
	expiry time.Time
}

func Start(opts Options) (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	server := &Server{
		opts:     opts,
		listener: ln,
		addr:     ln.Addr().String(),
		kv:       make(map[string]*entry),
		closed:   make(chan struct{}),
	}
	go server.serve()
	return server, nil
}

func (s *Server) Addr() string {
	return s.addr
}

func (s *Server) Close() error {
	s.mu.Lock()
	select {
	case <-s.closed:
		s.mu.Unlock()
		return nil
	default:
	}
	close(s.closed)
	s.mu.Unlock()
	return s.listener.Close()
}

func (s *Server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closed:
				return
			default:
			}
			continue
		}
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)
	authenticated := s.opts.Password == ""
	for {
		args, err := readCommand(reader)
		if err != nil {
			return
		}
		if len(args) == 0 {
			if writeError(writer, "ERR wrong number of arguments") != nil {
				return
			}
			continue
		}

		var writeErr error
		switch strings.ToUpper(args[0]) {
		case "PING":
			writeErr = writeSimpleString(writer, "PONG")
		case "HELLO":
			// Clients fall back to RESP2 when HELLO is rejected.
			writeErr = writeError(writer, "ERR unknown command 'HELLO'")
		case "CLIENT":
			writeErr = writeSimpleString(writer, "OK")
		case "SELECT":
			writeErr = writeSimpleString(writer, "OK")
		case "AUTH":
			supplied := args[len(args)-1]
			if s.opts.Password == "" || supplied == s.opts.Password {
				authenticated = true
				writeErr = writeSimpleString(writer, "OK")
			} else {
				writeErr = writeError(writer, "WRONGPASS invalid username-password pair")
			}
		case "INCR":
			if !authenticated {
				writeErr = writeError(writer, "NOAUTH Authentication required.")
				break
			}
			if len(args) != 2 {
				writeErr = writeError(writer, "ERR wrong number of arguments for 'incr'")
				break
			}
			writeErr = writeInteger(writer, s.incr(args[1]))
		case "EXPIRE":
			if !authenticated {
				writeErr = writeError(writer, "NOAUTH Authentication required.")
				break
			}
			if len(args) != 3 {
				writeErr = writeError(writer, "ERR wrong number of arguments for 'expire'")
				break
			}
			seconds, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				writeErr = writeError(writer, "ERR invalid expire time")
				break
			}
			s.expire(args[1], time.Duration(seconds)*time.Second)
			writeErr = writeInteger(writer, 1)
		case "TTL":
			if !authenticated {
				writeErr = writeError(writer, "NOAUTH Authentication required.")
				break
			}
			if len(args) != 2 {
				writeErr = writeError(writer, "ERR wrong number of arguments for 'ttl'")
				break
			}
			writeErr = writeInteger(writer, s.ttl(args[1]))
		default:
			writeErr = writeError(writer, fmt.Sprintf("ERR unknown command '%s'", args[0]))
		}
		if writeErr != nil {
			return
		}
	}
}

func (s *Server) incr(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.kv[key]
	if e == nil || (!e.expiry.IsZero() && time.Now().After(e.expiry)) {
		e = &entry{}
		s.kv[key] = e
	}
	e.value++
	return e.value
}

func (s *Server) expire(key string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.kv[key]
	if e == nil {
		e = &entry{}
		s.kv[key] = e
	}
	e.expiry = time.Now().Add(ttl)
}

func (s *Server) ttl(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.kv[key]
	if e == nil {
		return -2
	}
	if e.expiry.IsZero() {
		return -1
	}
	remaining := time.Until(e.expiry)
	if remaining <= 0 {
		delete(s.kv, key)
		return -2
	}
	return int64(remaining / time.Second)
}

func readCommand(r *bufio.Reader) ([]string, error) {
	prefix, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if prefix != '*' {
		return nil, fmt.Errorf("unexpected prefix %q", prefix)
	}
	length, err := readLength(r)
	if err != nil {
		return nil, err
	}
	args := make([]string, 0, length)
	for i := 0; i < length; i++ {
		arg, err := readBulkString(r)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return args, nil
}

func readLength(r *bufio.Reader) (int, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r"))
}

func readBulkString(r *bufio.Reader) (string, error) {
	prefix, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	if prefix != '$' {
		return "", fmt.Errorf("unexpected prefix %q", prefix)
	}
	length, err := readLength(r)
	if err != nil {
		return "", err
	}
	if length < 0 {
		return "", nil
	}
	buf := make([]byte, length+2)
	for read := 0; read < len(buf); {
		n, err := r.Read(buf[read:])
		if err != nil {
			return "", err
		}
		read += n
	}
	return string(buf[:length]), nil
}

func writeSimpleString(w *bufio.Writer, value string) error {
	if _, err := fmt.Fprintf(w, "+%s\r\n", value); err != nil {
		return err
	}
	return w.Flush()
}

func writeInteger(w *bufio.Writer, value int64) error {
	if _, err := fmt.Fprintf(w, ":%d\r\n", value); err != nil {
		return err
	}
	return w.Flush()
}

func writeError(w *bufio.Writer, msg string) error {
	if _, err := fmt.Fprintf(w, "-%s\r\n", msg); err != nil {
		return err
	}
	return w.Flush()
}

// Package adaptor bridges the storage core to the embedded scripting host:
// an asynchronous HTTP client invoking caller-named callbacks, and an XMLRPC
// reply parser.  Neither touches the storage directly - the scripting layer
// composes them.
//
// © 2025 kvstorage authors. MIT License.

package adaptor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Synthetic status codes reported for transport-level failures.  DNS, dial
// and write failures surface as CodeConnFail; read-side failures (including
// timeouts) and short bodies as CodeTransportErr.  A 200 response without
// Content-Length is a protocol failure, also CodeConnFail.
const (
	CodeConnFail     = 450
	CodeTransportErr = 500
)

// DefaultTimeout applies when a request carries no timeout of its own.
const DefaultTimeout = time.Second

// Callback receives the outcome of a request: the status code, the response
// headers and body on a 200 completion, nil headers and body otherwise.
type Callback func(task any, code int, headers map[string]string, body []byte)

// Request describes one outgoing HTTP call.  Port 0 means 80; a zero
// Timeout means DefaultTimeout.
type Request struct {
	Host    string
	Path    string
	Body    []byte
	Headers map[string]string
	Port    int
	Timeout time.Duration
}

// HTTPAdaptor issues minimal HTTP/1.1 requests over raw TCP and reports
// results through named callbacks.  Every request runs in its own goroutine;
// the scripting host registers callbacks once and refers to them by name.
type HTTPAdaptor struct {
	mu        sync.RWMutex
	callbacks map[string]Callback

	resolver *net.Resolver
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// NewHTTPAdaptor constructs an adaptor with the default resolver.
func NewHTTPAdaptor(logger *zap.Logger) *HTTPAdaptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPAdaptor{
		callbacks: make(map[string]Callback),
		resolver:  net.DefaultResolver,
		logger:    logger,
	}
}

// RegisterCallback binds name to cb.  Registering again replaces the
// previous binding.
func (a *HTTPAdaptor) RegisterCallback(name string, cb Callback) {
	a.mu.Lock()
	a.callbacks[name] = cb
	a.mu.Unlock()
}

// GetRequest issues an asynchronous GET.  The named callback is invoked
// with the result.
func (a *HTTPAdaptor) GetRequest(task any, callbackName string, req Request) {
	a.start(task, callbackName, "GET", req)
}

// PostRequest issues an asynchronous POST carrying req.Body.
func (a *HTTPAdaptor) PostRequest(task any, callbackName string, req Request) {
	a.start(task, callbackName, "POST", req)
}

// Wait blocks until all in-flight requests have completed.
func (a *HTTPAdaptor) Wait() { a.wg.Wait() }

func (a *HTTPAdaptor) start(task any, callbackName, method string, req Request) {
	a.mu.RLock()
	cb, ok := a.callbacks[callbackName]
	a.mu.RUnlock()
	if !ok {
		a.logger.Warn("unknown http callback", zap.String("callback", callbackName))
		return
	}

	if req.Port == 0 {
		req.Port = 80
	}
	if req.Timeout == 0 {
		req.Timeout = DefaultTimeout
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		code, headers, body := a.perform(method, req)
		cb(task, code, headers, body)
	}()
}

// perform runs the whole request.  It returns the status code plus headers
// and body on a 200 completion; any failure maps to a synthetic code with
// nil headers and body.
func (a *HTTPAdaptor) perform(method string, req Request) (int, map[string]string, []byte) {
	deadline := time.Now().Add(req.Timeout)

	// Resolve the A record ourselves: the original adaptor reported DNS
	// failures distinctly from read-side errors and we keep that split.
	addrs, err := a.resolveA(req.Host, deadline)
	if err != nil || len(addrs) == 0 {
		a.logger.Debug("dns failure", zap.String("host", req.Host), zap.Error(err))
		return CodeConnFail, nil, nil
	}

	conn, err := net.DialTimeout("tcp",
		net.JoinHostPort(addrs[0].String(), strconv.Itoa(req.Port)),
		time.Until(deadline))
	if err != nil {
		return CodeConnFail, nil, nil
	}
	defer conn.Close()
	_ = conn.SetDeadline(deadline)

	if err := writeRequest(conn, method, req); err != nil {
		return CodeConnFail, nil, nil
	}

	return readResponse(bufio.NewReader(conn))
}

func (a *HTTPAdaptor) resolveA(host string, deadline time.Time) ([]net.IP, error) {
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()
	return a.resolver.LookupIP(ctx, "ip4", host)
}

// writeRequest emits a minimal HTTP/1.1 request with Connection: close so
// the response end is unambiguous.  Head and body go out in one write.
func writeRequest(conn net.Conn, method string, req Request) error {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", method, req.Path)
	fmt.Fprintf(&b, "Host: %s\r\n", req.Host)
	b.WriteString("Connection: close\r\n")
	for k, v := range req.Headers {
		fmt.Fprintf(&b, "%s: %s\r\n", k, v)
	}
	if len(req.Body) > 0 {
		fmt.Fprintf(&b, "Content-Length: %d\r\n", len(req.Body))
	}
	b.WriteString("\r\n")
	b.Write(req.Body)

	_, err := conn.Write(b.Bytes())
	return err
}

// readResponse is the three-state line parser: status line, then headers,
// then a body of exactly Content-Length bytes.
func readResponse(r *bufio.Reader) (int, map[string]string, []byte) {
	// State 1: status line.
	line, err := readLine(r)
	if err != nil {
		return CodeTransportErr, nil, nil
	}
	code, ok := parseStatusLine(line)
	if !ok {
		return CodeTransportErr, nil, nil
	}

	// State 2: headers until the empty line.
	headers := make(map[string]string)
	for {
		line, err = readLine(r)
		if err != nil {
			return CodeTransportErr, nil, nil
		}
		if line == "" {
			break
		}
		name, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		headers[textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(name))] =
			strings.TrimSpace(value)
	}

	// Non-200 statuses are reported by code alone.
	if code != 200 {
		return code, nil, nil
	}

	// State 3: body.  Its length must be declared; a 200 without
	// Content-Length is a protocol failure.
	cl, ok := headers["Content-Length"]
	if !ok {
		return CodeConnFail, nil, nil
	}
	n, err := strconv.Atoi(cl)
	if err != nil || n < 0 {
		return CodeConnFail, nil, nil
	}
	body := make([]byte, n)
	if _, err := readFull(r, body); err != nil {
		return CodeTransportErr, nil, nil
	}
	return code, headers, body
}

func parseStatusLine(line string) (int, bool) {
	if !strings.HasPrefix(line, "HTTP/1.") {
		return 0, false
	}
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, false
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil || code < 100 || code > 599 {
		return 0, false
	}
	return code, true
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

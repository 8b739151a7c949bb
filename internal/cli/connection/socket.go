package connection

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// DefaultTimeout bounds one socket exchange.
const DefaultTimeout = 10 * time.Second

// ErrNotRunning is returned when nothing listens on the socket.
var ErrNotRunning = errors.New("tokdrop-bot is not running (socket unreachable)")

// RemoteError is an ERR reply from the server.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// SocketClient speaks the local management line protocol.
type SocketClient struct {
	path    string
	timeout time.Duration
}

// NewSocketClient creates a new socket client.
func NewSocketClient(socketPath string) *SocketClient {
	return &SocketClient{path: socketPath, timeout: DefaultTimeout}
}

// Execute sends one command and returns the reply body lines. An ERR
// reply is returned as a *RemoteError.
func (c *SocketClient) Execute(ctx context.Context, cmd string, args ...string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRunning, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	line := strings.Join(append([]string{cmd}, args...), " ")
	if _, err := io.WriteString(conn, line+"\n"); err != nil {
		return nil, fmt.Errorf("send command: %w", err)
	}

	return readReply(conn)
}

func readReply(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read reply: %w", err)
		}
		return nil, errors.New("read reply: connection closed without a status line")
	}

	status := scanner.Text()
	switch {
	case status == "OK":
	case strings.HasPrefix(status, "ERR "):
		return nil, &RemoteError{Message: strings.TrimPrefix(status, "ERR ")}
	default:
		return nil, fmt.Errorf("read reply: unexpected status line %q", status)
	}

	var body []string
	for scanner.Scan() {
		body = append(body, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	return body, nil
}

// ParseFields splits "key: value" body lines. Indented lines and lines
// without a separator are skipped; keys keeps the reply order.
func ParseFields(lines []string) (keys []string, values map[string]string) {
	values = make(map[string]string, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(line, " ") {
			continue
		}
		k, v, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		keys = append(keys, k)
		values[k] = v
	}
	return keys, values
}

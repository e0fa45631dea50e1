package clamav

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/kirillkom/docstream/internal/core/domain"
	"github.com/kirillkom/docstream/internal/core/ports"
	"github.com/kirillkom/docstream/internal/infrastructure/resilience"
)

const (
	defaultTimeout = 30 * time.Second
	chunkSize      = 32 * 1024
)

// Scanner streams document bytes to a clamd daemon over the INSTREAM
// protocol. Scan errors are returned as-is; the caller decides the
// fail-open policy.
type Scanner struct {
	address  string
	timeout  time.Duration
	executor *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(host, port string) *Scanner {
	return NewWithOptions(host, port, Options{})
}

func NewWithOptions(host, port string, options Options) *Scanner {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Scanner{
		address:  net.JoinHostPort(host, port),
		timeout:  timeout,
		executor: options.ResilienceExecutor,
	}
}

func (s *Scanner) Scan(ctx context.Context, data io.Reader) (ports.ScanOutcome, error) {
	// The stream is buffered so retries can resend it from the start.
	payload, err := io.ReadAll(data)
	if err != nil {
		return ports.ScanOutcome{}, fmt.Errorf("read scan input: %w", err)
	}

	var outcome ports.ScanOutcome
	call := func(callCtx context.Context) error {
		result, err := s.scanOnce(callCtx, payload)
		if err != nil {
			return err
		}
		outcome = result
		return nil
	}

	if s.executor != nil {
		err = s.executor.Execute(ctx, "clamav.scan", call, classifyScanError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return ports.ScanOutcome{}, err
	}
	return outcome, nil
}

func (s *Scanner) scanOnce(ctx context.Context, payload []byte) (ports.ScanOutcome, error) {
	dialer := net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.address)
	if err != nil {
		return ports.ScanOutcome{}, fmt.Errorf("dial clamd: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(s.timeout))
	}

	if _, err := conn.Write([]byte("zINSTREAM\x00")); err != nil {
		return ports.ScanOutcome{}, fmt.Errorf("send instream command: %w", err)
	}

	reader := bytes.NewReader(payload)
	chunk := make([]byte, chunkSize)
	size := make([]byte, 4)
	for {
		n, readErr := reader.Read(chunk)
		if n > 0 {
			binary.BigEndian.PutUint32(size, uint32(n))
			if _, err := conn.Write(size); err != nil {
				return ports.ScanOutcome{}, fmt.Errorf("send chunk size: %w", err)
			}
			if _, err := conn.Write(chunk[:n]); err != nil {
				return ports.ScanOutcome{}, fmt.Errorf("send chunk: %w", err)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return ports.ScanOutcome{}, fmt.Errorf("read chunk: %w", readErr)
		}
	}

	// Zero-length chunk terminates the stream.
	binary.BigEndian.PutUint32(size, 0)
	if _, err := conn.Write(size); err != nil {
		return ports.ScanOutcome{}, fmt.Errorf("terminate stream: %w", err)
	}

	response, err := bufio.NewReader(conn).ReadString('\x00')
	if err != nil && err != io.EOF {
		return ports.ScanOutcome{}, fmt.Errorf("read clamd response: %w", err)
	}
	return parseResponse(response), nil
}

// parseResponse maps the clamd reply line onto a scan outcome.
//
//	stream: OK
//	stream: Eicar-Test-Signature FOUND
//	INSTREAM size limit exceeded. ERROR
func parseResponse(response string) ports.ScanOutcome {
	response = strings.TrimSuffix(strings.TrimSpace(response), "\x00")
	response = strings.TrimSpace(response)

	switch {
	case strings.HasSuffix(response, "OK"):
		return ports.ScanOutcome{Status: domain.ScanClean}
	case strings.HasSuffix(response, "FOUND"):
		signature := strings.TrimSuffix(response, "FOUND")
		signature = strings.TrimPrefix(signature, "stream:")
		return ports.ScanOutcome{
			Status:    domain.ScanInfected,
			Signature: strings.TrimSpace(signature),
		}
	default:
		return ports.ScanOutcome{
			Status: domain.ScanError,
			Reason: response,
		}
	}
}

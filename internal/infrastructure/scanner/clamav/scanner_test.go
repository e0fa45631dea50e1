package clamav

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/kirillkom/docstream/internal/core/domain"
)

func TestParseResponse(t *testing.T) {
	cases := []struct {
		response  string
		status    domain.VirusScanStatus
		signature string
	}{
		{"stream: OK\x00", domain.ScanClean, ""},
		{"stream: Eicar-Test-Signature FOUND\x00", domain.ScanInfected, "Eicar-Test-Signature"},
		{"INSTREAM size limit exceeded. ERROR\x00", domain.ScanError, ""},
		{"", domain.ScanError, ""},
	}
	for _, tc := range cases {
		outcome := parseResponse(tc.response)
		if outcome.Status != tc.status {
			t.Errorf("parseResponse(%q).Status = %s, want %s", tc.response, outcome.Status, tc.status)
		}
		if outcome.Signature != tc.signature {
			t.Errorf("parseResponse(%q).Signature = %q, want %q", tc.response, outcome.Signature, tc.signature)
		}
	}
}

// fakeClamd accepts one INSTREAM session and replies with the given line.
func fakeClamd(t *testing.T, reply string) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		reader := bufio.NewReader(conn)
		if _, err := reader.ReadString('\x00'); err != nil {
			return
		}
		size := make([]byte, 4)
		for {
			if _, err := io.ReadFull(reader, size); err != nil {
				return
			}
			n := binary.BigEndian.Uint32(size)
			if n == 0 {
				break
			}
			if _, err := io.CopyN(io.Discard, reader, int64(n)); err != nil {
				return
			}
		}
		_, _ = conn.Write([]byte(reply))
	}()
	return listener.Addr().String()
}

func TestScanCleanStream(t *testing.T) {
	addr := fakeClamd(t, "stream: OK\x00")
	host, port, _ := net.SplitHostPort(addr)
	scanner := New(host, port)

	outcome, err := scanner.Scan(context.Background(), strings.NewReader("benign content"))
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if outcome.Status != domain.ScanClean {
		t.Fatalf("Status = %s, want clean", outcome.Status)
	}
}

func TestScanInfectedStream(t *testing.T) {
	addr := fakeClamd(t, "stream: Eicar-Test-Signature FOUND\x00")
	host, port, _ := net.SplitHostPort(addr)
	scanner := New(host, port)

	outcome, err := scanner.Scan(context.Background(), strings.NewReader("X5O!P%@AP"))
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if outcome.Status != domain.ScanInfected {
		t.Fatalf("Status = %s, want infected", outcome.Status)
	}
	if outcome.Signature != "Eicar-Test-Signature" {
		t.Fatalf("Signature = %q", outcome.Signature)
	}
}

func TestScanUnreachableDaemon(t *testing.T) {
	scanner := New("127.0.0.1", "1")

	if _, err := scanner.Scan(context.Background(), strings.NewReader("data")); err == nil {
		t.Fatalf("expected connection error")
	}
}

// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package streamclient

import (
	"bufio"
	"io"
	"strings"
)

// sseReader splits an event stream into data payloads. Comment lines
// (keepalives) and fields other than data are skipped. Several data lines in
// one event are joined with a newline.
type sseReader struct {
	scanner *bufio.Scanner
	err     error
}

// newSSEReader bounds one line to maxFrameSize bytes. A longer line ends
// the stream with bufio.ErrTooLong.
func newSSEReader(r io.Reader, maxFrameSize int) *sseReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, min(64*1024, maxFrameSize)), maxFrameSize)
	return &sseReader{scanner: s}
}

// Next returns the next event's data. ok is false once the stream ends;
// Err then reports why (nil for a clean EOF).
func (r *sseReader) Next() (data string, ok bool) {
	var lines []string
	for r.scanner.Scan() {
		line := strings.TrimRight(r.scanner.Text(), "\r")

		if line == "" {
			if len(lines) > 0 {
				return strings.Join(lines, "\n"), true
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		if field != "data" {
			continue
		}
		lines = append(lines, strings.TrimPrefix(value, " "))
	}

	r.err = r.scanner.Err()
	if len(lines) > 0 {
		return strings.Join(lines, "\n"), true
	}
	return "", false
}

func (r *sseReader) Err() error { return r.err }

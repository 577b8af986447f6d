// Package sse turns a provider's event-stream body into text fragments.
//
// The decoder is deliberately lenient: a payload that fails to parse, or that
// lacks the text field, is counted and dropped, and decoding carries on with
// the next line. Only transport errors end a stream early.
package sse

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync/atomic"

	"github.com/feichai0017/factcheck-gateway/pkg/logger"
)

const dataPrefix = "data:"

// Extractor returns the text carried by one payload. ok is false when the
// payload is malformed or lacks the expected field. An empty text with ok
// set is a valid chunk that carries nothing to emit.
type Extractor func(payload []byte) (text string, ok bool)

// Config describes one provider's stream dialect.
type Config struct {
	// Sentinel, when set, is the payload that ends the stream.
	Sentinel string
	Extract  Extractor
	// Stats is optional.
	Stats  *Stats
	Logger logger.Logger
}

// Stats counts payloads across every stream decoded with the same Config.
type Stats struct {
	payloads atomic.Int64
	skipped  atomic.Int64
}

// Payloads reports how many payloads were handed to the extractor.
func (s *Stats) Payloads() int64 { return s.payloads.Load() }

// Skipped reports how many payloads were dropped as malformed.
func (s *Stats) Skipped() int64 { return s.skipped.Load() }

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Payloads int64 `json:"payloads"`
	Skipped  int64 `json:"skipped"`
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{Payloads: s.Payloads(), Skipped: s.Skipped()}
}

// Decode reads r line by line and yields each extracted text fragment in
// order. The sequence ends at EOF, at the sentinel, when ctx is done, or when
// the consumer stops ranging. A read error is yielded once as the final
// element.
func Decode(ctx context.Context, r io.Reader, cfg Config) iter.Seq2[string, error] {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	return func(yield func(string, error) bool) {
		reader := bufio.NewReader(r)
		for {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}

			line, readErr := reader.ReadBytes('\n')
			if len(line) > 0 {
				payload, isData := parseLine(line)
				if isData {
					if cfg.Sentinel != "" && string(payload) == cfg.Sentinel {
						return
					}
					if text, emit := extract(cfg, payload, log); emit {
						if !yield(text, nil) {
							return
						}
					}
				}
			}

			if readErr != nil {
				if errors.Is(readErr, io.EOF) {
					return
				}
				yield("", fmt.Errorf("failed to read event stream: %w", readErr))
				return
			}
		}
	}
}

// parseLine strips the data marker. Blank lines and other SSE fields
// (event:, id:, comments) are not data.
func parseLine(line []byte) ([]byte, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || !bytes.HasPrefix(line, []byte(dataPrefix)) {
		return nil, false
	}
	payload := bytes.TrimSpace(line[len(dataPrefix):])
	return payload, len(payload) > 0
}

func extract(cfg Config, payload []byte, log logger.Logger) (string, bool) {
	if cfg.Stats != nil {
		cfg.Stats.payloads.Add(1)
	}
	text, ok := cfg.Extract(payload)
	if !ok {
		if cfg.Stats != nil {
			cfg.Stats.skipped.Add(1)
		}
		log.Debug("Skipping malformed chunk", logger.Int("size", len(payload)))
		return "", false
	}
	return text, text != ""
}

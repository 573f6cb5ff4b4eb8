// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package events defines the envelope streamed from the orchestrator
// to a client and the bounded per-session stream that carries it.
//
// Ordering holds per session: the orchestrator writes phases
// sequentially and the stream is a single channel drained by one
// transport goroutine. Under back-pressure the stream sheds log events
// first; status and terminal events block until the transport catches
// up, because losing "the run finished" is worse than stalling it.
package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Type names an outbound event kind.
type Type string

const (
	TypeStatus          Type = "status"
	TypeLog             Type = "log"
	TypeCodeChange      Type = "code_change"
	TypeTestResult      Type = "test_result"
	TypeDiagramResponse Type = "diagram_response"
	TypeQueryResponse   Type = "query_response"
	TypeApprovalRequest Type = "approval_request"
	TypeSummary         Type = "summary"
	TypeError           Type = "error"
	TypeConnected       Type = "connected"
)

// Workflow stages, used as the envelope's Stage field.
const (
	StageIntentExtraction  = "intent_extraction"
	StageRepoLoading       = "repo_loading"
	StagePKGLoading        = "pkg_loading"
	StagePKGGeneration     = "pkg_generation"
	StagePKGQuery          = "pkg_query"
	StageImpactAnalysis    = "impact_analysis"
	StagePlanning          = "planning"
	StageApproval          = "approval"
	StageEditing           = "editing"
	StageTesting           = "testing"
	StageVerification      = "verification"
	StagePRCreation        = "pr_creation"
	StageQueryHandling     = "query_handling"
	StageDiagramGeneration = "diagram_generation"
	StageWaiting           = "waiting"
	StageProcessing        = "processing"
)

// Envelope is the wire format of one streamed event.
type Envelope struct {
	Type      Type           `json:"type"`
	Timestamp string         `json:"timestamp"`
	Stage     string         `json:"stage,omitempty"`
	Data      map[string]any `json:"data"`
	SessionID string         `json:"session_id,omitempty"`
}

// New builds an envelope stamped with the current UTC time.
func New(t Type, stage, sessionID string, data map[string]any) Envelope {
	if data == nil {
		data = map[string]any{}
	}
	return Envelope{
		Type:      t,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Stage:     stage,
		Data:      data,
		SessionID: sessionID,
	}
}

// defaultBuffer is the stream depth. Deep enough to absorb a burst of
// per-file code_change events without stalling the editor.
const defaultBuffer = 64

// Stream is a bounded event channel for one session.
//
// Thread Safety:
//
//	Emit may be called from the session's phase goroutine while the
//	transport drains C. Close is idempotent and safe to race with
//	Emit: a closed stream discards further events instead of
//	panicking, and unblocks any Emit waiting for buffer space.
type Stream struct {
	ch      chan Envelope
	done    chan struct{}
	once    sync.Once
	dropped atomic.Int64
	logger  *slog.Logger
}

// NewStream returns a Stream with the given buffer; size <= 0 selects
// the default.
func NewStream(size int, logger *slog.Logger) *Stream {
	if size <= 0 {
		size = defaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{
		ch:     make(chan Envelope, size),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// C is the receive side. Drain it in a select together with Done.
func (s *Stream) C() <-chan Envelope {
	return s.ch
}

// Done is closed when the stream is closed.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Emit queues ev. Log events are dropped when the buffer is full;
// every other type blocks until the transport drains or the stream
// closes.
func (s *Stream) Emit(ev Envelope) {
	if ev.Type == TypeLog {
		select {
		case <-s.done:
		case s.ch <- ev:
		default:
			s.dropped.Add(1)
			s.logger.Debug("dropping log event under back-pressure",
				"stage", ev.Stage, "session_id", ev.SessionID)
		}
		return
	}

	select {
	case <-s.done:
	case s.ch <- ev:
	}
}

// Dropped reports how many log events were shed.
func (s *Stream) Dropped() int {
	return int(s.dropped.Load())
}

// Close ends the stream and unblocks emitters and the drainer.
func (s *Stream) Close() {
	s.once.Do(func() { close(s.done) })
}

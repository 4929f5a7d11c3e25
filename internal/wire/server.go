package wire

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/aici-run/aici-go/internal/observe"
	"github.com/aici-run/aici-go/pkg/aici"
	"github.com/coder/websocket"
)

// Server exposes a reference host simulator's live decoding sequences as
// WebSocket endpoints, one connection per sequence. It keeps a registry of
// active [aici.Driver] instances keyed by [aici.SeqId] — the core package
// has no such registry; a host that needs one, to dispatch an incoming
// connection to the right driver, keeps it here instead.
type Server struct {
	log     *slog.Logger
	metrics *observe.Metrics

	mu      sync.Mutex
	drivers map[aici.SeqId]*aici.Driver
}

// Option configures a [Server] at construction time.
type Option func(*Server)

// WithLogger overrides the server's logger. The default is [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithMetrics overrides the server's metrics. The default is
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// NewServer creates a [Server] with an empty driver registry.
func NewServer(opts ...Option) *Server {
	s := &Server{
		log:     slog.Default(),
		metrics: observe.DefaultMetrics(),
		drivers: make(map[aici.SeqId]*aici.Driver),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register makes d reachable at its sequence's WebSocket endpoint. Hosts
// typically call this from within their [aici.HostOps.Register]
// implementation, right after [aici.New] returns.
func (s *Server) Register(id aici.SeqId, d *aici.Driver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drivers[id] = d
	s.metrics.ActiveSequences.Add(context.Background(), 1)
}

// Unregister removes id from the registry once its sequence is done. Safe to
// call even if id was never registered.
func (s *Server) Unregister(id aici.SeqId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.drivers[id]; !ok {
		return
	}
	delete(s.drivers, id)
	s.metrics.ActiveSequences.Add(context.Background(), -1)
}

func (s *Server) driver(id aici.SeqId) (*aici.Driver, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[id]
	return d, ok
}

// Handler returns the HTTP handler serving the wire transport:
//
//	GET /sequences/{seqID} — upgrades to a WebSocket carrying the round
//	                         protocol for that sequence.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sequences/{seqID}", s.handleSequence)
	return mux
}

func (s *Server) handleSequence(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("seqID")
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		http.Error(w, "invalid sequence id", http.StatusBadRequest)
		return
	}
	id := aici.SeqId(n)

	d, ok := s.driver(id)
	if !ok {
		http.Error(w, "unknown sequence", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Error("wire: accept failed", "sequence", id, "error", err)
		return
	}
	defer conn.CloseNow()

	if err := s.serve(r.Context(), conn, id, d); err != nil {
		s.log.Debug("wire: connection ended", "sequence", id, "error", err)
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

// serve drives rounds for id until the connection closes or the sequence
// stops permanently.
func (s *Server) serve(ctx context.Context, conn *websocket.Conn, id aici.SeqId, d *aici.Driver) error {
	for {
		req, err := readFrame(ctx, conn)
		if err != nil {
			return err
		}
		if req.Type != FrameRoundRequest {
			return fmt.Errorf("wire: expected %s, got %s", FrameRoundRequest, req.Type)
		}

		stop, err := s.runRound(ctx, conn, id, d, req.ForkGroup)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

// runRound drives exactly one pre/mid/post round, following the same shape
// a direct in-process caller of [aici.Driver] would: pre-process first,
// mid-process only if not suspended, a sample frame only if mid-process
// asked for one, post-process last. It reports whether the sequence has
// reached a terminal state this round: a mid-process stop, a post-process
// StopSeq, or a contract violation. A suspended round is not terminal.
func (s *Server) runRound(ctx context.Context, conn *websocket.Conn, id aici.SeqId, d *aici.Driver, forkGroup []aici.SeqId) (stop bool, err error) {
	seqLabel := strconv.FormatInt(int64(id), 10)

	defer func() {
		if r := recover(); r != nil {
			msg := contractViolationMessage(r)
			s.metrics.RecordContractViolation(ctx, seqLabel)
			s.log.Error("wire: contract violation", "sequence", id, "error", msg)
			if writeErr := writeFrame(ctx, conn, contractViolationFrame(msg)); writeErr != nil {
				err = writeErr
				return
			}
			err = fmt.Errorf("wire: contract violation: %s", msg)
			stop = true
		}
	}()

	start := time.Now()
	pre := d.PreProcess()
	s.metrics.PreProcessDuration.Record(ctx, time.Since(start).Seconds())

	if err := writeFrame(ctx, conn, preProcessFrame(pre)); err != nil {
		return false, err
	}
	if pre.Suspended {
		return false, nil
	}

	start = time.Now()
	mid := d.MidProcess(forkGroup)
	s.metrics.MidProcessDuration.Record(ctx, time.Since(start).Seconds())
	if len(pre.AttentionMasks) > 1 {
		s.metrics.RecordFork(ctx, len(pre.AttentionMasks))
	}
	s.metrics.SkipChainLength.Record(ctx, int64(d.SkipChainLength()))
	if d.FillerRoundUsed() {
		s.metrics.RecordFillerRound(ctx)
	}
	if buildDur, ok := d.LastConstraintBuildDuration(); ok {
		s.metrics.ConstraintBuildDuration.Record(ctx, buildDur.Seconds())
	}

	if err := writeFrame(ctx, conn, midProcessFrame(mid)); err != nil {
		return false, err
	}
	if mid.Stop {
		return true, nil
	}

	tokens := mid.FFTokens
	if mid.LogitBias != nil && len(tokens) == 0 {
		sample, err := readFrame(ctx, conn)
		if err != nil {
			return false, err
		}
		if sample.Type != FrameSample {
			return false, fmt.Errorf("wire: expected %s, got %s", FrameSample, sample.Type)
		}
		tokens = []aici.Token{sample.Token}
	}

	start = time.Now()
	post := d.PostProcess(mid.Backtrack, tokens)
	s.metrics.PostProcessDuration.Record(ctx, time.Since(start).Seconds())
	s.metrics.RecordRound(ctx, seqLabel)
	if mid.Backtrack > 0 {
		s.metrics.RecordBacktrack(ctx)
	}

	if err := writeFrame(ctx, conn, postProcessFrame(post)); err != nil {
		return false, err
	}
	return post.StopSeq, nil
}

// contractViolationMessage extracts a message from a recovered panic value,
// preserving [aici.ContractViolationError]'s own text when that's what
// panicked.
func contractViolationMessage(r any) string {
	if cv, ok := r.(*aici.ContractViolationError); ok {
		return cv.Error()
	}
	return fmt.Sprint(r)
}

func writeFrame(ctx context.Context, conn *websocket.Conn, f Frame) error {
	data, err := marshalFrame(f)
	if err != nil {
		return fmt.Errorf("wire: marshal: %w", err)
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

func readFrame(ctx context.Context, conn *websocket.Conn) (Frame, error) {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return Frame{}, err
	}
	return unmarshalFrame(data)
}

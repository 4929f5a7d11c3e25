package wire

import (
	"context"
	"fmt"
	"time"

	"github.com/aici-run/aici-go/internal/observe"
	"github.com/aici-run/aici-go/pkg/aici"
	"github.com/coder/websocket"
)

// Sampler chooses one token from a bias mask reported by mid-process.
// allowAll is true when the bias is an [aici.AllTokensSet] (see
// [aici.TokenSet.Allowed]), in which case allowed is nil. The driver's own
// unconstrained bias (NextToken, or GenTokens without regex or options) is
// an empty set instead: allowAll is false and allowed is empty. In both
// cases the choice of token is left to the sampler.
type Sampler func(allowAll bool, allowed []aici.Token) aici.Token

// RoundOutcome summarises what happened in one [Client.RunRound] call.
type RoundOutcome struct {
	// Suspended means the sequence has nothing to contribute this round; the
	// caller should retry next round without having consumed a sampling
	// step.
	Suspended bool

	// ForkCount is the number of attention masks pre-process reported. A
	// value greater than 1 means this round forked. Mid-process has already
	// run in the same RunRound call against the forkGroup the caller passed
	// in, so this sequence took the branch at its own position in that
	// group; the sibling sequences for the other positions are the caller's
	// to run (see [github.com/aici-run/aici-go/internal/forkrunner]).
	ForkCount int

	// Stop means the sequence is permanently done; no further rounds should
	// be requested.
	Stop bool

	// StopSeq means the just-committed tokens reached a terminal state
	// (e.g. end of sequence).
	StopSeq bool
}

// Client drives one sequence's decoding rounds over a WebSocket connection
// to a [Server], playing the role of the inference runtime on the other end
// of the wire: it requests a round, receives the pre/mid-process results,
// samples a token when asked to, and learns the post-process verdict.
//
// A Client is not safe for concurrent use — like [aici.Driver] itself, it
// expects its rounds driven one at a time, in order.
type Client struct {
	conn    *websocket.Conn
	metrics *observe.Metrics
}

// ClientOption configures a [Client] at construction time.
type ClientOption func(*Client)

// WithClientMetrics overrides the client's metrics. The default is
// [observe.DefaultMetrics].
func WithClientMetrics(m *observe.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// Dial connects to a [Server]'s WebSocket endpoint for sequence id.
func Dial(ctx context.Context, baseURL string, id aici.SeqId, opts ...ClientOption) (*Client, error) {
	url := fmt.Sprintf("%s/sequences/%d", baseURL, id)
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("wire: dial: %w", err)
	}
	c := &Client{conn: conn, metrics: observe.DefaultMetrics()}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Close closes the underlying connection with a normal closure code.
func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

// RunRound drives exactly one decoding round: it asks the server for
// pre-process and mid-process results, invokes sample if and only if
// mid-process reported a bias with no fast-forward tokens, and returns once
// post-process has completed.
func (c *Client) RunRound(ctx context.Context, forkGroup []aici.SeqId, sample Sampler) (RoundOutcome, error) {
	start := time.Now()
	defer func() {
		c.metrics.WireRequestDuration.Record(ctx, time.Since(start).Seconds())
	}()

	if err := writeFrame(ctx, c.conn, roundRequestFrame(forkGroup)); err != nil {
		return RoundOutcome{}, err
	}

	pre, err := c.readNonViolation(ctx)
	if err != nil {
		return RoundOutcome{}, err
	}
	if pre.Type != FramePreProcess {
		return RoundOutcome{}, fmt.Errorf("wire: expected %s, got %s", FramePreProcess, pre.Type)
	}
	if pre.Suspended {
		return RoundOutcome{Suspended: true}, nil
	}
	forkCount := pre.ForkCount

	mid, err := c.readNonViolation(ctx)
	if err != nil {
		return RoundOutcome{}, err
	}
	if mid.Type != FrameMidProcess {
		return RoundOutcome{}, fmt.Errorf("wire: expected %s, got %s", FrameMidProcess, mid.Type)
	}
	if mid.Stop {
		return RoundOutcome{Stop: true, ForkCount: forkCount}, nil
	}

	if mid.HasBias && len(mid.FFTokens) == 0 {
		tok := sample(mid.AllowAll, mid.AllowedTokens)
		if err := writeFrame(ctx, c.conn, sampleFrame(tok)); err != nil {
			return RoundOutcome{}, err
		}
	}

	post, err := c.readNonViolation(ctx)
	if err != nil {
		return RoundOutcome{}, err
	}
	if post.Type != FramePostProcess {
		return RoundOutcome{}, fmt.Errorf("wire: expected %s, got %s", FramePostProcess, post.Type)
	}
	return RoundOutcome{StopSeq: post.StopSeq, ForkCount: forkCount}, nil
}

// readNonViolation reads the next frame, turning a contract_violation frame
// into an [aici.ContractViolationError] so callers can type-assert it the
// same way they would a local panic recovery.
func (c *Client) readNonViolation(ctx context.Context) (Frame, error) {
	f, err := readFrame(ctx, c.conn)
	if err != nil {
		return Frame{}, err
	}
	if f.Type == FrameContractViolation {
		return Frame{}, &aici.ContractViolationError{Msg: f.Message}
	}
	return f, nil
}

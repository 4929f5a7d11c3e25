// Package wire implements a JSON-over-WebSocket transport for the
// pre/mid/post decoding-round protocol documented on [aici.Driver]. It
// exists to demonstrate, concretely, that the protocol survives a process
// boundary: the core package itself has zero dependency on this package or
// on any serialization format.
//
// One WebSocket connection carries exactly one sequence's rounds, in order:
// the client sends a round_request, the server replies with pre_process and
// (unless suspended) mid_process, the client supplies a sample frame only
// when mid_process reported a bias and no fast-forward tokens, and the
// server closes the round with post_process.
package wire

import (
	"encoding/json"

	"github.com/aici-run/aici-go/pkg/aici"
)

// FrameType discriminates the fields of [Frame] that are meaningful for a
// given message.
type FrameType string

const (
	// FrameRoundRequest is sent client -> server to start a round.
	FrameRoundRequest FrameType = "round_request"

	// FramePreProcess carries a [aici.PreProcessResult] server -> client.
	FramePreProcess FrameType = "pre_process"

	// FrameMidProcess carries a [aici.MidProcessResult] server -> client.
	FrameMidProcess FrameType = "mid_process"

	// FrameSample carries the client's sampled token, sent only when
	// mid_process reported a bias and no fast-forward tokens.
	FrameSample FrameType = "sample"

	// FramePostProcess carries a [aici.PostProcessResult] server -> client,
	// closing out the round.
	FramePostProcess FrameType = "post_process"

	// FrameContractViolation replaces whatever frame would otherwise follow
	// when a round panics with an [aici.ContractViolationError]. The
	// connection is closed immediately after.
	FrameContractViolation FrameType = "contract_violation"
)

// Frame is the single wire message shape, wide enough to carry any step of
// the protocol. Type selects which of the other fields are populated; unused
// fields are omitted from the JSON encoding. This mirrors how a single
// tagged-union event struct is used elsewhere in this codebase for
// WebSocket protocols with a handful of message shapes.
type Frame struct {
	Type FrameType `json:"type"`

	// round_request
	ForkGroup []aici.SeqId `json:"fork_group,omitempty"`

	// pre_process
	Suspended bool `json:"suspended,omitempty"`
	ForkCount int  `json:"fork_count,omitempty"`

	// mid_process
	Stop          bool         `json:"stop,omitempty"`
	HasBias       bool         `json:"has_bias,omitempty"`
	AllowAll      bool         `json:"allow_all,omitempty"`
	AllowedTokens []aici.Token `json:"allowed_tokens,omitempty"`
	Backtrack     uint32       `json:"backtrack,omitempty"`
	FFTokens      []aici.Token `json:"ff_tokens,omitempty"`

	// sample
	Token aici.Token `json:"token,omitempty"`

	// post_process
	StopSeq bool `json:"stop_seq,omitempty"`

	// contract_violation
	Message string `json:"message,omitempty"`
}

// roundRequestFrame builds a round_request frame.
func roundRequestFrame(forkGroup []aici.SeqId) Frame {
	return Frame{Type: FrameRoundRequest, ForkGroup: forkGroup}
}

// preProcessFrame builds a pre_process frame from a driver result.
func preProcessFrame(pre aici.PreProcessResult) Frame {
	return Frame{
		Type:      FramePreProcess,
		Suspended: pre.Suspended,
		ForkCount: len(pre.AttentionMasks),
	}
}

// midProcessFrame builds a mid_process frame from a driver result.
func midProcessFrame(mid aici.MidProcessResult) Frame {
	f := Frame{
		Type:      FrameMidProcess,
		Stop:      mid.Stop,
		Backtrack: mid.Backtrack,
		FFTokens:  mid.FFTokens,
	}
	if mid.LogitBias != nil {
		f.HasBias = true
		f.AllowAll, f.AllowedTokens = mid.LogitBias.Allowed()
	}
	return f
}

// sampleFrame builds a sample frame carrying the client's chosen token.
func sampleFrame(tok aici.Token) Frame {
	return Frame{Type: FrameSample, Token: tok}
}

// postProcessFrame builds a post_process frame from a driver result.
func postProcessFrame(post aici.PostProcessResult) Frame {
	return Frame{Type: FramePostProcess, StopSeq: post.StopSeq}
}

// contractViolationFrame builds a terminal contract_violation frame.
func contractViolationFrame(msg string) Frame {
	return Frame{Type: FrameContractViolation, Message: msg}
}

// marshalFrame encodes f as JSON.
func marshalFrame(f Frame) ([]byte, error) {
	return json.Marshal(f)
}

// unmarshalFrame decodes a JSON-encoded [Frame].
func unmarshalFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, err
	}
	return f, nil
}

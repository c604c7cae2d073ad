// Package protocol defines the typed command protocol spoken between the
// panel process and the headless worker subprocess: command codes, the JSON
// command envelope and the delimiter-based frame codec used on the raw
// byte stream.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Code identifies a protocol command.
type Code string

const (
	// CodeHello is sent by the worker once its script booted.
	CodeHello Code = "HELLO"
	// CodeHelloOK is the fire-and-forget reply to HELLO.
	CodeHelloOK Code = "HELLO_OK"
	// CodeAsset carries one asset synchronization job to the worker.
	CodeAsset Code = "ASSET"
	// CodeAssetOK reports a finished job.
	CodeAssetOK Code = "ASSET_OK"
	// CodeAssetError reports a failed job.
	CodeAssetError Code = "ASSET_ERROR"
	// CodeStillThere is a liveness ping toward an already running worker.
	CodeStillThere Code = "STILL_THERE"
	// CodeExit asks the worker to terminate.
	CodeExit Code = "EXIT"
	// CodeExitAck confirms the worker is about to terminate.
	CodeExitAck Code = "EXIT_ACK"
	// CodeCmdError rejects the most recently received command and asks for
	// a retransmission. Flows in both directions.
	CodeCmdError Code = "CMD_ERROR"
	// CodeCmdDone confirms the most recently received command. Flows in
	// both directions.
	CodeCmdDone Code = "CMD_DONE"
)

var codes = map[Code]struct{}{
	CodeHello:      {},
	CodeHelloOK:    {},
	CodeAsset:      {},
	CodeAssetOK:    {},
	CodeAssetError: {},
	CodeStillThere: {},
	CodeExit:       {},
	CodeExitAck:    {},
	CodeCmdError:   {},
	CodeCmdDone:    {},
}

// Valid reports whether c is a known protocol code.
func (c Code) Valid() bool {
	_, ok := codes[c]
	return ok
}

// FireAndForget reports whether a command with this code is transmitted
// without awaiting an acknowledgment.
func (c Code) FireAndForget() bool {
	return c == CodeHelloOK || c == CodeStillThere
}

// Ack reports whether this code acknowledges (or rejects) the most recently
// sent command.
func (c Code) Ack() bool {
	return c == CodeCmdDone || c == CodeCmdError
}

// Command is one unit of protocol exchange. Data and Params are opaque to
// the protocol core: Data identifies the job (asset id, kind, source paths),
// Params carries execution parameters (resolution, detail, output path).
// Only the worker script interprets them. Commands are never mutated after
// construction.
type Command struct {
	Code   Code           `json:"code"`
	Data   map[string]any `json:"data,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}

// New returns a bare command carrying only a code.
func New(code Code) Command {
	return Command{Code: code}
}

// NewAsset returns an ASSET command with the given job payload.
func NewAsset(data, params map[string]any) Command {
	return Command{Code: CodeAsset, Data: data, Params: params}
}

// Delimiters bounding one serialized command inside the byte stream.
// encoding/json escapes '<' and '>' inside strings, so neither marker can
// occur inside a serialized payload.
const (
	MarkerStart = "<<["
	MarkerEnd   = "]>>"
)

// Frame serializes cmd and wraps it into start/end markers plus a trailing
// newline, so the worker side can consume the stream line-wise.
func Frame(cmd Command) ([]byte, error) {
	if !cmd.Code.Valid() {
		return nil, fmt.Errorf("framing command: unknown code %q", cmd.Code)
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("framing command %s: %w", cmd.Code, err)
	}
	buf := make([]byte, 0, len(MarkerStart)+len(payload)+len(MarkerEnd)+1)
	buf = append(buf, MarkerStart...)
	buf = append(buf, payload...)
	buf = append(buf, MarkerEnd...)
	buf = append(buf, '\n')
	return buf, nil
}

// Decode parses one frame payload back into a Command.
func Decode(payload []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return Command{}, fmt.Errorf("decoding command: %w", err)
	}
	if !cmd.Code.Valid() {
		return Command{}, fmt.Errorf("decoding command: unknown code %q", cmd.Code)
	}
	return cmd, nil
}

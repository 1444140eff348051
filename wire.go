package mapper

import "encoding/json"

// CommandFrame is a parsed incoming BiDi command (§6): {id, method,
// params, <channel-tag>?}. ChannelTag carries the "goog:channel" field;
// per §9's open-question resolution this mediator accepts and emits
// only that vendor-prefixed spelling, ignoring the unprefixed
// "channel" one.
type CommandFrame struct {
	ID        uint64          `json:"id"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params"`
	ChannelTag string         `json:"goog:channel,omitempty"`
}

// SuccessResponse is the wire shape of a successful command result (§6):
// {id, type:"success", result, <channel-tag>?}. The channel tag, when
// the originating command carried one, is echoed back on the field
// ResponseSink implementations are expected to set from
// CommandFrame.ChannelTag rather than from this type, mirroring how
// Event's channel tag travels via OutgoingMessage.Channel rather than
// a field on Event itself.
type SuccessResponse struct {
	ID     uint64      `json:"id"`
	Type   string      `json:"type"`
	Result interface{} `json:"result"`
}

// MarshalJSON fills in the constant "type" discriminator.
func (s SuccessResponse) MarshalJSON() ([]byte, error) {
	type alias SuccessResponse
	a := alias(s)
	a.Type = "success"
	return marshalJSONAlias(a)
}

package dto

import jsoniter "github.com/json-iterator/go"

// json is the codec every Envelope and Tree round-trips through. The
// wire encoding here is transport-agnostic: nothing in dto opens a
// socket or a file (that belongs to persist and to the out-of-scope
// network transport collaborator); this just fixes the byte
// representation both sides agree on.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EncodeEnvelope serializes e for a transport to send.
func EncodeEnvelope(e Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEnvelope parses bytes a transport received back into an
// Envelope. Payload decodes as a generic map[string]any; callers that
// know the Msg re-marshal/unmarshal Payload into the concrete payload
// type listed in messages.go (jsoniter round-trips through
// map[string]any cleanly for that purpose).
func DecodeEnvelope(b []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(b, &e)
	return e, err
}

// DecodePayload re-decodes an already-parsed Envelope.Payload (typically
// a map[string]any from DecodeEnvelope) into a concrete payload type,
// e.g. var p SetParamPayload; dto.DecodePayload(env.Payload, &p).
func DecodePayload(payload any, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

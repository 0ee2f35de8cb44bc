package proto

import (
	"bufio"
	"encoding/json"
	"io"

	"chorddht/internal/ring"

	"github.com/pkg/errors"
)

// NewMessage builds a Message carrying payload as its data. Size is
// left at zero here: the wire format is newline-delimited, not
// length-prefixed, so Size is informational only and WriteMessage
// never needs to re-derive it from a second encoding pass.
func NewMessage(kind Kind, client *ring.NodeInfo, payload any) (Message, error) {
	return Message{
		Type:   kind,
		Client: client,
		Data:   MsgData{Type: string(kind), Value: payload},
	}, nil
}

// Decode unmarshals m.Data.Value into out, which must be a pointer to
// the concrete payload type matching m.Type. The value arrives from
// JSON decoding as a map[string]interface{}; this round-trips it
// through json to populate the typed struct.
func Decode(m Message, out any) error {
	raw, err := json.Marshal(m.Data.Value)
	if err != nil {
		return errors.Wrapf(err, "proto: re-encoding payload for %s", m.Type)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrapf(err, "proto: decoding payload for %s", m.Type)
	}
	return nil
}

// WriteMessage frames msg as a single line of JSON terminated by '\n'
// and writes it to w. Framing is newline-delimited, not length-
// prefixed: a struct carries no stable byte length until it is
// actually the bytes being sent, so Size is never trusted for framing.
func WriteMessage(w io.Writer, msg Message) error {
	encoded, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "proto: encoding message")
	}
	_, err = w.Write(append(encoded, '\n'))
	return err
}

// ReadMessage reads a single newline-delimited JSON message from r.
// bufio.Reader.ReadBytes('\n') is what actually performs the framing;
// Size on the wire is decoded along with the rest of the message but
// never checked against the line length, since it was never computed
// from the final encoding in the first place.
func ReadMessage(r *bufio.Reader) (Message, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(line) == 0 {
			return Message{}, io.EOF
		}
		if err != io.EOF {
			return Message{}, errors.Wrap(err, "proto: reading message")
		}
	}
	var msg Message
	if jsonErr := json.Unmarshal(line, &msg); jsonErr != nil {
		return Message{}, errors.Wrap(jsonErr, "proto: malformed message")
	}
	return msg, nil
}

package pagedb

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"net"
)

// SendMessage and RecvMessage frame one message as a 4-byte little-endian
// length prefix followed by that many bytes. This framing is independent of
// what's riding on top of it.
func SendMessage(conn net.Conn, message []byte) error {
	var lenbuf [4]byte
	binary.LittleEndian.PutUint32(lenbuf[:], uint32(len(message)))
	if _, err := conn.Write(lenbuf[:]); err != nil {
		return err
	}

	sent := 0
	for sent < len(message) {
		n, err := conn.Write(message[sent:])
		if err != nil {
			return err
		}
		if n == 0 {
			return errors.New("connection closed")
		}
		sent += n
	}
	return nil
}

func RecvMessage(conn net.Conn) ([]byte, error) {
	var lenbuf [4]byte
	if _, err := io.ReadFull(conn, lenbuf[:]); err != nil {
		return nil, err
	}

	responseLen := binary.LittleEndian.Uint32(lenbuf[:])
	if responseLen == 0 {
		return nil, nil
	}

	response := make([]byte, responseLen)
	_, err := io.ReadFull(conn, response)
	return response, err
}

// Response is the server's reply to one client statement: either a
// QueryResult or an error string, never both.
type Response struct {
	Result *QueryResult `json:",omitempty"`
	Error  string       `json:",omitempty"`
}

func SendResponse(conn net.Conn, response *Response) error {
	message, err := json.Marshal(response)
	if err != nil {
		return err
	}
	return SendMessage(conn, message)
}

func ReceiveResponse(conn net.Conn) (*Response, error) {
	raw, err := RecvMessage(conn)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var result Response
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

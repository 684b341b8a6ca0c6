package protocol

import (
	"bytes"
	"errors"
)

var ErrNotFound = errors.New("key not found")

// Reply is a server reply interpreted by the reference server's conventions:
// either the raw value bytes, or an ERR line.
type Reply struct {
	Value []byte
	Err   error
}

// ServerError is an ERR reply sent by the peer.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "server error: " + e.Message
}

// Is reports whether the server was describing a missing key.
func (e *ServerError) Is(target error) bool {
	return target == ErrNotFound && e.Message == ErrNotFound.Error()
}

// ParseReply interprets raw reply bytes. Anything that isn't an ERR reply is
// treated as a value.
func ParseReply(raw []byte) *Reply {
	if bytes.HasPrefix(raw, PrefixErr) && len(raw) > len(PrefixErr) && raw[len(PrefixErr)] == ' ' {
		return &Reply{Err: &ServerError{Message: string(raw[len(PrefixErr)+1:])}}
	}

	return &Reply{Value: raw}
}

// ErrorOrNil returns an error if the reply contains an error. Otherwise it
// returns nil.
func (r *Reply) ErrorOrNil() error {
	return r.Err
}

package protocol

import (
	"fmt"
	"io"
	"strconv"
)

var (
	OkReply  = []byte("OK")
	Terminal = []byte("\r\n")
)

// Encode serialises cmd and its arguments into a single request frame:
//
//	<cmd>\r\n<len_1>\r\n<arg_1>\r\n ... <len_k>\r\n<arg_k>
//
// The argument count is checked against the command's arity before anything
// is produced, so a failed Encode never yields a partial frame.
func Encode(cmd Command, args ...[]byte) ([]byte, error) {
	if err := validate(cmd, len(args)); err != nil {
		return nil, err
	}

	size := len(cmd) + len(Terminal)
	for _, arg := range args {
		size += 20 + 2*len(Terminal) + len(arg)
	}

	buf := make([]byte, 0, size)
	buf = append(buf, string(cmd)...)
	buf = append(buf, Terminal...)

	for i, arg := range args {
		if i > 0 {
			buf = append(buf, Terminal...)
		}

		buf = strconv.AppendInt(buf, int64(len(arg)), 10)
		buf = append(buf, Terminal...)
		buf = append(buf, arg...)
	}

	return buf, nil
}

// WriteFrame encodes cmd and writes the whole frame to w.
func WriteFrame(w io.Writer, cmd Command, args ...[]byte) error {
	b, err := Encode(cmd, args...)
	if err != nil {
		return err
	}

	_, err = w.Write(b)
	return err
}

func WriteOk(w io.Writer) error {
	_, err := w.Write(OkReply)
	return err
}

func WriteValue(w io.Writer, value []byte) error {
	_, err := w.Write(value)
	return err
}

func WriteError(w io.Writer, errMsg string) error {
	_, err := fmt.Fprintf(w, "%s %s", PrefixErr, errMsg)
	return err
}

// WriteBulk writes payload prefixed with its decimal length, the same way
// request arguments are framed. Peers that want a self-delimiting reply use
// this instead of closing the connection after the payload.
func WriteBulk(w io.Writer, payload []byte) error {
	b := strconv.AppendInt(make([]byte, 0, 20+len(Terminal)+len(payload)), int64(len(payload)), 10)
	b = append(b, Terminal...)
	b = append(b, payload...)

	_, err := w.Write(b)
	return err
}

func validate(cmd Command, argc int) error {
	arity, ok := Arity(cmd)
	if !ok {
		return fmt.Errorf("Failed to encode '%s': %w", string(cmd), ErrUnknownCommand)
	}

	if argc != arity {
		return fmt.Errorf("Failed to encode '%s' with %d arguments, it takes %d: %w",
			string(cmd), argc, arity, ErrInvalidArity)
	}

	return nil
}

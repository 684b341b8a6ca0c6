package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

var (
	ErrUnknownCommand = errors.New("Unknown command could not be parsed")
	ErrInvalidArity   = errors.New("Command was given the wrong number of arguments")
	ErrMalformedFrame = errors.New("Frame is malformed")

	PrefixErr = []byte("ERR")
)

// Decode parses data as exactly one request frame. Unlike ReadFrame, all of
// data must be consumed: the only thing allowed after the final argument is a
// single optional CRLF.
func Decode(data []byte) (Frame, error) {
	limits := DefaultLimits()
	limits.MaxArgSize = uint64(len(data))

	r := bufio.NewReader(bytes.NewReader(data))

	frame, err := ReadFrame(r, limits)
	if errors.Is(err, io.EOF) {
		return Frame{}, fmt.Errorf("Failed to parse empty frame: %w", ErrMalformedFrame)
	}
	if err != nil {
		return Frame{}, err
	}

	rest, _ := io.ReadAll(r)
	if len(rest) > 0 && !bytes.Equal(rest, Terminal) {
		return Frame{}, fmt.Errorf("Failed to parse '%s', %d trailing bytes after final argument: %w",
			frame.Command, len(rest), ErrMalformedFrame)
	}

	return frame, nil
}

// ReadFrame reads exactly one request frame from data. It stops as soon as
// the last argument the command's arity calls for has been read, so it never
// blocks waiting for bytes beyond the frame.
//
// If data is not already a *bufio.Reader it will be wrapped in one, which may
// buffer bytes past the end of the frame. Callers reading more than one frame
// from a stream should pass the same *bufio.Reader each time.
//
// io.EOF is returned as is when data is exhausted before the first byte of a
// frame. Running out of data part way through a frame is ErrMalformedFrame.
func ReadFrame(data io.Reader, limits Limits) (Frame, error) {
	r := asBufioReader(data)

	token, err := readToken(r, limits.MaxTokenSize)
	switch {
	case err == io.EOF:
		return Frame{}, io.EOF

	case errors.Is(err, errTokenTooLong):
		return Frame{}, fmt.Errorf("Failed to parse command token: %w", ErrUnknownCommand)

	case err != nil:
		return Frame{}, fmt.Errorf("Failed to read command token: %w", err)
	}

	cmd := Command(token)
	arity, ok := Arity(cmd)
	if !ok {
		return Frame{}, fmt.Errorf("Failed to parse '%s': %w", string(token), ErrUnknownCommand)
	}

	frame := Frame{Command: cmd, Args: make([][]byte, 0, arity)}

	for i := 0; i < arity; i++ {
		if i > 0 {
			if err := readTerminal(r); err != nil {
				return Frame{}, fmt.Errorf("Failed to parse '%s' argument %d: %w", cmd, i, err)
			}
		}

		arg, err := readArgument(r, limits)
		if err != nil {
			return Frame{}, fmt.Errorf("Failed to parse '%s' argument %d: %w", cmd, i, err)
		}

		frame.Args = append(frame.Args, arg)
	}

	return frame, nil
}

// ReadBulk reads a single length prefixed payload, as written by WriteBulk.
func ReadBulk(data io.Reader, limits Limits) ([]byte, error) {
	r := asBufioReader(data)

	payload, err := readArgument(r, limits)
	if err != nil {
		return nil, fmt.Errorf("Failed to read bulk reply: %w", err)
	}

	return payload, nil
}

var errTokenTooLong = fmt.Errorf("token too long: %w", ErrMalformedFrame)

// readToken reads up to the next CRLF and returns the bytes before it. A
// clean io.EOF is only returned when no bytes at all could be read.
func readToken(r *bufio.Reader, max int) ([]byte, error) {
	var token []byte

	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF && len(token) == 0 {
				return nil, io.EOF
			}
			return nil, unexpected(err)
		}

		if b == '\r' {
			next, err := r.ReadByte()
			if err != nil {
				return nil, unexpected(err)
			}

			if next != '\n' {
				return nil, fmt.Errorf("expected LF after CR, got %q: %w", next, ErrMalformedFrame)
			}

			return token, nil
		}

		if len(token) >= max {
			return nil, errTokenTooLong
		}

		token = append(token, b)
	}
}

func readTerminal(r *bufio.Reader) error {
	var term [2]byte
	if _, err := io.ReadFull(r, term[:]); err != nil {
		return unexpected(err)
	}

	if !bytes.Equal(term[:], Terminal) {
		return fmt.Errorf("expected CRLF delimiter, got %q: %w", term[:], ErrMalformedFrame)
	}

	return nil
}

// readArgument reads a <len>\r\n<bytes> pair. The argument boundary comes
// from the length alone; the bytes themselves may contain CRLF.
// argumentChunk caps the buffer reserved up front for an argument.
const argumentChunk = 64 * 1024

func readArgument(r *bufio.Reader, limits Limits) ([]byte, error) {
	token, err := readToken(r, limits.MaxTokenSize)
	if err == io.EOF {
		return nil, unexpected(err)
	}
	if err != nil {
		return nil, err
	}

	n, err := parseLength(token, limits)
	if err != nil {
		return nil, err
	}

	// Grow with what actually arrives, the declared length is not to be trusted
	initial := n
	if initial > argumentChunk {
		initial = argumentChunk
	}

	var arg bytes.Buffer
	arg.Grow(int(initial))

	if _, err := io.CopyN(&arg, r, int64(n)); err != nil {
		return nil, fmt.Errorf("declared length %d exceeds available bytes: %w", n, unexpected(err))
	}

	return arg.Bytes(), nil
}

func parseLength(token []byte, limits Limits) (uint64, error) {
	if len(token) == 0 {
		return 0, fmt.Errorf("empty length token: %w", ErrMalformedFrame)
	}

	for _, c := range token {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("length token '%s' is not a decimal integer: %w", string(token), ErrMalformedFrame)
		}
	}

	n, err := strconv.ParseUint(string(token), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("length token '%s' out of range: %w", string(token), ErrMalformedFrame)
	}

	if n > limits.MaxArgSize {
		return 0, fmt.Errorf("declared length %d exceeds limit of %d: %w", n, limits.MaxArgSize, ErrMalformedFrame)
	}

	return n, nil
}

// unexpected turns running out of input inside a frame into ErrMalformedFrame
// and leaves transport errors, such as deadlines, alone.
func unexpected(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("%w: %v", ErrMalformedFrame, io.ErrUnexpectedEOF)
	}

	return err
}

func asBufioReader(data io.Reader) *bufio.Reader {
	if r, ok := data.(*bufio.Reader); ok {
		return r
	}

	return bufio.NewReader(data)
}

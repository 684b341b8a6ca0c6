package protocol_test

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"runtime"
	"strings"

	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/luma/cask/protocol"
)

// allocatedBy reports how many bytes fn allocated on the heap.
func allocatedBy(fn func()) uint64 {
	var before, after runtime.MemStats

	runtime.ReadMemStats(&before)
	fn()
	runtime.ReadMemStats(&after)

	return after.TotalAlloc - before.TotalAlloc
}

func args(ss ...string) [][]byte {
	out := make([][]byte, 0, len(ss))
	for _, s := range ss {
		out = append(out, []byte(s))
	}
	return out
}

var _ = Describe("Parsing", func() {
	Describe("Decode()", func() {
		table.DescribeTable("round trips every valid frame",
			func(cmd protocol.Command, in [][]byte) {
				b, err := protocol.Encode(cmd, in...)
				Expect(err).To(Succeed())

				frame, err := protocol.Decode(b)
				Expect(err).To(Succeed())
				Expect(frame.Command).To(Equal(cmd))
				Expect(frame.Args).To(HaveLen(len(in)))
				for i := range in {
					Expect(frame.Args[i]).To(Equal(in[i]))
				}
			},
			table.Entry("set", protocol.SET, args("foo", "bar")),
			table.Entry("get", protocol.GET, args("foo")),
			table.Entry("delete", protocol.DELETE, args("foo")),
			table.Entry("merge", protocol.MERGE, args()),
			table.Entry("empty key and value", protocol.SET, args("", "")),
			table.Entry("value is the delimiter", protocol.SET, args("k", "\r\n")),
			table.Entry("value looks like a frame", protocol.SET, args("k", "get\r\n3\r\nfoo")),
			table.Entry("key with CR only", protocol.GET, args("a\rb")),
			table.Entry("binary value", protocol.SET, [][]byte{[]byte("bin"), {0x00, 0xff, '\r', '\n', 0x10}}),
			table.Entry("long value", protocol.SET, args("big", strings.Repeat("x", 70000))),
		)

		It("decodes the reference set frame", func() {
			frame, err := protocol.Decode([]byte("set\r\n3\r\nfoo\r\n7\r\nbar baz"))
			Expect(err).To(Succeed())
			Expect(frame).To(Equal(protocol.Frame{
				Command: protocol.SET,
				Args:    args("foo", "bar baz"),
			}))
		})

		It("accepts leading zeros in a length", func() {
			frame, err := protocol.Decode([]byte("get\r\n003\r\nfoo"))
			Expect(err).To(Succeed())
			Expect(frame.Args).To(Equal(args("foo")))
		})

		It("accepts a single trailing delimiter", func() {
			frame, err := protocol.Decode([]byte("get\r\n3\r\nfoo\r\n"))
			Expect(err).To(Succeed())
			Expect(frame.Args).To(Equal(args("foo")))
		})

		It("rejects other trailing bytes", func() {
			_, err := protocol.Decode([]byte("get\r\n3\r\nfoo\r\nextra"))
			Expect(err).To(MatchError(protocol.ErrMalformedFrame))
		})

		It("rejects a declared length longer than the remaining bytes", func() {
			_, err := protocol.Decode([]byte("get\r\n10\r\nfoo"))
			Expect(err).To(MatchError(protocol.ErrMalformedFrame))

			_, err = protocol.Decode([]byte("set\r\n3\r\nfoo\r\n4\r\nbar"))
			Expect(err).To(MatchError(protocol.ErrMalformedFrame))
		})

		It("rejects lengths that are not non-negative decimal integers", func() {
			for _, in := range []string{
				"get\r\n-3\r\nfoo",
				"get\r\n+3\r\nfoo",
				"get\r\nx\r\nfoo",
				"get\r\n 3\r\nfoo",
				"get\r\n\r\nfoo",
				"get\r\n99999999999999999999999\r\nfoo",
			} {
				_, err := protocol.Decode([]byte(in))
				Expect(errors.Is(err, protocol.ErrMalformedFrame)).To(BeTrue(), in)
			}
		})

		It("rejects a missing delimiter between arguments", func() {
			_, err := protocol.Decode([]byte("set\r\n3\r\nfooXX3\r\nbar"))
			Expect(err).To(MatchError(protocol.ErrMalformedFrame))
		})

		It("rejects a CR that isn't followed by LF", func() {
			_, err := protocol.Decode([]byte("get\r3\r\nfoo"))
			Expect(err).To(MatchError(protocol.ErrMalformedFrame))
		})

		It("rejects a frame with missing arguments", func() {
			_, err := protocol.Decode([]byte("set\r\n3\r\nfoo"))
			Expect(err).To(MatchError(protocol.ErrMalformedFrame))
		})

		It("rejects empty input", func() {
			_, err := protocol.Decode([]byte{})
			Expect(err).To(MatchError(protocol.ErrMalformedFrame))
		})

		It("returns an error if the command is unknown", func() {
			_, err := protocol.Decode([]byte("evil\r\n3\r\nfoo"))
			Expect(errors.Is(err, protocol.ErrUnknownCommand)).To(BeTrue())

			_, err = protocol.Decode([]byte("GET\r\n3\r\nfoo"))
			Expect(errors.Is(err, protocol.ErrUnknownCommand)).To(BeTrue())
		})

		It("treats an overlong command token as unknown", func() {
			_, err := protocol.Decode([]byte(strings.Repeat("a", 100) + "\r\n"))
			Expect(errors.Is(err, protocol.ErrUnknownCommand)).To(BeTrue())
		})
	})

	Describe("ReadFrame()", func() {
		It("returns io.EOF when there is nothing to read", func() {
			_, err := protocol.ReadFrame(bytes.NewReader(nil), protocol.DefaultLimits())
			Expect(err).To(Equal(io.EOF))
		})

		It("does not read past the end of the frame", func() {
			r := bufio.NewReader(strings.NewReader("get\r\n3\r\nfooget\r\n3\r\nbar"))

			first, err := protocol.ReadFrame(r, protocol.DefaultLimits())
			Expect(err).To(Succeed())
			Expect(first.Args).To(Equal(args("foo")))

			second, err := protocol.ReadFrame(r, protocol.DefaultLimits())
			Expect(err).To(Succeed())
			Expect(second.Args).To(Equal(args("bar")))
		})

		It("completes without a trailing delimiter on a stream that stays open", func() {
			pr, pw := io.Pipe()
			defer pw.Close()

			go func() {
				defer GinkgoRecover()
				_, err := pw.Write([]byte("set\r\n3\r\nfoo\r\n3\r\nbar"))
				Expect(err).To(Succeed())
			}()

			frame, err := protocol.ReadFrame(pr, protocol.DefaultLimits())
			Expect(err).To(Succeed())
			Expect(frame.Args).To(Equal(args("foo", "bar")))
		})

		It("enforces the argument size limit", func() {
			limits := protocol.DefaultLimits()
			limits.MaxArgSize = 2

			_, err := protocol.ReadFrame(strings.NewReader("get\r\n3\r\nfoo"), limits)
			Expect(err).To(MatchError(protocol.ErrMalformedFrame))
		})

		It("does not reserve a declared length that never arrives", func() {
			allocated := allocatedBy(func() {
				for i := 0; i < 10; i++ {
					_, err := protocol.ReadFrame(strings.NewReader("set\r\n60000000\r\nx"), protocol.DefaultLimits())
					Expect(err).To(MatchError(protocol.ErrMalformedFrame))
				}
			})

			Expect(allocated).To(BeNumerically("<", 16*1024*1024))
		})

		It("reads arguments larger than a single buffer", func() {
			value := strings.Repeat("v", 200*1024)
			frame, err := protocol.ReadFrame(strings.NewReader("set\r\n3\r\nfoo\r\n204800\r\n"+value), protocol.DefaultLimits())
			Expect(err).To(Succeed())
			Expect(frame.Args).To(Equal(args("foo", value)))
		})

		It("passes through transport errors", func() {
			boom := errors.New("i/o timeout")
			_, err := protocol.ReadFrame(io.MultiReader(strings.NewReader("get\r\n3\r\n"), errReader{boom}), protocol.DefaultLimits())
			Expect(errors.Is(err, boom)).To(BeTrue())
			Expect(errors.Is(err, protocol.ErrMalformedFrame)).To(BeFalse())
		})
	})

	Describe("ReadBulk()", func() {
		It("reads a length prefixed payload", func() {
			payload, err := protocol.ReadBulk(strings.NewReader("5\r\nbar\r\n"), protocol.DefaultLimits())
			Expect(err).To(Succeed())
			Expect(string(payload)).To(Equal("bar\r\n"))
		})

		It("fails when the payload is short", func() {
			_, err := protocol.ReadBulk(strings.NewReader("5\r\nbar"), protocol.DefaultLimits())
			Expect(err).To(MatchError(protocol.ErrMalformedFrame))
		})

		It("does not reserve a declared length that never arrives", func() {
			allocated := allocatedBy(func() {
				_, err := protocol.ReadBulk(strings.NewReader("60000000\r\nbar"), protocol.DefaultLimits())
				Expect(err).To(MatchError(protocol.ErrMalformedFrame))
			})

			Expect(allocated).To(BeNumerically("<", 16*1024*1024))
		})

		It("fails on an empty stream", func() {
			_, err := protocol.ReadBulk(strings.NewReader(""), protocol.DefaultLimits())
			Expect(err).To(MatchError(protocol.ErrMalformedFrame))
		})
	})

	Describe("Arity()", func() {
		It("knows every command", func() {
			Expect(protocol.Commands()).To(Equal([]protocol.Command{
				protocol.DELETE, protocol.GET, protocol.MERGE, protocol.SET,
			}))

			n, ok := protocol.Arity(protocol.SET)
			Expect(ok).To(BeTrue())
			Expect(n).To(Equal(2))

			_, ok = protocol.Arity("evil")
			Expect(ok).To(BeFalse())
		})
	})
})

type errReader struct {
	err error
}

func (e errReader) Read(p []byte) (int, error) {
	return 0, e.err
}

package protocol

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
)

// Network byte order: big endian.
var byteOrder = binary.BigEndian

var (
	ErrUnknownMessage = errors.New("unknown message id")
	ErrArity          = errors.New("wrong number of arguments")
)

// ReadCommand decodes one command. Any error is fatal for the connection:
// after an unknown id the stream position can no longer be trusted.
func ReadCommand(r io.Reader) (Command, error) {
	var head [1]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return Command{}, err
	}
	id := MessageID(head[0])

	n, ok := Arity(id)
	if !ok {
		return Command{}, fmt.Errorf("%w: %d", ErrUnknownMessage, head[0])
	}

	cmd := Command{ID: id, Args: make([]int32, n)}
	if n == 0 {
		return cmd, nil
	}

	buf := make([]byte, 4*n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Command{}, fmt.Errorf("reading %s arguments: %w", id, err)
	}
	for i := range cmd.Args {
		cmd.Args[i] = int32(byteOrder.Uint32(buf[4*i:]))
	}
	return cmd, nil
}

// WriteCommand is the client side of ReadCommand.
func WriteCommand(w io.Writer, cmd Command) error {
	n, ok := Arity(cmd.ID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownMessage, byte(cmd.ID))
	}
	if len(cmd.Args) != n {
		return fmt.Errorf("%w: %s takes %d, got %d", ErrArity, cmd.ID, n, len(cmd.Args))
	}

	buf := make([]byte, 1+4*n)
	buf[0] = byte(cmd.ID)
	for i, a := range cmd.Args {
		byteOrder.PutUint32(buf[1+4*i:], uint32(a))
	}
	_, err := w.Write(buf)
	return err
}

func EncodeInt(v int32) []byte {
	data := make([]byte, 4)
	byteOrder.PutUint32(data, uint32(v))
	return data
}

func EncodeBool(v bool) []byte {
	if v {
		return EncodeInt(1)
	}
	return EncodeInt(0)
}

// EncodeScreenshot frames already PNG-compressed bytes as
// length (int32) followed by the base64 text.
func EncodeScreenshot(pngData []byte) []byte {
	n := base64.StdEncoding.EncodedLen(len(pngData))
	data := make([]byte, 4+n)
	byteOrder.PutUint32(data, uint32(n))
	base64.StdEncoding.Encode(data[4:], pngData)
	return data
}

func EncodeImage(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("png encode: %w", err)
	}
	return EncodeScreenshot(buf.Bytes()), nil
}

func ReadInt(r io.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int32(byteOrder.Uint32(buf[:])), nil
}

// ReadScreenshot reads an image reply and returns the decoded PNG bytes.
func ReadScreenshot(r io.Reader) ([]byte, error) {
	n, err := ReadInt(r)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("negative screenshot length %d", n)
	}
	encoded := make([]byte, n)
	if _, err := io.ReadFull(r, encoded); err != nil {
		return nil, fmt.Errorf("reading screenshot body: %w", err)
	}
	out := make([]byte, base64.StdEncoding.DecodedLen(len(encoded)))
	m, err := base64.StdEncoding.Decode(out, encoded)
	if err != nil {
		return nil, fmt.Errorf("screenshot base64: %w", err)
	}
	return out[:m], nil
}

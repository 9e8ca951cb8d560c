package delta

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

// ErrMalformedResponse is returned by Decode when the body does not carry the
// three-line header.
var ErrMalformedResponse = errors.New("delta: malformed response")

// Encode renders resp in the wire format: three decimal integers (version,
// start, begin), each terminated by a newline, followed by the raw part
// bytes.
func Encode(resp Response) []byte {
	var buf bytes.Buffer
	buf.Grow(len(resp.Part) + 32)
	buf.WriteString(strconv.Itoa(resp.Version))
	buf.WriteByte('\n')
	buf.WriteString(strconv.Itoa(resp.Start))
	buf.WriteByte('\n')
	buf.WriteString(strconv.Itoa(resp.Begin))
	buf.WriteByte('\n')
	buf.Write(resp.Part)
	return buf.Bytes()
}

// Decode parses a wire-format body. The part may alias body; callers that
// retain it across reuse of body must copy.
func Decode(body []byte) (Response, error) {
	var header [3]int
	rest := body
	for i := range header {
		nl := bytes.IndexByte(rest, '\n')
		if nl < 0 {
			return Response{}, fmt.Errorf("%w: missing header line %d", ErrMalformedResponse, i+1)
		}
		n, err := strconv.Atoi(string(rest[:nl]))
		if err != nil {
			return Response{}, fmt.Errorf("%w: header line %d: %v", ErrMalformedResponse, i+1, err)
		}
		header[i] = n
		rest = rest[nl+1:]
	}

	return Response{
		Version: header[0],
		Start:   header[1],
		Begin:   header[2],
		Part:    rest,
	}, nil
}

package backend

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
)

// frameBuffer reassembles line frames from raw body chunks. It owns the
// trailing unterminated text and the undecoded tail of a multi-byte UTF-8
// sequence split across reads. A leading byte order mark is dropped. One
// frameBuffer serves exactly one stream.
type frameBuffer struct {
	dec     transform.Transformer
	pending []byte
	tail    string
}

func newFrameBuffer() *frameBuffer {
	return &frameBuffer{dec: unicode.UTF8BOM.NewDecoder()}
}

// feed decodes chunk, appends it to the trailing text and returns every
// complete line in order. The final fragment is kept for the next call and
// is never returned as a frame. A CR before the LF is dropped.
func (b *frameBuffer) feed(chunk []byte) []string {
	text := b.decode(chunk)
	if text == "" {
		return nil
	}

	lines := strings.Split(b.tail+text, "\n")
	b.tail = lines[len(lines)-1]
	lines = lines[:len(lines)-1]
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// decode converts chunk to text. Ill-formed bytes become U+FFFD; an
// incomplete trailing sequence, or the first bytes of the body while they
// may still be a byte order mark, is held back until the next chunk.
func (b *frameBuffer) decode(chunk []byte) string {
	src := chunk
	if len(b.pending) > 0 {
		src = append(b.pending, chunk...)
	}

	dst := make([]byte, 3*len(src)+utf8.UTFMax)
	var out []byte
	for {
		nDst, nSrc, err := b.dec.Transform(dst, src, false)
		out = append(out, dst[:nDst]...)
		src = src[nSrc:]
		if err == transform.ErrShortDst {
			dst = make([]byte, 2*len(dst))
			continue
		}
		break
	}

	b.pending = append([]byte(nil), src...)
	return string(out)
}

// payloadKind tags the outcome of decoding one frame.
type payloadKind int

const (
	payloadIgnored  payloadKind = iota // not a data frame
	payloadSentinel                    // [DONE]
	payloadContent                     // JSON object with a content property
	payloadRaw                         // any other non-blank text, verbatim
	payloadEmpty                       // blank text, suppressed
)

// decodedPayload is the result of decoding one frame.
type decodedPayload struct {
	kind payloadKind
	text string
}

// deliverable reports whether the payload produces a result.
func (p decodedPayload) deliverable() bool {
	return p.kind == payloadContent || p.kind == payloadRaw
}

func decodeFrame(frame string) decodedPayload {
	data, ok := strings.CutPrefix(frame, dataPrefix)
	if !ok {
		return decodedPayload{kind: payloadIgnored}
	}
	return decodePayload(data)
}

// decodePayload classifies data. A JSON object with a "content" property
// yields that property; a JSON object without one yields the original text,
// not a re-encoding of it. Anything that is not a JSON object falls back to
// the raw text unless it is blank.
func decodePayload(data string) decodedPayload {
	if data == doneSentinel {
		return decodedPayload{kind: payloadSentinel}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &obj); err == nil && obj != nil {
		if raw, ok := obj["content"]; ok {
			return decodedPayload{kind: payloadContent, text: contentText(raw)}
		}
		return decodedPayload{kind: payloadRaw, text: data}
	}

	if strings.TrimSpace(data) == "" {
		return decodedPayload{kind: payloadEmpty}
	}
	return decodedPayload{kind: payloadRaw, text: data}
}

// contentText returns a JSON string value unquoted; other JSON values,
// null included, are returned in their encoded form.
func contentText(raw json.RawMessage) string {
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

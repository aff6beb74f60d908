package webhook

import (
	"strconv"
	"unicode/utf16"
)

// BodyLengthHeader is set by BodyLength.
const BodyLengthHeader = "x-body-length"

// BodyLength sets x-body-length to the length of the body in UTF-16 code
// units, 0 when the body is absent. Characters outside the Basic Multilingual
// Plane count twice, so the value matches what JVM-based receivers compute
// with String.length().
type BodyLength struct{}

func (BodyLength) Name() string { return "body-length" }

func (BodyLength) Transform(_ ServeEvent, req Request) (Request, error) {
	return req.WithHeader(BodyLengthHeader, strconv.Itoa(utf16Len(req.BodyString()))), nil
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

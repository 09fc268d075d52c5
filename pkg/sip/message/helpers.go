package message

import (
	"fmt"
	"strconv"
	"strings"
)

// ExtractTag returns the value of the tag parameter in a From or To header
// value, or "" when no tag is present.
func ExtractTag(headerValue string) string {
	idx := strings.Index(headerValue, ";tag=")
	if idx < 0 {
		return ""
	}
	tag := headerValue[idx+len(";tag="):]
	if end := strings.IndexAny(tag, ";> \t"); end >= 0 {
		tag = tag[:end]
	}
	return tag
}

// ParseCSeq splits a CSeq header value into sequence number and method.
func ParseCSeq(value string) (seq uint32, method string, err error) {
	parts := strings.Fields(value)
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("invalid CSeq %q", value)
	}
	n, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return 0, "", fmt.Errorf("invalid CSeq number %q", parts[0])
	}
	return uint32(n), parts[1], nil
}

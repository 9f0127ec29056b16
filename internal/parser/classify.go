// Package parser turns raw nginx access-log lines into (url, request_time) pairs.
//
// The log format this package understands is nginx's "ui_short":
//
//	$remote_addr  $remote_user $http_x_real_ip [$time_local] "$request"
//	$status $body_bytes_sent "$http_referer" "$http_user_agent"
//	"$http_x_forwarded_for" "$http_X_REQUEST_ID" "$http_X_RB_USER"
//	$request_time
//
// Only the request target and the trailing $request_time are extracted.
package parser

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Status classifies the outcome of parsing a single line.
type Status int

const (
	// StatusOK means URL and RequestTime were extracted.
	StatusOK Status = iota

	// StatusBadLog means the line did not match the record pattern.
	// Recoverable: the line is counted and skipped.
	StatusBadLog

	// StatusDecodeError means the line is not valid UTF-8.
	// Fatal for the whole run.
	StatusDecodeError
)

// String returns the status name used in logs.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusBadLog:
		return "bad_log"
	case StatusDecodeError:
		return "decode_error"
	default:
		return "unknown"
	}
}

// ParsedLine is the result of classifying one raw log line.
// URL and RequestTime are set only when Status is StatusOK.
type ParsedLine struct {
	URL         string
	RequestTime string
	Status      Status
}

// recordPattern matches one access-log record: a method, the request target,
// the HTTP version, and a trailing decimal request duration.
var recordPattern = regexp.MustCompile(`(?:GET|POST|HEAD|PUT|OPTIONS|DELETE).(.*).HTTP/.* (\d{1,6}[.]\d+)`)

// Classify extracts the request target and duration from a raw log line.
//
// The target is kept verbatim, including the literal "-" nginx writes when
// no path was logged.
func Classify(raw []byte) ParsedLine {
	if !utf8.Valid(raw) {
		return ParsedLine{Status: StatusDecodeError}
	}

	m := recordPattern.FindSubmatchIndex(raw)
	if m == nil {
		return ParsedLine{Status: StatusBadLog}
	}

	return ParsedLine{
		URL:         strings.TrimSpace(string(raw[m[2]:m[3]])),
		RequestTime: string(bytes.TrimSpace(raw[m[4]:m[5]])),
		Status:      StatusOK,
	}
}

package model

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

// Codes of ConfigErrorDetail.
const (
	CodeUnknownField     = "unknown_field"
	CodeMissingRequired  = "missing_required"
	CodeInvalidBackend   = "invalid_backend"
	CodeInvalidDuration  = "invalid_duration"
	CodeInvalidSchedule  = "invalid_schedule"
	CodeInvalidServiceID = "invalid_service_id"
	CodeInvalidValue     = "invalid_value"
)

// ConfigErrorDetail is one readable finding of a configuration that
// failed the schema.
type ConfigErrorDetail struct {
	Path    string // run.kill_grace
	Code    string
	Message string
	Pos     ConfigErrorPosition
	Raw     string
}

type ConfigErrorPosition struct {
	Filename string
	Line     int
	Column   int
}

// Attr renders the detail as a log group.
func (d ConfigErrorDetail) Attr(name string) slog.Attr {
	attrs := []slog.Attr{
		slog.String("code", d.Code),
		slog.String("path", d.Path),
		slog.String("message", d.Message),
	}
	if d.Pos.Filename != "" {
		attrs = append(attrs,
			slog.String("file", d.Pos.Filename),
			slog.Int("line", d.Pos.Line),
			slog.Int("column", d.Pos.Column),
		)
	}
	return slog.GroupAttrs(name, attrs...)
}

var (
	reNotAllowed = regexp.MustCompile(`(?i)not allowed`)
	reIncomplete = regexp.MustCompile(`(?i)incomplete value`)
	reServiceID  = regexp.MustCompile(`^watch\.services\.\d+\.id$`)
)

var durationFields = map[string]bool{
	"run.kill_grace":  true,
	"run.drain_delay": true,
	"service.timeout": true,
}

// ConfigErrDetails turns an error of LoadConfig into one detail per
// offending field. Errors not raised by the schema yield nothing.
func ConfigErrDetails(err error) []ConfigErrorDetail {
	if err == nil {
		return nil
	}
	type key struct{ path, code string }
	seen := make(map[key]struct{})

	var out []ConfigErrorDetail
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		raw := fmt.Sprintf(format, args...)
		path := fieldPath(e.Path())
		code, msg := classify(raw, path)

		k := key{path, code}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, ConfigErrorDetail{
			Path:    path,
			Code:    code,
			Message: msg,
			Pos:     position(e),
			Raw:     raw,
		})
	}
	return out
}

func classify(raw, path string) (code, msg string) {
	field := path[strings.LastIndexByte(path, '.')+1:]
	switch {
	case path == "service.backend":
		return CodeInvalidBackend, "backend must be one of " + strings.Join(Backends, ", ")
	case durationFields[path]:
		return CodeInvalidDuration, fmt.Sprintf("%s must be a duration like 2s or 1m30s", field)
	case strings.HasPrefix(path, "watch.schedule"):
		return CodeInvalidSchedule, "schedule needs exactly one of cron or duration"
	case reServiceID.MatchString(path):
		return CodeInvalidServiceID, "service id must be non-empty and contain no path separator"
	case reNotAllowed.MatchString(raw):
		return CodeUnknownField, fmt.Sprintf("field %s is not allowed", field)
	case reIncomplete.MatchString(raw):
		return CodeMissingRequired, fmt.Sprintf("field %s is required", field)
	default:
		return CodeInvalidValue, raw
	}
}

// fieldPath drops the leading #Config definition.
func fieldPath(p []string) string {
	if len(p) > 0 && strings.HasPrefix(p[0], "#") {
		p = p[1:]
	}
	return strings.Join(p, ".")
}

func position(err cueerrors.Error) ConfigErrorPosition {
	for _, r := range cueerrors.Positions(err) {
		if r.Filename() == "" {
			continue
		}
		return ConfigErrorPosition{
			Filename: r.Filename(),
			Line:     r.Line(),
			Column:   r.Column(),
		}
	}
	return ConfigErrorPosition{}
}

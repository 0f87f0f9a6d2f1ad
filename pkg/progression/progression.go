// Package progression normalises the lesson progression settings of the
// display and content metabox: a lesson progresses by video, by
// assignment upload or by a forced timer, never more than one at a time.
package progression

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/layering"
	"github.com/goliatone/go-settings/pkg/state"
)

// Mode is the active progression requirement.
type Mode string

const (
	ModeNone       Mode = ""
	ModeVideo      Mode = "video"
	ModeAssignment Mode = "assignment"
	ModeTimer      Mode = "timer"
)

// Short field keys handled by this package.
const (
	KeyMaterialsEnabled = "topic_materials_enabled"
	KeyMaterials        = "topic_materials"

	KeyVideoEnabled            = "lesson_video_enabled"
	KeyVideoURL                = "lesson_video_url"
	KeyVideoShown              = "lesson_video_shown"
	KeyVideoAutoStart          = "lesson_video_auto_start"
	KeyVideoShowControls       = "lesson_video_show_controls"
	KeyVideoFocusPause         = "lesson_video_focus_pause"
	KeyVideoTrackTime          = "lesson_video_track_time"
	KeyVideoAutoComplete       = "lesson_video_auto_complete"
	KeyVideoAutoCompleteDelay  = "lesson_video_auto_complete_delay"
	KeyVideoShowCompleteButton = "lesson_video_show_complete_button"
	KeyVideoHideCompleteButton = "lesson_video_hide_complete_button"

	KeyAssignmentUpload      = "lesson_assignment_upload"
	KeyUploadExtensions      = "assignment_upload_limit_extensions"
	KeyUploadSize            = "assignment_upload_limit_size"
	KeyPointsEnabled         = "lesson_assignment_points_enabled"
	KeyPointsAmount          = "lesson_assignment_points_amount"
	KeyUploadCount           = "assignment_upload_limit_count"
	KeyAssignmentDeletion    = "lesson_assignment_deletion_enabled"
	KeyAutoApproveAssignment = "auto_approve_assignment"

	KeyTimerEnabled = "forced_lesson_time_enabled"
	KeyTimer        = "forced_lesson_time"
)

const on = "on"

// DefaultMaxUploadSize caps assignment_upload_limit_size when no other
// limit is configured.
const DefaultMaxUploadSize int64 = 64 << 20

var dependents = map[Mode][]string{
	ModeVideo: {
		KeyVideoURL, KeyVideoShown, KeyVideoAutoStart, KeyVideoShowControls,
		KeyVideoFocusPause, KeyVideoTrackTime, KeyVideoAutoComplete,
		KeyVideoAutoCompleteDelay, KeyVideoShowCompleteButton, KeyVideoHideCompleteButton,
	},
	ModeAssignment: {
		KeyUploadExtensions, KeyUploadSize, KeyPointsEnabled, KeyPointsAmount,
		KeyUploadCount, KeyAssignmentDeletion, KeyAutoApproveAssignment,
	},
	ModeTimer: {KeyTimer},
}

var flags = map[Mode]string{
	ModeVideo:      KeyVideoEnabled,
	ModeAssignment: KeyAssignmentUpload,
	ModeTimer:      KeyTimerEnabled,
}

// Option configures normalisation.
type Option func(*config)

type config struct {
	maxUpload int64
}

// WithMaxUploadSize sets the largest accepted upload limit in bytes.
// Larger limits are cleared.
func WithMaxUploadSize(bytes int64) Option {
	return func(c *config) {
		if bytes > 0 {
			c.maxUpload = bytes
		}
	}
}

func newConfig(opts []Option) config {
	cfg := config{maxUpload: DefaultMaxUploadSize}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// ModeOf reports the progression mode of values keyed by short key. When
// several flags are on, video wins over assignment and assignment over
// timer.
func ModeOf(values settings.Values) Mode {
	for _, mode := range []Mode{ModeVideo, ModeAssignment, ModeTimer} {
		if isOn(values[flags[mode]]) {
			return mode
		}
	}
	return ModeNone
}

// Apply switches values to mode. The flags of the other modes are turned
// off and the settings that only make sense under them are cleared.
func Apply(mode Mode, values settings.Values, opts ...Option) settings.Values {
	cfg := newConfig(opts)
	out := layering.Clone(values)
	if out == nil {
		out = settings.Values{}
	}
	for m, flag := range flags {
		if m == mode {
			out[flag] = on
			continue
		}
		out[flag] = ""
		for _, key := range dependents[m] {
			out[key] = ""
		}
	}

	switch mode {
	case ModeVideo:
		if isOn(out[KeyVideoShowCompleteButton]) {
			out[KeyVideoHideCompleteButton] = ""
		} else {
			out[KeyVideoHideCompleteButton] = on
		}
	case ModeAssignment:
		if !blank(out[KeyUploadExtensions]) {
			out[KeyUploadExtensions] = NormalizeExtensions(str(out[KeyUploadExtensions]))
		}
		if !blank(out[KeyUploadSize]) {
			if size, ok := ParseByteSize(str(out[KeyUploadSize])); !ok || size > cfg.maxUpload {
				out[KeyUploadSize] = ""
			}
		}
	}
	return out
}

// Normalize applies the save-time rules to a complete metabox submission.
// A switch whose required value is blank is turned off: video needs a URL,
// the timer a duration, points an amount and materials some content. The
// surviving mode is then applied.
func Normalize(values settings.Values, opts ...Option) settings.Values {
	out := layering.Clone(values)
	if out == nil {
		out = settings.Values{}
	}
	requireValue(out, KeyMaterialsEnabled, KeyMaterials)
	requireValue(out, KeyVideoEnabled, KeyVideoURL)
	requireValue(out, KeyTimerEnabled, KeyTimer)
	requireValue(out, KeyPointsEnabled, KeyPointsAmount)
	return Apply(ModeOf(out), out, opts...)
}

// Filter adapts Normalize to the controller's update filter chain. The
// values it receives are keyed by storage key and are mapped through the
// location's fields. It expects the whole metabox to be submitted.
func Filter(opts ...Option) state.UpdateFilter {
	return func(_ context.Context, _ string, fields []settings.Field, values settings.Values) (settings.Values, error) {
		short := settings.ShortValues(fields, values)
		if _, ok := short[KeyVideoEnabled]; !ok {
			if _, ok := short[KeyAssignmentUpload]; !ok {
				if _, ok := short[KeyTimerEnabled]; !ok {
					return values, nil
				}
			}
		}
		normalized := Normalize(short, opts...)
		out := layering.Clone(values)
		for _, field := range fields {
			if value, ok := normalized[field.Key]; ok {
				out[field.StorageKey] = value
			}
		}
		return out, nil
	}
}

func requireValue(values settings.Values, flag, required string) {
	if !isOn(values[flag]) || blank(values[required]) {
		values[flag] = ""
		values[required] = ""
	}
}

var extensionPattern = regexp.MustCompile(`^[a-z0-9]+$`)

// NormalizeExtensions lower-cases a comma separated extension list, drops
// leading dots, invalid entries and duplicates.
func NormalizeExtensions(list string) string {
	seen := map[string]bool{}
	var kept []string
	for _, part := range strings.Split(list, ",") {
		ext := strings.TrimLeft(strings.ToLower(strings.TrimSpace(part)), ".")
		if ext == "" || seen[ext] || !extensionPattern.MatchString(ext) {
			continue
		}
		seen[ext] = true
		kept = append(kept, ext)
	}
	return strings.Join(kept, ",")
}

// ParseByteSize reads shorthand sizes such as 512K, 2M or 1G.
func ParseByteSize(value string) (int64, bool) {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" {
		return 0, false
	}
	multiplier := int64(1)
	switch value[len(value)-1] {
	case 'K':
		multiplier = 1 << 10
	case 'M':
		multiplier = 1 << 20
	case 'G':
		multiplier = 1 << 30
	}
	if multiplier > 1 {
		value = value[:len(value)-1]
	}
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n * multiplier, true
}

func isOn(v any) bool {
	s, ok := v.(string)
	return ok && s == on
}

func blank(v any) bool {
	return !settings.Truthy(v)
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

package stream

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/desertthunder/licentry/internal/models"
	"github.com/desertthunder/licentry/internal/shared"
)

// DataPrefix marks a frame that carries a progress payload.
const DataPrefix = "data: "

// FrameSeparator ends every frame on the wire.
const FrameSeparator = "\n\n"

var errMissingUserID = errors.New("complete event has no userId")

// ParseFrame decodes a single frame with its separator removed.
//
// ok is false for frames that do not start with [DataPrefix]; those carry nothing and are skipped.
// The producer writes single quotes where JSON needs double quotes, so every ' is swapped for " before parsing.
// Payloads containing a literal quote character do not survive this and come back as a [*shared.ProtocolDecodeError].
func ParseFrame(frame string) (event models.ProgressEvent, ok bool, err error) {
	frame = strings.TrimRight(frame, "\r\n")
	payload, found := strings.CutPrefix(frame, DataPrefix)
	if !found {
		return models.ProgressEvent{}, false, nil
	}

	normalized := strings.ReplaceAll(payload, "'", `"`)
	if err := json.Unmarshal([]byte(normalized), &event); err != nil {
		return models.ProgressEvent{}, true, &shared.ProtocolDecodeError{Frame: frame, Err: err}
	}

	if event.Step == models.StepComplete && event.UserID == "" {
		return models.ProgressEvent{}, true, &shared.ProtocolDecodeError{Frame: frame, Err: errMissingUserID}
	}
	return event, true, nil
}

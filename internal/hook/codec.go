package hook

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/tidwall/gjson"

	"github.com/dshills/hookbus/internal/payload"
)

// Defaults applied when a decoded retry omits its fields.
const (
	DefaultRetryAttempts = 3
	DefaultRetryBackoff  = time.Second
)

type wireResult struct {
	Action       string        `json:"action"`
	ModifiedData *payload.Data `json:"modified_data,omitempty"`
	Reason       string        `json:"reason,omitempty"`
	MaxAttempts  *uint32       `json:"max_attempts,omitempty"`
	BackoffMS    *int64        `json:"backoff_ms,omitempty"`
	Target       string        `json:"target,omitempty"`
}

// MarshalResult encodes r in its wire shape:
//
//	"continue"
//	{"action": "modified", "modified_data": <patch>}
//	{"action": "cancel", "reason": <string>}
//	{"action": "retry", "max_attempts": <uint>, "backoff_ms": <uint>}
//	{"action": "redirect", "target": <component_id>}
func MarshalResult(r Result) ([]byte, error) {
	var w wireResult
	switch v := r.(type) {
	case nil, Continue:
		return []byte(`"continue"`), nil
	case Modified:
		patch := v.Patch
		w = wireResult{Action: ActionModified, ModifiedData: &patch}
	case Cancel:
		w = wireResult{Action: ActionCancel, Reason: v.Reason}
	case Retry:
		attempts, backoff := v.MaxAttempts, v.Backoff.Milliseconds()
		w = wireResult{Action: ActionRetry, MaxAttempts: &attempts, BackoffMS: &backoff}
	case Redirect:
		w = wireResult{Action: ActionRedirect, Target: v.Target}
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidResult, r)
	}
	return json.Marshal(w)
}

// UnmarshalResult decodes a wire-shaped result. Objects may name the action
// with "action" or "type", carry modified data as "modified_data" or "data",
// and give the retry delay as "backoff_ms" or "delay_ms". null decodes to
// Continue.
func UnmarshalResult(b []byte) (Result, error) {
	if !gjson.ValidBytes(b) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidResult)
	}
	return resultFromJSON(gjson.ParseBytes(b))
}

// ResultFromValue converts a decoded value, such as a script return value,
// into a Result. A Result is returned unchanged and nil means Continue.
func ResultFromValue(v any) (Result, error) {
	switch x := v.(type) {
	case nil:
		return Continue{}, nil
	case Result:
		return x, nil
	case string:
		return resultFromAction(x, gjson.Result{})
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	return UnmarshalResult(b)
}

func resultFromJSON(r gjson.Result) (Result, error) {
	switch {
	case r.Type == gjson.Null:
		return Continue{}, nil
	case r.Type == gjson.String:
		return resultFromAction(r.String(), gjson.Result{})
	case r.IsObject():
		action := r.Get("action")
		if !action.Exists() {
			action = r.Get("type")
		}
		if action.Type != gjson.String {
			return nil, fmt.Errorf("%w: missing action", ErrInvalidResult)
		}
		return resultFromAction(action.String(), r)
	default:
		return nil, fmt.Errorf("%w: unexpected %s", ErrInvalidResult, r.Type)
	}
}

func resultFromAction(action string, obj gjson.Result) (Result, error) {
	switch action {
	case ActionContinue:
		return Continue{}, nil
	case ActionModified:
		data := obj.Get("modified_data")
		if !data.Exists() {
			data = obj.Get("data")
		}
		if !data.Exists() {
			return Modified{}, nil
		}
		patch, err := payload.FromJSON([]byte(data.Raw))
		if err != nil {
			return nil, fmt.Errorf("%w: modified_data: %v", ErrInvalidResult, err)
		}
		return Modified{Patch: patch}, nil
	case ActionCancel:
		reason := obj.Get("reason").String()
		if reason == "" {
			reason = "cancelled"
		}
		return Cancel{Reason: reason}, nil
	case ActionRetry:
		attempts := uint32(DefaultRetryAttempts)
		if v := obj.Get("max_attempts"); v.Exists() {
			n, ok := wholeNumber(v, math.MaxUint32)
			if !ok {
				return nil, fmt.Errorf("%w: max_attempts %s", ErrInvalidResult, v.Raw)
			}
			attempts = uint32(n)
		}
		backoff := DefaultRetryBackoff
		ms := obj.Get("backoff_ms")
		if !ms.Exists() {
			ms = obj.Get("delay_ms")
		}
		if ms.Exists() {
			n, ok := wholeNumber(ms, maxBackoffMS)
			if !ok {
				return nil, fmt.Errorf("%w: backoff %s", ErrInvalidResult, ms.Raw)
			}
			backoff = time.Duration(n) * time.Millisecond
		}
		return Retry{MaxAttempts: attempts, Backoff: backoff}, nil
	case ActionRedirect:
		target := obj.Get("target").String()
		if target == "" {
			return nil, fmt.Errorf("%w: redirect without target", ErrInvalidResult)
		}
		return Redirect{Target: target}, nil
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidResult, action)
	}
}

// maxBackoffMS is the largest millisecond count a time.Duration can hold.
const maxBackoffMS = math.MaxInt64 / 1_000_000

// wholeNumber returns v as a non-negative integer no larger than limit.
func wholeNumber(v gjson.Result, limit uint64) (uint64, bool) {
	if v.Type != gjson.Number || v.Num < 0 || v.Num != math.Trunc(v.Num) || v.Num > float64(limit) {
		return 0, false
	}
	n := v.Uint()
	if n > limit {
		return 0, false
	}
	return n, true
}

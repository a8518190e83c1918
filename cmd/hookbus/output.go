package main

import (
	"encoding/json"
	"io"

	"github.com/tidwall/pretty"

	"github.com/dshills/hookbus/internal/hook"
	"github.com/dshills/hookbus/internal/payload"
)

// decisionOutput is the printed form of a hook.Decision.
type decisionOutput struct {
	Proceed    bool            `json:"proceed"`
	Result     json.RawMessage `json:"result"`
	Data       payload.Data    `json:"data"`
	Executed   int             `json:"executed"`
	DecidedBy  string          `json:"decided_by,omitempty"`
	Failures   []string        `json:"failures,omitempty"`
	DurationMS float64         `json:"duration_ms"`
}

func newDecisionOutput(d hook.Decision) (decisionOutput, error) {
	result, err := hook.MarshalResult(d.Result)
	if err != nil {
		return decisionOutput{}, err
	}
	out := decisionOutput{
		Proceed:    d.Proceed(),
		Result:     result,
		Data:       d.Data,
		Executed:   d.Executed,
		DecidedBy:  d.DecidedBy,
		DurationMS: float64(d.Duration.Microseconds()) / 1000,
	}
	for _, f := range d.Failures {
		out.Failures = append(out.Failures, f.Error())
	}
	return out, nil
}

// writeJSON writes v as indented JSON followed by a newline.
func writeJSON(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(pretty.Pretty(b))
	return err
}

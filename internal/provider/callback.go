package provider

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// CallbackStatus is a provider status reduced to what the reconciler acts on.
type CallbackStatus string

const (
	StatusSuccess  CallbackStatus = "success"
	StatusFailure  CallbackStatus = "failure"
	StatusInFlight CallbackStatus = "in_flight"
	// StatusUnknown is never treated as terminal.
	StatusUnknown CallbackStatus = "unknown"
)

// IsTerminal reports whether s finalizes a job.
func (s CallbackStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// Callback is a normalized provider notification or poll result.
type Callback struct {
	TaskID       string
	Status       CallbackStatus
	RawStatus    string
	ResultURLs   []string
	ErrorMessage string
	// Strategy names the extraction that produced this value.
	Strategy string
}

var statusSynonyms = map[string]CallbackStatus{
	"success":    StatusSuccess,
	"succeeded":  StatusSuccess,
	"successful": StatusSuccess,
	"complete":   StatusSuccess,
	"completed":  StatusSuccess,
	"error":      StatusFailure,
	"failed":     StatusFailure,
	"failure":    StatusFailure,
	"fail":       StatusFailure,
	"canceled":   StatusFailure,
	"cancelled":  StatusFailure,
	"pending":    StatusInFlight,
	"queued":     StatusInFlight,
	"queuing":    StatusInFlight,
	"processing": StatusInFlight,
	"working":    StatusInFlight,
	"starting":   StatusInFlight,
	"running":    StatusInFlight,
	"waiting":    StatusInFlight,
	"generating": StatusInFlight,
}

// NormalizeStatus maps a provider status string, case-insensitively.
func NormalizeStatus(raw string) CallbackStatus {
	if s, ok := statusSynonyms[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s
	}
	return StatusUnknown
}

// Strategy extracts a Callback from one known payload shape. It returns false
// when the payload is not of its shape.
type Strategy struct {
	Name    string
	Extract func(doc gjson.Result) (*Callback, bool)
}

// DefaultStrategies are tried in order until one matches.
var DefaultStrategies = []Strategy{
	{Name: "task_envelope", Extract: extractTaskEnvelope},
	{Name: "prediction", Extract: extractPrediction},
	{Name: "flat", Extract: extractFlat},
}

// NormalizeCallback runs the default strategies over body.
func NormalizeCallback(body []byte) (*Callback, error) {
	return NormalizeWith(DefaultStrategies, body)
}

// NormalizeWith runs strategies over body in order. A body that no strategy
// recognizes yields ErrUnrecognizedCallback.
func NormalizeWith(strategies []Strategy, body []byte) (*Callback, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrUnrecognizedCallback
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, ErrUnrecognizedCallback
	}
	for _, s := range strategies {
		cb, ok := s.Extract(doc)
		if !ok {
			continue
		}
		cb.Strategy = s.Name
		if cb.Status == StatusSuccess && len(cb.ResultURLs) == 0 {
			cb.Status = StatusFailure
			if cb.ErrorMessage == "" {
				cb.ErrorMessage = ErrNoResult.Error()
			}
		}
		return cb, nil
	}
	return nil, ErrUnrecognizedCallback
}

// ========================================
// Strategies
// ========================================

// extractTaskEnvelope handles {code, msg, data:{taskId, state, resultJson, ...}}.
// Some endpoints omit state and signal the outcome through code alone: an
// error code is a failure, but code 200 is only a success when result URLs
// came with it. A bare 200 stays unknown.
func extractTaskEnvelope(doc gjson.Result) (*Callback, bool) {
	data := doc.Get("data")
	if !data.IsObject() {
		return nil, false
	}
	taskID := firstString(data, "taskId", "task_id")
	if taskID == "" {
		return nil, false
	}

	cb := &Callback{TaskID: taskID}
	cb.RawStatus = firstString(data, "state", "status", "callbackType")
	okByCode := false
	switch {
	case cb.RawStatus != "":
		cb.Status = NormalizeStatus(cb.RawStatus)
	case data.Get("successFlag").Exists():
		cb.RawStatus = "successFlag=" + data.Get("successFlag").String()
		cb.Status = successFlagStatus(data.Get("successFlag").Int())
	case doc.Get("code").Exists():
		code := doc.Get("code").Int()
		cb.RawStatus = "code=" + strconv.FormatInt(code, 10)
		if code == 200 {
			cb.Status = StatusUnknown
			okByCode = true
		} else {
			cb.Status = StatusFailure
		}
	default:
		cb.Status = StatusUnknown
	}

	if rj := data.Get("resultJson"); rj.Type == gjson.String && rj.String() != "" {
		inner := gjson.Parse(rj.String())
		cb.ResultURLs = appendURLs(cb.ResultURLs, inner.Get("resultUrls"))
		cb.ResultURLs = appendURLs(cb.ResultURLs, inner.Get("resultUrl"))
	}
	for _, path := range []string{"resultUrls", "info.resultUrls", "info.result_urls", "response.resultUrls", "data.#.audio_url"} {
		cb.ResultURLs = appendURLs(cb.ResultURLs, data.Get(path))
	}
	if okByCode && len(cb.ResultURLs) > 0 {
		cb.Status = StatusSuccess
	}

	cb.ErrorMessage = firstString(data, "failMsg", "errorMessage", "error_message")
	if cb.ErrorMessage == "" && cb.Status == StatusFailure {
		cb.ErrorMessage = doc.Get("msg").String()
	}
	return cb, true
}

// extractPrediction handles {id, status, output, error}.
func extractPrediction(doc gjson.Result) (*Callback, bool) {
	id := doc.Get("id")
	status := doc.Get("status")
	if id.Type != gjson.String || status.Type != gjson.String {
		return nil, false
	}
	if !doc.Get("output").Exists() && !doc.Get("urls").Exists() && !doc.Get("version").Exists() {
		return nil, false
	}

	cb := &Callback{
		TaskID:    id.String(),
		RawStatus: status.String(),
		Status:    NormalizeStatus(status.String()),
	}
	cb.ResultURLs = appendURLs(cb.ResultURLs, doc.Get("output"))
	if e := doc.Get("error"); e.Exists() && e.Type != gjson.Null {
		cb.ErrorMessage = e.String()
	}
	return cb, true
}

// extractFlat handles flat bodies with loosely named fields.
func extractFlat(doc gjson.Result) (*Callback, bool) {
	taskID := firstString(doc, "task_id", "taskId", "job_id", "id")
	raw := firstString(doc, "status", "state")
	if taskID == "" && raw == "" {
		return nil, false
	}

	cb := &Callback{
		TaskID:    taskID,
		RawStatus: raw,
		Status:    NormalizeStatus(raw),
	}
	for _, path := range []string{"result_urls", "resultUrls", "result_url", "resultUrl", "url", "output"} {
		cb.ResultURLs = appendURLs(cb.ResultURLs, doc.Get(path))
	}
	cb.ErrorMessage = firstString(doc, "error", "error_message", "errorMessage", "msg")
	return cb, true
}

func successFlagStatus(flag int64) CallbackStatus {
	switch flag {
	case 0:
		return StatusInFlight
	case 1:
		return StatusSuccess
	default:
		return StatusFailure
	}
}

func firstString(doc gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := doc.Get(p); v.Exists() && v.Type != gjson.Null {
			if s := strings.TrimSpace(v.String()); s != "" {
				return s
			}
		}
	}
	return ""
}

// appendURLs adds string or string-array values, skipping duplicates.
func appendURLs(dst []string, v gjson.Result) []string {
	add := func(s string) {
		s = strings.TrimSpace(s)
		if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
			return
		}
		for _, existing := range dst {
			if existing == s {
				return
			}
		}
		dst = append(dst, s)
	}
	switch {
	case v.IsArray():
		for _, item := range v.Array() {
			if item.Type == gjson.String {
				add(item.String())
			} else if u := item.Get("url"); u.Exists() {
				add(u.String())
			}
		}
	case v.Type == gjson.String:
		add(v.String())
	case v.IsObject():
		if u := v.Get("url"); u.Exists() {
			add(u.String())
		}
	}
	return dst
}

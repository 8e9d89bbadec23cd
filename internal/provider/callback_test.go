package provider

import (
	"errors"
	"slices"
	"testing"

	"github.com/tidwall/gjson"
)

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want CallbackStatus
	}{
		{"success", StatusSuccess},
		{"SUCCESS", StatusSuccess},
		{"Complete", StatusSuccess},
		{"succeeded", StatusSuccess},
		{"error", StatusFailure},
		{"Failed", StatusFailure},
		{"canceled", StatusFailure},
		{"pending", StatusInFlight},
		{"QUEUED", StatusInFlight},
		{" processing ", StatusInFlight},
		{"working", StatusInFlight},
		{"starting", StatusInFlight},
		{"", StatusUnknown},
		{"done-ish", StatusUnknown},
		{"ok", StatusUnknown},
	}

	for _, tt := range tests {
		if got := NormalizeStatus(tt.raw); got != tt.want {
			t.Errorf("NormalizeStatus(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizeCallback(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantStrategy string
		wantTaskID   string
		wantStatus   CallbackStatus
		wantURLs     []string
		wantErrMsg   string
	}{
		{
			name:         "task envelope with resultJson",
			body:         `{"code":200,"msg":"ok","data":{"taskId":"t1","state":"success","resultJson":"{\"resultUrls\":[\"https://cdn/a.png\"]}"}}`,
			wantStrategy: "task_envelope",
			wantTaskID:   "t1",
			wantStatus:   StatusSuccess,
			wantURLs:     []string{"https://cdn/a.png"},
		},
		{
			name:         "task envelope failure",
			body:         `{"code":200,"data":{"taskId":"t2","state":"fail","failMsg":"content policy"}}`,
			wantStrategy: "task_envelope",
			wantTaskID:   "t2",
			wantStatus:   StatusFailure,
			wantErrMsg:   "content policy",
		},
		{
			name:         "task envelope signalled by code only",
			body:         `{"code":200,"msg":"Veo3 video generated successfully.","data":{"taskId":"t3","info":{"resultUrls":["https://cdn/v.mp4"]}}}`,
			wantStrategy: "task_envelope",
			wantTaskID:   "t3",
			wantStatus:   StatusSuccess,
			wantURLs:     []string{"https://cdn/v.mp4"},
		},
		{
			name:         "task envelope error code",
			body:         `{"code":501,"msg":"generation failed","data":{"taskId":"t4"}}`,
			wantStrategy: "task_envelope",
			wantTaskID:   "t4",
			wantStatus:   StatusFailure,
			wantErrMsg:   "generation failed",
		},
		{
			name:         "task envelope with song list",
			body:         `{"code":200,"data":{"callbackType":"complete","task_id":"t5","data":[{"audio_url":"https://cdn/1.mp3"},{"audio_url":"https://cdn/2.mp3"}]}}`,
			wantStrategy: "task_envelope",
			wantTaskID:   "t5",
			wantStatus:   StatusSuccess,
			wantURLs:     []string{"https://cdn/1.mp3", "https://cdn/2.mp3"},
		},
		{
			name:         "task envelope acknowledgement without state",
			body:         `{"code":200,"msg":"success","data":{"taskId":"t7"}}`,
			wantStrategy: "task_envelope",
			wantTaskID:   "t7",
			wantStatus:   StatusUnknown,
		},
		{
			name:         "task envelope success flag in flight",
			body:         `{"code":200,"data":{"taskId":"t6","successFlag":0}}`,
			wantStrategy: "task_envelope",
			wantTaskID:   "t6",
			wantStatus:   StatusInFlight,
		},
		{
			name:         "prediction succeeded",
			body:         `{"id":"p1","status":"succeeded","output":["https://r/1.png","https://r/1.png"],"error":null}`,
			wantStrategy: "prediction",
			wantTaskID:   "p1",
			wantStatus:   StatusSuccess,
			wantURLs:     []string{"https://r/1.png"},
		},
		{
			name:         "prediction string output",
			body:         `{"id":"p2","status":"succeeded","output":"https://r/2.mp4"}`,
			wantStrategy: "prediction",
			wantTaskID:   "p2",
			wantStatus:   StatusSuccess,
			wantURLs:     []string{"https://r/2.mp4"},
		},
		{
			name:         "prediction failed",
			body:         `{"id":"p3","status":"failed","output":null,"error":"NSFW content detected"}`,
			wantStrategy: "prediction",
			wantTaskID:   "p3",
			wantStatus:   StatusFailure,
			wantErrMsg:   "NSFW content detected",
		},
		{
			name:         "flat",
			body:         `{"task_id":"f1","status":"COMPLETE","result_url":"https://x/y.mp3"}`,
			wantStrategy: "flat",
			wantTaskID:   "f1",
			wantStatus:   StatusSuccess,
			wantURLs:     []string{"https://x/y.mp3"},
		},
		{
			name:         "flat unknown status",
			body:         `{"taskId":"f2","status":"mystery"}`,
			wantStrategy: "flat",
			wantTaskID:   "f2",
			wantStatus:   StatusUnknown,
		},
		{
			name:         "success without url becomes failure",
			body:         `{"task_id":"f3","status":"success"}`,
			wantStrategy: "flat",
			wantTaskID:   "f3",
			wantStatus:   StatusFailure,
			wantErrMsg:   ErrNoResult.Error(),
		},
		{
			name:         "non-http urls ignored",
			body:         `{"task_id":"f4","status":"success","result_urls":["ftp://a","https://ok/b"]}`,
			wantStrategy: "flat",
			wantTaskID:   "f4",
			wantStatus:   StatusSuccess,
			wantURLs:     []string{"https://ok/b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, err := NormalizeCallback([]byte(tt.body))
			if err != nil {
				t.Fatalf("NormalizeCallback() error = %v", err)
			}
			if cb.Strategy != tt.wantStrategy {
				t.Errorf("Strategy = %s, want %s", cb.Strategy, tt.wantStrategy)
			}
			if cb.TaskID != tt.wantTaskID {
				t.Errorf("TaskID = %q, want %q", cb.TaskID, tt.wantTaskID)
			}
			if cb.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", cb.Status, tt.wantStatus)
			}
			if !slices.Equal(cb.ResultURLs, tt.wantURLs) {
				t.Errorf("ResultURLs = %v, want %v", cb.ResultURLs, tt.wantURLs)
			}
			if tt.wantErrMsg != "" && cb.ErrorMessage != tt.wantErrMsg {
				t.Errorf("ErrorMessage = %q, want %q", cb.ErrorMessage, tt.wantErrMsg)
			}
		})
	}
}

func TestNormalizeCallback_Unrecognized(t *testing.T) {
	bodies := []string{
		``,
		`not json`,
		`[1,2,3]`,
		`"success"`,
		`{}`,
		`{"hello":"world"}`,
		`{"data":{"state":"success"}}`,
	}
	for _, body := range bodies {
		cb, err := NormalizeCallback([]byte(body))
		if !errors.Is(err, ErrUnrecognizedCallback) {
			t.Errorf("NormalizeCallback(%q) = %+v, %v; want ErrUnrecognizedCallback", body, cb, err)
		}
	}
}

func TestNormalizeWith_Order(t *testing.T) {
	always := func(name string) Strategy {
		return Strategy{Name: name, Extract: func(gjson.Result) (*Callback, bool) {
			return &Callback{Status: StatusInFlight}, true
		}}
	}
	never := Strategy{Name: "never", Extract: func(gjson.Result) (*Callback, bool) { return nil, false }}

	cb, err := NormalizeWith([]Strategy{never, always("first"), always("second")}, []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("NormalizeWith() error = %v", err)
	}
	if cb.Strategy != "first" {
		t.Errorf("Strategy = %s, want first", cb.Strategy)
	}

	if _, err := NormalizeWith([]Strategy{never}, []byte(`{"a":1}`)); !errors.Is(err, ErrUnrecognizedCallback) {
		t.Errorf("NormalizeWith(never) error = %v", err)
	}
}

package host

import (
	"testing"

	"github.com/brendan.keane/sqlhttp/internal/session"
	"github.com/brendan.keane/sqlhttp/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

func newFunctions(t *testing.T, exec *testutil.MockHTTPExecutor) *functions {
	t.Helper()
	sess, err := session.New(zerolog.Nop(), testutil.DefaultConfig())
	testutil.AssertNoError(t, err, "session")
	t.Cleanup(sess.Close)
	return &functions{logger: zerolog.Nop(), session: sess, executor: exec}
}

func TestFunctions_RequestShapes(t *testing.T) {
	exec := testutil.NewSuccessfulHTTPExecutor("ok")
	f := newFunctions(t, exec)

	_, err := f.get("http://example.com")
	testutil.AssertNoError(t, err, "get")
	_, err = f.post("http://example.com", []byte{0x01, 0x02}, "application/octet-stream")
	testutil.AssertNoError(t, err, "post")
	_, err = f.put("http://example.com", []byte(nil), "text/plain")
	testutil.AssertNoError(t, err, "put with NULL content")
	_, err = f.deleteWithContent("http://example.com", "", "text/plain")
	testutil.AssertNoError(t, err, "delete with empty content")
	_, err = f.postForm("http://example.com", []byte(nil))
	testutil.AssertNoError(t, err, "form post with NULL data")

	testutil.AssertMockCalled(t, exec.CallCount(), 5, "executor")

	get := exec.Calls[0]
	testutil.AssertStringEqual(t, get.Method, "GET", "get method")
	if get.Content != nil {
		t.Fatalf("get content should be absent, got %q", get.Content)
	}

	post := exec.Calls[1]
	testutil.AssertStringEqual(t, string(post.Content), "\x01\x02", "blob content")
	testutil.AssertStringEqual(t, post.ContentType, "application/octet-stream", "content type")

	if exec.Calls[2].Content != nil {
		t.Fatal("NULL content must stay absent so validation can reject it")
	}
	if del := exec.Calls[3]; del.Content == nil || len(del.Content) != 0 {
		t.Fatalf("empty content must be present, got %#v", del.Content)
	}

	form := exec.Calls[4]
	testutil.AssertStringEqual(t, form.ContentType, formContentType, "form content type")
	if form.Content == nil {
		t.Fatal("form body must be present even without pairs")
	}
}

func TestFunctions_ResponseRecord(t *testing.T) {
	f := newFunctions(t, testutil.NewSuccessfulHTTPExecutor("hello"))

	out, err := f.head("http://example.com")
	testutil.AssertNoError(t, err, "head")
	record := out.(string)
	testutil.AssertStringEqual(t, gjson.Get(record, "content").String(), "hello", "content")
	testutil.AssertStringEqual(t, gjson.Get(record, "content_type").String(), "text/plain", "content type")
	if gjson.Get(record, "headers").Type != gjson.Null {
		t.Fatalf("absent headers must be null: %s", record)
	}
}

func TestFunctions_ExecutorFailure(t *testing.T) {
	f := newFunctions(t, testutil.NewFailingHTTPExecutor("could not connect to server"))

	_, err := f.get("http://example.com")
	testutil.AssertErrorContains(t, err, "could not connect", "transport failure surfaces")
}

func TestTextArg(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
		ok   bool
	}{
		{nil, "", false},
		{[]byte(nil), "", false},
		{[]byte("b"), "b", true},
		{"s", "s", true},
		{int64(42), "42", true},
		{float64(1.5), "1.5", true},
		{true, "1", true},
	}
	for _, tt := range tests {
		got, ok := textArg(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("textArg(%#v) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

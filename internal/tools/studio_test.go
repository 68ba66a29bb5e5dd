package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/Devifyo/lumina/internal/domain"
	"github.com/Devifyo/lumina/internal/editor"
	"github.com/Devifyo/lumina/internal/session"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type stubEditor struct {
	calls int
	err   error
}

func (s *stubEditor) Submit(ctx context.Context, req editor.Request) (*editor.Outcome, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if err := editor.Validate(req); err != nil {
		return nil, err
	}
	return &editor.Outcome{
		Asset:    domain.NewImageAsset([]byte("edited"), domain.ResultMIMEType),
		Model:    "primary",
		Attempts: 1,
	}, nil
}

func newTestStudio(ed *stubEditor) *Studio {
	reg := session.NewRegistry(0, func(id string) *session.Session {
		return session.New(id, ed)
	})
	return NewStudio(reg, nil, 1<<20)
}

func call(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("first content is %T, want text", res.Content[0])
	}
	return text.Text
}

func stateOf(t *testing.T, st *Studio, sessionID string) session.Snapshot {
	t.Helper()
	res, err := st.GetState(context.Background(), call("studio_get_state", map[string]any{"session_id": sessionID}))
	if err != nil {
		t.Fatalf("GetState returned error: %v", err)
	}
	var snap session.Snapshot
	if err := json.Unmarshal([]byte(resultText(t, res)), &snap); err != nil {
		t.Fatalf("state is not JSON: %v", err)
	}
	return snap
}

func upload(t *testing.T, st *Studio, sessionID string) {
	t.Helper()
	uri := domain.NewImageAsset([]byte("source"), "image/jpeg").DataURI
	res, err := st.UploadImage(context.Background(), call("studio_upload_image", map[string]any{"image": uri, "session_id": sessionID}))
	if err != nil || res.IsError {
		t.Fatalf("upload failed: %v %s", err, resultText(t, res))
	}
}

func TestSubmitEditReturnsImage(t *testing.T) {
	st := newTestStudio(&stubEditor{})
	upload(t, st, "")

	res, err := st.SubmitEdit(context.Background(), call("studio_submit_edit", map[string]any{"mode": "enhance"}))
	if err != nil || res.IsError {
		t.Fatalf("submit failed: %v %s", err, resultText(t, res))
	}
	if !strings.Contains(resultText(t, res), `Applied "Visual Polish"`) {
		t.Fatalf("text = %s", resultText(t, res))
	}
	img, ok := res.Content[1].(mcp.ImageContent)
	if !ok || img.MIMEType != "image/png" || img.Data != "ZWRpdGVk" {
		t.Fatalf("image content = %#v", res.Content[1])
	}

	snap := stateOf(t, st, "")
	if len(snap.History) != 1 || snap.Source != nil || snap.Working != nil {
		t.Fatalf("state should list history without image data: %+v", snap)
	}
}

func TestSubmitEditValidation(t *testing.T) {
	ed := &stubEditor{}
	st := newTestStudio(ed)
	upload(t, st, "")

	cases := []map[string]any{
		{"mode": "sharpen"},
		{"mode": "remove_object", "x": 0.5},
		{"mode": "remove_object", "x": 0.5, "y": 4.0},
	}
	for _, args := range cases {
		res, err := st.SubmitEdit(context.Background(), call("studio_submit_edit", args))
		if err != nil || !res.IsError {
			t.Fatalf("%v: expected tool error, got %v", args, err)
		}
	}
	if ed.calls != 0 {
		t.Fatalf("editor calls = %d, want 0", ed.calls)
	}

	res, _ := st.SubmitEdit(context.Background(), call("studio_submit_edit", map[string]any{"mode": "custom_prompt"}))
	if !res.IsError || !strings.Contains(resultText(t, res), "custom prompt") {
		t.Fatalf("expected validation notice, got %s", resultText(t, res))
	}
}

func TestSubmitEditQuotaShowsRemediation(t *testing.T) {
	st := newTestStudio(&stubEditor{err: &domain.EditError{Kind: domain.KindQuota, Status: 429, Message: "429 RESOURCE_EXHAUSTED"}})
	upload(t, st, "")

	res, _ := st.SubmitEdit(context.Background(), call("studio_submit_edit", map[string]any{"mode": "enhance"}))
	text := resultText(t, res)
	if !res.IsError || !strings.Contains(text, "Quota Exceeded") || !strings.Contains(text, "Switch to Paid Project") {
		t.Fatalf("result = %s", text)
	}
	if snap := stateOf(t, st, ""); !snap.OfferProjectSwitch || snap.Error == nil {
		t.Fatalf("state should offer a project switch: %+v", snap)
	}

	if _, err := st.DismissError(context.Background(), call("studio_dismiss_error", nil)); err != nil {
		t.Fatal(err)
	}
	if snap := stateOf(t, st, ""); snap.Error != nil {
		t.Fatal("error should be dismissed")
	}
}

func TestDestructiveToolsRequireConfirmation(t *testing.T) {
	st := newTestStudio(&stubEditor{})
	upload(t, st, "")
	if _, err := st.SubmitEdit(context.Background(), call("studio_submit_edit", map[string]any{"mode": "enhance"})); err != nil {
		t.Fatal(err)
	}
	entryID := stateOf(t, st, "").History[0].ID

	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"studio_undo":         st.Undo,
		"studio_reset":        st.Reset,
		"studio_change_image": st.ChangeImage,
		"studio_delete_entry": st.DeleteEntry,
		"studio_upload_image": st.UploadImage,
	}
	for name, handler := range handlers {
		args := map[string]any{"entry_id": entryID, "image": "ignored.png"}
		res, err := handler(context.Background(), call(name, args))
		if err != nil || res.IsError {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
		if !strings.HasPrefix(resultText(t, res), "Confirmation required") {
			t.Fatalf("%s: result = %s", name, resultText(t, res))
		}
		if snap := stateOf(t, st, ""); len(snap.History) != 1 || snap.State != session.StateLoaded {
			t.Fatalf("%s without confirm mutated state: %+v", name, snap)
		}
	}

	res, err := st.Undo(context.Background(), call("studio_undo", map[string]any{"confirm": true}))
	if err != nil || res.IsError {
		t.Fatalf("confirmed undo failed: %v", err)
	}
	if snap := stateOf(t, st, ""); len(snap.History) != 0 {
		t.Fatalf("confirmed undo should drop the entry: %+v", snap)
	}

	res, _ = st.ChangeImage(context.Background(), call("studio_change_image", map[string]any{"confirm": true}))
	if res.IsError || stateOf(t, st, "").State != session.StateEmpty {
		t.Fatal("confirmed change image should empty the session")
	}
}

func TestPickFlowAndSessions(t *testing.T) {
	ed := &stubEditor{}
	st := newTestStudio(ed)
	upload(t, st, "a")

	res, _ := st.TogglePick(context.Background(), call("studio_toggle_pick", map[string]any{"session_id": "a"}))
	if !strings.Contains(resultText(t, res), "enabled") {
		t.Fatalf("toggle = %s", resultText(t, res))
	}
	res, _ = st.PickTarget(context.Background(), call("studio_pick_target", map[string]any{"session_id": "a", "x": 0.25, "y": 0.5}))
	if res.IsError {
		t.Fatalf("pick failed: %s", resultText(t, res))
	}
	res, _ = st.SetMode(context.Background(), call("studio_set_mode", map[string]any{"session_id": "b", "mode": "remove_object"}))
	if res.IsError {
		t.Fatalf("set mode failed: %s", resultText(t, res))
	}

	res, _ = st.SubmitEdit(context.Background(), call("studio_submit_edit", map[string]any{"session_id": "a", "mode": "remove_object"}))
	if res.IsError || !strings.Contains(resultText(t, res), "Smart Erasure") {
		t.Fatalf("submit with picked target = %s", resultText(t, res))
	}

	if snap := stateOf(t, st, "b"); snap.State != session.StateEmpty || snap.Mode != domain.ModeRemoveObject {
		t.Fatalf("session b should be independent: %+v", snap)
	}
}

func TestCloseSession(t *testing.T) {
	st := newTestStudio(&stubEditor{})
	upload(t, st, "a")

	res, _ := st.CloseSession(context.Background(), call("studio_close_session", map[string]any{"session_id": "a"}))
	if !strings.HasPrefix(resultText(t, res), "Confirmation required") {
		t.Fatalf("close without confirm = %s", resultText(t, res))
	}
	if _, ok := st.sessions.Lookup("a"); !ok {
		t.Fatal("session should survive an unconfirmed close")
	}

	res, _ = st.CloseSession(context.Background(), call("studio_close_session", map[string]any{"session_id": "a", "confirm": true}))
	if res.IsError {
		t.Fatalf("close failed: %s", resultText(t, res))
	}
	if _, ok := st.sessions.Lookup("a"); ok {
		t.Fatal("session should be dropped")
	}
	if snap := stateOf(t, st, "a"); snap.State != session.StateEmpty {
		t.Fatalf("a closed session id should start fresh: %+v", snap)
	}

	if _, err := st.DismissError(context.Background(), call("studio_dismiss_error", map[string]any{"session_id": "ghost"})); err != nil {
		t.Fatal(err)
	}
	if _, ok := st.sessions.Lookup("ghost"); ok {
		t.Fatal("dismissing an error should not create a session")
	}
}

func TestUploadRejectsNonImage(t *testing.T) {
	st := newTestStudio(&stubEditor{})
	res, err := st.UploadImage(context.Background(), call("studio_upload_image", map[string]any{"image": "data:text/plain;base64,aGk="}))
	if err != nil || !res.IsError || !strings.Contains(resultText(t, res), "valid image") {
		t.Fatalf("result = %v %v", res, err)
	}
}

func TestRegisterStudioTools(t *testing.T) {
	s := server.NewMCPServer("test", "0.0.0", server.WithToolCapabilities(true))
	if err := RegisterStudioTools(s, newTestStudio(&stubEditor{})); err != nil {
		t.Fatalf("RegisterStudioTools returned error: %v", err)
	}
}

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Devifyo/lumina/common"
	"github.com/Devifyo/lumina/internal/domain"
	"github.com/Devifyo/lumina/internal/oss"
	"github.com/Devifyo/lumina/internal/session"
	"github.com/Devifyo/lumina/internal/utils"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Studio MCP 工具的处理器集合
type Studio struct {
	sessions *session.Registry
	exporter *oss.Exporter
	// maxUpload 上传大小上限（字节）
	maxUpload int64
}

// NewStudio 创建工具处理器。exporter 为 nil 时不注册导出工具
func NewStudio(sessions *session.Registry, exporter *oss.Exporter, maxUpload int64) *Studio {
	return &Studio{sessions: sessions, exporter: exporter, maxUpload: maxUpload}
}

func sessionParam() mcp.ToolOption {
	return mcp.WithString("session_id",
		mcp.Description("Editing session ID. Defaults to \"default\"."),
	)
}

func confirmParam(action string) mcp.ToolOption {
	return mcp.WithBoolean("confirm",
		mcp.Description(fmt.Sprintf("Must be true to %s. Without it the tool only describes what would be lost.", action)),
	)
}

// RegisterStudioTools 注册图片编辑会话相关的 MCP tools
func RegisterStudioTools(s *server.MCPServer, studio *Studio) error {
	modes := make([]string, 0, len(domain.Modes))
	for _, m := range domain.Modes {
		modes = append(modes, string(m))
	}

	s.AddTool(mcp.NewTool(
		"studio_upload_image",
		mcp.WithDescription("Load a source image into the session from a local path, an http(s) URL or a data URI. Clears the previous results."),
		mcp.WithString("image", mcp.Required(), mcp.Description("File path, URL or data URI of the image")),
		sessionParam(),
		confirmParam("replace an image that already has edit history"),
	), studio.UploadImage)

	s.AddTool(mcp.NewTool(
		"studio_submit_edit",
		mcp.WithDescription("Apply an AI edit to the session image. Object removal needs a description or a target point; custom prompt needs text."),
		mcp.WithString("mode", mcp.Enum(modes...), mcp.Description("Edit mode. Defaults to the session's current mode.")),
		mcp.WithString("text", mcp.Description("Object description or custom prompt")),
		mcp.WithNumber("x", mcp.Description("Target X in [0,1], fraction of the displayed width")),
		mcp.WithNumber("y", mcp.Description("Target Y in [0,1], fraction of the displayed height")),
		sessionParam(),
	), studio.SubmitEdit)

	s.AddTool(mcp.NewTool(
		"studio_toggle_pick",
		mcp.WithDescription("Toggle pick-target mode. While active, studio_pick_target records the point to act on."),
		sessionParam(),
	), studio.TogglePick)

	s.AddTool(mcp.NewTool(
		"studio_pick_target",
		mcp.WithDescription("Record the target point for the next edit (pick-target mode must be active)."),
		mcp.WithNumber("x", mcp.Required(), mcp.Description("X in [0,1]")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("Y in [0,1]")),
		sessionParam(),
	), studio.PickTarget)

	s.AddTool(mcp.NewTool(
		"studio_set_mode",
		mcp.WithDescription("Select the edit mode used when studio_submit_edit has no mode. Clears the picked target."),
		mcp.WithString("mode", mcp.Required(), mcp.Enum(modes...)),
		sessionParam(),
	), studio.SetMode)

	s.AddTool(mcp.NewTool(
		"studio_set_compound",
		mcp.WithDescription("When enabled, each edit starts from the current result; otherwise from the original image."),
		mcp.WithBoolean("enabled", mcp.Required()),
		sessionParam(),
	), studio.SetCompound)

	s.AddTool(mcp.NewTool(
		"studio_select_entry",
		mcp.WithDescription("Show a history entry's result as the current image. History order is unchanged."),
		mcp.WithString("entry_id", mcp.Required()),
		sessionParam(),
	), studio.SelectEntry)

	s.AddTool(mcp.NewTool(
		"studio_delete_entry",
		mcp.WithDescription("Delete one history entry."),
		mcp.WithString("entry_id", mcp.Required()),
		sessionParam(),
		confirmParam("delete the entry"),
	), studio.DeleteEntry)

	s.AddTool(mcp.NewTool(
		"studio_undo",
		mcp.WithDescription("Discard the most recent edit."),
		sessionParam(),
		confirmParam("discard the most recent edit"),
	), studio.Undo)

	s.AddTool(mcp.NewTool(
		"studio_reset",
		mcp.WithDescription("Discard all edits and show the original image again."),
		sessionParam(),
		confirmParam("discard all edits"),
	), studio.Reset)

	s.AddTool(mcp.NewTool(
		"studio_change_image",
		mcp.WithDescription("Unload the image and clear the whole session."),
		sessionParam(),
		confirmParam("clear the session"),
	), studio.ChangeImage)

	s.AddTool(mcp.NewTool(
		"studio_close_session",
		mcp.WithDescription("Drop the session and everything in it. The next call with the same session_id starts fresh."),
		sessionParam(),
		confirmParam("drop the session"),
	), studio.CloseSession)

	s.AddTool(mcp.NewTool(
		"studio_dismiss_error",
		mcp.WithDescription("Clear the last error notice."),
		sessionParam(),
	), studio.DismissError)

	s.AddTool(mcp.NewTool(
		"studio_get_state",
		mcp.WithDescription("Describe the session: history, flags, last error. Optionally returns the current image."),
		mcp.WithBoolean("include_image", mcp.Description("Attach the current image")),
		sessionParam(),
	), studio.GetState)

	if studio.exporter != nil {
		s.AddTool(mcp.NewTool(
			"studio_export_result",
			mcp.WithDescription("Upload the current image, or a history entry's result, to object storage and return its URL."),
			mcp.WithString("entry_id", mcp.Description("History entry to export. Defaults to the current image.")),
			sessionParam(),
		), studio.ExportResult)
	}

	return nil
}

func (st *Studio) session(req mcp.CallToolRequest) *session.Session {
	return st.sessions.Get(req.GetString("session_id", session.DefaultID))
}

// UploadImage studio_upload_image
func (st *Studio) UploadImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := req.RequireString("image")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("image parameter is required: %v", err)), nil
	}

	sess := st.session(req)
	if snap := sess.Snapshot(); len(snap.History) > 0 && !req.GetBool("confirm", false) {
		return confirmation(fmt.Sprintf("Uploading a new image discards %d edit(s) in session %q.", len(snap.History), sess.ID())), nil
	}

	asset, err := utils.LoadImage(ctx, input, st.maxUpload)
	if err != nil {
		common.WithError(err).WithField("input", utils.TruncateForLog(input, 80)).Warn("Image upload rejected")
		if errors.Is(err, utils.ErrNotImage) {
			return mcp.NewToolResultError("Please upload a valid image file."), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to load image: %v", err)), nil
	}
	if err := sess.Upload(asset); err != nil {
		return errorResult(err), nil
	}
	return stateResult(sess.Snapshot(), false)
}

// SubmitEdit studio_submit_edit
func (st *Studio) SubmitEdit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in := session.SubmitInput{Text: req.GetString("text", "")}

	if raw := req.GetString("mode", ""); raw != "" {
		mode, err := domain.ParseEditMode(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		in.Mode = mode
	}

	sel, err := selectionArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in.Selection = sel

	sess := st.session(req)
	entry, err := sess.Submit(ctx, in)
	if err != nil {
		return errorResult(err), nil
	}

	payload, err := entry.Edited.Payload()
	if err != nil {
		return nil, err
	}
	text, err := renderState(sess.Snapshot())
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultImage(
		fmt.Sprintf("Applied %q (entry %s, model %s).\n%s", entry.Label, entry.ID, entry.Model, text),
		payload,
		entry.Edited.MIMEType,
	), nil
}

// TogglePick studio_toggle_pick
func (st *Studio) TogglePick(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	on, err := st.session(req).TogglePick()
	if err != nil {
		return errorResult(err), nil
	}
	if on {
		return mcp.NewToolResultText("Pick-target mode enabled. Call studio_pick_target with x and y."), nil
	}
	return mcp.NewToolResultText("Pick-target mode disabled."), nil
}

// PickTarget studio_pick_target
func (st *Studio) PickTarget(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	x, err := req.RequireFloat("x")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("x parameter is required: %v", err)), nil
	}
	y, err := req.RequireFloat("y")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("y parameter is required: %v", err)), nil
	}
	sel := domain.Selection{X: x, Y: y}
	if err := st.session(req).PickTarget(sel); err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Target set at %s.", sel.String())), nil
}

// SetMode studio_set_mode
func (st *Studio) SetMode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("mode")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("mode parameter is required: %v", err)), nil
	}
	if err := st.session(req).SetMode(domain.EditMode(raw)); err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Mode set to %s.", strings.ToUpper(raw))), nil
}

// SetCompound studio_set_compound
func (st *Studio) SetCompound(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	enabled, err := req.RequireBool("enabled")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("enabled parameter is required: %v", err)), nil
	}
	if err := st.session(req).SetCompound(enabled); err != nil {
		return errorResult(err), nil
	}
	if enabled {
		return mcp.NewToolResultText("Edits now apply to the current result."), nil
	}
	return mcp.NewToolResultText("Edits now apply to the original image."), nil
}

// SelectEntry studio_select_entry
func (st *Studio) SelectEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("entry_id")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("entry_id parameter is required: %v", err)), nil
	}
	sess := st.session(req)
	if err := sess.SelectEntry(id); err != nil {
		return errorResult(err), nil
	}
	return stateResult(sess.Snapshot(), false)
}

// DeleteEntry studio_delete_entry
func (st *Studio) DeleteEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("entry_id")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("entry_id parameter is required: %v", err)), nil
	}
	sess := st.session(req)
	if !req.GetBool("confirm", false) {
		return confirmation(fmt.Sprintf("Entry %s will be permanently removed from the history.", id)), nil
	}
	if err := sess.DeleteEntry(id); err != nil {
		return errorResult(err), nil
	}
	return stateResult(sess.Snapshot(), false)
}

// Undo studio_undo
func (st *Studio) Undo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess := st.session(req)
	if !req.GetBool("confirm", false) {
		return confirmation("The most recent edit will be discarded."), nil
	}
	if err := sess.Undo(); err != nil {
		return errorResult(err), nil
	}
	return stateResult(sess.Snapshot(), false)
}

// Reset studio_reset
func (st *Studio) Reset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess := st.session(req)
	if !req.GetBool("confirm", false) {
		return confirmation(fmt.Sprintf("All %d edit(s) will be discarded; the original image is kept.", len(sess.Snapshot().History))), nil
	}
	if err := sess.Reset(); err != nil {
		return errorResult(err), nil
	}
	return stateResult(sess.Snapshot(), false)
}

// ChangeImage studio_change_image
func (st *Studio) ChangeImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess := st.session(req)
	if !req.GetBool("confirm", false) {
		return confirmation("The image and its entire edit history will be cleared."), nil
	}
	if err := sess.ChangeImage(); err != nil {
		return errorResult(err), nil
	}
	return stateResult(sess.Snapshot(), false)
}

// CloseSession studio_close_session
func (st *Studio) CloseSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("session_id", session.DefaultID)
	if _, ok := st.sessions.Lookup(id); !ok {
		return mcp.NewToolResultText(fmt.Sprintf("Session %q does not exist.", id)), nil
	}
	if !req.GetBool("confirm", false) {
		return confirmation("The session, its image and its edit history will be dropped."), nil
	}
	if err := st.sessions.Close(id); err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Session %q closed.", id)), nil
}

// DismissError studio_dismiss_error
func (st *Studio) DismissError(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if sess, ok := st.sessions.Lookup(req.GetString("session_id", session.DefaultID)); ok {
		sess.DismissError()
	}
	return mcp.NewToolResultText("Error dismissed."), nil
}

// GetState studio_get_state
func (st *Studio) GetState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return stateResult(st.session(req).Snapshot(), req.GetBool("include_image", false))
}

// ExportResult studio_export_result
func (st *Studio) ExportResult(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if st.exporter == nil {
		return mcp.NewToolResultError("object storage is not configured"), nil
	}
	sess := st.session(req)

	var asset domain.ImageAsset
	if id := req.GetString("entry_id", ""); id != "" {
		entry, err := sess.Entry(id)
		if err != nil {
			return errorResult(err), nil
		}
		asset = entry.Edited
	} else {
		working, err := sess.WorkingAsset()
		if err != nil {
			return errorResult(err), nil
		}
		asset = working
	}

	key, url, err := st.exporter.ExportAsset(ctx, asset)
	if err != nil {
		common.WithError(err).Error("Failed to export image")
		return mcp.NewToolResultError(fmt.Sprintf("failed to export image: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Exported %s\n%s", key, url)), nil
}

// selectionArg x、y 要么都给要么都不给
func selectionArg(req mcp.CallToolRequest) (*domain.Selection, error) {
	args := req.GetArguments()
	_, hasX := args["x"]
	_, hasY := args["y"]
	if !hasX && !hasY {
		return nil, nil
	}
	if hasX != hasY {
		return nil, errors.New("x and y must be given together")
	}
	sel := &domain.Selection{X: req.GetFloat("x", 0), Y: req.GetFloat("y", 0)}
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	return sel, nil
}

func confirmation(what string) *mcp.CallToolResult {
	return mcp.NewToolResultText(fmt.Sprintf("Confirmation required: %s Call again with confirm=true to proceed.", what))
}

// errorResult 把会话/编辑错误转成给用户看的提示
func errorResult(err error) *mcp.CallToolResult {
	if editErr, ok := domain.AsEditError(err); ok {
		msg := editErr.Notice()
		if editErr.Kind != domain.KindValidation && editErr.Message != "" && editErr.Message != msg {
			msg = fmt.Sprintf("%s\nDetails: %s", msg, editErr.Message)
		}
		if label := editErr.RemediationLabel(); label != "" {
			msg = fmt.Sprintf("%s\nSuggested action: %s (configure a different GENAI_API_KEY).", msg, label)
		}
		return mcp.NewToolResultError(msg)
	}
	return mcp.NewToolResultError(err.Error())
}

// renderState 快照转 JSON，不含图片数据
func renderState(snap session.Snapshot) (string, error) {
	view := snap
	view.Source = nil
	view.Working = nil
	data, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode state: %w", err)
	}
	return string(data), nil
}

func stateResult(snap session.Snapshot, withImage bool) (*mcp.CallToolResult, error) {
	text, err := renderState(snap)
	if err != nil {
		return nil, err
	}
	if !withImage || snap.Working == nil {
		return mcp.NewToolResultText(text), nil
	}
	payload, err := snap.Working.Payload()
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultImage(text, payload, snap.Working.MIMEType), nil
}

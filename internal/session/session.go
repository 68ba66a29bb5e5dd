package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Devifyo/lumina/common"
	"github.com/Devifyo/lumina/internal/domain"
	"github.com/Devifyo/lumina/internal/editor"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	// ErrBusy 正在编辑时拒绝其他修改
	ErrBusy = errors.New("an edit is already in progress")
	// ErrNoImage 还没有上传图片
	ErrNoImage = errors.New("no image loaded")
	// ErrEntryNotFound 历史记录不存在
	ErrEntryNotFound = errors.New("history entry not found")
	// ErrEmptyHistory 没有可撤销的历史
	ErrEmptyHistory = errors.New("history is empty")
	// ErrNotPicking 未处于选点模式
	ErrNotPicking = errors.New("pick target mode is not active")
)

// State 会话状态
type State string

const (
	StateEmpty   State = "empty"
	StateLoaded  State = "loaded"
	StateEditing State = "editing"
)

// Editor 执行一次编辑请求（由 editor.Editor 实现）
type Editor interface {
	Submit(ctx context.Context, req editor.Request) (*editor.Outcome, error)
}

// Entry 一次成功编辑产生的历史记录，创建后不可修改
type Entry struct {
	ID        string
	Original  domain.ImageAsset
	Edited    domain.ImageAsset
	Label     string
	Mode      domain.EditMode
	Model     string
	CreatedAt time.Time
}

// SubmitInput 提交编辑的参数。Mode 为空时使用当前模式，Selection 为空时使用已选中的点
type SubmitInput struct {
	Mode      domain.EditMode
	Text      string
	Selection *domain.Selection
}

// Session 单个用户的编辑会话：原图、当前结果、历史栈。
// 编辑中（StateEditing）只允许读取，其他修改返回 ErrBusy；调用后端期间不持有锁。
type Session struct {
	mu sync.Mutex

	id     string
	editor Editor
	now    func() time.Time
	newID  func() string

	state  State
	source domain.ImageAsset
	// workingID 当前展示的历史记录，空表示展示原图
	workingID string
	// history 最新的在前
	history  []Entry
	compound bool
	mode     domain.EditMode
	picking  bool
	pending  *domain.Selection
	lastErr  *domain.EditError
}

// Option 会话选项
type Option func(*Session)

// WithClock 替换时间来源
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithIDGenerator 替换历史记录 ID 生成器
func WithIDGenerator(newID func() string) Option {
	return func(s *Session) { s.newID = newID }
}

// New 创建空会话
func New(id string, ed Editor, opts ...Option) *Session {
	s := &Session{
		id:       id,
		editor:   ed,
		now:      time.Now,
		newID:    uuid.NewString,
		state:    StateEmpty,
		compound: true,
		mode:     domain.ModeRemoveBackground,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID 会话 ID
func (s *Session) ID() string {
	return s.id
}

// Upload 载入新的原图，清空结果、历史、选点和错误
func (s *Session) Upload(asset domain.ImageAsset) error {
	if asset.IsZero() {
		return domain.NewValidationError("empty image")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateEditing {
		return ErrBusy
	}

	s.source = asset
	s.clearResults()
	s.compound = true
	s.state = StateLoaded
	s.logger().WithField("mime_type", asset.MIMEType).Info("Image uploaded")
	return nil
}

// Submit 对当前图片执行一次编辑。
// 叠加编辑开启且已有结果时以结果为底图，否则以原图为底图。
// 成功时新记录放到历史最前并成为当前结果；失败时只记录错误。
// 无论成败，选点和选点模式都会被清除。
func (s *Session) Submit(ctx context.Context, in SubmitInput) (*Entry, error) {
	s.mu.Lock()
	switch s.state {
	case StateEmpty:
		s.mu.Unlock()
		return nil, ErrNoImage
	case StateEditing:
		s.mu.Unlock()
		return nil, ErrBusy
	}

	base := s.source
	if s.compound {
		if entry, ok := s.workingEntry(); ok {
			base = entry.Edited
		}
	}
	mode := in.Mode
	if mode == "" {
		mode = s.mode
	}
	sel := in.Selection
	if sel == nil && s.pending != nil {
		p := *s.pending
		sel = &p
	}
	s.state = StateEditing
	s.lastErr = nil
	s.mu.Unlock()

	outcome, err := s.runEditor(ctx, editor.Request{
		Image:     base,
		Mode:      mode,
		Text:      in.Text,
		Selection: sel,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateLoaded
	s.pending = nil
	s.picking = false

	if err != nil {
		editErr, ok := domain.AsEditError(err)
		if !ok {
			editErr = &domain.EditError{Kind: domain.KindSynthesis, Message: err.Error(), Err: err}
		}
		s.lastErr = editErr
		s.logger().WithError(err).WithField("kind", editErr.Kind).Warn("Edit failed")
		return nil, editErr
	}

	entry := Entry{
		ID:        s.newID(),
		Original:  base,
		Edited:    outcome.Asset,
		Label:     mode.HistoryLabel(in.Text, sel),
		Mode:      mode,
		Model:     outcome.Model,
		CreatedAt: s.now(),
	}
	s.history = append([]Entry{entry}, s.history...)
	s.workingID = entry.ID
	s.logger().WithFields(map[string]interface{}{
		"entry":    entry.ID,
		"label":    entry.Label,
		"model":    entry.Model,
		"attempts": outcome.Attempts,
		"history":  len(s.history),
	}).Info("Edit applied")
	return &entry, nil
}

// runEditor 编辑器 panic 时转成合成错误，保证会话能回到 loaded
func (s *Session) runEditor(ctx context.Context, req editor.Request) (out *editor.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &domain.EditError{Kind: domain.KindSynthesis, Message: fmt.Sprintf("edit aborted: %v", r)}
		}
	}()
	return s.editor.Submit(ctx, req)
}

// Undo 删除最新的历史记录，当前结果回到新的最新记录或原图
func (s *Session) Undo() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLoaded(); err != nil {
		return err
	}
	if len(s.history) == 0 {
		return ErrEmptyHistory
	}

	s.history = s.history[1:]
	s.resetWorking()
	s.lastErr = nil
	return nil
}

// DeleteEntry 删除指定历史记录。删除的是最新记录或当前结果时，当前结果回到最新记录或原图
func (s *Session) DeleteEntry(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLoaded(); err != nil {
		return err
	}

	idx := s.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	s.history = append(s.history[:idx:idx], s.history[idx+1:]...)
	if idx == 0 || s.workingID == id {
		s.resetWorking()
	}
	s.lastErr = nil
	return nil
}

// SelectEntry 把指定历史记录设为当前结果，不改变历史顺序
func (s *Session) SelectEntry(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLoaded(); err != nil {
		return err
	}
	if s.indexOf(id) < 0 {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	s.workingID = id
	s.lastErr = nil
	return nil
}

// Reset 保留原图，清空结果、历史、选点和错误
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLoaded(); err != nil {
		return err
	}
	s.clearResults()
	return nil
}

// ChangeImage 清空全部状态，回到空会话
func (s *Session) ChangeImage() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateEditing {
		return ErrBusy
	}
	s.source = domain.ImageAsset{}
	s.clearResults()
	s.compound = true
	s.state = StateEmpty
	return nil
}

// SetCompound 开关叠加编辑（在上一次结果上继续编辑）
func (s *Session) SetCompound(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateEditing {
		return ErrBusy
	}
	s.compound = on
	return nil
}

// SetMode 切换编辑模式，同时清除选点
func (s *Session) SetMode(mode domain.EditMode) error {
	parsed, err := domain.ParseEditMode(string(mode))
	if err != nil {
		return domain.NewValidationError("%v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateEditing {
		return ErrBusy
	}
	s.mode = parsed
	s.pending = nil
	s.picking = false
	s.lastErr = nil
	return nil
}

// TogglePick 开关选点模式，返回切换后的状态
func (s *Session) TogglePick() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLoaded(); err != nil {
		return false, err
	}
	s.picking = !s.picking
	s.lastErr = nil
	return s.picking, nil
}

// PickTarget 在选点模式下记录点选位置，并退出选点模式
func (s *Session) PickTarget(sel domain.Selection) error {
	if err := sel.Validate(); err != nil {
		return domain.NewValidationError("%v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLoaded(); err != nil {
		return err
	}
	if !s.picking {
		return ErrNotPicking
	}
	s.pending = &sel
	s.picking = false
	s.lastErr = nil
	return nil
}

// DismissError 清除最近一次错误
func (s *Session) DismissError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = nil
}

// WorkingAsset 当前展示的图片：最新结果或原图
func (s *Session) WorkingAsset() (domain.ImageAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateEmpty {
		return domain.ImageAsset{}, ErrNoImage
	}
	return s.workingAsset(), nil
}

// Entry 按 ID 取历史记录
func (s *Session) Entry(id string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	return s.history[idx], nil
}

func (s *Session) checkLoaded() error {
	switch s.state {
	case StateEmpty:
		return ErrNoImage
	case StateEditing:
		return ErrBusy
	}
	return nil
}

func (s *Session) clearResults() {
	s.workingID = ""
	s.history = nil
	s.pending = nil
	s.picking = false
	s.lastErr = nil
}

// resetWorking 当前结果指向最新记录，没有记录时展示原图
func (s *Session) resetWorking() {
	if len(s.history) > 0 {
		s.workingID = s.history[0].ID
	} else {
		s.workingID = ""
	}
}

func (s *Session) indexOf(id string) int {
	for i := range s.history {
		if s.history[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) workingEntry() (Entry, bool) {
	if s.workingID == "" {
		return Entry{}, false
	}
	idx := s.indexOf(s.workingID)
	if idx < 0 {
		return Entry{}, false
	}
	return s.history[idx], true
}

func (s *Session) workingAsset() domain.ImageAsset {
	if entry, ok := s.workingEntry(); ok {
		return entry.Edited
	}
	return s.source
}

func (s *Session) logger() *logrus.Entry {
	return common.Component("session").WithField("session", s.id)
}

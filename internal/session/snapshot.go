package session

import (
	"time"

	"github.com/Devifyo/lumina/internal/domain"
)

const (
	displayWorking = "Working Buffer"
	displaySource  = "Raw Input"
)

// EntryView 历史记录的展示信息（不含图片数据）
type EntryView struct {
	ID        string          `json:"id" yaml:"id"`
	Label     string          `json:"label" yaml:"label"`
	Mode      domain.EditMode `json:"mode" yaml:"mode"`
	Model     string          `json:"model,omitempty" yaml:"model,omitempty"`
	CreatedAt time.Time       `json:"created_at" yaml:"created_at"`
}

// ErrorView 最近一次错误的展示信息
type ErrorView struct {
	Kind        domain.ErrorKind `json:"kind" yaml:"kind"`
	Message     string           `json:"message" yaml:"message"`
	Notice      string           `json:"notice" yaml:"notice"`
	Remediation string           `json:"remediation,omitempty" yaml:"remediation,omitempty"`
}

// Snapshot 重新渲染界面所需的全部状态
type Snapshot struct {
	SessionID string `json:"session_id" yaml:"session_id"`
	State     State  `json:"state" yaml:"state"`
	// Source / Working 在会话为空时为 nil
	Source  *domain.ImageAsset `json:"source,omitempty" yaml:"-"`
	Working *domain.ImageAsset `json:"working,omitempty" yaml:"-"`
	// WorkingEntryID 为空表示展示原图
	WorkingEntryID     string            `json:"working_entry_id,omitempty" yaml:"working_entry_id,omitempty"`
	DisplayLabel       string            `json:"display_label,omitempty" yaml:"display_label,omitempty"`
	History            []EntryView       `json:"history" yaml:"history"`
	Mode               domain.EditMode   `json:"mode" yaml:"mode"`
	CompoundEdits      bool              `json:"compound_edits" yaml:"compound_edits"`
	Editing            bool              `json:"editing" yaml:"editing"`
	Picking            bool              `json:"picking" yaml:"picking"`
	Selection          *domain.Selection `json:"selection,omitempty" yaml:"selection,omitempty"`
	Error              *ErrorView        `json:"error,omitempty" yaml:"error,omitempty"`
	OfferProjectSwitch bool              `json:"offer_project_switch" yaml:"offer_project_switch"`
}

// Snapshot 返回当前状态的拷贝，编辑中也可以调用
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		SessionID:     s.id,
		State:         s.state,
		History:       make([]EntryView, 0, len(s.history)),
		Mode:          s.mode,
		CompoundEdits: s.compound,
		Editing:       s.state == StateEditing,
		Picking:       s.picking,
	}

	if s.state != StateEmpty {
		source := s.source
		working := s.workingAsset()
		snap.Source = &source
		snap.Working = &working
		snap.DisplayLabel = displaySource
		if _, ok := s.workingEntry(); ok {
			snap.WorkingEntryID = s.workingID
			snap.DisplayLabel = displayWorking
		}
	}

	for _, e := range s.history {
		snap.History = append(snap.History, EntryView{
			ID:        e.ID,
			Label:     e.Label,
			Mode:      e.Mode,
			Model:     e.Model,
			CreatedAt: e.CreatedAt,
		})
	}

	if s.pending != nil {
		sel := *s.pending
		snap.Selection = &sel
	}

	if s.lastErr != nil {
		snap.Error = &ErrorView{
			Kind:        s.lastErr.Kind,
			Message:     s.lastErr.Message,
			Notice:      s.lastErr.Notice(),
			Remediation: s.lastErr.RemediationLabel(),
		}
		snap.OfferProjectSwitch = s.lastErr.OfferProjectSwitch()
	}

	return snap
}

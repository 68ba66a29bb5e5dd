package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Devifyo/lumina/common"
	"github.com/Devifyo/lumina/internal/domain"
	"github.com/Devifyo/lumina/internal/session"
	"github.com/Devifyo/lumina/internal/utils"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type editOptions struct {
	input       string
	modes       []string
	text        string
	x, y        float64
	output      string
	independent bool
	meta        string
	maxUpload   int64
}

// editMeta 写入 --meta 文件的编辑记录
type editMeta struct {
	Input         string              `yaml:"input"`
	Output        string              `yaml:"output"`
	CompoundEdits bool                `yaml:"compound_edits"`
	Steps         []session.EntryView `yaml:"steps"`
	Error         *session.ErrorView  `yaml:"error,omitempty"`
}

func newEditCmd() *cobra.Command {
	opts := editOptions{x: -1, y: -1}

	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Apply one or more AI edits to a local image",
		Long: `Loads an image, applies each --mode in order and writes the final result.

By default every edit builds on the previous result; --independent applies
each edit to the original instead. --text is used by remove_object and
custom_prompt; --x/--y (fractions in [0,1]) pick the target for
remove_object and the focus point for blur_background.`,
		Example: `  # Remove the background
  lumina edit -i photo.jpg -m remove_background -o cutout.png

  # Erase the object at a point, then enhance
  lumina edit -i photo.jpg -m remove_object --x 0.42 --y 0.61 -m enhance -o out.png

  # Free-form prompt with a metadata sidecar
  lumina edit -i photo.jpg -m custom_prompt --text "make it snowy" -o out.png --meta out.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := common.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			ed, err := newEditor(cfg)
			if err != nil {
				return err
			}
			opts.maxUpload = cfg.UploadMaxBytes()
			return runEdit(cmd.Context(), opts, ed, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Input image: file path, URL or data URI")
	cmd.Flags().StringArrayVarP(&opts.modes, "mode", "m", nil, "Edit mode, repeat to chain edits (remove_background, remove_object, enhance, blur_background, custom_prompt)")
	cmd.Flags().StringVar(&opts.text, "text", "", "Object description or custom prompt")
	cmd.Flags().Float64Var(&opts.x, "x", -1, "Target X in [0,1]")
	cmd.Flags().Float64Var(&opts.y, "y", -1, "Target Y in [0,1]")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file for the final image")
	cmd.Flags().BoolVar(&opts.independent, "independent", false, "Apply every edit to the original image")
	cmd.Flags().StringVar(&opts.meta, "meta", "", "Write a YAML sidecar with the edit history")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("mode")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func (o editOptions) selection() (*domain.Selection, error) {
	if o.x < 0 && o.y < 0 {
		return nil, nil
	}
	sel := &domain.Selection{X: o.x, Y: o.y}
	if err := sel.Validate(); err != nil {
		return nil, fmt.Errorf("invalid --x/--y: %w", err)
	}
	return sel, nil
}

// runEdit 通过会话状态机依次执行编辑，写出最终图片和可选的 YAML 记录
func runEdit(ctx context.Context, opts editOptions, ed session.Editor, out io.Writer) error {
	modes := make([]domain.EditMode, 0, len(opts.modes))
	for _, raw := range opts.modes {
		mode, err := domain.ParseEditMode(raw)
		if err != nil {
			return err
		}
		modes = append(modes, mode)
	}
	sel, err := opts.selection()
	if err != nil {
		return err
	}

	asset, err := utils.LoadImage(ctx, opts.input, opts.maxUpload)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", opts.input, err)
	}

	sess := session.New(session.DefaultID, ed)
	if err := sess.Upload(asset); err != nil {
		return err
	}
	if err := sess.SetCompound(!opts.independent); err != nil {
		return err
	}

	var runErr error
	for i, mode := range modes {
		in := session.SubmitInput{Mode: mode}
		if mode == domain.ModeRemoveObject || mode == domain.ModeCustomPrompt {
			in.Text = opts.text
		}
		if mode.UsesSelection() {
			in.Selection = sel
		}

		entry, err := sess.Submit(ctx, in)
		if err != nil {
			runErr = fmt.Errorf("step %d (%s) failed: %w", i+1, mode, err)
			break
		}
		fmt.Fprintf(out, "[%d/%d] %s via %s\n", i+1, len(modes), entry.Label, entry.Model)
	}

	snap := sess.Snapshot()
	if opts.meta != "" {
		if err := writeMeta(opts, snap); err != nil {
			return err
		}
	}
	if runErr != nil {
		if snap.Error != nil {
			fmt.Fprintln(out, snap.Error.Notice)
			if snap.Error.Remediation != "" {
				fmt.Fprintf(out, "Suggested action: %s\n", snap.Error.Remediation)
			}
		}
		return runErr
	}

	working, err := sess.WorkingAsset()
	if err != nil {
		return err
	}
	data, err := working.Bytes()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(opts.output); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(opts.output, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", opts.output, err)
	}
	fmt.Fprintf(out, "Wrote %s (%d bytes, %s)\n", opts.output, len(data), working.MIMEType)
	return nil
}

func writeMeta(opts editOptions, snap session.Snapshot) error {
	meta := editMeta{
		Input:         opts.input,
		Output:        opts.output,
		CompoundEdits: snap.CompoundEdits,
		Steps:         make([]session.EntryView, 0, len(snap.History)),
		Error:         snap.Error,
	}
	// 历史最新在前，记录按执行顺序写出
	for i := len(snap.History) - 1; i >= 0; i-- {
		meta.Steps = append(meta.Steps, snap.History[i])
	}

	data, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := os.WriteFile(opts.meta, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", opts.meta, err)
	}
	return nil
}

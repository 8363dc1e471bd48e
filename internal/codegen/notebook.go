package codegen

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/iamvkosarev/easymatter-bot/internal/model"
)

const colabBaseURL = "https://colab.research.google.com/github/googlecolab/colabtools/blob/main/notebooks/colab-github-demo.ipynb"

type notebookCell struct {
	CellType       string          `json:"cell_type"`
	Metadata       map[string]any  `json:"metadata"`
	Source         []string        `json:"source"`
	ExecutionCount json.RawMessage `json:"execution_count,omitempty"`
	Outputs        *[]any          `json:"outputs,omitempty"`
}

type notebookDocument struct {
	NBFormat      int            `json:"nbformat"`
	NBFormatMinor int            `json:"nbformat_minor"`
	Metadata      map[string]any `json:"metadata"`
	Cells         []notebookCell `json:"cells"`
}

// ColabURL builds the hand-off link that opens code in Colab.
// Spaces are encoded as %20 so the code survives as a single query value.
func ColabURL(code string) string {
	return colabBaseURL + "?code=" + strings.ReplaceAll(url.QueryEscape(code), "+", "%20")
}

type CodeType string

const (
	CodeTypeNewMaterial      CodeType = "new_material"
	CodeTypeCatalyst         CodeType = "catalyst"
	CodeTypeModifiedMaterial CodeType = "modified_material"
	CodeTypeFineTuning       CodeType = "fine_tuning"
)

// ParseCodeType maps a request value to a CodeType. Blank means a new material.
func ParseCodeType(raw string) (CodeType, error) {
	switch codeType := CodeType(strings.TrimSpace(raw)); codeType {
	case "":
		return CodeTypeNewMaterial, nil
	case CodeTypeNewMaterial, CodeTypeCatalyst, CodeTypeModifiedMaterial, CodeTypeFineTuning:
		return codeType, nil
	default:
		return "", fmt.Errorf("unknown code type %q: %w", raw, model.ErrValidation)
	}
}

// CodeTypeForTemplate picks the notebook flavour for a design template.
func CodeTypeForTemplate(templateID string) CodeType {
	if templateID == string(CodeTypeCatalyst) {
		return CodeTypeCatalyst
	}
	return CodeTypeNewMaterial
}

type NotebookOptions struct {
	CodeType          CodeType
	Materials         []string
	Properties        []string
	IncludeFineTuning bool
}

func (o NotebookOptions) fineTuning() bool {
	return o.IncludeFineTuning || o.CodeType == CodeTypeFineTuning
}

// RunInfo is what a user should know before running the notebook.
type RunInfo struct {
	ExecutionTime string
	Memory        string
	Warnings      []string
	Tips          []string
}

var runTips = []string{
	"Save your generated material files immediately after they're created.",
	"For better results, consider fine-tuning the model with your specific materials dataset.",
	"Experiment with different property values to see how they affect the generated material.",
}

// Estimate gives rough Colab execution time and memory figures.
func Estimate(opts NotebookOptions) RunInfo {
	minutes := 5 + 2*len(opts.Properties)
	ramGB := 4 + 0.5*float64(len(opts.Properties))
	gpuGB := 8.0
	if opts.fineTuning() {
		minutes += 30
		ramGB += 2
		gpuGB += 4
	}
	switch opts.CodeType {
	case CodeTypeNewMaterial, "":
		minutes += 10
	case CodeTypeCatalyst:
		minutes += 15
	case CodeTypeModifiedMaterial:
		minutes += 12
	}

	info := RunInfo{
		ExecutionTime: formatMinutes(minutes),
		Memory:        fmt.Sprintf("%.1f GB RAM, %.1f GB GPU memory", ramGB, gpuGB),
		Warnings:      []string{},
		Tips:          runTips,
	}
	if len(opts.Materials) == 0 {
		info.Warnings = append(
			info.Warnings, "No materials specified. Using default materials may not give optimal results.",
		)
	}
	if opts.fineTuning() {
		info.Warnings = append(info.Warnings, "Upload user_materials.csv before running the fine-tuning cell.")
	}
	return info
}

func formatMinutes(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d minutes", minutes)
	}
	return fmt.Sprintf("%d hours, %d minutes", minutes/60, minutes%60)
}

const setupSource = `# Install dependencies
!pip install -q torch mattergen
!apt-get -qq install git-lfs

# Check if GPU is available
import torch
print(f"GPU available: {torch.cuda.is_available()}")
if torch.cuda.is_available():
    print(f"GPU device: {torch.cuda.get_device_name(0)}")
else:
    print("Warning: No GPU detected. Processing will be much slower.")
    print("Consider enabling GPU in Runtime > Change runtime type > Hardware accelerator > GPU")`

const notesSource = `# Important notes
print("---------- IMPORTANT NOTES ----------")
print("1. Colab's free GPU may disconnect after ~4-12 hours. Save your results often!")
print("2. For large datasets or complex models, consider upgrading to Colab Pro.")
print("3. This design is theoretical - consult with a materials scientist for practical synthesis.")
print("------------------------------------")`

func fineTuningSource(properties []string) string {
	quoted := make([]string, 0, len(properties))
	for _, p := range properties {
		quoted = append(quoted, strconv.Quote(p))
	}
	return `# Fine-tune MatterGen on your dataset
import pandas as pd
from mattergen.data import MaterialDataset

dataset = pd.read_csv("user_materials.csv")
train_dataset = MaterialDataset(dataset)
model.finetune(
    train_dataset,
    cost_weight=0.7,
    properties=[` + strings.Join(quoted, ", ") + `],
    epochs=10,
    learning_rate=1e-4
)
print("Fine-tuning complete!")`
}

// Notebook renders code as a Colab notebook: an overview with run estimates, a setup
// cell that installs dependencies and checks the GPU, an optional fine-tuning cell,
// then every blank-line separated section of code under a title taken from its
// leading comment, and closing notes.
func Notebook(code string, opts NotebookOptions) ([]byte, error) {
	if opts.CodeType == "" {
		opts.CodeType = CodeTypeNewMaterial
	}
	info := Estimate(opts)

	overview := []string{
		"# EasyMatter Material Design\n",
		"\n",
		fmt.Sprintf("This notebook was generated for a %s design. Run the cells in order on a GPU runtime.\n", opts.CodeType),
		"\n",
		"## Execution Information\n",
		fmt.Sprintf("- Estimated execution time: %s\n", info.ExecutionTime),
		fmt.Sprintf("- Memory requirements: %s\n", info.Memory),
	}
	if len(info.Warnings) > 0 {
		overview = append(overview, "\n", "## Important Notes\n")
		for _, warning := range info.Warnings {
			overview = append(overview, "- "+warning+"\n")
		}
	}
	overview = append(overview, "\n", "## Tips\n")
	for _, tip := range info.Tips {
		overview = append(overview, "- "+tip+"\n")
	}

	doc := notebookDocument{
		NBFormat:      4,
		NBFormatMinor: 0,
		Metadata: map[string]any{
			"colab": map[string]any{
				"name":               "EasyMatter Material Design.ipynb",
				"provenance":         []any{},
				"collapsed_sections": []any{},
			},
			"kernelspec": map[string]any{
				"name":         "python3",
				"display_name": "Python 3",
			},
			"language_info": map[string]any{
				"name": "python",
			},
			"accelerator": "GPU",
			"easymatter": map[string]any{
				"code_type":               string(opts.CodeType),
				"execution_time_estimate": info.ExecutionTime,
				"memory_requirements":     info.Memory,
				"warnings":                info.Warnings,
			},
		},
		Cells: []notebookCell{
			markdownCell(overview...),
			markdownCell("## Setup"),
			codeCell(setupSource),
		},
	}

	for _, section := range strings.Split(strings.TrimSpace(code), "\n\n") {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}
		doc.Cells = append(doc.Cells, markdownCell("## "+sectionTitle(section)), codeCell(section))
	}
	if opts.fineTuning() {
		doc.Cells = append(doc.Cells, markdownCell("## Fine-tuning"), codeCell(fineTuningSource(opts.Properties)))
	}
	doc.Cells = append(doc.Cells, markdownCell("## Important notes"), codeCell(notesSource))

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notebook: %w", err)
	}
	return raw, nil
}

func sectionTitle(section string) string {
	if !strings.HasPrefix(section, "#") {
		return "Code Section"
	}
	firstLine, _, _ := strings.Cut(section, "\n")
	return strings.TrimLeft(firstLine, "# ")
}

func markdownCell(lines ...string) notebookCell {
	return notebookCell{
		CellType: "markdown",
		Metadata: map[string]any{},
		Source:   lines,
	}
}

func codeCell(source string) notebookCell {
	return notebookCell{
		CellType:       "code",
		Metadata:       map[string]any{},
		Source:         []string{source},
		ExecutionCount: json.RawMessage("null"),
		Outputs:        &[]any{},
	}
}

package datasets

import (
	"bytes"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// LabelSpec is either a single categorical column or an ordered list of
// binary columns. Only single-label specs can be stratified on.
type LabelSpec struct {
	columns []string
	multi   bool
}

// SingleLabel is a label made of one categorical column.
func SingleLabel(column string) LabelSpec {
	return LabelSpec{columns: []string{column}}
}

// MultiLabel is a label made of several independent binary columns, kept in the given order.
func MultiLabel(columns ...string) LabelSpec {
	return LabelSpec{columns: append([]string(nil), columns...), multi: true}
}

func (l LabelSpec) IsSingle() bool {
	return !l.multi && len(l.columns) == 1
}

// Column returns the label column of a single-label spec and "" otherwise.
func (l LabelSpec) Column() string {
	if !l.IsSingle() {
		return ""
	}
	return l.columns[0]
}

func (l LabelSpec) Columns() []string {
	return append([]string(nil), l.columns...)
}

func (l LabelSpec) String() string {
	if l.IsSingle() {
		return l.columns[0]
	}
	return "[" + strings.Join(l.columns, ", ") + "]"
}

type labelSpecJSON struct {
	Single string   `json:"single,omitempty"`
	Multi  []string `json:"multi,omitempty"`
}

func (l LabelSpec) MarshalJSON() ([]byte, error) {
	if l.IsSingle() {
		return jsoniter.Marshal(labelSpecJSON{Single: l.columns[0]})
	}
	return jsoniter.Marshal(labelSpecJSON{Multi: l.columns})
}

// UnmarshalJSON accepts {"single": "SEN"}, {"multi": ["PGS", "FT"]} or the
// short forms "SEN" and ["PGS", "FT"].
func (l *LabelSpec) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) > 0 && data[0] == '"':
		var column string
		if err := jsoniter.Unmarshal(data, &column); err != nil {
			return err
		}
		*l = SingleLabel(column)
	case len(data) > 0 && data[0] == '[':
		var columns []string
		if err := jsoniter.Unmarshal(data, &columns); err != nil {
			return err
		}
		*l = MultiLabel(columns...)
	default:
		var raw labelSpecJSON
		if err := jsoniter.Unmarshal(data, &raw); err != nil {
			return err
		}
		if (raw.Single == "") == (len(raw.Multi) == 0) {
			return fmt.Errorf("label must set exactly one of single or multi, got %s", string(data))
		}
		if raw.Single != "" {
			*l = SingleLabel(raw.Single)
		} else {
			*l = MultiLabel(raw.Multi...)
		}
	}
	return nil
}

// TaskDefinition projects the table into (feature, label) pairs for one classification task.
type TaskDefinition struct {
	Name    string    `json:"name"`
	Feature string    `json:"feature"`
	Label   LabelSpec `json:"label"`
}

// Check validates the definition on its own, without a table.
func (t TaskDefinition) Check() error {
	if t.Name == "" {
		return fmt.Errorf("task name is required")
	}
	if strings.ContainsAny(t.Name, `/\`) || t.Name == "." || t.Name == ".." {
		return fmt.Errorf("task name %q cannot be used as a directory name", t.Name)
	}
	if t.Feature == "" {
		return fmt.Errorf("task %s: feature column is required", t.Name)
	}
	if len(t.Label.columns) == 0 {
		return fmt.Errorf("task %s: at least one label column is required", t.Name)
	}
	seen := map[string]bool{}
	for _, c := range t.Label.columns {
		if c == "" {
			return fmt.Errorf("task %s: empty label column name", t.Name)
		}
		if seen[c] {
			return fmt.Errorf("task %s: label column %s listed twice", t.Name, c)
		}
		seen[c] = true
	}
	return nil
}

// Validate checks that every column the task reads exists in table.
func (t TaskDefinition) Validate(table *Table) error {
	if err := t.Check(); err != nil {
		return err
	}
	if _, err := table.Columns(append([]string{t.Feature}, t.Label.columns...)...); err != nil {
		return fmt.Errorf("task %s: %w", t.Name, err)
	}
	return nil
}

// TopicColumns are the nine multi-label topic indicators of the TikNep annotation.
var TopicColumns = []string{"PGS", "FT", "EYE", "HBF", "FR", "EMP", "BF", "SW", "DO"}

// TikNepTasks returns the four tasks of the TikNep dataset.
func TikNepTasks() []TaskDefinition {
	return []TaskDefinition{
		{Name: "sentiment", Feature: "Text", Label: SingleLabel("SEN")},
		{Name: "hate_offense", Feature: "Text", Label: SingleLabel("HAO")},
		{Name: "political", Feature: "Text", Label: SingleLabel("POL")},
		{Name: "multi_topics", Feature: "Text", Label: MultiLabel(TopicColumns...)},
	}
}

// LabelNames maps label codes to readable class names for the known columns.
var LabelNames = map[string]map[string]string{
	"SEN": {"0": "Neutral", "1": "Negative", "2": "Positive"},
	"HAO": {"0": "Not Offensive", "1": "Offensive"},
	"POL": {"0": "Non-Political", "1": "Political"},
}

// ClassName renders a class value with its readable name when one is known.
func ClassName(column, value string) string {
	if name, ok := LabelNames[column][value]; ok {
		return fmt.Sprintf("%s (%s)", name, value)
	}
	return value
}

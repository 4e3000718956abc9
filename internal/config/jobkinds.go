package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type JobMode string

const (
	ModeConversational JobMode = "conversational"
	ModeOneShot        JobMode = "one_shot"
)

// JobKind describes one kind of practice job a user can start.
type JobKind struct {
	Name               string  `yaml:"name"`
	Title              string  `yaml:"title"`
	Mode               JobMode `yaml:"mode"`
	WorkType           string  `yaml:"work_type"`
	MaxDurationMinutes int     `yaml:"max_duration_minutes"`
	TotalQuestions     int     `yaml:"total_questions"`
	Opening            string  `yaml:"opening"`
	Closing            string  `yaml:"closing"`
}

// RenderOpening fills the {position} and {title} placeholders.
func (k JobKind) RenderOpening(position string) string {
	return k.render(k.Opening, position)
}

func (k JobKind) RenderClosing(position string) string {
	return k.render(k.Closing, position)
}

func (k JobKind) render(tpl, position string) string {
	if position == "" {
		position = "this role"
	}
	return strings.NewReplacer("{position}", position, "{title}", k.Title).Replace(tpl)
}

type jobKindsFile struct {
	JobKinds []JobKind `yaml:"job_kinds"`
}

type JobKindRegistry struct {
	kinds map[string]JobKind
	order []string
}

func (r *JobKindRegistry) Get(name string) (JobKind, bool) {
	k, ok := r.kinds[name]
	return k, ok
}

func (r *JobKindRegistry) All() []JobKind {
	out := make([]JobKind, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.kinds[name])
	}
	return out
}

const defaultJobKinds = `
job_kinds:
  - name: mock_interview
    title: Timed mock interview
    mode: conversational
    work_type: interview
    max_duration_minutes: 30
    total_questions: 10
    opening: "Hello and welcome to your practice interview for {position}. I will ask you a series of questions, one at a time. To begin, please introduce yourself briefly."
    closing: "That concludes our practice interview for {position}. Thank you for your time, your results are being prepared."
  - name: quick_screen
    title: Quick screening call
    mode: conversational
    work_type: interview
    max_duration_minutes: 10
    total_questions: 4
    opening: "Hi, thanks for joining this short screening call for {position}. Could you start with a quick overview of your background?"
    closing: "Thanks, that is everything for this screening call."
  - name: quiz
    title: One-shot quiz generation
    mode: one_shot
    work_type: quiz
    total_questions: 10
`

// LoadJobKinds reads the registry from path, or the built-in kinds when path is empty.
func LoadJobKinds(path string) (*JobKindRegistry, error) {
	if path == "" {
		return ParseJobKinds([]byte(defaultJobKinds))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job kinds file: %w", err)
	}
	return ParseJobKinds(data)
}

func ParseJobKinds(data []byte) (*JobKindRegistry, error) {
	var file jobKindsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse job kinds: %w", err)
	}
	if len(file.JobKinds) == 0 {
		return nil, fmt.Errorf("no job kinds defined")
	}

	reg := &JobKindRegistry{kinds: make(map[string]JobKind, len(file.JobKinds))}
	for _, k := range file.JobKinds {
		if k.Name == "" {
			return nil, fmt.Errorf("job kind without name")
		}
		if _, dup := reg.kinds[k.Name]; dup {
			return nil, fmt.Errorf("job kind %q defined twice", k.Name)
		}
		if k.WorkType == "" {
			k.WorkType = k.Name
		}
		switch k.Mode {
		case ModeConversational:
			if k.MaxDurationMinutes <= 0 {
				return nil, fmt.Errorf("job kind %q: max_duration_minutes must be positive", k.Name)
			}
			if k.Opening == "" || k.Closing == "" {
				return nil, fmt.Errorf("job kind %q: opening and closing are required", k.Name)
			}
		case ModeOneShot:
		default:
			return nil, fmt.Errorf("job kind %q: unknown mode %q", k.Name, k.Mode)
		}
		reg.kinds[k.Name] = k
		reg.order = append(reg.order, k.Name)
	}
	return reg, nil
}

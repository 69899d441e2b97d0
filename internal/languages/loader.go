package languages

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sudankdk/judge/internal/model"
)

// Spec is the adapter-local configuration of one language. Args may use the
// placeholders {source}, {output}, {class} and {dir}.
type Spec struct {
	Name           string        `yaml:"name" json:"name"`
	Kind           model.Kind    `yaml:"kind" json:"kind"`
	Tag            string        `yaml:"tag" json:"tag"`
	Extension      string        `yaml:"extension" json:"extension"`
	Aliases        []string      `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Compiler       string        `yaml:"compiler,omitempty" json:"compiler,omitempty"`
	CompileArgs    []string      `yaml:"compile_args,omitempty" json:"compile_args,omitempty"`
	Runtime        string        `yaml:"runtime" json:"runtime"`
	RunArgs        []string      `yaml:"run_args,omitempty" json:"run_args,omitempty"`
	CompileTimeout time.Duration `yaml:"compile_timeout,omitempty" json:"compile_timeout,omitempty"`
	RunTimeout     time.Duration `yaml:"run_timeout" json:"run_timeout"`
	// StrictWarnings fails a build whose compiler wrote to stderr even on exit 0.
	StrictWarnings bool   `yaml:"strict_warnings,omitempty" json:"strict_warnings,omitempty"`
	Image          string `yaml:"image,omitempty" json:"image,omitempty"`
}

// Budget is the longest wall-clock time one submission may take.
func (s Spec) Budget() time.Duration {
	return s.CompileTimeout + s.RunTimeout
}

func (s Spec) Validate() error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if !s.Kind.Valid() {
		errs = append(errs, fmt.Errorf("unknown kind %q", s.Kind))
	}
	if s.Tag == "" || s.Extension == "" {
		errs = append(errs, errors.New("tag and extension are required"))
	}
	if s.Runtime == "" {
		errs = append(errs, errors.New("runtime is required"))
	}
	if s.Kind.Compiled() && s.Compiler == "" {
		errs = append(errs, errors.New("compiled languages need a compiler"))
	}
	if s.Kind.Compiled() && s.CompileTimeout <= 0 {
		errs = append(errs, errors.New("compile_timeout must be positive"))
	}
	if s.RunTimeout <= 0 {
		errs = append(errs, errors.New("run_timeout must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("language %q: %w", s.Name, err)
	}
	return nil
}

type tableFile struct {
	Languages []Spec `yaml:"languages"`
}

// Load reads a YAML language table and merges it over the defaults. Entries
// whose name matches a default only override the fields they set.
func Load(path string) ([]Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read language table: %w", err)
	}
	var table tableFile
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse language table: %w", err)
	}
	return Merge(Defaults(), table.Languages), nil
}

// Merge overlays overrides onto base by name.
func Merge(base, overrides []Spec) []Spec {
	out := make([]Spec, len(base))
	copy(out, base)
	index := make(map[string]int, len(out))
	for i, s := range out {
		index[s.Name] = i
	}
	for _, o := range overrides {
		i, ok := index[o.Name]
		if !ok {
			index[o.Name] = len(out)
			out = append(out, o)
			continue
		}
		out[i] = overlay(out[i], o)
	}
	return out
}

func overlay(s, o Spec) Spec {
	if o.Kind != "" {
		s.Kind = o.Kind
	}
	if o.Tag != "" {
		s.Tag = o.Tag
	}
	if o.Extension != "" {
		s.Extension = o.Extension
	}
	if len(o.Aliases) > 0 {
		s.Aliases = o.Aliases
	}
	if o.Compiler != "" {
		s.Compiler = o.Compiler
	}
	if len(o.CompileArgs) > 0 {
		s.CompileArgs = o.CompileArgs
	}
	if o.Runtime != "" {
		s.Runtime = o.Runtime
	}
	if len(o.RunArgs) > 0 {
		s.RunArgs = o.RunArgs
	}
	if o.CompileTimeout > 0 {
		s.CompileTimeout = o.CompileTimeout
	}
	if o.RunTimeout > 0 {
		s.RunTimeout = o.RunTimeout
	}
	if o.StrictWarnings {
		s.StrictWarnings = true
	}
	if o.Image != "" {
		s.Image = o.Image
	}
	return s
}

// Marshal renders specs as a YAML language table.
func Marshal(specs []Spec) ([]byte, error) {
	return yaml.Marshal(tableFile{Languages: specs})
}

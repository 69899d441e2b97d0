package languages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sudankdk/judge/internal/model"
	"github.com/sudankdk/judge/internal/sandbox"
)

// bytecodeAdapter compiles into a per-job class directory <dir>/<jobId>/ and
// launches the detected main class from it.
type bytecodeAdapter struct {
	base
}

const defaultMainClass = "Main"

var (
	typeDeclRe   = regexp.MustCompile(`\b(class|interface|enum|record)\s+([A-Za-z_$][\w$]*)`)
	publicRe     = regexp.MustCompile(`\bpublic\b`)
	mainMethodRe = regexp.MustCompile(`\bstatic\s+(?:final\s+)?(?:public\s+)?void\s+main\s*\(`)
)

// topLevelType is a type declared outside any braces. open and close index
// its body braces in the blanked source.
type topLevelType struct {
	kind   string
	name   string
	public bool
	open   int
	close  int
}

func (t topLevelType) contains(pos int) bool {
	return t.open < pos && pos < t.close
}

// MainClass guesses the class to launch. Only top-level types count: the
// public one declaring main, then any one declaring main, then the public
// class, then the first class; Main when there is none.
func MainClass(source string) string {
	code := blankJava(source)
	types := topLevelTypes(code)

	var withMain []topLevelType
	for _, loc := range mainMethodRe.FindAllStringIndex(code, -1) {
		for _, t := range types {
			if t.contains(loc[0]) {
				withMain = append(withMain, t)
				break
			}
		}
	}
	var classes []topLevelType
	for _, t := range types {
		if t.kind == "class" {
			classes = append(classes, t)
		}
	}
	for _, candidates := range [][]topLevelType{withMain, classes} {
		for _, t := range candidates {
			if t.public {
				return t.name
			}
		}
		if len(candidates) > 0 {
			return candidates[0].name
		}
	}
	return defaultMainClass
}

// sourceName is the file stem javac demands: the public top-level type if
// there is one, else the launch class.
func sourceName(source, mainClass string) string {
	for _, t := range topLevelTypes(blankJava(source)) {
		if t.public {
			return t.name
		}
	}
	return mainClass
}

func topLevelTypes(code string) []topLevelType {
	type decl struct{ kind, name string }
	decls := make(map[int]decl)
	for _, m := range typeDeclRe.FindAllStringSubmatchIndex(code, -1) {
		decls[m[0]] = decl{kind: code[m[2]:m[3]], name: code[m[4]:m[5]]}
	}

	var (
		types    []topLevelType
		current  *topLevelType
		depth    int
		boundary int
	)
	for i := 0; i < len(code); i++ {
		if depth == 0 && current == nil {
			if d, ok := decls[i]; ok {
				current = &topLevelType{kind: d.kind, name: d.name, public: publicRe.MatchString(code[boundary:i])}
			}
		}
		switch code[i] {
		case '{':
			if depth == 0 && current != nil {
				current.open = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				if current != nil {
					current.close = i
					types = append(types, *current)
					current = nil
				}
				boundary = i + 1
			}
		case ';':
			if depth == 0 {
				boundary = i + 1
			}
		}
	}
	return types
}

// blankJava replaces comments and string or char literals with spaces,
// keeping offsets and newlines intact.
func blankJava(src string) string {
	b := []byte(src)
	blank := func(from, to int) {
		for j := from; j < to && j < len(b); j++ {
			if b[j] != '\n' {
				b[j] = ' '
			}
		}
	}
	for i := 0; i < len(b); {
		switch {
		case strings.HasPrefix(src[i:], "//"):
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				end = len(src) - i
			}
			blank(i, i+end)
			i += end
		case strings.HasPrefix(src[i:], "/*"):
			end := strings.Index(src[i+2:], "*/")
			stop := len(src)
			if end >= 0 {
				stop = i + 2 + end + 2
			}
			blank(i, stop)
			i = stop
		case strings.HasPrefix(src[i:], `"""`):
			end := strings.Index(src[i+3:], `"""`)
			stop := len(src)
			if end >= 0 {
				stop = i + 3 + end + 3
			}
			blank(i, stop)
			i = stop
		case src[i] == '"' || src[i] == '\'':
			quote := src[i]
			j := i + 1
			for j < len(src) && src[j] != quote && src[j] != '\n' {
				if src[j] == '\\' {
					j++
				}
				j++
			}
			stop := min(j+1, len(src))
			blank(i, stop)
			i = stop
		default:
			i++
		}
	}
	return string(b)
}

func (a *bytecodeAdapter) Compile(ctx context.Context, src *model.SourceArtifact) (*Build, error) {
	data, err := os.ReadFile(src.Path)
	if err != nil {
		return nil, fmt.Errorf("%s compile: read source: %w", a.spec.Name, err)
	}
	class := MainClass(string(data))

	// javac wants the file named after its public class.
	classDir := filepath.Join(src.Dir, src.JobID)
	if err := os.MkdirAll(classDir, 0o755); err != nil {
		return nil, fmt.Errorf("%s compile: create class dir: %w", a.spec.Name, err)
	}
	named := filepath.Join(classDir, sourceName(string(data), class)+"."+a.spec.Extension)
	if err := os.WriteFile(named, data, 0o644); err != nil {
		return nil, fmt.Errorf("%s compile: copy source: %w", a.spec.Name, err)
	}

	v := vars{source: named, output: classDir, class: class, dir: classDir}
	res, err := a.compile(ctx, v)
	if err != nil {
		return nil, err
	}
	build := &Build{Result: res}
	if a.rejected(res) {
		return build, nil
	}
	build.Artifact = &model.CompiledArtifact{JobID: src.JobID, Path: classDir, Entry: class}
	return build, nil
}

func (a *bytecodeAdapter) Run(ctx context.Context, src *model.SourceArtifact, build *Build, stdin []byte) (*sandbox.Result, error) {
	if build == nil || build.Artifact == nil {
		return nil, errNotBuilt
	}
	v := vars{
		source: src.Path,
		output: build.Artifact.Path,
		class:  build.Artifact.Entry,
		dir:    build.Artifact.Path,
	}
	return a.run(ctx, v, stdin)
}

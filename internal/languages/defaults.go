package languages

import (
	"time"

	"github.com/sudankdk/judge/internal/model"
)

// Defaults returns the built-in language table.
func Defaults() []Spec {
	return []Spec{
		{
			Name:           "cpp",
			Kind:           model.KindNative,
			Tag:            "cpp",
			Extension:      "cpp",
			Aliases:        []string{"c++", "cc", "cxx", "native-compiled-cpp"},
			Compiler:       "g++",
			CompileArgs:    []string{"-std=c++17", "-O2", "-pipe", "-o", "{output}", "{source}"},
			Runtime:        "{output}",
			CompileTimeout: 8 * time.Second,
			RunTimeout:     6 * time.Second,
			Image:          "gcc:13",
		},
		{
			Name:           "c",
			Kind:           model.KindNative,
			Tag:            "c",
			Extension:      "c",
			Aliases:        []string{"native-compiled-c"},
			Compiler:       "gcc",
			CompileArgs:    []string{"-std=c11", "-O2", "-pipe", "-o", "{output}", "{source}", "-lm"},
			Runtime:        "{output}",
			CompileTimeout: 8 * time.Second,
			RunTimeout:     6 * time.Second,
			Image:          "gcc:13",
		},
		{
			Name:           "java",
			Kind:           model.KindBytecode,
			Tag:            "java",
			Extension:      "java",
			Aliases:        []string{"bytecode-compiled-java"},
			Compiler:       "javac",
			CompileArgs:    []string{"-d", "{output}", "{source}"},
			Runtime:        "java",
			RunArgs:        []string{"-cp", "{output}", "{class}"},
			CompileTimeout: 10 * time.Second,
			RunTimeout:     8 * time.Second,
			Image:          "eclipse-temurin:21-jdk",
		},
		{
			Name:       "python",
			Kind:       model.KindInterpreted,
			Tag:        "py",
			Extension:  "py",
			Aliases:    []string{"py", "python3", "interpreted-py"},
			Runtime:    "python3",
			RunArgs:    []string{"{source}"},
			RunTimeout: 10 * time.Second,
			Image:      "python:3.12-slim",
		},
	}
}

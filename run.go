package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sudankdk/judge/internal/model"
)

var (
	runLang  string
	runStdin string
	runJSON  bool
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Compile and run one source file",
	Long: `Run a source file through the same pipeline the API uses. The language
defaults to the file extension. Use "-" as the file to read source from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runLang, "lang", "l", "", "language name or alias (default: file extension)")
	runCmd.Flags().StringVar(&runStdin, "stdin", "", "file whose contents are piped to the program")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the result as JSON")
}

func runRun(cmd *cobra.Command, args []string) error {
	source, err := readInput(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}
	lang := runLang
	if lang == "" {
		lang = strings.TrimPrefix(filepath.Ext(args[0]), ".")
	}
	var stdin []byte
	if runStdin != "" {
		if stdin, err = os.ReadFile(runStdin); err != nil {
			return fmt.Errorf("reading stdin file: %w", err)
		}
	}

	a, err := setup(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	outcome, err := a.exec.Submit(cmd.Context(), model.ExecutionRequest{
		Language: lang,
		Source:   string(source),
		Stdin:    string(stdin),
	})
	if err != nil {
		return err
	}

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	if runJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(outcome.Response()); err != nil {
			return err
		}
	} else {
		fmt.Fprint(out, outcome.Stdout)
		fmt.Fprint(errOut, outcome.Stderr)
		if !outcome.Success() && outcome.Diagnostic != strings.TrimSpace(outcome.Stderr) {
			fmt.Fprintf(errOut, "%s: %s\n", outcome.Status, outcome.Diagnostic)
		}
	}
	return outcomeExit(outcome)
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading source: %w", err)
	}
	return data, nil
}

// outcomeExit maps an outcome to the command's exit status.
func outcomeExit(o *model.ExecutionOutcome) error {
	switch {
	case o.Success():
		return nil
	case o.ExitCode != nil && *o.ExitCode != 0 && o.Status == model.StatusRuntimeError:
		return &exitError{code: *o.ExitCode}
	case o.Status == model.StatusTimeout:
		return &exitError{code: 124}
	case o.Status == model.StatusInfrastructureError:
		return &exitError{code: 125}
	default:
		return &exitError{code: 1}
	}
}

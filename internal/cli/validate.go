package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/thunk/internal/harness"
)

// FileValidation is the validation outcome for one scenario file.
type FileValidation struct {
	Path  string `json:"path"`
	Name  string `json:"name,omitempty"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ValidateResult holds the outcome of a validate run.
type ValidateResult struct {
	Files   []FileValidation `json:"files"`
	Valid   int              `json:"valid"`
	Invalid int              `json:"invalid"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario>...",
		Short: "Check scenario files without running them",
		Long: `Check scenario files against the scenario schema and semantic rules.

Each argument may be a file or a directory; directories are searched for
.yaml and .yml files.

Exit codes:
  0 - All scenarios valid
  1 - One or more scenarios invalid
  2 - Command error (missing paths, etc.)

Examples:
  thunk validate ./scenarios
  thunk validate checkout.yaml refund.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	var files []string
	for _, p := range paths {
		found, err := findScenarioFiles(p, "")
		if err != nil {
			return err
		}
		files = append(files, found...)
	}

	result := ValidateResult{Files: make([]FileValidation, 0, len(files))}
	for _, file := range files {
		out.VerboseLog("validating %s", file)

		fv := FileValidation{Path: file}
		scenario, err := harness.LoadScenario(file)
		if err != nil {
			fv.Error = err.Error()
			result.Invalid++
			out.Textf("✗ %s\n  %v", file, err)
		} else {
			fv.Name = scenario.Name
			fv.Valid = true
			result.Valid++
			out.Textf("✓ %s (%s)", file, scenario.Name)
		}
		result.Files = append(result.Files, fv)
	}

	failed := result.Invalid > 0
	message := fmt.Sprintf("%d scenario(s) invalid", result.Invalid)
	if err := out.Result(result, failed, ErrCodeInvalid, message); err != nil {
		return err
	}
	if failed {
		return NewExitError(ExitFailure, message)
	}

	out.Textf("%d scenario(s) valid", result.Valid)
	return nil
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/slipway-io/slipway/config"
	"github.com/slipway-io/slipway/validate"
)

var strict bool

var validateCmd = &cobra.Command{
	Use:   "validate [pipeline.yaml ...]",
	Short: "Validate pipeline definitions without running them",
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&strict, "strict", false, "treat warnings as errors")
}

func runValidate(cmd *cobra.Command, args []string) error {
	paths := args
	if len(paths) == 0 {
		paths = []string{"pipeline.yaml"}
	}

	var errCount, warnCount int
	for _, path := range paths {
		errs, warns, err := validateFile(path)
		if err != nil {
			return err
		}

		prefix := ""
		if len(paths) > 1 {
			prefix = path + ": "
		}
		for _, w := range warns {
			fmt.Fprintf(os.Stderr, "WARNING: %s%s\n", prefix, w)
		}
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "ERROR: %s%s\n", prefix, e)
		}
		errCount += len(errs)
		warnCount += len(warns)
	}

	if errCount > 0 {
		return fmt.Errorf("validation failed: %d error(s)", errCount)
	}
	if strict && warnCount > 0 {
		return fmt.Errorf("validation failed: %d warning(s) treated as errors in strict mode", warnCount)
	}
	fmt.Println("Validation passed.")
	return nil
}

// validateFile runs the schema check first and the semantic checks only on
// documents the schema accepts, so one malformed field does not bury the
// report in follow-on errors.
func validateFile(path string) (errs, warns []string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}

	schemaErrs, err := validate.DefinitionYAML(data)
	if err != nil {
		return []string{err.Error()}, nil, nil
	}
	if len(schemaErrs) > 0 {
		return schemaErrs, nil, nil
	}

	def, err := config.ParseDefinition(data)
	if err != nil {
		return []string{err.Error()}, nil, nil
	}
	result := validate.Definition(def)
	return result.Errors, result.Warnings, nil
}

package commands

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwellscope/dwellscope/internal/ingest"
)

// exitCodeValidationFailure is the exit code when the dataset fails validation.
const exitCodeValidationFailure = 2

// validateMaxLineBytes bounds a single NDJSON line, matching the reader.
const validateMaxLineBytes = 1 << 20

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	var colorize, nocolor bool

	cmd := &cobra.Command{
		Use:   "validate <data.ndjson|->",
		Short: "Validate an NDJSON dataset against the record schema",
		Long: `Validate every record of an NDJSON dataset against the embedded
residency record schema.

Examples:
  dwellscope validate data.ndjson
  dwellscope validate - < data.ndjson`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			invalid, err := runValidate(cmd, args[0], colorize, nocolor)
			if err != nil {
				return err
			}

			if invalid > 0 {
				os.Exit(exitCodeValidationFailure)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&colorize, "color", false, "force colored output")
	cmd.Flags().BoolVar(&nocolor, "no-color", false, "disable colored output")

	return cmd
}

// runValidate checks every record of the input and prints a verdict. It
// returns the number of invalid records; I/O and schema-compilation
// problems are errors.
func runValidate(cmd *cobra.Command, inputPath string, colorize, nocolor bool) (int, error) {
	if nocolor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	} else if colorize {
		color.NoColor = false //nolint:reassign // intentional override of library global
	}

	input, label, cleanup, err := openInput(cmd, inputPath)
	if err != nil {
		return 0, err
	}
	defer cleanup()

	out := cmd.OutOrStdout()

	records, invalid, err := validateRecords(input, out)
	if err != nil {
		return 0, err
	}

	if invalid == 0 {
		color.New(color.FgGreen).Fprintf(out, "dataset is valid (%s): %s records\n",
			label, humanize.Comma(int64(records)))

		return 0, nil
	}

	color.New(color.FgRed).Fprintf(out, "validation failed (%s): %d of %s records invalid\n",
		label, invalid, humanize.Comma(int64(records)))

	return invalid, nil
}

// validateRecords scans NDJSON lines from r, validating each non-blank one
// against the embedded record schema and printing per-line findings to out.
func validateRecords(r io.Reader, out io.Writer) (records, invalid int, err error) {
	validator, err := ingest.NewValidator()
	if err != nil {
		return 0, 0, err
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), validateMaxLineBytes)

	lineNo := 0

	for scanner.Scan() {
		lineNo++

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		records++

		issues, lineErr := validator.ValidateLine(line)
		if lineErr != nil {
			invalid++

			color.New(color.FgRed).Fprintf(out, "  line %d: %v\n", lineNo, lineErr)

			continue
		}

		if len(issues) == 0 {
			continue
		}

		invalid++

		for _, issue := range issues {
			color.New(color.FgRed).Fprintf(out, "  line %d: %s: %s\n", lineNo, issue.Field, issue.Description)
		}
	}

	if scanErr := scanner.Err(); scanErr != nil {
		return records, invalid, fmt.Errorf("scan input: %w", scanErr)
	}

	return records, invalid, nil
}

// openInput resolves the dataset argument, treating "-" as stdin.
func openInput(cmd *cobra.Command, inputPath string) (io.Reader, string, func(), error) {
	if inputPath == "-" {
		return cmd.InOrStdin(), "stdin", func() {}, nil
	}

	f, err := os.Open(inputPath)
	if err != nil {
		return nil, "", nil, fmt.Errorf("open dataset: %w", err)
	}

	return f, inputPath, func() { _ = f.Close() }, nil
}

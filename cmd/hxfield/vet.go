package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pthm/hxfield/lib/vet"
)

var errVetFailed = errors.New("fieldtype registrations break the naming convention")

func newVetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vet [packages]",
		Short: "Check fieldtype handles and UI handler names",
		Long: `Check the literal handles and component names passed to Register,
RegisterUI, RegisterIndexUI, hxfield.New and hxfield.MustHandle.

A UI handler must be registered as "<handle>-fieldtype" and an index handler
as "<handle>-fieldtype-index". Names that do not match the handle exactly are
reported as errors; handlers for handles no definition registers are reported
as warnings.

Examples:
  hxfield vet
  hxfield vet ./internal/fields/...
  hxfield vet ./fieldtypes ./admin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			findings, err := vet.New().Check(args...)
			if err != nil {
				return err
			}
			for _, f := range findings {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			if vet.HasErrors(findings) {
				return errVetFailed
			}
			return nil
		},
	}
}

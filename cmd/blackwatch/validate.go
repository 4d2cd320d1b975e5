package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"blackwatch/internal/crawler"
	"blackwatch/internal/validator"
)

func newValidateCmd(a *app) *cobra.Command {
	var integrity bool

	cmd := &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check advisory texts against the heading layout, or reports against their signature",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := validator.NewAdvisoryValidator(nil)
			scraper := crawler.NewScraper()
			out := cmd.OutOrStdout()
			invalid := 0

			for _, path := range args {
				text, err := scraper.ReadLocalFile(path)
				if err != nil {
					return err
				}

				var result *validator.ValidationResult
				if integrity {
					result = v.ValidateIntegrity(text)
				} else {
					result = v.Validate(text)
				}

				fmt.Fprintf(out, "%s: %s\n", path, result)
				result.PrintErrors(out)
				result.PrintWarnings(out)

				if !result.IsValid {
					invalid++
				}
			}

			a.log.Debug("validation finished", "files", len(args), "invalid", invalid)

			if invalid > 0 {
				return fmt.Errorf("%w: %d of %d files", errInvalidInput, invalid, len(args))
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&integrity, "integrity", false, "verify the metadata hash of signed reports instead")

	return cmd
}

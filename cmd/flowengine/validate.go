package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/praxishq/flowengine/pkg/workflow"
)

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate workflow definition files without loading them",
		ArgsUsage: "FILE [FILE...]",
		Action: func(_ context.Context, command *cli.Command) error {
			files := command.Args().Slice()
			if len(files) == 0 {
				return fmt.Errorf("no definition files given")
			}

			validator, err := workflow.NewValidator()
			if err != nil {
				return err
			}

			failures := 0

			for _, file := range files {
				data, err := os.ReadFile(file)
				if err != nil {
					fmt.Printf("%s: %v\n", file, err)

					failures++

					continue
				}

				def, err := validator.ValidateJSON(data)
				if err != nil {
					fmt.Printf("%s: invalid: %v\n", file, err)

					failures++

					continue
				}

				fmt.Printf("%s: ok (workflow %s, %d steps)\n", file, def.ID, len(def.Steps))
			}

			if failures > 0 {
				return fmt.Errorf("%d of %d files failed validation", failures, len(files))
			}

			return nil
		},
	}
}

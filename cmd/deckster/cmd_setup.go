package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/deckster/internal/config"
	"github.com/user/deckster/internal/director"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

// setupField is one wizard question bound to a config value.
type setupField struct {
	label    string
	value    *string
	validate func(string) error
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		fmt.Println("Deckster setup")
		fmt.Println("Press Enter to keep the value shown in brackets.")
		fmt.Println()

		fields := []setupField{
			{label: "Director URL", value: &cfg.Director.URL, validate: func(v string) error {
				_, err := director.Options{URL: v}.Endpoint()
				return err
			}},
			{label: "Director token (optional)", value: &cfg.Director.Token},
			{label: "User id", value: &cfg.Director.UserID},
			{label: "History backend (jsonl or sqlite)", value: &cfg.History.Backend, validate: func(v string) error {
				if v != "jsonl" && v != "sqlite" {
					return fmt.Errorf("unknown backend %q", v)
				}
				return nil
			}},
		}
		if err := askAll(bufio.NewScanner(os.Stdin), os.Stdout, fields); err != nil {
			return err
		}

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		return nil
	},
}

// askAll prompts for each field in turn. A rejected answer is asked again
// until input runs out, at which point the validation error is returned.
func askAll(in *bufio.Scanner, out io.Writer, fields []setupField) error {
	for _, f := range fields {
		for {
			if *f.value != "" {
				fmt.Fprintf(out, "%s [%s]: ", f.label, *f.value)
			} else {
				fmt.Fprintf(out, "%s: ", f.label)
			}
			answer := *f.value
			more := in.Scan()
			if more {
				if s := strings.TrimSpace(in.Text()); s != "" {
					answer = s
				}
			}
			if f.validate != nil {
				if err := f.validate(answer); err != nil {
					if !more {
						return err
					}
					fmt.Fprintln(out, "  ", err)
					continue
				}
			}
			*f.value = answer
			break
		}
	}
	return nil
}

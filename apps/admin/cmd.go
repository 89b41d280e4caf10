package main

import (
	"errors"
	"flag"
	"fmt"

	"github.com/trezcool/shule/storage/database"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db *database.DB
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run DB migrations (up, down, status, ...)")
	fmt.Println("  seed -year YEAR        - seed demo classes, students and enrollments")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	seedCmd := flag.NewFlagSet("seed", flag.ExitOnError)
	seedYear := seedCmd.String("year", "", "The academic year to seed, e.g. 2026-2027.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "seed":
		if err := seedCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *seedYear == "" {
			seedCmd.Usage()
			return errHelp
		}
		return cli.seed(*seedYear)
	default:
		cli.printUsage()
		return errHelp
	}
}

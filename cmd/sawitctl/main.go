// Command sawitctl is an interactive REPL over a sawitdb file. It is a
// thin demo wiring over the library, since the tokenizer/parser, CLI and
// network server live outside the core; its own line syntax and error
// messages are not covered by the core's invariants.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog"

	"github.com/wowoengine/sawitdb"
)

func main() {
	path := flag.String("db", "sawit.db", "path to the database file")
	enableWAL := flag.Bool("wal", true, "enable the write-ahead log")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if !*verbose {
		logger = logger.Level(zerolog.WarnLevel)
	}

	opts := sawitdb.DefaultOptions()
	opts.EnableWAL = *enableWAL
	opts.Logger = &logger

	db, err := sawitdb.Open(*path, opts)
	if err != nil {
		fmt.Printf("Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Println("SawitDB - embedded single-file relational store")
	fmt.Println("Type 'exit' or 'quit' to leave. Statements end with ';'.")
	fmt.Printf("Database: %s (WAL enabled: %v)\n\n", *path, *enableWAL)

	stdinStat, _ := os.Stdin.Stat()
	isPiped := (stdinStat.Mode() & os.ModeCharDevice) == 0
	if isPiped {
		runBasicMode(db)
		return
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "sawitdb> ",
		HistoryFile:     "/tmp/sawitctl_history.txt",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		runBasicMode(db)
		return
	}
	defer rl.Close()

	var buf strings.Builder
	multiLine := false
	for {
		if multiLine {
			rl.SetPrompt("     -> ")
		} else {
			rl.SetPrompt("sawitdb> ")
		}

		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if buf.Len() == 0 {
					fmt.Println("Goodbye!")
					break
				}
				buf.Reset()
				multiLine = false
				continue
			}
			if err == io.EOF {
				fmt.Println("Goodbye!")
				break
			}
			continue
		}

		if !multiLine {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			if trimmed == "exit" || trimmed == "quit" {
				fmt.Println("Goodbye!")
				break
			}
		}

		if buf.Len() > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(line)

		stmt := strings.TrimSpace(buf.String())
		if strings.HasSuffix(stmt, ";") {
			buf.Reset()
			multiLine = false
			runStatement(db, strings.TrimSuffix(stmt, ";"))
		} else {
			multiLine = true
		}
	}
}

func runStatement(db *sawitdb.DB, raw string) {
	cmd, err := parseLine(raw)
	if err != nil {
		fmt.Printf("Parse error: %v\n", err)
		return
	}
	result := db.Query(raw, cmd)
	printResult(result)
}

func printResult(result interface{}) {
	switch v := result.(type) {
	case string:
		fmt.Println(v)
	case []string:
		for _, s := range v {
			fmt.Println(s)
		}
	case []sawitdb.Record:
		if len(v) == 0 {
			fmt.Println("(0 rows)")
			return
		}
		for _, row := range v {
			fmt.Println(row)
		}
		fmt.Printf("(%d row(s))\n", len(v))
	case []sawitdb.IndexStats:
		for _, s := range v {
			fmt.Printf("%s on %s (%d entries)\n", s.Name, s.KeyField, s.Size)
		}
	case *sawitdb.Plan:
		for _, step := range v.Steps {
			fmt.Printf("%-10s %-20s %s\n", step.Kind, step.Table, step.Method)
		}
	default:
		fmt.Printf("%v\n", v)
	}
}

func runBasicMode(db *sawitdb.DB) {
	scanner := bufio.NewScanner(os.Stdin)
	var buf strings.Builder
	multiLine := false
	for scanner.Scan() {
		line := scanner.Text()
		if !multiLine {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			if trimmed == "exit" || trimmed == "quit" {
				break
			}
		}
		if buf.Len() > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(line)

		stmt := strings.TrimSpace(buf.String())
		if strings.HasSuffix(stmt, ";") {
			buf.Reset()
			multiLine = false
			runStatement(db, strings.TrimSuffix(stmt, ";"))
		} else {
			multiLine = true
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
	}
}

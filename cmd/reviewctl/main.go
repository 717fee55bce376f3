// reviewctl is the control CLI for reviewd.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"reviewd/internal/config"
	"reviewd/internal/editwire"
	"reviewd/internal/ipc"
	"reviewd/internal/journal"
)

var (
	configPath = flag.String("config", config.DefaultPath(), "path to config file")
	socketPath = flag.String("socket", "", "override IPC socket path")
	asJSON     = flag.Bool("json", false, "print machine-readable JSON")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	cmd := flag.Arg(0)

	switch cmd {
	case "ping":
		cmdPing()
	case "status":
		doc := ""
		if flag.NArg() >= 2 {
			doc = flag.Arg(1)
		}
		cmdStatus(doc)
	case "payload":
		cmdPayload(flag.Args()[1:])
	case "submit":
		cmdSubmit(flag.Args()[1:])
	case "send":
		if flag.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "Usage: reviewctl send <event.json | ->")
			os.Exit(1)
		}
		cmdSend(flag.Arg(1))
	case "history":
		cmdHistory(flag.Args()[1:])
	case "config":
		cmdConfig(flag.Args()[1:])
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `reviewctl - Control utility for reviewd

Usage: reviewctl [options] <command> [args]

Commands:
  ping              Check daemon liveness
  status [doc]      Show open review windows, or one document's window
  payload           Show the cached insertion payload
  submit            Submit a summary for evaluation
  send <file|->     Send an edit event from a JSON file or stdin
  history           Show recent insertions from the audit journal
  config            Print the effective configuration
  help              Show this help message

Options:
  -config <path>    Path to config file (default: ~/.reviewd/config.toml)
  -socket <path>    Override IPC socket path
  -json             Print machine-readable JSON`)
}

func loadConfig() *config.Config {
	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnvOverrides()
	if *socketPath != "" {
		cfg.IPC.SocketPath = *socketPath
	}
	return cfg
}

func dial() *ipc.Client {
	cfg := loadConfig()
	client, err := ipc.Dial(cfg.IPC.SocketPath, 30*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot reach daemon: %v\n", err)
		os.Exit(1)
	}
	return client
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func cmdPing() {
	client := dial()
	defer client.Close()

	if err := client.Ping(); err != nil {
		fail(err)
	}
	fmt.Println("Daemon is running.")
}

func cmdStatus(doc string) {
	client := dial()
	defer client.Close()

	status, err := client.Status(doc)
	if err != nil {
		fail(err)
	}
	if *asJSON {
		printJSON(status)
		return
	}

	fmt.Printf("reviewd %s\n", status.Version)
	if len(status.OpenWindows) == 0 {
		fmt.Println("No open review windows.")
		return
	}
	fmt.Printf("Open review windows: %d\n\n", len(status.OpenWindows))
	for _, w := range status.OpenWindows {
		remaining := time.Until(w.Deadline).Round(time.Second)
		if remaining < 0 {
			remaining = 0
		}
		fmt.Printf("  %s\n", w.DocumentID)
		fmt.Printf("    inserted:  %d chars, %d lines\n", w.Chars, w.Lines)
		fmt.Printf("    expected:  %s review\n", (time.Duration(w.ExpectedMs) * time.Millisecond).Round(time.Second))
		fmt.Printf("    remaining: %s\n", remaining)
	}
}

func cmdPayload(args []string) {
	fs := flag.NewFlagSet("payload", flag.ExitOnError)
	recordID := fs.String("record", "", "insertion record id (default: most recent)")
	showText := fs.Bool("text", false, "include the full inserted text")
	fs.Parse(args)

	client := dial()
	defer client.Close()

	resp, err := client.Payload(*recordID, *showText)
	if err != nil {
		fail(err)
	}
	if *asJSON {
		printJSON(resp)
		return
	}

	if !resp.Present {
		fmt.Println("No cached insertion payload.")
		return
	}
	fmt.Printf("Record:    %s\n", resp.RecordID)
	fmt.Printf("Document:  %s\n", resp.DocumentID)
	fmt.Printf("Inserted:  %s\n", resp.Timestamp.Format(time.RFC3339))
	fmt.Printf("Size:      %d chars, %d lines\n", resp.Chars, resp.Lines)
	if resp.Summary != "" {
		fmt.Printf("Summary:   %s\n", resp.Summary)
	}
	if *showText {
		fmt.Println()
		fmt.Println(resp.Text)
	}
}

func cmdSubmit(args []string) {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	recordID := fs.String("record", "", "insertion record id (default: most recent)")
	summary := fs.String("summary", "", "your description of what the inserted code does")
	fs.Parse(args)

	if *summary == "" {
		fmt.Fprintln(os.Stderr, "Usage: reviewctl submit -summary \"...\" [-record <id>]")
		os.Exit(1)
	}

	client := dial()
	defer client.Close()

	verdict, err := client.SubmitSummary(*recordID, *summary)
	if err != nil {
		fail(err)
	}
	if *asJSON {
		printJSON(verdict)
		return
	}
	fmt.Println(verdict.Verdict)
}

func cmdSend(path string) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		fail(err)
	}

	ev, err := editwire.Decode(data)
	if err != nil {
		fail(err)
	}

	client := dial()
	defer client.Close()

	ack, err := client.SendEvent(ev)
	if err != nil {
		fail(err)
	}
	if *asJSON {
		printJSON(ack)
		return
	}

	fmt.Printf("Classified as %s.\n", ack.Class)
	if ack.InReview {
		fmt.Printf("Review window open: %s expected.\n",
			(time.Duration(ack.ExpectedMs) * time.Millisecond).Round(time.Second))
	}
}

func cmdHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("n", 20, "number of insertions to show")
	fs.Parse(args)

	cfg := loadConfig()
	if !cfg.Journal.Enabled {
		fmt.Fprintln(os.Stderr, "Audit journal is disabled in the configuration.")
		os.Exit(1)
	}

	jrnl, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		fail(err)
	}
	defer jrnl.Close()

	rows, err := jrnl.RecentInsertions(*limit)
	if err != nil {
		fail(err)
	}
	if *asJSON {
		printJSON(rows)
		return
	}

	if len(rows) == 0 {
		fmt.Println("No recorded insertions.")
		return
	}
	for _, row := range rows {
		fmt.Printf("%s  %-20s  %6d chars  %4d lines  %s review\n",
			row.Timestamp.Format("2006-01-02 15:04:05"),
			row.DocumentID,
			row.Chars,
			row.Lines,
			(time.Duration(row.ExpectedMS) * time.Millisecond).Round(time.Second))
	}
}

func cmdConfig(args []string) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	asYAML := fs.Bool("yaml", false, "print as YAML instead of TOML")
	fs.Parse(args)

	cfg := loadConfig()

	if *asJSON {
		printJSON(cfg)
		return
	}
	if *asYAML {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			fail(err)
		}
		os.Stdout.Write(out)
		return
	}
	if err := toml.NewEncoder(os.Stdout).Encode(cfg); err != nil {
		fail(err)
	}
}

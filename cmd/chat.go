/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"sahayak/pkg/bus"
	"sahayak/pkg/classify"
	"sahayak/pkg/config"
	"sahayak/pkg/dedup"
	"sahayak/pkg/directory"
	"sahayak/pkg/handler"
	"sahayak/pkg/metrics"
	"sahayak/pkg/onboard"
	"sahayak/pkg/orchestrator"
	"sahayak/pkg/state"
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start a local console conversation",
	Long: `Runs the full turn pipeline against a local console channel: rule-based
classification, in-memory state, and offline handlers. Useful for trying the
onboarding and routing flow without any channel or provider credentials.`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = args
		runChat()
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

// consoleChannel prints replies to stdout and remembers the last menu so
// the next numeric input can be resolved to a row id.
type consoleChannel struct {
	mu   sync.Mutex
	menu *bus.Menu
}

func (c *consoleChannel) Name() string { return "console" }

func (c *consoleChannel) Send(_ context.Context, out bus.Outbound) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if out.IsMenu() {
		c.menu = out.Menu
		fmt.Printf("🤝 %s\n", out.Menu.Prompt)
		for _, section := range out.Menu.Sections {
			for i, row := range section.Rows {
				fmt.Printf("   %d) %s\n", i+1, row.Label)
			}
		}
		fmt.Println()
		return nil
	}

	c.menu = nil
	printAssistantMessage(out.Text)
	return nil
}

// takeSelection maps input against the pending menu: a row number or a row
// label/id becomes a selection, anything else stays free text.
func (c *consoleChannel) takeSelection(input string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.menu == nil {
		return "", false
	}

	for _, section := range c.menu.Sections {
		if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(section.Rows) {
			return section.Rows[n-1].ID, true
		}
		for _, row := range section.Rows {
			if strings.EqualFold(input, row.ID) || strings.EqualFold(input, row.Label) {
				return row.ID, true
			}
		}
	}
	return "", false
}

func runChat() {
	dir := chatDirectory()
	console := &consoleChannel{}

	registry, err := handler.NewRegistry(
		handler.NewEmergency(),
		handler.NewGeneral(nil, ""),
		handler.NewJobs(chatJobs(), nil, ""),
		handler.NewLegal(&handler.StaticComplianceSource{
			Context: "West Bengal minimum wage for unskilled daily work: Rs 368/day (zone B). Below that, the employer is violating the Minimum Wages Act.",
		}, nil, ""),
		handler.NewReporting(&handler.LogReportSink{}, nil, ""),
	)
	if err != nil {
		fmt.Printf("failed to build handlers: %v\n", err)
		return
	}

	store := state.NewMemoryStore()
	m := metrics.New()
	gate := onboard.NewGate(dir, config.DefaultMenuRowLimit, nil)
	executor := handler.NewExecutor(registry, 10*time.Second, nil)
	router := orchestrator.NewRouter(store, gate, classify.NewRuleClassifier(), executor, m, config.DefaultHopBudget, nil)
	runner := orchestrator.NewRunner(dedup.New(config.DefaultDedupCapacity, time.Minute), store, router, orchestrator.NewDispatcher(nil, console), nil, m, nil)

	fmt.Println("Sahayak local chat. Type a message, or exit to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	ctx := context.Background()

	for {
		fmt.Print("👷 ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				fmt.Printf("input error: %v\n", err)
			}
			return
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if isExitCommand(input) {
			return
		}

		event := bus.InboundEvent{
			Channel:  "console",
			EventID:  uuid.NewString(),
			SenderID: "local",
			Kind:     bus.KindText,
			Text:     input,
		}
		if selection, ok := console.takeSelection(input); ok {
			event.Kind = bus.KindSelection
			event.Text = selection
		}

		if err := runner.Accept(ctx, event); err != nil {
			fmt.Printf("event rejected: %v\n", err)
			continue
		}
		runner.Wait()
	}
}

// chatDirectory loads the configured hierarchy file when present, falling
// back to a small sample so the command works out of the box.
func chatDirectory() directory.Directory {
	if cfg, err := config.LoadConfig(); err == nil {
		if dir, err := directory.LoadFile(cfg.Directory.PathOrDefault()); err == nil {
			return dir
		}
	}

	return directory.NewStatic([]directory.Entry{
		{District: "Nadia", Block: "Haringhata", Village: "Mollabelia"},
		{District: "Nadia", Block: "Haringhata", Village: "Nagarukhra"},
		{District: "Nadia", Block: "Chakdaha", Village: "Silinda"},
		{District: "North 24 Parganas", Block: "Amdanga", Village: "Awalsiddhi"},
		{District: "North 24 Parganas", Block: "Barasat I", Village: "Kadambagachhi"},
	})
}

func chatJobs() *handler.StaticJobFinder {
	return &handler.StaticJobFinder{
		ByVillage: map[string][]handler.Job{
			"MOLLABELIA": {
				{Title: "Mason helper", Site: "Canal embankment repair", Village: "MOLLABELIA", DailyPay: "Rs 420"},
			},
		},
		ByBlock: map[string][]handler.Job{
			"HARINGHATA": {
				{Title: "Farm labor", Site: "Seed multiplication farm", Village: "NAGARUKHRA", DailyPay: "Rs 380"},
			},
			"AMDANGA": {
				{Title: "Loader", Site: "Wholesale mandi", Village: "AWALSIDDHI", DailyPay: "Rs 400"},
			},
		},
	}
}

func printAssistantMessage(message string) {
	lines := assistantLines(message)
	for _, line := range lines {
		fmt.Printf("🤝 %s\n", line)
	}
	if len(lines) > 0 {
		fmt.Println()
	}
}

func assistantLines(message string) []string {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return nil
	}

	return strings.Split(trimmed, "\n")
}

func isExitCommand(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "quit", ":q":
		return true
	default:
		return false
	}
}

// Command simulate runs simulation scenarios from the command line,
// either locally against the configured LLM provider or through a
// running service instance.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"simulator/pkg/batch"
	"simulator/pkg/config"
	"simulator/pkg/engine"
	"simulator/pkg/eval"
	"simulator/pkg/llm"
	"simulator/pkg/llm/factory"
	"simulator/pkg/llm/middleware/metrics"
	"simulator/pkg/prompts"
	"simulator/pkg/results"
	"simulator/pkg/session"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		cmdRun(os.Args[2:])
	case "status":
		cmdStatus(os.Args[2:])
	case "fetch":
		cmdFetch(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  %s run <scenarios.json> [--config <file>] [--output-dir <dir>] [--single <index>]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s status <batch-id> [--api-url <url>]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s fetch <batch-id> [--api-url <url>] [--format json|csv|ndjson] [--output <file>]\n", os.Args[0])
}

func loadScenarios(path string) []engine.Scenario {
	data, err := os.ReadFile(path)
	if err != nil {
		fatalf("Error loading scenarios from %s: %v", path, err)
	}
	var scenarios []engine.Scenario
	if err := json.Unmarshal(data, &scenarios); err != nil {
		fatalf("Error loading scenarios from %s: %v", path, err)
	}
	if len(scenarios) == 0 {
		fatalf("Scenarios file %s contains no scenarios", path)
	}
	return scenarios
}

func cmdRun(args []string) {
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}
	scenariosFile := args[0]

	flagSet := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := flagSet.String("config", "config.yaml", "Path to config file")
	outputDir := flagSet.String("output-dir", "", "Output directory for results")
	single := flagSet.Int("single", -1, "Run a single scenario by index")
	if err := flagSet.Parse(args[1:]); err != nil {
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		fatalf("Configuration error: %v", err)
	}
	if *outputDir != "" {
		cfg.ResultsDir = *outputDir
	}
	if err := cfg.EnsureDirectories(); err != nil {
		fatalf("Failed to create directories: %v", err)
	}

	scenarios := loadScenarios(scenariosFile)
	fmt.Printf("Loaded %d scenarios from %s\n", len(scenarios), scenariosFile)

	usage := metrics.NewInternalRecorder()
	client, err := factory.NewClient(cfg, usage)
	if err != nil {
		fatalf("Failed to create LLM client: %v", err)
	}

	requester := llm.NewRequester(client)
	promptStore := prompts.NewStore(cfg.PromptsDir)
	eng := engine.New(requester, promptStore, session.NewManager(cfg.WebhookURL), engine.Options{
		MaxTurns: cfg.MaxTurns,
		Timeout:  factory.Timeout(cfg),
	})
	evaluator := eval.New(requester, promptStore)

	if *single >= 0 {
		runSingle(eng, evaluator, scenarios, *single)
		return
	}

	processor := batch.NewProcessor(eng, evaluator, batch.NewStore(), cfg.Concurrency)
	batchID := processor.CreateJob(scenarios)

	fmt.Printf("Created batch job: %s\n", batchID)
	fmt.Printf("Running with concurrency: %d\n", cfg.Concurrency)
	fmt.Println("Starting simulation...")

	total := len(scenarios)
	result, err := processor.Run(context.Background(), batchID, func(_ string, completed int) {
		fmt.Printf("Progress: %d/%d (%.1f%%)\n", completed, total, float64(completed)/float64(total)*100)
	})
	if err != nil {
		fatalf("Batch execution failed: %v", err)
	}

	fmt.Println("\nBatch completed!")
	fmt.Printf("Status: %s\n", result.Status)
	fmt.Printf("Successful scenarios: %d\n", result.SuccessfulScenarios)
	fmt.Printf("Failed scenarios: %d\n", result.FailedScenarios)
	fmt.Printf("Duration: %.1f seconds\n", result.DurationSeconds)

	exporter := results.NewExporter(cfg.ResultsDir)
	ndjsonPath, err := exporter.SaveNDJSON(batchID, result.Records)
	if err != nil {
		fatalf("Failed to save NDJSON results: %v", err)
	}
	csvPath, err := exporter.SaveCSV(batchID, result.Records, "")
	if err != nil {
		fatalf("Failed to save CSV results: %v", err)
	}
	summaryPath, err := exporter.SaveSummary(results.Summarize(batchID, result.Records))
	if err != nil {
		fatalf("Failed to save summary: %v", err)
	}

	fmt.Println("\nResults saved:")
	fmt.Printf("  NDJSON: %s\n", ndjsonPath)
	fmt.Printf("  CSV: %s\n", csvPath)
	fmt.Printf("  Summary: %s\n", summaryPath)

	printQuickSummary(result.Records)

	totals := usage.Totals()
	if totals.RequestCount > 0 {
		fmt.Printf("\nUsage: %d requests, %d tokens, $%.4f estimated\n",
			totals.RequestCount, totals.TotalTokens, totals.TotalCostUSD)
	}
}

func printQuickSummary(records []batch.Record) {
	if len(records) == 0 {
		return
	}
	dist := map[int]int{1: 0, 2: 0, 3: 0}
	sum := 0
	for i := range records {
		sum += records[i].Score
		dist[records[i].Score]++
	}
	fmt.Println("\nQuick Summary:")
	fmt.Printf("  Average score: %.2f\n", float64(sum)/float64(len(records)))
	fmt.Printf("  Score distribution: 1=%d 2=%d 3=%d\n", dist[1], dist[2], dist[3])
}

// runSingle runs one scenario and prints the full transcript plus its
// evaluation verdict.
func runSingle(eng *engine.Engine, evaluator *eval.Evaluator, scenarios []engine.Scenario, index int) {
	if index >= len(scenarios) {
		fatalf("Scenario index %d out of range (have %d scenarios)", index, len(scenarios))
	}
	scenario := scenarios[index]
	if scenario.Name == "" {
		scenario.Name = fmt.Sprintf("scenario_%d", index)
	}

	fmt.Printf("Running single scenario: %s\n", scenario.Name)

	conv := eng.Run(context.Background(), scenario)

	fmt.Println("\n=== CONVERSATION ===")
	for _, turn := range conv.Turns {
		speaker := "AGENT"
		if turn.Speaker == engine.SpeakerClient {
			speaker = "CLIENT"
		}
		fmt.Printf("\n%s: %s\n", speaker, turn.Content)
	}

	if conv.Status != engine.StatusCompleted {
		fatalf("Conversation failed: %s", conv.Error)
	}
	fmt.Printf("\nConversation completed successfully!\n")
	fmt.Printf("Total turns: %d\n", conv.TotalTurns)
	fmt.Printf("Duration: %.1f seconds\n", conv.DurationSeconds)

	fmt.Println("\nEvaluating conversation...")
	verdict := evaluator.Evaluate(context.Background(), conv)

	fmt.Println("\n=== EVALUATION ===")
	fmt.Printf("Score: %d/3\n", verdict.Score)
	fmt.Printf("Comment: %s\n", verdict.Comment)
}

func cmdStatus(args []string) {
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}
	batchID := args[0]

	flagSet := flag.NewFlagSet("status", flag.ExitOnError)
	apiURL := flagSet.String("api-url", "http://localhost:5000", "API base URL")
	if err := flagSet.Parse(args[1:]); err != nil {
		os.Exit(1)
	}

	var job batch.Job
	fetchJSON(fmt.Sprintf("%s/api/batches/%s", *apiURL, batchID), &job)

	fmt.Printf("Batch ID: %s\n", batchID)
	fmt.Printf("Status: %s\n", job.Status)
	fmt.Printf("Progress: %.1f%%\n", job.ProgressPercentage)
	fmt.Printf("Total scenarios: %d\n", job.TotalScenarios)
	fmt.Printf("Completed: %d\n", job.CompletedScenarios)
	fmt.Printf("Failed: %d\n", job.FailedScenarios)
	fmt.Printf("Created: %s\n", job.CreatedAt.Format(time.RFC3339))
	if job.StartedAt != nil {
		fmt.Printf("Started: %s\n", job.StartedAt.Format(time.RFC3339))
	}
	if job.CompletedAt != nil {
		fmt.Printf("Completed: %s\n", job.CompletedAt.Format(time.RFC3339))
	}
	if job.ErrorMessage != "" {
		fmt.Printf("Error: %s\n", job.ErrorMessage)
	}
}

func cmdFetch(args []string) {
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}
	batchID := args[0]

	flagSet := flag.NewFlagSet("fetch", flag.ExitOnError)
	apiURL := flagSet.String("api-url", "http://localhost:5000", "API base URL")
	format := flagSet.String("format", "json", "Output format: json, csv or ndjson")
	output := flagSet.String("output", "", "Output file path (default: stdout)")
	if err := flagSet.Parse(args[1:]); err != nil {
		os.Exit(1)
	}

	url := fmt.Sprintf("%s/api/batches/%s/results?format=%s", *apiURL, batchID, *format)
	resp, err := http.Get(url)
	if err != nil {
		fatalf("Cannot connect to API at %s: %v", *apiURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		fatalf("Batch %s not found", batchID)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		fatalf("API error: %d - %s", resp.StatusCode, body)
	}

	out := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			fatalf("Cannot create output file: %v", err)
		}
		defer f.Close()
		out = f
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		fatalf("Failed to write results: %v", err)
	}
	if *output != "" {
		fmt.Printf("Results saved to %s\n", *output)
	}
}

func fetchJSON(url string, target any) {
	resp, err := http.Get(url)
	if err != nil {
		fatalf("Cannot connect to API: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		fatalf("Batch not found")
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		fatalf("API error: %d - %s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		fatalf("Invalid API response: %v", err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

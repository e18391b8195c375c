// Command viewer prints the relay's /stats snapshot as tables.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"polyglot-chat/observability"
	"time"

	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
)

func main() {
	_ = godotenv.Load()
	defaultURL := os.Getenv("RELAY_STATS_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080/stats"
	}
	url := flag.String("url", defaultURL, "Relay stats endpoint")
	watch := flag.Duration("watch", 0, "Refresh interval, 0 prints once")
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}
	for {
		stats, err := fetchStats(client, *url)
		if err != nil {
			log.Fatalf("Failed to fetch stats: %v", err)
		}
		render(os.Stdout, stats)
		if *watch <= 0 {
			return
		}
		time.Sleep(*watch)
		fmt.Print("\033[H\033[2J")
	}
}

func fetchStats(client *http.Client, url string) (observability.MonitoringStats, error) {
	var stats observability.MonitoringStats
	resp, err := client.Get(url)
	if err != nil {
		return stats, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return stats, fmt.Errorf("unexpected status %s", resp.Status)
	}
	err = json.NewDecoder(resp.Body).Decode(&stats)
	return stats, err
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func render(w io.Writer, stats observability.MonitoringStats) {
	counters := newTable(w, "Counter", "Value")
	counters.AppendBulk([][]string{
		{"Participants", fmt.Sprint(stats.Participants)},
		{"Frames received", fmt.Sprint(stats.FramesReceived)},
		{"Protocol errors", fmt.Sprint(stats.ProtocolErrors)},
		{"Joins", fmt.Sprint(stats.Joins)},
		{"Leaves", fmt.Sprint(stats.Leaves)},
		{"Relays", fmt.Sprint(stats.Relays)},
		{"Delivery failures", fmt.Sprint(stats.DeliveryFailures)},
		{"Censored messages", fmt.Sprint(stats.CensoredMessages)},
		{"Translation calls", fmt.Sprint(stats.TranslationCalls)},
		{"Cache hits", fmt.Sprint(stats.CacheHits)},
		{"Degradations", fmt.Sprint(stats.Degradations)},
		{"Assistant answers", fmt.Sprint(stats.AssistantAnswers)},
		{"Assistant failures", fmt.Sprint(stats.AssistantFailures)},
	})
	counters.Render()
	fmt.Fprintln(w)

	process := newTable(w, "Process", "Value")
	process.AppendBulk([][]string{
		{"CPU %", fmt.Sprintf("%.1f", stats.CPUPercent)},
		{"RSS MB", fmt.Sprint(stats.RSSMb)},
		{"Heap MB", fmt.Sprint(stats.AllocMemMb)},
		{"GC cycles", fmt.Sprint(stats.NumGC)},
		{"Goroutines", fmt.Sprint(stats.Goroutines)},
		{"Updated", stats.UpdatedAt.Format(time.TimeOnly)},
	})
	process.Render()

	if len(stats.Queues) == 0 {
		return
	}
	fmt.Fprintln(w)
	queues := newTable(w, "Queue", "Length", "Capacity")
	for _, q := range stats.Queues {
		queues.Append([]string{q.Name, fmt.Sprint(q.Length), fmt.Sprint(q.Capacity)})
	}
	queues.Render()
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/babyworm/MQSim-CXL/datarecording"
)

var summaryTop int

var traceSummaryCmd = &cobra.Command{
	Use:   "trace-summary <trace>",
	Short: "Summarize a trace recorded by run --trace.",
	Long: "`trace-summary out` reads out.sqlite3 and prints, in YAML, the " +
		"run properties, the count and latency of each kind of task and " +
		"the slowest tasks.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return summarizeTrace(args[0], summaryTop, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(traceSummaryCmd)

	traceSummaryCmd.Flags().IntVar(&summaryTop, "top", 5,
		"number of slowest tasks to list")
}

type taskRow struct {
	ID        string
	ParentID  string
	Kind      string
	What      string
	StartTime uint64
	EndTime   uint64
}

type taskGroup struct {
	Kind    string  `yaml:"kind"`
	What    string  `yaml:"what"`
	Count   int     `yaml:"count"`
	AvgNS   float64 `yaml:"avg_ns"`
	MaxNS   uint64  `yaml:"max_ns"`
	totalNS uint64
}

type slowTask struct {
	ID        string `yaml:"id"`
	Kind      string `yaml:"kind"`
	What      string `yaml:"what"`
	StartTime uint64 `yaml:"start_time"`
	LatencyNS uint64 `yaml:"latency_ns"`
}

type traceSummary struct {
	Run     map[string]string `yaml:"run"`
	Tasks   int               `yaml:"tasks"`
	Groups  []*taskGroup      `yaml:"groups"`
	Slowest []slowTask        `yaml:"slowest"`
}

func summarizeTrace(path string, top int, out io.Writer) error {
	if !strings.HasSuffix(path, ".sqlite3") {
		path += ".sqlite3"
	}

	if _, err := os.Stat(path); err != nil {
		return err
	}

	reader := datarecording.NewReader(path)
	defer reader.Close()

	reader.MapTable("run_info", datarecording.RunInfo{})
	reader.MapTable("trace", taskRow{})

	s, err := readSummary(context.Background(), reader, top)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)

	if err := enc.Encode(s); err != nil {
		return err
	}

	return enc.Close()
}

func readSummary(
	ctx context.Context,
	reader datarecording.DataReader,
	top int,
) (traceSummary, error) {
	s := traceSummary{Run: make(map[string]string)}

	props, _, err := reader.Query(ctx, "run_info", datarecording.QueryParams{})
	if err != nil {
		return s, err
	}

	for _, p := range props {
		info := p.(*datarecording.RunInfo)
		s.Run[info.Property] = info.Value
	}

	tasks, total, err := reader.Query(ctx, "trace", datarecording.QueryParams{
		OrderBy: "Kind, What",
	})
	if err != nil {
		return s, err
	}

	s.Tasks = total

	var last *taskGroup
	for _, t := range tasks {
		row := t.(*taskRow)
		if last == nil || last.Kind != row.Kind || last.What != row.What {
			last = &taskGroup{Kind: row.Kind, What: row.What}
			s.Groups = append(s.Groups, last)
		}

		latency := row.EndTime - row.StartTime
		last.Count++
		last.totalNS += latency
		last.MaxNS = max(last.MaxNS, latency)
	}

	for _, grp := range s.Groups {
		grp.AvgNS = float64(grp.totalNS) / float64(grp.Count)
	}

	if top <= 0 {
		return s, nil
	}

	slow, _, err := reader.Query(ctx, "trace", datarecording.QueryParams{
		OrderBy: "EndTime - StartTime DESC, StartTime",
		Limit:   top,
	})
	if err != nil {
		return s, err
	}

	for _, t := range slow {
		row := t.(*taskRow)
		s.Slowest = append(s.Slowest, slowTask{
			ID:        row.ID,
			Kind:      row.Kind,
			What:      row.What,
			StartTime: row.StartTime,
			LatencyNS: row.EndTime - row.StartTime,
		})
	}

	return s, nil
}

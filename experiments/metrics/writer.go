package metrics

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type GameRecord struct {
	ID     int
	Config int // MatchConfig.ID
	Match  string
	GameMetric
}

type MoveRecord struct {
	Game int // GameRecord.ID
	MoveMetric
}

type ThroughputRecord struct {
	Config      int
	Agents      int
	Ticks       int
	Elapsed     time.Duration
	TicksPerSec float64
	AgentSteps  float64 // driver steps per second
}

type Writer struct {
	baseDir string
}

// NewWriter creates <root>/<name>/<timestamp>_<id> for one experiment run.
func NewWriter(root, name string) (*Writer, error) {
	run := time.Now().UTC().Format("20060102T150405") + "_" + uuid.NewString()[:8]
	baseDir := filepath.Join(root, name, run)
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return &Writer{baseDir: baseDir}, nil
}

func (w *Writer) Dir() string {
	return w.baseDir
}

func (w *Writer) write(file string, header []string, rows [][]string) error {
	f, err := os.Create(filepath.Join(w.baseDir, file))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", file, err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", file, err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s rows: %w", file, err)
	}
	return nil
}

func (w *Writer) WriteMatchConfigs(configs []MatchConfig) error {
	rows := make([][]string, 0, len(configs))
	for _, c := range configs {
		rows = append(rows, []string{
			strconv.Itoa(c.ID),
			strconv.FormatBool(c.Parallel),
			c.Capture.String(),
			strconv.FormatFloat(c.Noise, 'f', -1, 64),
			strconv.Itoa(c.MaxTicks),
		})
	}
	return w.write("match_configs.csv", []string{"id", "parallel", "capture", "noise", "max_ticks"}, rows)
}

func (w *Writer) WriteGameRecords(records []GameRecord) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			strconv.Itoa(r.ID),
			strconv.Itoa(r.Config),
			r.Match,
			r.StartingTeam.String(),
			r.Winner,
			r.StartTime.Format(time.RFC3339),
			r.EndTime.Format(time.RFC3339),
			r.Duration.String(),
			strconv.Itoa(r.Ticks),
			strconv.Itoa(r.TotalMoves),
			strconv.Itoa(r.Captures[0]),
			strconv.Itoa(r.Captures[1]),
			strconv.Itoa(r.Rejections),
			strconv.Itoa(r.Timeouts),
		})
	}
	header := []string{"id", "config", "match", "starting_team", "winner", "start_time", "end_time", "duration",
		"ticks", "total_moves", "captures_first", "captures_second", "rejections", "timeouts"}
	return w.write("game_records.csv", header, rows)
}

func (w *Writer) WriteMoveRecords(records []MoveRecord) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			strconv.Itoa(r.Game),
			strconv.Itoa(r.Step),
			r.Team.String(),
			string(r.Piece),
			strconv.FormatBool(r.Capture),
			strconv.FormatBool(r.Promoted),
			strconv.Itoa(r.Ticks),
			strconv.Itoa(r.Resends),
			strconv.FormatBool(r.Escalated),
		})
	}
	header := []string{"game", "step", "team", "piece", "capture", "promoted", "ticks", "resends", "escalated"}
	return w.write("move_records.csv", header, rows)
}

func (w *Writer) WriteThroughput(records []ThroughputRecord) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			strconv.Itoa(r.Config),
			strconv.Itoa(r.Agents),
			strconv.Itoa(r.Ticks),
			r.Elapsed.String(),
			strconv.FormatFloat(r.TicksPerSec, 'f', 1, 64),
			strconv.FormatFloat(r.AgentSteps, 'f', 1, 64),
		})
	}
	header := []string{"config", "agents", "ticks", "elapsed", "ticks_per_sec", "agent_steps_per_sec"}
	return w.write("throughput.csv", header, rows)
}

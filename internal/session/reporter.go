package session

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"
)

// Reporter writes session results as plain data files: a human-readable
// summary, the full probability history as JSON, and the same history as
// CSV for spreadsheet tooling. Rendering is out of scope; consumers plot
// these files themselves.
type Reporter struct {
	result     *Result
	outputPath string
}

// NewReporter creates a reporter for a finished session.
func NewReporter(result *Result, outputPath string) *Reporter {
	return &Reporter{result: result, outputPath: outputPath}
}

// GenerateReport writes all report files into the output directory.
func (r *Reporter) GenerateReport() error {
	if err := os.MkdirAll(r.outputPath, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.generateSummary(); err != nil {
		return err
	}
	if err := r.generateJSONHistory(); err != nil {
		return err
	}
	if err := r.generateCSVHistory(); err != nil {
		return err
	}

	log.Info().Str("path", r.outputPath).Msg("session report written")
	return nil
}

func (r *Reporter) generateSummary() error {
	path := filepath.Join(r.outputPath, "session_summary.txt")
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	res := r.result
	fmt.Fprintf(file, "IDENTIFICATION SESSION SUMMARY\n")
	fmt.Fprintf(file, "==============================\n\n")
	fmt.Fprintf(file, "Session:        %s\n", res.SessionID)
	fmt.Fprintf(file, "Started:        %s\n", res.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(file, "Duration:       %s\n", res.Duration)
	fmt.Fprintf(file, "Candidates:     %v\n", res.Users)
	fmt.Fprintf(file, "True user:      %d\n", res.TrueUser)
	fmt.Fprintf(file, "Steps:          %d\n\n", res.Steps)

	fmt.Fprintf(file, "Top candidate:  %d (p=%.4f)\n", res.TopUser, res.TopProb)
	fmt.Fprintf(file, "Correct:        %t\n", res.Correct)
	fmt.Fprintf(file, "Steps to p>0.5: %s\n", stepOrNever(res.StepsToHalf))
	fmt.Fprintf(file, "Steps to p>0.9: %s\n\n", stepOrNever(res.StepsToNinety))

	fmt.Fprintf(file, "Final belief:\n")
	for k, u := range res.Users {
		fmt.Fprintf(file, "  user %d: %.6f\n", u, res.Final[k])
	}

	return nil
}

func (r *Reporter) generateJSONHistory() error {
	path := filepath.Join(r.outputPath, "session_history.json")
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create JSON history file: %w", err)
	}
	defer file.Close()

	payload := struct {
		SessionID string      `json:"session_id"`
		TrueUser  int         `json:"true_user"`
		Users     []int       `json:"users"`
		History   [][]float64 `json:"history"`
	}{
		SessionID: r.result.SessionID,
		TrueUser:  r.result.TrueUser,
		Users:     r.result.Users,
		History:   r.result.History,
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("failed to encode JSON history: %w", err)
	}
	return nil
}

func (r *Reporter) generateCSVHistory() error {
	path := filepath.Join(r.outputPath, "session_history.csv")
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV history file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	header := make([]string, 0, len(r.result.Users)+1)
	header = append(header, "step")
	for _, u := range r.result.Users {
		header = append(header, fmt.Sprintf("p_user_%d", u))
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i, probs := range r.result.History {
		row := make([]string, 0, len(probs)+1)
		row = append(row, strconv.Itoa(i+1))
		for _, p := range probs {
			row = append(row, strconv.FormatFloat(p, 'g', 10, 64))
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", i, err)
		}
	}

	return nil
}

func stepOrNever(step int) string {
	if step < 0 {
		return "never"
	}
	return strconv.Itoa(step)
}

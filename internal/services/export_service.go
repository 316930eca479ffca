package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/edupulse/assessment-delivery/internal/models"
	"github.com/edupulse/assessment-delivery/internal/utils"
)

// ExportService renders a session's answer report as a downloadable file.
type ExportService interface {
	ExportSessionToExcel(ctx context.Context, sessionID string) ([]byte, error)
	ExportSessionToCSV(ctx context.Context, sessionID string) ([]byte, error)
}

type exportService struct {
	sessions DeliveryService
	logger   utils.Logger
}

func NewExportService(sessions DeliveryService, logger utils.Logger) ExportService {
	return &exportService{
		sessions: sessions,
		logger:   logger,
	}
}

var exportHeaders = []string{
	"#", "Question", "Type", "Required", "Points", "Answered", "Answer",
}

func (s *exportService) ExportSessionToExcel(ctx context.Context, sessionID string) ([]byte, error) {
	rows, err := s.buildRows(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Session Report"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	for colIndex, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(colIndex+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIndex, row := range rows {
		for colIndex, value := range row {
			cell, _ := excelize.CoordinatesToCellName(colIndex+1, rowIndex+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	s.logger.Info("exported session report", "session_id", sessionID, "format", "xlsx", "rows", len(rows))
	return buf.Bytes(), nil
}

func (s *exportService) ExportSessionToCSV(ctx context.Context, sessionID string) ([]byte, error) {
	rows, err := s.buildRows(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(exportHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}

	s.logger.Info("exported session report", "session_id", sessionID, "format", "csv", "rows", len(rows))
	return buf.Bytes(), nil
}

func (s *exportService) buildRows(ctx context.Context, sessionID string) ([][]string, error) {
	questions, err := s.sessions.GetQuestions(sessionID)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(questions))
	for i, q := range questions {
		answer, err := s.sessions.GetAnswer(sessionID, q.ID)
		if err != nil {
			return nil, err
		}

		answered := "no"
		rendered := ""
		if answer != nil {
			answered = "yes"
			rendered = renderAnswer(&q, answer)
		}

		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			q.Text,
			string(q.Type),
			boolLabel(q.Required),
			strconv.Itoa(q.Points),
			answered,
			rendered,
		})
	}
	return rows, nil
}

// renderAnswer flattens a stored answer to a display string for the report.
func renderAnswer(q *models.Question, answer *models.StudentAnswer) string {
	switch q.Type {
	case models.SingleChoice, models.MultipleChoice:
		var a models.ChoiceAnswer
		if json.Unmarshal(answer.Data, &a) != nil {
			return ""
		}
		return strings.Join(optionLabels(q, a.SelectedOptions), "; ")
	case models.TrueFalse:
		var a models.TrueFalseAnswer
		if json.Unmarshal(answer.Data, &a) != nil || a.Value == nil {
			return ""
		}
		return strconv.FormatBool(*a.Value)
	case models.ShortAnswer, models.LongAnswer:
		var a models.TextAnswer
		if json.Unmarshal(answer.Data, &a) != nil {
			return ""
		}
		return a.Text
	case models.FillBlank:
		var a models.FillBlankAnswer
		if json.Unmarshal(answer.Data, &a) != nil {
			return ""
		}
		return a.Formatted
	case models.Matching:
		var a models.MatchingAnswer
		if json.Unmarshal(answer.Data, &a) != nil {
			return ""
		}
		pairs := make([]string, 0, len(a.Pairs))
		for prompt, response := range a.Pairs {
			pairs = append(pairs, prompt+" -> "+response)
		}
		return strings.Join(pairs, "; ")
	case models.Ordering:
		var a models.OrderingAnswer
		if json.Unmarshal(answer.Data, &a) != nil {
			return ""
		}
		return strings.Join(a.Order, " > ")
	case models.Numeric:
		var a models.NumericAnswer
		if json.Unmarshal(answer.Data, &a) != nil || a.Value == nil {
			return ""
		}
		rendered := strconv.FormatFloat(*a.Value, 'f', -1, 64)
		if a.Unit != "" {
			rendered += " " + a.Unit
		}
		return rendered
	case models.FileUpload:
		var a models.FileUploadAnswer
		if json.Unmarshal(answer.Data, &a) != nil {
			return ""
		}
		return a.FileName
	default:
		return ""
	}
}

// optionLabels resolves selected option ids to their display text where the
// format payload allows it, falling back to the raw id.
func optionLabels(q *models.Question, selected []string) []string {
	labels := make(map[string]string)
	var format models.ChoiceFormat
	if len(q.Format) > 0 && json.Unmarshal(q.Format, &format) == nil {
		for _, opt := range format.Options {
			labels[opt.ID] = opt.Text
		}
	}

	out := make([]string, 0, len(selected))
	for _, id := range selected {
		if text, ok := labels[id]; ok && text != "" {
			out = append(out, text)
			continue
		}
		out = append(out, id)
	}
	return out
}

func boolLabel(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
